package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/events"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var shellEndpoint string

// shellCmd opens an interactive REPL against a running supervisor,
// for exploring and managing flows without re-invoking the binary per
// command.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive shell against the supervisor",
	Long: `Opens a readline-backed REPL with tab completion and persistent
history, accepting a subset of the top-level verbs: list, get, start,
stop, test, events. 'create' takes too many flags to fit a single REPL
line and is not available here; run 'mcp-proxy-studio create' directly
instead. Type 'help' for the command list, or Ctrl+D to exit.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().StringVar(&shellEndpoint, "endpoint", defaultEndpoint(), "Supervisor control API endpoint")
}

var shellVerbs = []string{"list", "get", "start", "stop", "test", "events", "help", "exit"}

// shellEventsListenDuration bounds how long `events` listens before
// returning control to the prompt; the REPL has no way to interrupt a
// blocking subscription mid-line, so it samples for a fixed window
// instead of streaming indefinitely like the top-level `events` command.
var shellEventsListenDuration = 5 * time.Second

func shellCompleter() readline.AutoCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(shellVerbs))
	for _, v := range shellVerbs {
		items = append(items, readline.PcItem(v))
	}
	return readline.NewPrefixCompleter(items...)
}

func runShell(cmd *cobra.Command, args []string) error {
	client := apiclient.New(shellEndpoint)
	ctx := cmd.Context()

	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".mcp-proxy-studio_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "mcp-proxy-studio> ",
		HistoryFile:     historyFile,
		AutoComplete:    shellCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
			continue
		} else if err == io.EOF {
			fmt.Fprintln(cmd.OutOrStdout(), "Goodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("shell: readline: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if line == "help" {
			fmt.Fprintln(cmd.OutOrStdout(), "Commands: "+strings.Join(shellVerbs, ", "))
			continue
		}

		if err := dispatchShellLine(ctx, cmd.OutOrStdout(), client, line); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "error:", err)
		}
	}
}

// dispatchShellLine parses one REPL line and invokes the matching
// client call directly, bypassing cobra's flag machinery entirely —
// the shell only needs positional name/id arguments.
func dispatchShellLine(ctx context.Context, out io.Writer, client *apiclient.Client, line string) error {
	fields := strings.Fields(line)
	verb, rest := fields[0], fields[1:]

	switch verb {
	case "list":
		flows, err := client.ListFlows(ctx)
		if err != nil {
			return err
		}
		for _, f := range flows {
			status := "stopped"
			if f.Running {
				status = fmt.Sprintf("running (port %d, pid %d)", f.Port, f.PID)
			}
			fmt.Fprintf(out, "%s\t%s -> %s\t%s\n", f.Name, f.SourceType, f.TargetType, status)
		}
		return nil
	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("usage: get <name-or-id>")
		}
		f, err := client.GetFlow(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%+v\n", f)
		return nil
	case "start":
		if len(rest) != 1 {
			return fmt.Errorf("usage: start <name-or-id>")
		}
		f, err := client.GetFlow(ctx, rest[0])
		if err != nil {
			return err
		}
		return client.StartFlow(ctx, f.ID)
	case "stop":
		if len(rest) != 1 {
			return fmt.Errorf("usage: stop <name-or-id>")
		}
		f, err := client.GetFlow(ctx, rest[0])
		if err != nil {
			return err
		}
		return client.StopFlow(ctx, f.ID)
	case "test":
		if len(rest) != 1 {
			return fmt.Errorf("usage: test <name-or-id>")
		}
		f, err := client.GetFlow(ctx, rest[0])
		if err != nil {
			return err
		}
		result, err := client.TestFlow(ctx, f.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "port=%d argv=%s\n", result.Port, strings.Join(result.Argv, " "))
		return nil
	case "events":
		listenCtx, cancel := context.WithTimeout(ctx, shellEventsListenDuration)
		defer cancel()
		fmt.Fprintf(out, "listening for %s...\n", shellEventsListenDuration)
		err := client.Events(listenCtx, func(evt events.Event) {
			fmt.Fprintf(out, "%s %s\n", evt.Type, string(evt.Payload))
		})
		if err != nil && listenCtx.Err() == nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q (try 'help')", verb)
	}
}
