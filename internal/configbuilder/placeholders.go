package configbuilder

import (
	"fmt"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/settings"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/template"
)

var placeholderEngine = template.New()

// placeholderContext builds the variable set a stdio flow's command,
// args, and env may reference via `{{ .Field }}` placeholders (spec
// §4.2a), so an operator can parameterize a command with the gateway's
// own host/port instead of hand-editing the flow per environment.
func placeholderContext(f flow.Flow, port int, s settings.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"Port": port,
		"Host": s.Host,
		"Settings": map[string]interface{}{
			"Host":        s.Host,
			"SSEPort":     s.SSEPort,
			"StreamPort":  s.StreamPort,
			"OpenAPIPort": s.OpenAPIPort,
		},
		"Flow": map[string]interface{}{
			"ID":    f.ID,
			"Name":  f.Name,
			"Route": f.Route,
		},
	}
}

// renderStdioEntry resolves placeholders in command/args/env, returning
// an error if a reference can't be resolved so an empty string is never
// passed to the gateway. The check runs when the port's config is built
// at start/restart, not when the flow is created or updated.
func renderStdioEntry(f flow.Flow, port int, s settings.Snapshot) (command string, args []string, env map[string]string, err error) {
	ctx := placeholderContext(f, port, s)

	renderedCommand, err := placeholderEngine.Replace(f.Command, ctx)
	if err != nil {
		return "", nil, nil, fmt.Errorf("configbuilder: command: %w", err)
	}
	command = renderedCommand.(string)

	renderedArgs := make([]string, len(f.Args))
	for i, a := range f.Args {
		v, err := placeholderEngine.Replace(a, ctx)
		if err != nil {
			return "", nil, nil, fmt.Errorf("configbuilder: args[%d]: %w", i, err)
		}
		renderedArgs[i] = v.(string)
	}
	args = renderedArgs

	if len(f.Env) > 0 {
		env = make(map[string]string, len(f.Env))
		for k, v := range f.Env {
			rendered, err := placeholderEngine.Replace(v, ctx)
			if err != nil {
				return "", nil, nil, fmt.Errorf("configbuilder: env[%s]: %w", k, err)
			}
			env[k] = rendered.(string)
		}
	}

	return command, args, env, nil
}
