// Package logging provides a structured logging system for the supervisor
// and its CLI, built on log/slog.
//
// Two modes are supported:
//
//   - CLI mode (InitForCLI): logs go directly to the given io.Writer using
//     slog's text handler, filtered by level.
//   - Shell mode (InitForShell): logs are sent on a buffered channel instead,
//     so a readline REPL can interleave them with its prompt without a
//     direct writer racing the terminal. The `shell` command does not
//     enable this mode; it only talks to the control API.
//
// Every call site supplies a subsystem tag (e.g. "PortSupervisor",
// "OpenAPIHelper", "Dependency") used to group log lines in both modes.
package logging
