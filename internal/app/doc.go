// Package app wires one supervisor process together: configuration,
// logging, the flow store, the port supervisor, and the HTTP control
// API. It owns the process lifecycle (NewApplication, Run) consumed by
// cmd/serve.go. The interactive shell does not use it; it talks to a
// running supervisor over the control API.
//
// # Bootstrap sequence
//
//  1. NewConfig builds the process configuration (data dir, listen
//     address, debug/silent flags, the proxy and OpenAPI gateway
//     binaries to spawn).
//  2. NewApplication configures logging, then calls InitializeServices
//     to open the flow store and compose the supervisor and control
//     API on top of it.
//  3. Run blocks in runSupervisor: it binds the control API's HTTP
//     listener (preferring a systemd-activated socket when present)
//     and serves until SIGINT/SIGTERM triggers a graceful shutdown.
package app
