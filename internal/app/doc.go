// Package app contains the core application logic. It wires configuration,
// the plugin registry, the operation graph and the scheduler together and
// drives single runs and watch mode, decoupled from any specific entrypoint
// like a CLI.
package app
