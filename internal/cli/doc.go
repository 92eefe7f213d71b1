// Package cli builds the phaserun command tree. It owns flag parsing,
// environment defaults and the mapping of errors to exit codes.
package cli
