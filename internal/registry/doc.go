// Package registry maps plugin names used in build configuration to the Go
// implementations compiled into the binary, and collects lifecycle hooks
// that run at the start and end of every build attempt.
//
// Modules register themselves through the Module interface, mirroring how
// the application assembles its built-in plugins at startup.
package registry
