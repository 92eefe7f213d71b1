// Package metrics records one entry per build attempt: what ran, how long it
// took, whether it hit an error, and the invocation parameters. Recording is
// purely observational and never affects a build.
package metrics
