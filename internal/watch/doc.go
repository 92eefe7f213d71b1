// Package watch implements watch mode: a filesystem Watcher, the Classifier
// that turns raw events into "a source file changed" signals while keeping
// the shared change map current, and the Loop that races those signals
// against running builds.
//
// The Classifier never signals for paths the ignore oracle reports as
// ignored, so a build writing its own outputs into the watched tree does not
// trigger itself again.
package watch
