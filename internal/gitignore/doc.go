// Package gitignore answers "is this path ignored?" for the watch-mode
// change classifier. Inside a git work tree it asks git itself; elsewhere a
// fixed list of ignored prefixes stands in.
package gitignore
