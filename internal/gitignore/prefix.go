package gitignore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Prefixes ignores every path equal to or below one of its entries. It is
// used when the project is not a git work tree.
type Prefixes struct {
	paths []string
}

// NewPrefixes resolves relative entries against root.
func NewPrefixes(root string, entries ...string) *Prefixes {
	p := &Prefixes{}
	for _, e := range entries {
		if !filepath.IsAbs(e) {
			e = filepath.Join(root, e)
		}
		p.paths = append(p.paths, filepath.Clean(e))
	}
	return p
}

// CheckIgnore implements the watch oracle contract.
func (p *Prefixes) CheckIgnore(_ context.Context, paths []string) (map[string]struct{}, error) {
	ignored := make(map[string]struct{})
	for _, path := range paths {
		clean := filepath.Clean(path)
		for _, prefix := range p.paths {
			if clean == prefix || strings.HasPrefix(clean, prefix+string(os.PathSeparator)) {
				ignored[path] = struct{}{}
				break
			}
		}
	}
	return ignored, nil
}
