package gitignore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vk/phaserun/internal/ctxlog"
)

// Git checks paths with `git check-ignore`.
type Git struct {
	// Dir is the directory git runs in.
	Dir string
	// Binary defaults to "git".
	Binary string
}

// IsRepository reports whether dir is inside a git work tree.
func IsRepository(ctx context.Context, dir string) bool {
	if _, err := exec.LookPath("git"); err != nil {
		return false
	}
	out, err := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--is-inside-work-tree").Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// CheckIgnore returns the subset of paths git ignores. All paths are sent in
// one invocation.
func (g *Git) CheckIgnore(ctx context.Context, paths []string) (map[string]struct{}, error) {
	ignored := make(map[string]struct{})
	if len(paths) == 0 {
		return ignored, nil
	}

	byClean := make(map[string]string, len(paths))
	var stdin bytes.Buffer
	for _, p := range paths {
		byClean[g.abs(p)] = p
		stdin.WriteString(p)
		stdin.WriteByte(0)
	}

	binary := g.Binary
	if binary == "" {
		binary = "git"
	}
	cmd := exec.CommandContext(ctx, binary, "-C", g.Dir, "check-ignore", "--stdin", "-z")
	cmd.Stdin = &stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Exit status 1 means none of the paths are ignored.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return ignored, nil
		}
		return nil, fmt.Errorf("git check-ignore: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	for _, out := range strings.Split(stdout.String(), "\x00") {
		if out == "" {
			continue
		}
		if original, ok := byClean[g.abs(out)]; ok {
			ignored[original] = struct{}{}
		}
	}
	ctxlog.FromContext(ctx).Debug("Checked ignored paths.", "paths", len(paths), "ignored", len(ignored))
	return ignored, nil
}

func (g *Git) abs(p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(g.Dir, p)
	}
	return filepath.Clean(p)
}
