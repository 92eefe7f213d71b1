package watch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vk/phaserun/internal/cancellation"
	"github.com/vk/phaserun/internal/changes"
	"github.com/vk/phaserun/internal/ctxlog"
	"github.com/vk/phaserun/internal/operations"
)

const (
	msgRestarting = "Changes detected, cancelling and restarting incremental build..."
	msgWaiting    = "Waiting for changes. Press CTRL + C to exit..."
	msgStarting   = "Starting incremental build..."
)

// Signal is a stream of change notifications. Next blocks until the next
// source change; an error ends watch mode.
type Signal interface {
	Next(ctx context.Context) error
}

// ChangeTracker is implemented by a Signal that writes the change map
// itself. Changes written after MarkConsumed survive ClearConsumed.
type ChangeTracker interface {
	MarkConsumed()
	ClearConsumed()
}

// BuildFunc runs a single build attempt observing token.
type BuildFunc func(ctx context.Context, token *cancellation.Token) error

// Loop alternates builds and change notifications until a fatal error or
// until ctx is done.
type Loop struct {
	Changes      Signal
	ChangedFiles *changes.Map
	Build        BuildFunc
	// Out receives the user-facing progress lines.
	Out io.Writer
	// IsRecoverable reports whether a build error lets watch mode continue.
	// Defaults to matching operations.ErrAlreadyReported.
	IsRecoverable func(error) bool
	// Waiting, if set, is called each time a build settles before a change
	// arrives.
	Waiting func(ctx context.Context, buildErr error)
}

// Run drives watch mode. It waits for the initial signal, then repeatedly
// starts a build while waiting for the next change. If a change arrives
// first the build is cancelled, awaited and restarted. If the build
// settles first, the change map is cleared on success and the loop waits
// for the next change.
func (l *Loop) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := l.Changes.Next(ctx); err != nil {
		return fmt.Errorf("waiting for initial file state: %w", err)
	}

	tracker, _ := l.Changes.(ChangeTracker)
	for iteration := 1; ; iteration++ {
		logger.Debug("Starting watch iteration.", "iteration", iteration)
		if tracker != nil {
			tracker.MarkConsumed()
		}
		source := cancellation.NewSource()

		changeCh := make(chan error, 1)
		go func() { changeCh <- l.Changes.Next(ctx) }()
		buildCh := make(chan error, 1)
		go func() { buildCh <- l.Build(ctx, source.Token()) }()

		select {
		case err := <-changeCh:
			source.Cancel()
			if err != nil {
				<-buildCh
				return err
			}
			l.println(msgRestarting)
			if err := <-buildCh; err != nil && !l.recoverable(err) {
				return err
			}

		case err := <-buildCh:
			if err != nil && !l.recoverable(err) {
				return err
			}
			if err == nil {
				l.clearChanges(tracker)
			}
			l.println(msgWaiting)
			if l.Waiting != nil {
				l.Waiting(ctx, err)
			}
			if err := <-changeCh; err != nil {
				return err
			}
		}

		l.println("")
		l.println(msgStarting)
	}
}

// clearChanges drops the changes the settled build has seen. A change the
// pending Next already recorded is kept for the next build.
func (l *Loop) clearChanges(tracker ChangeTracker) {
	if tracker != nil {
		tracker.ClearConsumed()
		return
	}
	l.ChangedFiles.Clear()
}

func (l *Loop) recoverable(err error) bool {
	if l.IsRecoverable != nil {
		return l.IsRecoverable(err)
	}
	return errors.Is(err, operations.ErrAlreadyReported)
}

func (l *Loop) println(line string) {
	if l.Out != nil {
		fmt.Fprintln(l.Out, line)
	}
}
