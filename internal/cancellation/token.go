// Package cancellation implements the cooperative cancellation flag shared by
// every operation of a build attempt.
//
// A Token only ever moves from "not cancelled" to "cancelled". Cancelling never
// interrupts running work; runners observe the token at safe points through
// IsCancelled, Done, or a callback registered with OnCancel.
package cancellation

import (
	"context"
	"sync"
)

// Token is a one-shot, observable cancellation flag. The zero value is not
// usable; obtain tokens from NewToken or Source.Token.
type Token struct {
	mu        sync.Mutex
	cancelled bool
	callbacks []func()
	done      chan struct{}
}

// NewToken returns a token that nothing can cancel. It is used for
// single-shot builds that have no reason to stop early.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// IsCancelled reports whether the token has been cancelled.
func (t *Token) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Done returns a channel that is closed when the token is cancelled.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// OnCancel registers fn to run when the token is cancelled. Callbacks run
// synchronously in registration order, at most once each. If the token is
// already cancelled, fn runs immediately on the calling goroutine.
func (t *Token) OnCancel(fn func()) {
	t.mu.Lock()
	if !t.cancelled {
		t.callbacks = append(t.callbacks, fn)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	fn()
}

// Context derives a context from parent that is cancelled together with the
// token. The returned CancelFunc releases the derived context early.
func (t *Token) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	t.OnCancel(cancel)
	return ctx, cancel
}

func (t *Token) cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	close(t.done)
	callbacks := t.callbacks
	t.callbacks = nil
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// Source owns the right to cancel its token. One source is created per
// build attempt.
type Source struct {
	token *Token
}

// NewSource creates a source with a fresh, uncancelled token.
func NewSource() *Source {
	return &Source{token: NewToken()}
}

// Token returns the token controlled by this source.
func (s *Source) Token() *Token {
	return s.token
}

// Cancel cancels the token. Calls after the first are no-ops.
func (s *Source) Cancel() {
	s.token.cancel()
}
