package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrSessionClosed is returned after a session has been torn down.
var ErrSessionClosed = errors.New("wallet session closed")

// Factory connects a signer on first use
type Factory func(ctx context.Context) (Signer, error)

// Session owns the single active signer of the process. It connects lazily on
// the first Signer call and releases the signer on Close.
type Session struct {
	mu      sync.Mutex
	factory Factory
	signer  Signer
	closed  bool
}

// NewSession creates a session that connects with factory
func NewSession(factory Factory) *Session {
	return &Session{factory: factory}
}

// Signer returns the active signer, connecting it if needed.
func (s *Session) Signer(ctx context.Context) (Signer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.signer != nil {
		return s.signer, nil
	}
	if s.factory == nil {
		return nil, ErrNotConnected
	}

	signer, err := s.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect wallet: %w", err)
	}
	s.signer = signer
	return signer, nil
}

// Connected reports whether a signer is currently held
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signer != nil
}

// Close tears the session down. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	signer := s.signer
	s.signer = nil
	if c, ok := signer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
