// Package syncer is an example synchronizer: it refreshes a local copy
// of a remote document over HTTP. Wrapped in a gate, it becomes the
// "phone home at most every N seconds" pattern.
package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/randomizedcoder/interval-sync/internal/gate"
)

// DefaultTimeout bounds a single fetch when no client is supplied.
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of a response is kept.
const maxBody = 10 << 20

// ErrUnexpectedStatus is wrapped by Sync for non-2xx, non-304 replies.
var ErrUnexpectedStatus = errors.New("syncer: unexpected status")

// Snapshot is the most recently fetched document.
type Snapshot struct {
	Body      []byte
	ETag      string
	FetchedAt time.Time
	// Version increments each time the body changes.
	Version uint64
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Syncer) {
		if c != nil {
			s.client = c
		}
	}
}

// WithContext sets the context fetches run under, so shutting down
// aborts an in-flight fetch.
func WithContext(ctx context.Context) Option {
	return func(s *Syncer) {
		if ctx != nil {
			s.ctx = ctx
		}
	}
}

// Syncer fetches url on every Sync call. It is safe for concurrent use.
type Syncer struct {
	url    string
	client *http.Client
	ctx    context.Context

	mu       sync.RWMutex
	snap     Snapshot
	have     bool
	attempts uint64
	failures uint64
	lastErr  error
}

// New creates a Syncer for url.
func New(url string, opts ...Option) *Syncer {
	s := &Syncer{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Action returns Sync as a gate.Action.
func (s *Syncer) Action() gate.Action {
	return s.Sync
}

// Sync fetches the document. It sends If-None-Match with the last
// ETag; a 304 keeps the current snapshot.
func (s *Syncer) Sync() error {
	err := s.fetch()

	s.mu.Lock()
	s.attempts++
	s.lastErr = err
	if err != nil {
		s.failures++
	}
	s.mu.Unlock()

	return err
}

func (s *Syncer) fetch() error {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("syncer: building request: %w", err)
	}

	s.mu.RLock()
	etag := s.snap.ETag
	s.mu.RUnlock()
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("syncer: fetching %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		s.mu.Lock()
		s.snap.FetchedAt = time.Now()
		s.mu.Unlock()
		return nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return fmt.Errorf("%w: %s from %s", ErrUnexpectedStatus, resp.Status, s.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("syncer: reading body: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.have || !bytes.Equal(body, s.snap.Body) {
		s.snap.Version++
	}
	s.snap.Body = body
	s.snap.ETag = resp.Header.Get("ETag")
	s.snap.FetchedAt = time.Now()
	s.have = true
	return nil
}

// Snapshot returns a copy of the latest document. ok is false until a
// fetch has succeeded.
func (s *Syncer) Snapshot() (snap Snapshot, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap = s.snap
	snap.Body = append([]byte(nil), s.snap.Body...)
	return snap, s.have
}

// Stats reports how many fetches were attempted and failed, and the
// error from the latest attempt.
func (s *Syncer) Stats() (attempts, failures uint64, lastErr error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempts, s.failures, s.lastErr
}
