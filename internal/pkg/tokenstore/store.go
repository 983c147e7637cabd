// Package tokenstore implements an in-memory, TTL-bound, single-use map from
// opaque correlation tokens to arbitrary payloads. One generic store serves
// both OAuth state correlation and signup email verification; only the TTL and
// payload shape differ, both supplied by the caller.
//
// The store is process-local by design: records are explicitly allowed to be
// lost on restart, and a periodic sweep bounds memory even absent traffic.
package tokenstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-auth-broker/internal/domain"
	pkgtoken "github.com/go-auth-broker/internal/pkg/token"
)

// DefaultSweepInterval is how often the background sweep evicts dead records.
const DefaultSweepInterval = 5 * time.Minute

type record[T any] struct {
	payload   T
	expiresAt time.Time
	usedAt    time.Time // zero until consumed; a set value is a tombstone
}

// Store is a keyed, TTL-bound, single-use payload store safe for concurrent
// use. A whole-map mutex guards every operation; hold times are bounded by
// in-memory map work only, which is acceptable at this workload's cardinality.
type Store[T any] struct {
	mu      sync.Mutex
	records map[string]*record[T]

	now       func() time.Time
	sweepTick time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithClock injects the time source. Tests use this instead of sleeping.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(s *Store[T]) { s.now = now }
}

// WithSweepInterval overrides the background sweep cadence. A non-positive
// interval disables the background sweeper; Sweep can still be called directly.
func WithSweepInterval[T any](d time.Duration) Option[T] {
	return func(s *Store[T]) { s.sweepTick = d }
}

// New creates a Store and starts its background sweeper.
func New[T any](opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		records:   make(map[string]*record[T]),
		now:       time.Now,
		sweepTick: DefaultSweepInterval,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sweepTick > 0 {
		go s.sweepLoop()
	}
	return s
}

// Create inserts payload under a fresh unique token that expires after ttl.
// Returns the token and its expiry. All-or-nothing: on error no record exists.
func (s *Store[T]) Create(payload T, ttl time.Duration) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.freshToken()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := s.now().Add(ttl)
	s.records[tok] = &record[T]{payload: payload, expiresAt: expiresAt}
	return tok, expiresAt, nil
}

// Consume atomically redeems a token. Exactly one concurrent caller ever
// receives the payload; the rest observe domain.ErrAlreadyUsed (tombstone) or
// domain.ErrNotFound once the tombstone is evicted. Expired records return
// domain.ErrExpired and are evicted as a side effect.
func (s *Store[T]) Consume(tok string) (T, error) {
	var zero T

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tok]
	if !ok {
		return zero, domain.ErrNotFound
	}
	now := s.now()
	if !rec.usedAt.IsZero() {
		delete(s.records, tok)
		return zero, domain.ErrAlreadyUsed
	}
	if !rec.expiresAt.After(now) {
		delete(s.records, tok)
		return zero, domain.ErrExpired
	}
	rec.usedAt = now
	return rec.payload, nil
}

// Len returns the number of live (unexpired, unused) records.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, rec := range s.records {
		if rec.usedAt.IsZero() && rec.expiresAt.After(now) {
			n++
		}
	}
	return n
}

// Sweep evicts every dead record (expired or used) and returns how many were
// dropped. Runs in one lock acquisition; a single map scan.
func (s *Store[T]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	dropped := 0
	for tok, rec := range s.records {
		if !rec.usedAt.IsZero() || !rec.expiresAt.After(now) {
			delete(s.records, tok)
			dropped++
		}
	}
	return dropped
}

// Close stops the background sweeper. Safe to call more than once.
func (s *Store[T]) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Store[T]) sweepLoop() {
	ticker := time.NewTicker(s.sweepTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.done:
			return
		}
	}
}

// freshToken generates a token not colliding with any stored record.
// Collisions are vanishingly unlikely at 256 bits; the loop is a cheap
// uniqueness guarantee. Caller holds s.mu.
func (s *Store[T]) freshToken() (string, error) {
	for i := 0; i < 3; i++ {
		tok, err := pkgtoken.New()
		if err != nil {
			return "", err
		}
		if _, exists := s.records[tok]; !exists {
			return tok, nil
		}
	}
	return "", fmt.Errorf("token generation exhausted retries")
}
