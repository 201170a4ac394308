// Package memory provides an in-process DocumentStore for tests and local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"docprobe/application/ports"
	"docprobe/domain/core/entities"
	"docprobe/domain/core/valueobjects"
	pkgerrors "docprobe/pkg/errors"

	"github.com/google/uuid"
)

var (
	_ ports.DocumentStore = (*DocumentStore)(nil)
	_ ports.HealthChecker = (*DocumentStore)(nil)
)

type record struct {
	doc       *entities.Document
	expiresAt time.Time
}

func (r record) expired(now time.Time) bool {
	return !r.expiresAt.IsZero() && !now.Before(r.expiresAt)
}

// DocumentStore keeps documents in a map and mimics the conditional write
// semantics of the hosted drivers, TTL expiry included.
type DocumentStore struct {
	mu      sync.RWMutex
	records map[valueobjects.DocumentKey]record
	dropped bool
	now     func() time.Time

	// For testing error scenarios
	shouldFailOn map[string]error
	calls        map[string]int
}

// Option configures a DocumentStore
type Option func(*DocumentStore)

// WithClock replaces time.Now, for TTL tests
func WithClock(now func() time.Time) Option {
	return func(s *DocumentStore) {
		s.now = now
	}
}

// NewDocumentStore creates an empty store
func NewDocumentStore(opts ...Option) *DocumentStore {
	s := &DocumentStore{
		records:      make(map[valueobjects.DocumentKey]record),
		now:          time.Now,
		shouldFailOn: make(map[string]error),
		calls:        make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write applies the precondition and stores the document under a fresh token.
func (s *DocumentStore) Write(ctx context.Context, req entities.WriteRequest) (*entities.Document, error) {
	if err := s.enter(ctx, "Write"); err != nil {
		return nil, err
	}
	if req.Document == nil {
		return nil, pkgerrors.NewValidationError("document is required").WithOperation("Write")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dropped {
		return nil, collectionNotFound("Write")
	}

	now := s.now()
	key := req.Document.Key()
	existing, ok := s.records[key]
	if ok && existing.expired(now) {
		delete(s.records, key)
		ok = false
	}

	switch req.Precondition.Kind() {
	case valueobjects.PreconditionMustNotExist:
		if ok {
			return nil, pkgerrors.NewConflictError("document already exists").
				WithOperation("Write").
				WithResource(key.String())
		}
	case valueobjects.PreconditionIfMatch:
		if !ok {
			return nil, pkgerrors.NewNotFoundError("document").WithOperation("Write")
		}
		if existing.doc.VersionToken != req.Precondition.Token() {
			return nil, pkgerrors.NewConflictError("version token does not match").
				WithCode(pkgerrors.CodeVersionMismatch).
				WithOperation("Write").
				WithResource(key.String())
		}
	}

	stored := req.Document.WithVersion(uuid.NewString())
	rec := record{doc: stored}
	if exp, has := stored.ExpiresAt(now); has {
		rec.expiresAt = exp
	}
	s.records[key] = rec

	return stored.Clone(), nil
}

// Read returns the live document at key
func (s *DocumentStore) Read(ctx context.Context, key valueobjects.DocumentKey) (*entities.Document, error) {
	if err := s.enter(ctx, "Read"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dropped {
		return nil, collectionNotFound("Read")
	}

	rec, ok := s.records[key]
	if !ok || rec.expired(s.now()) {
		return nil, pkgerrors.NewNotFoundError("document").WithOperation("Read")
	}
	return rec.doc.Clone(), nil
}

// Ping fails once the collection has been dropped
func (s *DocumentStore) Ping(ctx context.Context) error {
	if err := s.enter(ctx, "Ping"); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dropped {
		return collectionNotFound("Ping")
	}
	return nil
}

// Close is a no-op
func (s *DocumentStore) Close() error {
	return nil
}

// Drop removes the collection; later calls fail with COLLECTION_NOT_FOUND.
func (s *DocumentStore) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped = true
	s.records = make(map[valueobjects.DocumentKey]record)
}

// Len returns the number of live documents
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	n := 0
	for _, rec := range s.records {
		if !rec.expired(now) {
			n++
		}
	}
	return n
}

// SetError makes the named method ("Write", "Read", "Ping") fail with err.
func (s *DocumentStore) SetError(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldFailOn[method] = err
}

// ClearErrors removes all configured errors.
func (s *DocumentStore) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldFailOn = make(map[string]error)
}

// Calls returns how many times the named method was invoked.
func (s *DocumentStore) Calls(method string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[method]
}

func (s *DocumentStore) enter(ctx context.Context, method string) error {
	s.mu.Lock()
	s.calls[method]++
	injected := s.shouldFailOn[method]
	s.mu.Unlock()

	if err := pkgerrors.FromContext(ctx, method); err != nil {
		return err
	}
	return injected
}

func collectionNotFound(op string) error {
	return pkgerrors.NewNotFoundError("collection").
		WithCode(pkgerrors.CodeCollectionNotFound).
		WithOperation(op)
}
