package decorators

import (
	"context"
	"time"

	"docprobe/application/ports"
	"docprobe/domain/core/entities"
	"docprobe/domain/core/valueobjects"
	"docprobe/pkg/observability"
)

// MetricsDocumentStore records call counts by outcome and latency
type MetricsDocumentStore struct {
	next      ports.DocumentStore
	collector *observability.Collector
}

// NewMetricsDocumentStore wraps next
func NewMetricsDocumentStore(next ports.DocumentStore, collector *observability.Collector) *MetricsDocumentStore {
	return &MetricsDocumentStore{next: next, collector: collector}
}

func (s *MetricsDocumentStore) Write(ctx context.Context, req entities.WriteRequest) (*entities.Document, error) {
	start := time.Now()
	doc, err := s.next.Write(ctx, req)
	s.collector.RecordStoreOperation("Write."+writeKind(req), outcome(err), time.Since(start))
	return doc, err
}

func (s *MetricsDocumentStore) Read(ctx context.Context, key valueobjects.DocumentKey) (*entities.Document, error) {
	start := time.Now()
	doc, err := s.next.Read(ctx, key)
	s.collector.RecordStoreOperation("Read", outcome(err), time.Since(start))
	return doc, err
}

func (s *MetricsDocumentStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := ping(ctx, s.next)
	s.collector.RecordStoreOperation("Ping", outcome(err), time.Since(start))
	return err
}

func (s *MetricsDocumentStore) Close() error {
	return s.next.Close()
}
