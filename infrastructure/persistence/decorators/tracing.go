package decorators

import (
	"context"

	"docprobe/application/ports"
	"docprobe/domain/core/entities"
	"docprobe/domain/core/valueobjects"
	"docprobe/pkg/observability"
)

// TracingDocumentStore opens one span per driver call
type TracingDocumentStore struct {
	next   ports.DocumentStore
	tracer observability.Tracer
}

// NewTracingDocumentStore wraps next
func NewTracingDocumentStore(next ports.DocumentStore, tracer observability.Tracer) *TracingDocumentStore {
	return &TracingDocumentStore{next: next, tracer: tracer}
}

func (s *TracingDocumentStore) Write(ctx context.Context, req entities.WriteRequest) (*entities.Document, error) {
	attrs := map[string]string{"write_kind": writeKind(req)}
	if req.Document != nil {
		attrs["partition_key"] = req.Document.PartitionKey
		attrs["document_id"] = req.Document.ID
	}

	ctx, span := s.tracer.Start(ctx, "DocumentStore.Write", attrs)
	doc, err := s.next.Write(ctx, req)
	span.End(err)
	return doc, err
}

func (s *TracingDocumentStore) Read(ctx context.Context, key valueobjects.DocumentKey) (*entities.Document, error) {
	ctx, span := s.tracer.Start(ctx, "DocumentStore.Read", map[string]string{
		"partition_key": key.PartitionKey,
		"document_id":   key.ID,
	})
	doc, err := s.next.Read(ctx, key)
	span.End(err)
	return doc, err
}

func (s *TracingDocumentStore) Ping(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "DocumentStore.Ping", nil)
	err := ping(ctx, s.next)
	span.End(err)
	return err
}

func (s *TracingDocumentStore) Close() error {
	return s.next.Close()
}
