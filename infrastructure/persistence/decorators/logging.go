package decorators

import (
	"context"
	"time"

	"docprobe/application/ports"
	"docprobe/domain/core/entities"
	"docprobe/domain/core/valueobjects"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingDocumentStore logs every driver call with its outcome and latency
type LoggingDocumentStore struct {
	next          ports.DocumentStore
	logger        *zap.Logger
	slowThreshold time.Duration
}

// NewLoggingDocumentStore wraps next. Calls slower than slowThreshold are
// logged at Warn; zero disables the check.
func NewLoggingDocumentStore(next ports.DocumentStore, logger *zap.Logger, slowThreshold time.Duration) *LoggingDocumentStore {
	return &LoggingDocumentStore{
		next:          next,
		logger:        logger.Named("store"),
		slowThreshold: slowThreshold,
	}
}

func (s *LoggingDocumentStore) Write(ctx context.Context, req entities.WriteRequest) (*entities.Document, error) {
	start := time.Now()
	doc, err := s.next.Write(ctx, req)

	fields := []zap.Field{zap.String("kind", writeKind(req))}
	if req.Document != nil {
		fields = append(fields,
			zap.String("partitionKey", req.Document.PartitionKey),
			zap.String("documentID", req.Document.ID),
		)
	}
	if doc != nil {
		fields = append(fields, zap.String("versionToken", doc.VersionToken))
	}
	s.log("Write", start, err, fields...)
	return doc, err
}

func (s *LoggingDocumentStore) Read(ctx context.Context, key valueobjects.DocumentKey) (*entities.Document, error) {
	start := time.Now()
	doc, err := s.next.Read(ctx, key)
	s.log("Read", start, err,
		zap.String("partitionKey", key.PartitionKey),
		zap.String("documentID", key.ID),
	)
	return doc, err
}

func (s *LoggingDocumentStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := ping(ctx, s.next)
	s.log("Ping", start, err)
	return err
}

func (s *LoggingDocumentStore) Close() error {
	return s.next.Close()
}

func (s *LoggingDocumentStore) log(op string, start time.Time, err error, fields ...zap.Field) {
	elapsed := time.Since(start)
	fields = append(fields,
		zap.String("operation", op),
		zap.String("outcome", outcome(err)),
		zap.Duration("duration", elapsed),
	)

	// Conflicts and misses are expected answers, not failures.
	level := zapcore.DebugLevel
	switch outcome(err) {
	case "ok", "conflict", "not_found", "validation":
	case "transient", "cancelled":
		level = zapcore.WarnLevel
	default:
		level = zapcore.ErrorLevel
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if s.slowThreshold > 0 && elapsed > s.slowThreshold && level < zapcore.WarnLevel {
		level = zapcore.WarnLevel
		fields = append(fields, zap.Duration("slowThreshold", s.slowThreshold))
	}

	if ce := s.logger.Check(level, "Document store call"); ce != nil {
		ce.Write(fields...)
	}
}
