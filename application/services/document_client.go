package services

import (
	"context"
	"fmt"

	"docprobe/application/ports"
	"docprobe/domain/core/entities"
	"docprobe/domain/core/validators"
	"docprobe/domain/core/valueobjects"
	pkgerrors "docprobe/pkg/errors"
	"docprobe/pkg/utils"

	"go.uber.org/zap"
)

// ClientConfig identifies the target collection and how keys are derived.
// It is fixed for the lifetime of a DocumentStoreClient.
type ClientConfig struct {
	Endpoint         string `validate:"required"`
	Credential       string `validate:"required"`
	DatabaseName     string `validate:"required"`
	CollectionName   string `validate:"required"`
	KeyPrefix        string
	DocumentIDPrefix string
}

// Validate checks required fields
func (c ClientConfig) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return pkgerrors.NewValidationError("invalid client configuration: " + err.Error())
	}
	return nil
}

// String renders the config with the credential redacted
func (c ClientConfig) String() string {
	return fmt.Sprintf("ClientConfig{Endpoint:%s Credential:%s DatabaseName:%s CollectionName:%s KeyPrefix:%q DocumentIDPrefix:%q}",
		c.Endpoint, utils.Redact(c.Credential), c.DatabaseName, c.CollectionName, c.KeyPrefix, c.DocumentIDPrefix)
}

// GoString keeps %#v from leaking the credential
func (c ClientConfig) GoString() string {
	return c.String()
}

// CreateOption customizes a single write
type CreateOption func(*writeOptions)

type writeOptions struct {
	ttlSeconds *int
}

// WithTTL sets the document's time to live in seconds. Must be positive.
func WithTTL(seconds int) CreateOption {
	return func(o *writeOptions) {
		o.ttlSeconds = &seconds
	}
}

func applyOptions(opts []CreateOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// DocumentStoreClient creates and reads documents in one collection with
// optimistic concurrency. It holds no per-call state and performs no retries;
// callers decide what to do with a retryable error.
type DocumentStoreClient struct {
	config    ClientConfig
	keyspace  valueobjects.Keyspace
	store     ports.DocumentStore
	validator *validators.DocumentValidator
	logger    *zap.Logger
}

// NewDocumentStoreClient creates a client over the given driver
func NewDocumentStoreClient(cfg ClientConfig, store ports.DocumentStore, logger *zap.Logger) (*DocumentStoreClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, pkgerrors.NewValidationError("document store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DocumentStoreClient{
		config:    cfg,
		keyspace:  valueobjects.NewKeyspace(cfg.KeyPrefix, cfg.DocumentIDPrefix),
		store:     store,
		validator: validators.NewDocumentValidator(),
		logger: logger.Named("document_client").With(
			zap.String("database", cfg.DatabaseName),
			zap.String("collection", cfg.CollectionName),
		),
	}, nil
}

// Config returns the client configuration
func (c *DocumentStoreClient) Config() ClientConfig {
	return c.config
}

// Keyspace returns the key derivation used by this client
func (c *DocumentStoreClient) Keyspace() valueobjects.Keyspace {
	return c.keyspace
}

// CreateDocument inserts a document that must not already exist.
// A ConflictError means another writer got there first; read the document
// with GetDocument rather than retrying the create.
func (c *DocumentStoreClient) CreateDocument(ctx context.Context, partitionKey, documentID string, opts ...CreateOption) (*entities.Document, error) {
	const op = "CreateDocument"
	o := applyOptions(opts)
	key := c.keyspace.Derive(partitionKey, documentID)

	if err := c.validator.ValidateCreate(op, key, o.ttlSeconds); err != nil {
		return nil, err
	}
	if err := pkgerrors.FromContext(ctx, op); err != nil {
		return nil, err
	}

	req := entities.NewCreateRequest(entities.NewDocument(key, o.ttlSeconds))
	doc, err := c.store.Write(ctx, req)
	if err != nil {
		c.logFailure(op, key, err)
		return nil, annotate(err, op)
	}

	c.logger.Debug("Document created",
		zap.String("partitionKey", key.PartitionKey),
		zap.String("documentID", key.ID),
		zap.String("versionToken", doc.VersionToken),
	)
	return doc, nil
}

// GetDocument reads the current state of a document
func (c *DocumentStoreClient) GetDocument(ctx context.Context, partitionKey, documentID string) (*entities.Document, error) {
	const op = "GetDocument"
	key := c.keyspace.Derive(partitionKey, documentID)

	if err := c.validator.ValidateKey(op, key); err != nil {
		return nil, err
	}
	if err := pkgerrors.FromContext(ctx, op); err != nil {
		return nil, err
	}

	doc, err := c.store.Read(ctx, key)
	if err != nil {
		c.logFailure(op, key, err)
		return nil, annotate(err, op)
	}
	return doc, nil
}

// ReplaceDocument overwrites a document only if its stored version token
// still equals doc.VersionToken. doc carries derived keys as returned by
// CreateDocument or GetDocument.
func (c *DocumentStoreClient) ReplaceDocument(ctx context.Context, doc *entities.Document, opts ...CreateOption) (*entities.Document, error) {
	const op = "ReplaceDocument"
	if doc == nil {
		return nil, pkgerrors.NewValidationError("document is required").WithOperation(op)
	}

	o := applyOptions(opts)
	next := doc.Clone()
	if o.ttlSeconds != nil {
		next.TimeToLiveSeconds = o.ttlSeconds
	}

	if err := c.validator.ValidateCreate(op, next.Key(), next.TimeToLiveSeconds); err != nil {
		return nil, err
	}
	req, err := entities.NewReplaceRequest(next)
	if err != nil {
		return nil, annotate(err, op)
	}
	if err := pkgerrors.FromContext(ctx, op); err != nil {
		return nil, err
	}

	stored, err := c.store.Write(ctx, req)
	if err != nil {
		c.logFailure(op, next.Key(), err)
		return nil, annotate(err, op)
	}

	c.logger.Debug("Document replaced",
		zap.String("partitionKey", stored.PartitionKey),
		zap.String("documentID", stored.ID),
		zap.String("previousVersion", doc.VersionToken),
		zap.String("versionToken", stored.VersionToken),
	)
	return stored, nil
}

// Ping checks the driver's connectivity when it supports health checks
func (c *DocumentStoreClient) Ping(ctx context.Context) error {
	if hc, ok := c.store.(ports.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

// Close releases the driver
func (c *DocumentStoreClient) Close() error {
	return c.store.Close()
}

func (c *DocumentStoreClient) logFailure(op string, key valueobjects.DocumentKey, err error) {
	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("partitionKey", key.PartitionKey),
		zap.String("documentID", key.ID),
		zap.String("errorType", string(pkgerrors.TypeOf(err))),
		zap.Error(err),
	}
	switch {
	case pkgerrors.IsConflict(err), pkgerrors.IsNotFound(err), pkgerrors.IsCancelled(err):
		c.logger.Debug("Document operation rejected", fields...)
	default:
		c.logger.Warn("Document operation failed", fields...)
	}
}

// annotate stamps the client operation onto a copy of a driver error,
// converting any unclassified error into INTERNAL so callers always see the
// taxonomy. Drivers may hand the same error value to concurrent callers.
func annotate(err error, op string) error {
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		annotated := *appErr
		annotated.Operation = op
		return &annotated
	}
	return pkgerrors.NewInternalError("unclassified store error").WithOperation(op).WithCause(err)
}
