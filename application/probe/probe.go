// Package probe drives the document store client the way the collision
// experiment does: create, and on conflict read the winner back.
package probe

import (
	"context"
	"time"

	"docprobe/application/services"
	"docprobe/domain/core/entities"
	pkgerrors "docprobe/pkg/errors"

	"go.uber.org/zap"
)

// Outcome classifies one create-or-observe attempt
type Outcome string

const (
	// OutcomeCreated means the create won
	OutcomeCreated Outcome = "created"
	// OutcomeConflictObserved means the create lost and the winner was read back
	OutcomeConflictObserved Outcome = "conflict_observed"
	// OutcomeConflictUnverified means the store reported a conflict but the
	// follow-up read found nothing. This is the anomaly being probed for.
	OutcomeConflictUnverified Outcome = "conflict_unverified"
	// OutcomeFailed covers every other failure
	OutcomeFailed Outcome = "failed"
)

// DocumentClient is the subset of services.DocumentStoreClient the prober uses
type DocumentClient interface {
	CreateDocument(ctx context.Context, partitionKey, documentID string, opts ...services.CreateOption) (*entities.Document, error)
	GetDocument(ctx context.Context, partitionKey, documentID string) (*entities.Document, error)
}

// OutcomeRecorder receives one call per finished attempt
type OutcomeRecorder interface {
	RecordProbeAttempt(outcome string)
}

// Observation is the result of CreateOrObserve
type Observation struct {
	Outcome        Outcome
	Document       *entities.Document
	CreateAttempts int
	ReadAttempts   int
	Duration       time.Duration
}

// Config holds the prober's behavior
type Config struct {
	// TTLSeconds is applied to every created document; nil means no expiry
	TTLSeconds *int
	Retry      RetryConfig
}

// Prober runs conflict-then-verify against a DocumentClient
type Prober struct {
	client   DocumentClient
	config   Config
	logger   *zap.Logger
	recorder OutcomeRecorder
}

// NewProber creates a prober. recorder may be nil.
func NewProber(client DocumentClient, config Config, logger *zap.Logger, recorder OutcomeRecorder) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		client:   client,
		config:   config,
		logger:   logger.Named("probe"),
		recorder: recorder,
	}
}

// CreateOrObserve creates the document; if the store reports a conflict it
// immediately reads the same keys back. A conflict is never retried as an
// overwrite. The returned error is non-nil only for OutcomeFailed.
func (p *Prober) CreateOrObserve(ctx context.Context, partitionKey, documentID string) (*Observation, error) {
	start := time.Now()
	obs, err := p.createOrObserve(ctx, partitionKey, documentID)
	obs.Duration = time.Since(start)

	if p.recorder != nil {
		p.recorder.RecordProbeAttempt(string(obs.Outcome))
	}

	fields := []zap.Field{
		zap.String("partitionKey", partitionKey),
		zap.String("documentID", documentID),
		zap.String("outcome", string(obs.Outcome)),
		zap.Duration("duration", obs.Duration),
	}
	switch obs.Outcome {
	case OutcomeConflictUnverified:
		p.logger.Warn("Conflict reported for a document that cannot be read", fields...)
	case OutcomeFailed:
		p.logger.Error("Probe attempt failed", append(fields, zap.Error(err))...)
	default:
		p.logger.Debug("Probe attempt finished", fields...)
	}
	return obs, err
}

func (p *Prober) createOrObserve(ctx context.Context, partitionKey, documentID string) (*Observation, error) {
	obs := &Observation{}

	var opts []services.CreateOption
	if p.config.TTLSeconds != nil {
		opts = append(opts, services.WithTTL(*p.config.TTLSeconds))
	}

	var created *entities.Document
	attempts, err := RetryWithBackoff(ctx, p.config.Retry, func(ctx context.Context) error {
		doc, err := p.client.CreateDocument(ctx, partitionKey, documentID, opts...)
		if err == nil {
			created = doc
		}
		return err
	})
	obs.CreateAttempts = attempts
	if err == nil {
		obs.Outcome = OutcomeCreated
		obs.Document = created
		return obs, nil
	}
	if !pkgerrors.IsConflict(err) {
		obs.Outcome = OutcomeFailed
		return obs, err
	}

	var winner *entities.Document
	attempts, err = RetryWithBackoff(ctx, p.config.Retry, func(ctx context.Context) error {
		doc, err := p.client.GetDocument(ctx, partitionKey, documentID)
		if err == nil {
			winner = doc
		}
		return err
	})
	obs.ReadAttempts = attempts
	switch {
	case err == nil:
		obs.Outcome = OutcomeConflictObserved
		obs.Document = winner
		return obs, nil
	case pkgerrors.IsNotFound(err):
		obs.Outcome = OutcomeConflictUnverified
		return obs, nil
	default:
		obs.Outcome = OutcomeFailed
		return obs, err
	}
}
