package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docprobe/application/probe"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

const (
	// EventSource is the Source of every event published here
	EventSource = "docprobe.sweep"

	DetailTypeSweepCompleted     = "SweepCompleted"
	DetailTypeConflictUnverified = "ConflictUnverified"

	// EventBridge limits to 10 events per PutEvents call
	maxBatchSize = 10
)

// EventBridgeAPI is the subset of *eventbridge.Client used here
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

var _ probe.Publisher = (*EventBridgePublisher)(nil)

// EventBridgePublisher sends a SweepCompleted summary and one
// ConflictUnverified event per anomaly.
type EventBridgePublisher struct {
	client       EventBridgeAPI
	eventBusName string
	logger       *zap.Logger
}

// sweepSummary is the SweepCompleted detail; attempts are left out
type sweepSummary struct {
	Base       string                `json:"base"`
	DocumentID string                `json:"documentID"`
	StartedAt  string                `json:"startedAt"`
	FinishedAt string                `json:"finishedAt"`
	Totals     map[probe.Outcome]int `json:"totals"`
}

// NewEventBridgePublisher creates a new EventBridge publisher
func NewEventBridgePublisher(client EventBridgeAPI, eventBusName string, logger *zap.Logger) *EventBridgePublisher {
	return &EventBridgePublisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger.Named("eventbridge"),
	}
}

// Publish implements probe.Publisher
func (p *EventBridgePublisher) Publish(ctx context.Context, report *probe.Report) error {
	summary, err := json.Marshal(sweepSummary{
		Base:       report.Base,
		DocumentID: report.DocumentID,
		StartedAt:  report.StartedAt.Format(time.RFC3339),
		FinishedAt: report.FinishedAt.Format(time.RFC3339),
		Totals:     report.Totals,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sweep summary: %w", err)
	}

	entries := []types.PutEventsRequestEntry{p.entry(DetailTypeSweepCompleted, summary, report)}
	for _, a := range report.Anomalies() {
		detail, err := json.Marshal(a)
		if err != nil {
			p.logger.Error("Failed to marshal anomaly", zap.Error(err), zap.String("partitionKey", a.PartitionKey))
			continue
		}
		entries = append(entries, p.entry(DetailTypeConflictUnverified, detail, report))
	}

	for i := 0; i < len(entries); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := p.publishBatch(ctx, entries[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *EventBridgePublisher) entry(detailType string, detail []byte, report *probe.Report) types.PutEventsRequestEntry {
	return types.PutEventsRequestEntry{
		EventBusName: aws.String(p.eventBusName),
		Source:       aws.String(EventSource),
		DetailType:   aws.String(detailType),
		Detail:       aws.String(string(detail)),
		Time:         aws.Time(report.FinishedAt),
	}
}

func (p *EventBridgePublisher) publishBatch(ctx context.Context, entries []types.PutEventsRequestEntry) error {
	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil {
				p.logger.Error("Failed to publish event",
					zap.String("detailType", aws.ToString(entries[i].DetailType)),
					zap.String("errorCode", *entry.ErrorCode),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
	}

	p.logger.Debug("Events published to EventBridge",
		zap.Int("count", len(entries)),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}
