package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"docprobe/application/probe"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockCloudWatch struct {
	mock.Mock
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*cloudwatch.PutMetricDataOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockEventBridge struct {
	mock.Mock
}

func (m *mockEventBridge) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*eventbridge.PutEventsOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func sampleReport(anomalies int) *probe.Report {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &probe.Report{
		Base:       "base",
		DocumentID: "doc",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Totals: map[probe.Outcome]int{
			probe.OutcomeCreated:            3,
			probe.OutcomeConflictUnverified: anomalies,
		},
	}
	for i := 0; i < anomalies; i++ {
		r.Attempts = append(r.Attempts, probe.Attempt{KeyLength: 80, Index: i, Outcome: probe.OutcomeConflictUnverified})
	}
	for i := 0; i < 3; i++ {
		r.Attempts = append(r.Attempts, probe.Attempt{KeyLength: 75, Index: i, Outcome: probe.OutcomeCreated})
	}
	return r
}

func TestCloudWatchPublisher_Publish(t *testing.T) {
	client := &mockCloudWatch{}
	client.On("PutMetricData", mock.Anything, mock.MatchedBy(func(in *cloudwatch.PutMetricDataInput) bool {
		if aws.ToString(in.Namespace) != "DocProbe" || len(in.MetricData) != 5 {
			return false
		}
		created := in.MetricData[0]
		return aws.ToString(created.MetricName) == "ProbeOutcome" &&
			aws.ToFloat64(created.Value) == 3 &&
			aws.ToString(created.Dimensions[0].Value) == "common" &&
			aws.ToString(created.Dimensions[1].Value) == "created" &&
			aws.ToFloat64(in.MetricData[4].Value) == 1500
	})).Return(&cloudwatch.PutMetricDataOutput{}, nil)

	p := NewCloudWatchPublisher(client, "DocProbe", "common", zap.NewNop())
	require.NoError(t, p.Publish(context.Background(), sampleReport(0)))
	client.AssertExpectations(t)
}

func TestCloudWatchPublisher_Error(t *testing.T) {
	client := &mockCloudWatch{}
	client.On("PutMetricData", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	p := NewCloudWatchPublisher(client, "DocProbe", "common", zap.NewNop())
	err := p.Publish(context.Background(), sampleReport(0))
	assert.ErrorContains(t, err, "throttled")
}

func TestEventBridgePublisher_SummaryAndAnomalies(t *testing.T) {
	client := &mockEventBridge{}
	var batches [][]ebtypes.PutEventsRequestEntry
	client.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			batches = append(batches, args.Get(1).(*eventbridge.PutEventsInput).Entries)
		}).
		Return(&eventbridge.PutEventsOutput{}, nil)

	p := NewEventBridgePublisher(client, "probe-bus", zap.NewNop())
	require.NoError(t, p.Publish(context.Background(), sampleReport(12)))

	// 1 summary + 12 anomalies in batches of 10
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 10)
	assert.Len(t, batches[1], 3)

	summary := batches[0][0]
	assert.Equal(t, DetailTypeSweepCompleted, aws.ToString(summary.DetailType))
	assert.Equal(t, EventSource, aws.ToString(summary.Source))
	assert.Equal(t, "probe-bus", aws.ToString(summary.EventBusName))

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(summary.Detail)), &detail))
	assert.Equal(t, "base", detail["base"])
	assert.NotContains(t, detail, "attempts")

	assert.Equal(t, DetailTypeConflictUnverified, aws.ToString(batches[0][1].DetailType))
}

func TestEventBridgePublisher_FailedEntries(t *testing.T) {
	client := &mockEventBridge{}
	client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries: []ebtypes.PutEventsResultEntry{
			{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("boom")},
		},
	}, nil)

	p := NewEventBridgePublisher(client, "probe-bus", zap.NewNop())
	err := p.Publish(context.Background(), sampleReport(0))
	assert.EqualError(t, err, "1 events failed to publish")
}
