// Package reporting publishes finished probe reports to AWS.
package reporting

import (
	"context"
	"fmt"

	"docprobe/application/probe"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// CloudWatchAPI is the subset of *cloudwatch.Client used here
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ probe.Publisher = (*CloudWatchPublisher)(nil)

// CloudWatchPublisher emits one ProbeOutcome count per outcome and the
// sweep duration.
type CloudWatchPublisher struct {
	client     CloudWatchAPI
	namespace  string
	collection string
	logger     *zap.Logger
}

// NewCloudWatchPublisher creates a publisher. collection becomes the
// Collection dimension on every datum.
func NewCloudWatchPublisher(client CloudWatchAPI, namespace, collection string, logger *zap.Logger) *CloudWatchPublisher {
	return &CloudWatchPublisher{
		client:     client,
		namespace:  namespace,
		collection: collection,
		logger:     logger.Named("cloudwatch"),
	}
}

// Publish implements probe.Publisher
func (p *CloudWatchPublisher) Publish(ctx context.Context, report *probe.Report) error {
	outcomes := []probe.Outcome{
		probe.OutcomeCreated,
		probe.OutcomeConflictObserved,
		probe.OutcomeConflictUnverified,
		probe.OutcomeFailed,
	}

	data := make([]types.MetricDatum, 0, len(outcomes)+1)
	for _, o := range outcomes {
		data = append(data, types.MetricDatum{
			MetricName: aws.String("ProbeOutcome"),
			Dimensions: []types.Dimension{
				{Name: aws.String("Collection"), Value: aws.String(p.collection)},
				{Name: aws.String("Outcome"), Value: aws.String(string(o))},
			},
			Value:     aws.Float64(float64(report.Totals[o])),
			Unit:      types.StandardUnitCount,
			Timestamp: aws.Time(report.FinishedAt),
		})
	}
	data = append(data, types.MetricDatum{
		MetricName: aws.String("SweepDuration"),
		Dimensions: []types.Dimension{
			{Name: aws.String("Collection"), Value: aws.String(p.collection)},
		},
		Value:     aws.Float64(float64(report.FinishedAt.Sub(report.StartedAt).Milliseconds())),
		Unit:      types.StandardUnitMilliseconds,
		Timestamp: aws.Time(report.FinishedAt),
	})

	if _, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: data,
	}); err != nil {
		return fmt.Errorf("failed to put metric data: %w", err)
	}

	p.logger.Debug("Report metrics published",
		zap.String("namespace", p.namespace),
		zap.Int("datums", len(data)),
	)
	return nil
}
