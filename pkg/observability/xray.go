package observability

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// XRayTracer records subsegments under the segment Lambda places in the
// request context.
type XRayTracer struct {
	serviceName string
}

// NewXRayTracer creates a new tracer instance
func NewXRayTracer(serviceName string) *XRayTracer {
	return &XRayTracer{
		serviceName: serviceName,
	}
}

// Start implements Tracer. Attributes become indexed annotations.
func (t *XRayTracer) Start(ctx context.Context, name string, attrs map[string]string) (context.Context, Span) {
	if xray.GetSegment(ctx) == nil {
		return ctx, xraySpan{}
	}

	ctx, seg := xray.BeginSubsegment(ctx, name)
	if seg == nil {
		return ctx, xraySpan{}
	}
	seg.AddAnnotation("service", t.serviceName)
	for k, v := range attrs {
		seg.AddAnnotation(k, v)
	}
	return ctx, xraySpan{seg: seg}
}

type xraySpan struct {
	seg *xray.Segment
}

func (s xraySpan) End(err error) {
	if s.seg == nil {
		return
	}
	if err != nil {
		s.seg.AddError(err)
	}
	s.seg.Close(err)
}
