// Package decorators wraps a ports.DocumentStore with cross-cutting
// behavior. Every decorator forwards Ping to the wrapped store when it
// supports health checks.
package decorators

import (
	"context"
	"strings"

	"docprobe/application/ports"
	"docprobe/domain/core/entities"
	pkgerrors "docprobe/pkg/errors"
)

// outcome is the low-cardinality label used for logs, metrics and spans
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(string(pkgerrors.TypeOf(err)))
}

func ping(ctx context.Context, next ports.DocumentStore) error {
	if hc, ok := next.(ports.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

// writeKind names a write by its precondition
func writeKind(req entities.WriteRequest) string {
	if req.Precondition.IsMustNotExist() {
		return "create"
	}
	return "replace"
}
