package etcd

import (
	"errors"

	pkgerrors "docprobe/pkg/errors"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var authErrors = []error{
	rpctypes.ErrPermissionDenied,
	rpctypes.ErrAuthFailed,
	rpctypes.ErrInvalidAuthToken,
	rpctypes.ErrInvalidAuthMgmt,
	rpctypes.ErrUserEmpty,
	rpctypes.ErrAuthNotEnabled,
}

// translateError maps etcd client failures onto the document store error types.
func translateError(operation, resource string, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.IsAppError(err) {
		return err
	}
	if pkgerrors.IsContextError(err) {
		return pkgerrors.NewCancelledError(operation, err).WithResource(resource)
	}

	for _, authErr := range authErrors {
		if errors.Is(err, authErr) {
			return pkgerrors.NewAuthError(authErr.Error()).
				WithOperation(operation).
				WithResource(resource).
				WithCause(err)
		}
	}

	switch grpcCode(err) {
	case codes.Unauthenticated:
		return pkgerrors.NewAuthError(err.Error()).
			WithOperation(operation).
			WithResource(resource).
			WithCause(err)
	case codes.PermissionDenied:
		return pkgerrors.NewAuthError(err.Error()).
			WithCode(pkgerrors.CodePermissionDenied).
			WithOperation(operation).
			WithResource(resource).
			WithCause(err)
	case codes.Canceled:
		return pkgerrors.NewCancelledError(operation, err).WithResource(resource)
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		// Request too large, too many ops in a txn and similar.
		return pkgerrors.NewValidationError(err.Error()).
			WithCode(pkgerrors.CodeServiceRejected).
			WithOperation(operation).
			WithResource(resource).
			WithCause(err)
	case codes.ResourceExhausted:
		return pkgerrors.NewTransientError("etcd rejected the request", err).
			WithCode(pkgerrors.CodeThrottled).
			WithOperation(operation).
			WithResource(resource)
	}

	// Unavailable, leader changes, timeouts and transport failures.
	return pkgerrors.NewTransientError("etcd request failed", err).
		WithOperation(operation).
		WithResource(resource)
}

func grpcCode(err error) codes.Code {
	var ee rpctypes.EtcdError
	if errors.As(err, &ee) {
		return ee.Code()
	}
	return status.Code(err)
}
