package dynamodb

import (
	"errors"

	pkgerrors "docprobe/pkg/errors"

	"github.com/aws/smithy-go"
)

// translateError maps SDK failures onto the document store error types.
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

	var ae smithy.APIError
	if !errors.As(err, &ae) {
		// Connection resets, DNS failures and the like never reached the service.
		return pkgerrors.NewTransientError("DynamoDB request failed", err).
			WithOperation(operation).
			WithResource(resource)
	}

	switch ae.ErrorCode() {
	case "ConditionalCheckFailedException":
		return pkgerrors.NewConflictError("conditional check failed").
			WithOperation(operation).
			WithResource(resource).
			WithCause(err)

	case "ResourceNotFoundException":
		return pkgerrors.NewNotFoundError("collection").
			WithCode(pkgerrors.CodeCollectionNotFound).
			WithOperation(operation).
			WithResource(resource).
			WithCause(err)

	case "UnrecognizedClientException", "InvalidSignatureException", "ExpiredTokenException",
		"InvalidClientTokenId", "MissingAuthenticationToken", "IncompleteSignature":
		return pkgerrors.NewAuthError(ae.ErrorMessage()).
			WithOperation(operation).
			WithResource(resource).
			WithCause(err)

	case "AccessDeniedException":
		return pkgerrors.NewAuthError(ae.ErrorMessage()).
			WithCode(pkgerrors.CodePermissionDenied).
			WithOperation(operation).
			WithResource(resource).
			WithCause(err)

	case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException", "Throttling":
		return pkgerrors.NewTransientError("DynamoDB throttled the request", err).
			WithCode(pkgerrors.CodeThrottled).
			WithOperation(operation).
			WithResource(resource)

	case "InternalServerError", "ServiceUnavailable", "RequestTimeout", "TransactionInProgressException":
		return pkgerrors.NewTransientError("DynamoDB is unavailable", err).
			WithOperation(operation).
			WithResource(resource)

	case "ValidationException":
		// Key too long, malformed attribute and so on.
		return pkgerrors.NewValidationError(ae.ErrorMessage()).
			WithCode(pkgerrors.CodeServiceRejected).
			WithOperation(operation).
			WithResource(resource).
			WithCause(err)
	}

	if ae.ErrorFault() == smithy.FaultServer {
		return pkgerrors.NewTransientError("DynamoDB server fault", err).
			WithOperation(operation).
			WithResource(resource)
	}
	return pkgerrors.NewInternalError("unexpected DynamoDB error: " + ae.ErrorCode()).
		WithOperation(operation).
		WithResource(resource).
		WithCause(err)
}
