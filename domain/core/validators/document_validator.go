package validators

import (
	"docprobe/domain/core/valueobjects"
	"docprobe/pkg/errors"
)

// DocumentValidator checks caller input before a request leaves the process.
type DocumentValidator struct{}

// NewDocumentValidator creates a new document validator
func NewDocumentValidator() *DocumentValidator {
	return &DocumentValidator{}
}

// ValidateKey rejects keys whose derived parts are empty
func (v *DocumentValidator) ValidateKey(operation string, key valueobjects.DocumentKey) error {
	validationErrors := errors.NewValidationErrors()
	v.checkKey(validationErrors, key)
	return validationErrors.AsError(operation)
}

// ValidateCreate checks the key and, when present, the time-to-live
func (v *DocumentValidator) ValidateCreate(operation string, key valueobjects.DocumentKey, ttlSeconds *int) error {
	validationErrors := errors.NewValidationErrors()
	v.checkKey(validationErrors, key)
	v.checkTTL(validationErrors, ttlSeconds)
	return validationErrors.AsError(operation)
}

func (v *DocumentValidator) checkKey(ve *errors.ValidationErrors, key valueobjects.DocumentKey) {
	if !key.IsZero() {
		return
	}
	if key.PartitionKey == "" {
		ve.Add("partitionKey", errors.CodeInvalidKey, "partition key must not be empty")
	}
	if key.ID == "" {
		ve.Add("id", errors.CodeInvalidKey, "document id must not be empty")
	}
}

func (v *DocumentValidator) checkTTL(ve *errors.ValidationErrors, ttlSeconds *int) {
	if ttlSeconds != nil && *ttlSeconds <= 0 {
		ve.Add("ttlSeconds", errors.CodeInvalidTTL, "time to live must be a positive number of seconds")
	}
}
