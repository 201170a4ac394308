package entities

import (
	"time"

	"docprobe/domain/core/valueobjects"
	pkgerrors "docprobe/pkg/errors"
)

// Document is a stored record addressed by (PartitionKey, ID).
// VersionToken is opaque and assigned by the store on every successful write;
// it is empty on a creation request.
type Document struct {
	PartitionKey      string `json:"partitionKey" yaml:"partitionKey"`
	ID                string `json:"id" yaml:"id"`
	VersionToken      string `json:"versionToken,omitempty" yaml:"versionToken,omitempty"`
	TimeToLiveSeconds *int   `json:"ttlSeconds,omitempty" yaml:"ttlSeconds,omitempty"`
}

// NewDocument creates a document with no version token
func NewDocument(key valueobjects.DocumentKey, ttlSeconds *int) *Document {
	return &Document{
		PartitionKey:      key.PartitionKey,
		ID:                key.ID,
		TimeToLiveSeconds: copyTTL(ttlSeconds),
	}
}

// Key returns the document's address
func (d *Document) Key() valueobjects.DocumentKey {
	return valueobjects.NewDocumentKey(d.PartitionKey, d.ID)
}

// HasTTL reports whether the document expires
func (d *Document) HasTTL() bool {
	return d.TimeToLiveSeconds != nil
}

// ExpiresAt returns the expiry instant for a write made at writtenAt
func (d *Document) ExpiresAt(writtenAt time.Time) (time.Time, bool) {
	if !d.HasTTL() {
		return time.Time{}, false
	}
	return writtenAt.Add(time.Duration(*d.TimeToLiveSeconds) * time.Second), true
}

// WithVersion returns a copy carrying the given version token
func (d *Document) WithVersion(token string) *Document {
	c := d.Clone()
	c.VersionToken = token
	return c
}

// Clone returns a deep copy
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.TimeToLiveSeconds = copyTTL(d.TimeToLiveSeconds)
	return &c
}

// Equals compares all fields including the version token
func (d *Document) Equals(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.PartitionKey != other.PartitionKey || d.ID != other.ID || d.VersionToken != other.VersionToken {
		return false
	}
	if d.TimeToLiveSeconds == nil || other.TimeToLiveSeconds == nil {
		return d.TimeToLiveSeconds == other.TimeToLiveSeconds
	}
	return *d.TimeToLiveSeconds == *other.TimeToLiveSeconds
}

func copyTTL(ttl *int) *int {
	if ttl == nil {
		return nil
	}
	v := *ttl
	return &v
}

// WriteRequest is a document plus the concurrency check the store must apply
type WriteRequest struct {
	Document     *Document
	Precondition valueobjects.Precondition
}

// NewCreateRequest builds an insert-only write. Any version token on doc is
// dropped since a creation has no prior version to match.
func NewCreateRequest(doc *Document) WriteRequest {
	c := doc.Clone()
	c.VersionToken = ""
	return WriteRequest{
		Document:     c,
		Precondition: valueobjects.MustNotExist(),
	}
}

// NewReplaceRequest builds a write conditioned on the document's current
// version token. An empty token is rejected rather than sent unconditioned.
func NewReplaceRequest(doc *Document) (WriteRequest, error) {
	if doc == nil || doc.VersionToken == "" {
		return WriteRequest{}, pkgerrors.NewValidationError("replace requires the last known version token").
			WithCode(pkgerrors.CodeMissingVersion)
	}
	c := doc.Clone()
	return WriteRequest{
		Document:     c,
		Precondition: valueobjects.IfMatch(c.VersionToken),
	}, nil
}
