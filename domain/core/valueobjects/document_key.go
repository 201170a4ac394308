package valueobjects

import "fmt"

// DocumentKey addresses one document: a partition key plus an id unique within it.
// Both parts are the derived, store-level strings.
type DocumentKey struct {
	PartitionKey string
	ID           string
}

// NewDocumentKey creates a key from already-derived parts
func NewDocumentKey(partitionKey, id string) DocumentKey {
	return DocumentKey{PartitionKey: partitionKey, ID: id}
}

// IsZero reports whether either part is empty
func (k DocumentKey) IsZero() bool {
	return k.PartitionKey == "" || k.ID == ""
}

// Equals checks if two keys address the same document
func (k DocumentKey) Equals(other DocumentKey) bool {
	return k.PartitionKey == other.PartitionKey && k.ID == other.ID
}

// String renders the key for logs. Not used as a storage key.
func (k DocumentKey) String() string {
	return fmt.Sprintf("%s/%s", k.PartitionKey, k.ID)
}

// Keyspace derives store-level keys from caller input by prefixing.
// Prefixes are fixed at construction, so for a given Keyspace the mapping
// raw -> derived is deterministic and injective.
type Keyspace struct {
	partitionKeyPrefix string
	documentIDPrefix   string
}

// NewKeyspace creates a keyspace. An empty documentIDPrefix reuses keyPrefix.
func NewKeyspace(keyPrefix, documentIDPrefix string) Keyspace {
	if documentIDPrefix == "" {
		documentIDPrefix = keyPrefix
	}
	return Keyspace{
		partitionKeyPrefix: keyPrefix,
		documentIDPrefix:   documentIDPrefix,
	}
}

// PartitionKey derives a store-level partition key
func (s Keyspace) PartitionKey(raw string) string {
	return s.partitionKeyPrefix + raw
}

// DocumentID derives a store-level document id
func (s Keyspace) DocumentID(raw string) string {
	return s.documentIDPrefix + raw
}

// Derive derives both parts of a key
func (s Keyspace) Derive(rawPartitionKey, rawDocumentID string) DocumentKey {
	return DocumentKey{
		PartitionKey: s.PartitionKey(rawPartitionKey),
		ID:           s.DocumentID(rawDocumentID),
	}
}
