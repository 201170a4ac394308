package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	assert.Equal(t, "", Redact(""))
	assert.Equal(t, "[REDACTED]", Redact("AKIA:secret"))
}

func TestSplitCredential(t *testing.T) {
	assert.Equal(t, []string{"user", "pass"}, SplitCredential("user:pass"))
	assert.Equal(t, []string{"id", "secret", "token:with:colons"}, SplitCredential("id:secret:token:with:colons"))
	assert.Equal(t, []string{"nocolon"}, SplitCredential("nocolon"))
}

func TestNowRFC3339(t *testing.T) {
	parsed, err := time.Parse(time.RFC3339, NowRFC3339())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), parsed, 2*time.Second)
}

type sample struct {
	Name    string `validate:"required"`
	Backend string `validate:"oneof=memory etcd"`
	Workers int    `validate:"gte=1"`
	Min     int    `validate:"ltfield=Max"`
	Max     int
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sample{Name: "a", Backend: "etcd", Workers: 1, Min: 1, Max: 2}))

	err := ValidateStruct(sample{Backend: "redis", Min: 3, Max: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "backend must be one of: memory etcd")
	assert.Contains(t, err.Error(), "workers must be at least 1")
	assert.Contains(t, err.Error(), "min must be less than max")
}

type tagged struct {
	TTLSeconds   int    `json:"ttlSeconds,omitempty" validate:"gt=0"`
	MinKeyLength int    `yaml:"minKeyLength" validate:"gt=0"`
	MaxKeyLength int    `yaml:"maxKeyLength" validate:"gtfield=MinKeyLength"`
	Prefix       string `json:"prefix" validate:"max=3"`
}

func TestValidateStruct_UsesSerializedNames(t *testing.T) {
	err := ValidateStruct(tagged{MinKeyLength: 5, MaxKeyLength: 5, Prefix: "toolong"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ttlSeconds must be greater than 0")
	assert.Contains(t, err.Error(), "maxKeyLength must be greater than minKeyLength")
	assert.Contains(t, err.Error(), "prefix must be at most 3 characters")
}
