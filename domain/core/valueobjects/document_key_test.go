package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyspace_Derive(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		idPrefix string
		pk, id   string
		want     DocumentKey
	}{
		{"empty prefix", "", "", "a", "b", DocumentKey{"a", "b"}},
		{"shared prefix", "P_", "", "a", "b", DocumentKey{"P_a", "P_b"}},
		{"distinct id prefix", "PK_", "DOC_", "a", "b", DocumentKey{"PK_a", "DOC_b"}},
		{"raw empty keeps prefix", "P_", "", "", "", DocumentKey{"P_", "P_"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ks := NewKeyspace(tt.prefix, tt.idPrefix)
			assert.Equal(t, tt.want, ks.Derive(tt.pk, tt.id))
		})
	}
}

func TestKeyspace_DeterministicAndInjective(t *testing.T) {
	ks := NewKeyspace("pre_", "")
	inputs := []string{"", "a", "b", "ab", "a_b", "pre_", "pre_a", "x\x00y", "ü"}

	seen := make(map[string]string)
	for _, raw := range inputs {
		derived := ks.PartitionKey(raw)
		assert.Equal(t, derived, ks.PartitionKey(raw))
		if prev, ok := seen[derived]; ok {
			t.Fatalf("%q and %q both derive %q", prev, raw, derived)
		}
		seen[derived] = raw
	}
}

func TestDocumentKey(t *testing.T) {
	k := NewDocumentKey("p", "i")
	assert.False(t, k.IsZero())
	assert.True(t, NewDocumentKey("", "i").IsZero())
	assert.True(t, NewDocumentKey("p", "").IsZero())
	assert.True(t, k.Equals(DocumentKey{"p", "i"}))
	assert.Equal(t, "p/i", k.String())
}

func TestPrecondition(t *testing.T) {
	var zero Precondition
	assert.True(t, zero.IsMustNotExist())
	assert.Equal(t, "must-not-exist", zero.Kind().String())

	p := IfMatch("v1")
	assert.False(t, p.IsMustNotExist())
	assert.Equal(t, PreconditionIfMatch, p.Kind())
	assert.Equal(t, "v1", p.Token())
	assert.Equal(t, "", MustNotExist().Token())
}
