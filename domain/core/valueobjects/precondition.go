package valueobjects

// PreconditionKind selects the optimistic-concurrency check a write carries.
type PreconditionKind int

const (
	// MustNotExist is the zero value so that an unset precondition never
	// turns into an unconditional overwrite.
	PreconditionMustNotExist PreconditionKind = iota
	PreconditionIfMatch
)

// String returns the kind name
func (k PreconditionKind) String() string {
	switch k {
	case PreconditionMustNotExist:
		return "must-not-exist"
	case PreconditionIfMatch:
		return "if-match"
	default:
		return "unknown"
	}
}

// Precondition is the concurrency check attached to a write
type Precondition struct {
	kind  PreconditionKind
	token string
}

// MustNotExist requires that no document exists at the key
func MustNotExist() Precondition {
	return Precondition{kind: PreconditionMustNotExist}
}

// IfMatch requires the stored document's version token to equal token
func IfMatch(token string) Precondition {
	return Precondition{kind: PreconditionIfMatch, token: token}
}

// Kind returns the precondition kind
func (p Precondition) Kind() PreconditionKind {
	return p.kind
}

// Token returns the expected version token for IfMatch, "" otherwise
func (p Precondition) Token() string {
	return p.token
}

// IsMustNotExist reports whether the write is insert-only
func (p Precondition) IsMustNotExist() bool {
	return p.kind == PreconditionMustNotExist
}
