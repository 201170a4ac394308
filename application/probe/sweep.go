package probe

import (
	"context"
	"strconv"
	"strings"
	"time"

	pkgerrors "docprobe/pkg/errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"
)

// SweepConfig bounds the key-length sweep
type SweepConfig struct {
	MinKeyLength     int `yaml:"minKeyLength" validate:"gt=0"`
	MaxKeyLength     int `yaml:"maxKeyLength" validate:"gtfield=MinKeyLength"`
	IndicesPerLength int `yaml:"indicesPerLength" validate:"gt=0"`
	DocumentIDLength int `yaml:"documentIDLength" validate:"gt=0"`
	Concurrency      int `yaml:"concurrency" validate:"gt=0"`
}

// DefaultSweepConfig returns the sweep the experiment was designed around
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		MinKeyLength:     75,
		MaxKeyLength:     100,
		IndicesPerLength: 10,
		DocumentIDLength: 50,
		Concurrency:      1,
	}
}

// Attempt is one row of a Report
type Attempt struct {
	KeyLength                 int     `yaml:"keyLength" json:"keyLength"`
	Index                     int     `yaml:"index" json:"index"`
	PartitionKey              string  `yaml:"partitionKey" json:"partitionKey"`
	DerivedPartitionKeyLength int     `yaml:"derivedPartitionKeyLength" json:"derivedPartitionKeyLength"`
	DerivedDocumentIDLength   int     `yaml:"derivedDocumentIDLength" json:"derivedDocumentIDLength"`
	Outcome                   Outcome `yaml:"outcome" json:"outcome"`
	VersionToken              string  `yaml:"versionToken,omitempty" json:"versionToken,omitempty"`
	ErrorType                 string  `yaml:"errorType,omitempty" json:"errorType,omitempty"`
	ErrorCode                 string  `yaml:"errorCode,omitempty" json:"errorCode,omitempty"`
	ErrorMessage              string  `yaml:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CreateAttempts            int     `yaml:"createAttempts" json:"createAttempts"`
	DurationMillis            int64   `yaml:"durationMillis" json:"durationMillis"`
}

// Report summarizes one sweep
type Report struct {
	Base       string          `yaml:"base" json:"base"`
	DocumentID string          `yaml:"documentID" json:"documentID"`
	StartedAt  time.Time       `yaml:"startedAt" json:"startedAt"`
	FinishedAt time.Time       `yaml:"finishedAt" json:"finishedAt"`
	Totals     map[Outcome]int `yaml:"totals" json:"totals"`
	Attempts   []Attempt       `yaml:"attempts" json:"attempts"`
}

// Anomalies returns the attempts that ended ConflictUnverified
func (r *Report) Anomalies() []Attempt {
	var out []Attempt
	for _, a := range r.Attempts {
		if a.Outcome == OutcomeConflictUnverified {
			out = append(out, a)
		}
	}
	return out
}

// Keyspace derives store-level keys; satisfied by valueobjects.Keyspace
type Keyspace interface {
	PartitionKey(raw string) string
	DocumentID(raw string) string
}

// Sweeper runs CreateOrObserve over a grid of partition key lengths
type Sweeper struct {
	prober   *Prober
	keyspace Keyspace
	config   SweepConfig
	logger   *zap.Logger
	newID    func() string
}

// NewSweeper creates a sweeper
func NewSweeper(prober *Prober, keyspace Keyspace, config SweepConfig, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &Sweeper{
		prober:   prober,
		keyspace: keyspace,
		config:   config,
		logger:   logger.Named("sweep"),
		newID:    uuid.NewString,
	}
}

// PadLeft left-pads s with c up to n characters; longer strings are unchanged
func PadLeft(s string, n int, c byte) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat(string(c), n-len(s)) + s
}

// PadRight right-pads s with c up to n characters; longer strings are unchanged
func PadRight(s string, n int, c byte) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(string(c), n-len(s))
}

// Sweep writes the same document id under partition keys of every length in
// [MinKeyLength, MaxKeyLength), IndicesPerLength keys per length, all built
// from one random base. It stops early on cancellation or an auth failure,
// returning the partial report together with the error.
func (s *Sweeper) Sweep(ctx context.Context) (*Report, error) {
	cfg := s.config
	base := s.newID()
	documentID := PadRight(s.newID(), cfg.DocumentIDLength, 'y')

	lengths := cfg.MaxKeyLength - cfg.MinKeyLength
	if lengths < 0 {
		lengths = 0
	}
	report := &Report{
		Base:       base,
		DocumentID: documentID,
		StartedAt:  time.Now().UTC(),
		Totals:     make(map[Outcome]int),
	}
	attempts := make([]Attempt, lengths*cfg.IndicesPerLength)

	s.logger.Info("Starting sweep",
		zap.String("base", base),
		zap.Int("minKeyLength", cfg.MinKeyLength),
		zap.Int("maxKeyLength", cfg.MaxKeyLength),
		zap.Int("indicesPerLength", cfg.IndicesPerLength),
		zap.Int("concurrency", cfg.Concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

schedule:
	for length := cfg.MinKeyLength; length < cfg.MaxKeyLength; length++ {
		for index := 0; index < cfg.IndicesPerLength; index++ {
			if gctx.Err() != nil {
				break schedule
			}
			slot := (length-cfg.MinKeyLength)*cfg.IndicesPerLength + index
			length, index := length, index

			g.Go(func() error {
				attempt, err := s.run(gctx, length, index, base, documentID)
				attempts[slot] = attempt
				if pkgerrors.IsAuth(err) {
					return err
				}
				return nil
			})
		}
	}
	err := g.Wait()
	if err == nil {
		err = pkgerrors.FromContext(ctx, "Sweep")
	}

	for _, a := range attempts {
		if a.Outcome == "" {
			continue
		}
		report.Attempts = append(report.Attempts, a)
		report.Totals[a.Outcome]++
	}
	report.FinishedAt = time.Now().UTC()

	s.logger.Info("Sweep finished",
		zap.Int("attempts", len(report.Attempts)),
		zap.Int("created", report.Totals[OutcomeCreated]),
		zap.Int("conflictObserved", report.Totals[OutcomeConflictObserved]),
		zap.Int("conflictUnverified", report.Totals[OutcomeConflictUnverified]),
		zap.Int("failed", report.Totals[OutcomeFailed]),
	)
	return report, err
}

func (s *Sweeper) run(ctx context.Context, length, index int, base, documentID string) (Attempt, error) {
	partitionKey := PadLeft(base+"_"+strconv.Itoa(index), length, 'x')
	attempt := Attempt{
		KeyLength:                 length,
		Index:                     index,
		PartitionKey:              partitionKey,
		DerivedPartitionKeyLength: len(s.keyspace.PartitionKey(partitionKey)),
		DerivedDocumentIDLength:   len(s.keyspace.DocumentID(documentID)),
	}

	obs, err := s.prober.CreateOrObserve(ctx, partitionKey, documentID)
	attempt.Outcome = obs.Outcome
	attempt.CreateAttempts = obs.CreateAttempts
	attempt.DurationMillis = obs.Duration.Milliseconds()
	if obs.Document != nil {
		attempt.VersionToken = obs.Document.VersionToken
	}
	if err != nil {
		attempt.ErrorType = string(pkgerrors.TypeOf(err))
		attempt.ErrorMessage = err.Error()
		if appErr := pkgerrors.GetAppError(err); appErr != nil {
			attempt.ErrorCode = appErr.Code
		}
	}
	return attempt, err
}
