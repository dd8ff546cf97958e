package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"curator/internal/logging"
	"curator/internal/media"
)

// ErrAmbiguousMatch indicates the best candidate scored inside the ambiguity
// band around the match threshold. Resolution fails closed rather than
// guessing; a false merge corrupts unrelated media.
var ErrAmbiguousMatch = errors.New("identity: ambiguous match")

// ErrNoIdentity is returned by stores when no provider identity exists for a
// key.
var ErrNoIdentity = errors.New("identity: no provider identity")

// Candidate is an existing canonical record considered for attachment.
type Candidate struct {
	InternalID  string
	Title       string
	PublishYear int
}

// Store is the persistence surface the resolver needs.
type Store interface {
	// FindProviderIdentity returns the internal id mapped to the key, or
	// ErrNoIdentity.
	FindProviderIdentity(ctx context.Context, source media.Source, externalID string, lot media.Lot) (string, error)
	// FindByTitleYearLot lists records of the lot whose publish year falls
	// within tolerance of year (records without a year always qualify).
	FindByTitleYearLot(ctx context.Context, title string, year, tolerance int, lot media.Lot) ([]Candidate, error)
	// UpsertProviderIdentity persists the mapping; it must reject remapping
	// an existing key to a different internal id.
	UpsertProviderIdentity(ctx context.Context, identity media.ProviderIdentity) error
}

// Hint carries the normalized payload fields the similarity search matches
// against.
type Hint struct {
	Title       string
	PublishYear int
}

// Options tunes the merge-versus-split decision.
type Options struct {
	SimilarityThreshold float64
	AmbiguityMargin     float64
	YearTolerance       int
}

func (o Options) normalized() Options {
	if o.SimilarityThreshold <= 0 || o.SimilarityThreshold > 1 {
		o.SimilarityThreshold = 0.85
	}
	if o.AmbiguityMargin < 0 {
		o.AmbiguityMargin = 0
	}
	if o.YearTolerance < 0 {
		o.YearTolerance = 0
	}
	return o
}

// Resolver assigns internal identifiers. Novel-identity creation serializes
// per normalized-title bucket so two concurrent first sightings of the same
// item cannot both mint.
type Resolver struct {
	store  Store
	logger *slog.Logger
	opts   Options

	mu      sync.Mutex
	buckets map[string]*sync.Mutex
}

// NewResolver creates a resolver over the given store.
func NewResolver(store Store, opts Options, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:   store,
		logger:  logging.NewComponentLogger(logger, "identity"),
		opts:    opts.normalized(),
		buckets: make(map[string]*sync.Mutex),
	}
}

// Resolve returns the internal id for the provider key, attaching to an
// existing record or minting a new id as the similarity decision dictates.
// The provider identity is persisted before returning, so repeated calls for
// one key always agree.
func (r *Resolver) Resolve(ctx context.Context, source media.Source, externalID string, lot media.Lot, hint Hint) (string, error) {
	internalID, err := r.store.FindProviderIdentity(ctx, source, externalID, lot)
	if err == nil {
		return internalID, nil
	}
	if !errors.Is(err, ErrNoIdentity) {
		return "", fmt.Errorf("lookup provider identity: %w", err)
	}

	bucket := r.bucket(NormalizeTitle(hint.Title))
	bucket.Lock()
	defer bucket.Unlock()

	// Re-check under the bucket lock: a concurrent caller may have resolved
	// the same title while we waited.
	internalID, err = r.store.FindProviderIdentity(ctx, source, externalID, lot)
	if err == nil {
		return internalID, nil
	}
	if !errors.Is(err, ErrNoIdentity) {
		return "", fmt.Errorf("lookup provider identity: %w", err)
	}

	internalID, err = r.match(ctx, lot, hint)
	if err != nil {
		return "", err
	}
	minted := false
	if internalID == "" {
		internalID = uuid.NewString()
		minted = true
	}

	if err := r.store.UpsertProviderIdentity(ctx, media.ProviderIdentity{
		Source:             source,
		ExternalIdentifier: externalID,
		Lot:                lot,
		InternalID:         internalID,
	}); err != nil {
		return "", fmt.Errorf("persist provider identity: %w", err)
	}

	r.logger.Debug("resolved provider identity",
		logging.String(logging.FieldSource, string(source)),
		logging.String(logging.FieldLot, string(lot)),
		logging.String(logging.FieldIdentifier, externalID),
		logging.String(logging.FieldInternalID, internalID),
		logging.Bool("minted", minted),
	)
	return internalID, nil
}

// match scores candidates and returns the internal id to attach to, or ""
// when a new identity should be minted.
func (r *Resolver) match(ctx context.Context, lot media.Lot, hint Hint) (string, error) {
	if NormalizeTitle(hint.Title) == "" {
		return "", nil
	}
	candidates, err := r.store.FindByTitleYearLot(ctx, hint.Title, hint.PublishYear, r.opts.YearTolerance, lot)
	if err != nil {
		return "", fmt.Errorf("find candidates: %w", err)
	}

	best, runnerUp := "", 0.0
	bestScore := 0.0
	for _, candidate := range candidates {
		if hint.PublishYear > 0 && candidate.PublishYear > 0 {
			diff := hint.PublishYear - candidate.PublishYear
			if diff < -r.opts.YearTolerance || diff > r.opts.YearTolerance {
				continue
			}
		}
		score := Similarity(hint.Title, candidate.Title)
		switch {
		case score > bestScore:
			runnerUp = bestScore
			bestScore = score
			best = candidate.InternalID
		case score > runnerUp:
			runnerUp = score
		}
	}

	threshold := r.opts.SimilarityThreshold
	margin := r.opts.AmbiguityMargin
	switch {
	case bestScore >= threshold:
		// Two strong candidates too close together is as unsafe as a
		// borderline score.
		if runnerUp >= threshold && bestScore-runnerUp < margin {
			return "", fmt.Errorf("%w: two candidates scored %.3f and %.3f for %q",
				ErrAmbiguousMatch, bestScore, runnerUp, hint.Title)
		}
		return best, nil
	case bestScore >= threshold-margin:
		return "", fmt.Errorf("%w: score %.3f within %.3f of threshold %.3f for %q",
			ErrAmbiguousMatch, bestScore, margin, threshold, hint.Title)
	default:
		return "", nil
	}
}

func (r *Resolver) bucket(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.buckets[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	r.buckets[key] = m
	return m
}
