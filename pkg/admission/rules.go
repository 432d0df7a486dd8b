package admission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/mediaqueue/pkg/processor"
)

// Tier maps items up to MaxBytes to a concurrency limit.
// MaxBytes of zero means no upper bound.
type Tier struct {
	MaxBytes      int64 `yaml:"max_bytes"`
	MaxConcurrent int   `yaml:"max_concurrent"`
}

// Rules is an ordered set of size tiers.
type Rules struct {
	Tiers []Tier `yaml:"tiers"`
}

// DefaultRules allows many small files at once and large files one at a time.
func DefaultRules() Rules {
	return Rules{Tiers: []Tier{
		{MaxBytes: 5 << 20, MaxConcurrent: 6},
		{MaxBytes: 50 << 20, MaxConcurrent: 3},
		{MaxBytes: 500 << 20, MaxConcurrent: 2},
		{MaxBytes: 0, MaxConcurrent: 1},
	}}
}

// ParseRules decodes and validates a YAML rules document.
//
//	tiers:
//	  - max_bytes: 5242880
//	    max_concurrent: 6
//	  - max_bytes: 0
//	    max_concurrent: 1
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return Rules{}, errors.Join(ErrFailedToParseRules, err)
	}
	if err := r.normalize(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

// LoadRulesFile reads rules from a YAML file.
func LoadRulesFile(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, errors.Join(ErrFailedToReadRules, err)
	}
	return ParseRules(data)
}

// normalize validates tiers and sorts them by size, unbounded last.
func (r *Rules) normalize() error {
	if len(r.Tiers) == 0 {
		return ErrNoTiers
	}
	for i, t := range r.Tiers {
		if t.MaxConcurrent < 1 || t.MaxBytes < 0 {
			return fmt.Errorf("%w: tier %d: max_bytes=%d max_concurrent=%d", ErrInvalidTier, i, t.MaxBytes, t.MaxConcurrent)
		}
	}
	slices.SortStableFunc(r.Tiers, func(a, b Tier) int {
		switch {
		case a.MaxBytes == b.MaxBytes:
			return 0
		case a.MaxBytes == 0:
			return 1
		case b.MaxBytes == 0:
			return -1
		case a.MaxBytes < b.MaxBytes:
			return -1
		default:
			return 1
		}
	})
	return nil
}

// LimitFor returns the concurrency allowed while an item of the given size runs.
// Sizes above every bounded tier fall into the last tier.
func (r Rules) LimitFor(size int64) int {
	if len(r.Tiers) == 0 {
		return 1
	}
	for _, t := range r.Tiers {
		if t.MaxBytes == 0 || size <= t.MaxBytes {
			return t.MaxConcurrent
		}
	}
	return r.Tiers[len(r.Tiers)-1].MaxConcurrent
}

// TierLimit is an adaptive concurrency limit: the largest item running or
// about to run decides how many items may run together. Queued items that
// would push the limit below the current count are skipped in favour of
// smaller ones further back.
func TierLimit[T any](rules Rules, size func(T) int64) processor.AdmissionFunc[T] {
	if err := rules.normalize(); err != nil {
		rules = DefaultRules()
	}
	return func(_ context.Context, running, queued []item[T]) ([]item[T], error) {
		limit := int(^uint(0) >> 1)
		for _, r := range running {
			limit = min(limit, rules.LimitFor(size(r.Item)))
		}

		var out []item[T]
		for _, q := range queued {
			next := min(limit, rules.LimitFor(size(q.Item)))
			if len(running)+len(out)+1 > next {
				continue
			}
			out = append(out, q)
			limit = next
		}
		return out, nil
	}
}
