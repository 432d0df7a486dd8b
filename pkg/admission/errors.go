package admission

import "errors"

var (
	// ErrNoTiers is returned when a rule set has no tiers
	ErrNoTiers = errors.New("admission: rules must define at least one tier")

	// ErrInvalidTier is returned when a tier has a non-positive concurrency or negative size bound
	ErrInvalidTier = errors.New("admission: invalid tier")

	// ErrFailedToParseRules is returned when the rules document cannot be decoded
	ErrFailedToParseRules = errors.New("admission: failed to parse rules")

	// ErrFailedToReadRules is returned when the rules file cannot be read
	ErrFailedToReadRules = errors.New("admission: failed to read rules file")
)
