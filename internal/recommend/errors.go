package recommend

import "errors"

var (
	// ErrNoSites means the repository holds no sites at all. Distinct
	// from an over-constrained request so callers can tell an empty
	// database from filters that excluded everyone.
	ErrNoSites = errors.New("no sites in repository")

	// ErrNoCandidates means sites exist but none satisfy the request's
	// hard constraints.
	ErrNoCandidates = errors.New("no candidates satisfy constraints")
)
