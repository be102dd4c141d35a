package auth

// HistoryWindow is how many passwords a rotation candidate is checked against:
// the active one plus the two most recent predecessors. A policy constant, not
// something inferred from the storage shape.
const HistoryWindow = 3

// HistoryGuard decides whether a rotation candidate reuses a recent password.
type HistoryGuard struct {
	hasher Hasher
}

// NewHistoryGuard builds a guard over the given hasher.
func NewHistoryGuard(hasher Hasher) *HistoryGuard {
	return &HistoryGuard{hasher: hasher}
}

// IsReused reports whether candidate matches the current hash or any of the
// stored previous hashes. Empty history slots (no rotation yet) are skipped.
// A malformed stored hash is surfaced as an error rather than treated as a
// mismatch.
func (g *HistoryGuard) IsReused(candidate, currentHash string, previousHashes ...string) (bool, error) {
	hashes := append([]string{currentHash}, previousHashes...)
	if len(hashes) > HistoryWindow {
		hashes = hashes[:HistoryWindow]
	}
	for _, h := range hashes {
		if h == "" {
			continue
		}
		match, err := g.hasher.Verify(h, candidate)
		if err != nil {
			return false, err
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}
