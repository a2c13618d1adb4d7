package database

// Listing limits for merge history
const (
	// DefaultMergeHistoryLimit is used when the caller does not ask for a limit.
	DefaultMergeHistoryLimit = 50

	// MaxMergeHistoryLimit caps a single history page.
	MaxMergeHistoryLimit = 500
)

// ClampMergeHistoryLimit maps non-positive limits to the default and caps large ones.
func ClampMergeHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultMergeHistoryLimit
	}
	return min(limit, MaxMergeHistoryLimit)
}
