package mode

// Mode is the ordering strategy of a search.
type Mode string

const (
	// Ranked orders by ascending L2 distance to the query embedding.
	Ranked Mode = "ranked"
	// Recent orders by descending creation time.
	Recent Mode = "recent"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Ranked || m == Recent
}

// DefaultLimit returns the result cap for the mode.
// Ranked results are capped lower than the recent listing.
func (m Mode) DefaultLimit() int {
	if m == Ranked {
		return 20
	}
	return 50
}
