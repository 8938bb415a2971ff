package inventory

import "fmt"

// Mode selects the matcher's multiplicity policy. Both modes share the same
// candidate discovery and scoring; the mode only changes which scored pairs
// are kept.
type Mode int

const (
	// ModeManyToMany keeps every pair meeting the threshold. Default.
	ModeManyToMany Mode = iota

	// ModeBestMatch keeps, per declaration, only the highest-scoring
	// detection. Ties break toward the lowest detection identifier.
	ModeBestMatch
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeManyToMany:
		return "many-to-many"
	case ModeBestMatch:
		return "best-match"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeManyToMany || m == ModeBestMatch
}

// ParseMode converts a configuration or flag value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "many-to-many", "many_to_many", "all":
		return ModeManyToMany, nil
	case "best-match", "best_match", "best":
		return ModeBestMatch, nil
	default:
		return ModeManyToMany, fmt.Errorf("unknown matching mode %q", s)
	}
}
