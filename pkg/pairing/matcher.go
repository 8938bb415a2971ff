package pairing

import (
	"sort"

	"github.com/IGNF/ocsge-pv/pkg/inventory"
)

// Candidate is a scored declaration/detection pair.
type Candidate struct {
	DeclarationID int64
	DetectionID   int64
	Score         float64
}

// Matcher reduces scored candidates to the final link set: it applies the
// similarity threshold, resolves multiplicity according to the mode, and
// orders the result deterministically.
type Matcher struct {
	// Threshold is the minimum score a candidate must reach. At 0 every
	// pair with a positive score qualifies; pairs without a real overlap
	// never carry one.
	Threshold float64
	// Mode selects between keeping all qualifying pairs and keeping only
	// the best detection per declaration.
	Mode inventory.Mode
}

// Match selects the links for the given candidates. The result is free of
// duplicates and sorted by declaration id then detection id, whatever order
// the candidates arrive in.
func (m Matcher) Match(candidates []Candidate) []inventory.Link {
	qualified := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score <= 0 || c.Score < m.Threshold {
			continue
		}
		qualified = append(qualified, c)
	}

	if m.Mode == inventory.ModeBestMatch {
		qualified = bestPerDeclaration(qualified)
	}

	links := make([]inventory.Link, 0, len(qualified))
	seen := make(map[inventory.Link]struct{}, len(qualified))
	for _, c := range qualified {
		l := inventory.Link{DeclarationID: c.DeclarationID, DetectionID: c.DetectionID}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		links = append(links, l)
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].DeclarationID != links[j].DeclarationID {
			return links[i].DeclarationID < links[j].DeclarationID
		}
		return links[i].DetectionID < links[j].DetectionID
	})
	return links
}

// bestPerDeclaration keeps, for each declaration, the single candidate with
// the highest score. Ties go to the lowest detection id so reruns pick the
// same winner.
func bestPerDeclaration(candidates []Candidate) []Candidate {
	best := make(map[int64]Candidate, len(candidates))
	for _, c := range candidates {
		cur, ok := best[c.DeclarationID]
		if !ok || c.Score > cur.Score ||
			(c.Score == cur.Score && c.DetectionID < cur.DetectionID) {
			best[c.DeclarationID] = c
		}
	}
	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	return out
}
