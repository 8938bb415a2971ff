// Package parcelref parses the free-form parcel-reference field carried by
// declarations (num_parcelles) into a normalized, validated set of cadastral
// identifiers plus a typed list of parse anomalies.
//
// A cadastral identifier (IDU) is 14 characters: a 5-character INSEE commune
// code (digits, with 2A/2B for Corsica), a 3-character prefix, a 2-character
// section, and a 4-digit parcel number. Operators type this field by hand,
// so tokens are folded (diacritics stripped), uppercased, and deduplicated
// before validation; the returned set is sorted so downstream geometry is
// independent of the input ordering.
package parcelref

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Reason classifies why a token was excluded from the reference set.
type Reason string

const (
	// ReasonMalformed marks a token that does not normalize into a
	// 14-character IDU.
	ReasonMalformed Reason = "malformed"

	// ReasonDuplicate marks a token that normalizes to an already-seen IDU.
	ReasonDuplicate Reason = "duplicate"
)

// Anomaly records one excluded token and the reason for its exclusion.
// Anomalies are per-record diagnostics, never batch failures.
type Anomaly struct {
	Raw    string
	Reason Reason
}

// String implements fmt.Stringer.
func (a Anomaly) String() string {
	return fmt.Sprintf("%s: %q", a.Reason, a.Raw)
}

var (
	// Operators separate references with semicolons (the importer's join
	// character), commas, or whitespace.
	splitter = regexp.MustCompile(`[;,\s]+`)

	// Commune (5, Corsica 2A/2B allowed) + prefix (3) + section (2) + number (4).
	iduPattern = regexp.MustCompile(`^[0-9][0-9AB][0-9]{3}[0-9A-Z]{3}[0-9A-Z]{2}[0-9]{4}$`)
)

// Parse splits a raw parcel-reference field into the sorted, deduplicated
// set of valid IDUs it contains and the anomalies found along the way.
// An empty or all-invalid field yields an empty set, which callers must
// treat as an unresolved declaration rather than an empty geometry.
func Parse(field string) ([]string, []Anomaly) {
	var refs []string
	var anomalies []Anomaly
	seen := make(map[string]struct{})

	for _, token := range splitter.Split(field, -1) {
		if token == "" {
			continue
		}
		ref := Normalize(token)
		if !ValidIDU(ref) {
			anomalies = append(anomalies, Anomaly{Raw: token, Reason: ReasonMalformed})
			continue
		}
		if _, dup := seen[ref]; dup {
			anomalies = append(anomalies, Anomaly{Raw: token, Reason: ReasonDuplicate})
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	sort.Strings(refs)
	return refs, anomalies
}

// Normalize trims a token, strips diacritics, and uppercases it. It does
// not validate; see ValidIDU.
func Normalize(token string) string {
	return strings.ToUpper(foldDiacritics(strings.TrimSpace(token)))
}

// ValidIDU reports whether s is a well-formed 14-character cadastral IDU.
func ValidIDU(s string) bool {
	return iduPattern.MatchString(s)
}

// ComposeIDU assembles an IDU from the cadastral components delivered by
// the declarations API: the section is zero-padded to 2 characters and the
// parcel number to 4, matching the layout of the national cadastre.
func ComposeIDU(commune, prefix, section, number string) string {
	return strings.ToUpper(commune + prefix + zeroPad(section, 2) + zeroPad(number, 4))
}

func zeroPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// foldDiacritics removes combining marks so that accented input compares
// equal to its plain form. The transformer chain is stateful, so a fresh
// one is built per call.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
