package facematch

import (
	"strings"
	"unicode"

	"github.com/kozaktomas/face-attendance/internal/database"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for comparison (lowercase, no diacritics, spaces for dashes).
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// FilterProfiles returns the profiles whose normalized name or student ID
// contains the normalized query, keeping roster order. An empty query keeps all.
func FilterProfiles(profiles []database.StudentProfile, query string) []database.StudentProfile {
	q := NormalizePersonName(query)
	if q == "" {
		return profiles
	}
	var out []database.StudentProfile
	for _, p := range profiles {
		if strings.Contains(NormalizePersonName(p.Name), q) || strings.Contains(NormalizePersonName(p.StudentID), q) {
			out = append(out, p)
		}
	}
	return out
}
