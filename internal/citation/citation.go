// Package citation parses bibliographic exports into normalized records
// and fingerprints them for per-project deduplication.
package citation

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
)

// Record is a single parsed citation with normalized field names.
type Record struct {
	Title    string
	Authors  []string
	Year     string
	Journal  string
	Volume   string
	Issue    string
	Pages    string
	DOI      string
	URL      string
	Abstract string
}

// Usable reports whether the record carries enough identity to import.
// Records without a title are skipped by the importer, not rejected.
func (r Record) Usable() bool {
	return strings.TrimSpace(r.Title) != ""
}

// Fingerprint computes the dedup hash for a record: SHA1 over the
// lowercased, trimmed, pipe-joined title, year, and DOI. It is a
// set-membership key, not a security hash.
func Fingerprint(title, year, doi string) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(title)),
		strings.ToLower(strings.TrimSpace(year)),
		strings.ToLower(strings.TrimSpace(doi)),
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// HashKey is the fingerprint of the record itself.
func (r Record) HashKey() string {
	return Fingerprint(r.Title, r.Year, r.DOI)
}

// Parse auto-detects the payload format. Anything carrying RIS type tags
// goes through the tag parser; everything else is treated as freeform
// citation blocks.
func Parse(payload string) ([]Record, error) {
	if LooksLikeRIS(payload) {
		return ParseRIS(payload)
	}
	return ParseFreeform(payload), nil
}

// LooksLikeRIS reports whether the payload carries RIS record tags. It is
// the same check Parse uses, so callers labeling a batch agree with the
// parser that handled it.
func LooksLikeRIS(payload string) bool {
	for _, line := range strings.Split(payload, "\n") {
		trimmed := strings.TrimRight(line, "\r")
		if strings.HasPrefix(trimmed, "TY  -") || strings.HasPrefix(trimmed, "ER  -") {
			return true
		}
	}
	return false
}

// normalizeYear returns a four digit year. Tokens like "2020/05//" keep
// their first four characters when the raw token is not an integer.
func normalizeYear(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if _, err := strconv.Atoi(raw); err == nil {
		return raw
	}
	if len(raw) >= 4 {
		return raw[:4]
	}
	return ""
}

// joinPages prefers an explicit pages value, then combines start and end
// pages with a hyphen, dropping a dangling hyphen when one side is empty.
func joinPages(pages, start, end string) string {
	pages = strings.TrimSpace(pages)
	if pages != "" {
		return pages
	}
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	switch {
	case start != "" && end != "":
		return start + "-" + end
	case start != "":
		return start
	case end != "":
		return end
	}
	return ""
}
