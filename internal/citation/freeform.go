package citation

import (
	"regexp"
	"strings"
)

var (
	// Lead line of a citation block: "Authors (Year). Title..."
	leadRe = regexp.MustCompile(`^(.+?)\s*\((\d{4})\)\.?\s*(.+)$`)
	// Trailing journal citation: "Journal 469(1): 1-10." Anchored at both
	// ends; callers hand it the tail after the title, never the full line.
	tailRe = regexp.MustCompile(`^([A-Z][^0-9:]*?)\s+(\d+)\s*\(([^)]+)\)\s*:\s*([0-9A-Za-z\x{2013}-]+)\.?\s*$`)
	doiRe  = regexp.MustCompile(`(?i)\b10\.\d{4,9}/[-._;()/:A-Za-z0-9]+`)
	urlRe  = regexp.MustCompile(`https?://[^\s<>"]+`)
)

// ParseFreeform segments plaintext into citation blocks separated by blank
// lines. The first line of each block must look like "Authors (Year).
// Title."; the rest of the block is kept as the abstract. Blocks without a
// recognizable lead line come back without a title and are skipped by the
// importer.
func ParseFreeform(payload string) []Record {
	normalized := strings.ReplaceAll(payload, "\r\n", "\n")
	var records []Record
	for _, block := range strings.Split(normalized, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		records = append(records, parseBlock(block))
	}
	return records
}

func parseBlock(block string) Record {
	lines := strings.SplitN(block, "\n", 2)
	lead := strings.TrimSpace(lines[0])
	var rec Record
	if len(lines) > 1 {
		rec.Abstract = strings.TrimSpace(lines[1])
	}

	if doi := doiRe.FindString(block); doi != "" {
		rec.DOI = strings.TrimRight(doi, ".")
	}
	if url := urlRe.FindString(block); url != "" {
		rec.URL = strings.TrimRight(url, ".")
	}

	m := leadRe.FindStringSubmatch(lead)
	if m == nil {
		return rec
	}
	rec.Authors = splitAuthors(m[1])
	rec.Year = m[2]
	rec.Title, rec.Journal, rec.Volume, rec.Issue, rec.Pages = splitTitleAndCitation(m[3])
	return rec
}

// splitTitleAndCitation separates the title from a trailing journal
// citation. Quoted titles end at the closing quote; otherwise the title
// ends at the first sentence break whose remainder parses as a journal
// citation, which keeps sentence periods inside the title from being
// eaten by the journal name.
func splitTitleAndCitation(rest string) (title, journal, volume, issue, pages string) {
	rest = strings.TrimSpace(rest)

	if strings.HasPrefix(rest, `"`) {
		if end := strings.Index(rest[1:], `"`); end >= 0 {
			title = strings.TrimSpace(rest[1 : end+1])
			tail := strings.TrimSpace(rest[end+2:])
			if m := tailRe.FindStringSubmatch(tail); m != nil {
				journal, volume, issue, pages = strings.TrimSpace(m[1]), m[2], m[3], m[4]
			}
			return title, journal, volume, issue, pages
		}
	}

	for from := 0; ; {
		cut := strings.Index(rest[from:], ". ")
		if cut < 0 {
			break
		}
		cut += from
		tail := strings.TrimSpace(rest[cut+1:])
		if m := tailRe.FindStringSubmatch(tail); m != nil {
			title = strings.TrimSpace(rest[:cut])
			journal, volume, issue, pages = strings.TrimSpace(m[1]), m[2], m[3], m[4]
			return title, journal, volume, issue, pages
		}
		from = cut + 1
	}

	return strings.TrimSuffix(rest, "."), "", "", "", ""
}

func splitAuthors(raw string) []string {
	var authors []string
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		part = strings.TrimSuffix(part, ".")
		if part != "" {
			authors = append(authors, part)
		}
	}
	return authors
}
