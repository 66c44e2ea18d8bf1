package citation

import (
	"fmt"
	"strings"
)

// risTag matches lines shaped "XX  - value". Values may continue on the
// following lines without a tag; continuations append to the last tag.
func splitRISLine(line string) (tag, value string, ok bool) {
	if len(line) < 5 {
		return "", "", false
	}
	tag = line[:2]
	for _, r := range tag {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", "", false
		}
	}
	if !strings.HasPrefix(line[2:], "  -") {
		return "", "", false
	}
	return tag, strings.TrimSpace(strings.TrimPrefix(line[5:], " ")), true
}

// ParseRIS parses an RIS tag export. Records are terminated by "ER  -".
// A trailing record without ER is still emitted if it holds any data.
func ParseRIS(payload string) ([]Record, error) {
	var (
		records  []Record
		current  map[string][]string
		lastTag  string
		sawAny   bool
		lineNo   int
		flushRec = func() {
			if current == nil {
				return
			}
			if rec, ok := buildRISRecord(current); ok {
				records = append(records, rec)
			}
			current = nil
			lastTag = ""
		}
	)

	for _, raw := range strings.Split(payload, "\n") {
		lineNo++
		line := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		tag, value, ok := splitRISLine(line)
		if !ok {
			// Continuation of the previous value.
			if current == nil || lastTag == "" {
				return nil, fmt.Errorf("ris: malformed line %d: %q", lineNo, strings.TrimSpace(line))
			}
			vals := current[lastTag]
			if len(vals) > 0 {
				vals[len(vals)-1] = strings.TrimSpace(vals[len(vals)-1] + " " + strings.TrimSpace(line))
				current[lastTag] = vals
			}
			continue
		}
		sawAny = true
		if tag == "ER" {
			flushRec()
			continue
		}
		if current == nil {
			current = make(map[string][]string)
		}
		current[tag] = append(current[tag], value)
		lastTag = tag
	}
	flushRec()

	if !sawAny {
		return nil, fmt.Errorf("ris: no tagged lines found")
	}
	return records, nil
}

func firstRIS(fields map[string][]string, tags ...string) string {
	for _, tag := range tags {
		for _, v := range fields[tag] {
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

func buildRISRecord(fields map[string][]string) (Record, bool) {
	rec := Record{
		Title:    firstRIS(fields, "TI", "T1"),
		Year:     normalizeYear(firstRIS(fields, "PY", "Y1")),
		Journal:  firstRIS(fields, "JO", "JF", "T2"),
		Volume:   firstRIS(fields, "VL"),
		Issue:    firstRIS(fields, "IS"),
		DOI:      firstRIS(fields, "DO"),
		URL:      firstRIS(fields, "UR"),
		Abstract: firstRIS(fields, "AB", "N2"),
	}
	rec.Pages = joinPages("", firstRIS(fields, "SP"), firstRIS(fields, "EP"))
	for _, tag := range []string{"AU", "A1"} {
		for _, v := range fields[tag] {
			v = strings.TrimSpace(v)
			if v != "" {
				rec.Authors = append(rec.Authors, strings.TrimSuffix(v, "."))
			}
		}
	}

	// Discard artifacts that carry nothing at all (stray TY-only blocks).
	if rec.Title == "" && len(rec.Authors) == 0 && rec.Year == "" && rec.Abstract == "" {
		return Record{}, false
	}
	return rec, true
}
