package citation

import (
	"reflect"
	"strings"
	"testing"
)

func TestFingerprintNormalizesCaseAndWhitespace(t *testing.T) {
	a := Fingerprint("Title", "2020", "10.1/x")
	b := Fingerprint("  TITLE ", " 2020", "10.1/X")
	if a != b {
		t.Fatalf("fingerprints differ: %s vs %s", a, b)
	}
	c := Fingerprint("Other title", "2020", "10.1/x")
	if a == c {
		t.Fatalf("distinct titles should not collide")
	}
}

func TestFingerprintIsStable(t *testing.T) {
	got := Fingerprint("Title", "2020", "10.1/x")
	if len(got) != 40 {
		t.Fatalf("expected 40 hex chars, got %q", got)
	}
	if got != Fingerprint("title", "2020", "10.1/x") {
		t.Fatalf("fingerprint should be case-insensitive")
	}
}

func TestNormalizeYear(t *testing.T) {
	cases := map[string]string{
		"2020":      "2020",
		"2020/05//": "2020",
		" 1999 ":    "1999",
		"":          "",
		"20":        "20",
	}
	for in, want := range cases {
		if got := normalizeYear(in); got != want {
			t.Errorf("normalizeYear(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJoinPages(t *testing.T) {
	if got := joinPages("", "12", "30"); got != "12-30" {
		t.Fatalf("got %q", got)
	}
	if got := joinPages("", "12", ""); got != "12" {
		t.Fatalf("dangling hyphen: %q", got)
	}
	if got := joinPages("", "", "30"); got != "30" {
		t.Fatalf("dangling hyphen: %q", got)
	}
	if got := joinPages("100-110", "12", "30"); got != "100-110" {
		t.Fatalf("explicit pages should win: %q", got)
	}
}

const sampleRIS = `TY  - JOUR
TI  - Seagrass restoration outcomes
AU  - Smith, J.
AU  - Jones, A.
PY  - 2020/05//
JO  - Marine Ecology
VL  - 12
IS  - 3
SP  - 101
EP  - 118
DO  - 10.1000/seagrass.2020
ER  -
TY  - JOUR
TI  - Kelp forest recovery
AU  - Brown, K.
PY  - 2018
JO  - Ocean Science
SP  - 55
ER  -
`

func TestParseRIS(t *testing.T) {
	records, err := ParseRIS(sampleRIS)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.Title != "Seagrass restoration outcomes" {
		t.Errorf("title: %q", first.Title)
	}
	if !reflect.DeepEqual(first.Authors, []string{"Smith, J", "Jones, A"}) {
		t.Errorf("authors: %v", first.Authors)
	}
	if first.Year != "2020" {
		t.Errorf("year: %q", first.Year)
	}
	if first.Journal != "Marine Ecology" || first.Volume != "12" || first.Issue != "3" {
		t.Errorf("journal fields: %q %q %q", first.Journal, first.Volume, first.Issue)
	}
	if first.Pages != "101-118" {
		t.Errorf("pages: %q", first.Pages)
	}
	if first.DOI != "10.1000/seagrass.2020" {
		t.Errorf("doi: %q", first.DOI)
	}

	second := records[1]
	if second.Pages != "55" {
		t.Errorf("single start page should not grow a hyphen: %q", second.Pages)
	}
}

func TestParseRISRejectsGarbage(t *testing.T) {
	if _, err := ParseRIS("this is not ris at all"); err == nil {
		t.Fatalf("expected error for untagged payload")
	}
}

func TestParseFreeformCitationBlock(t *testing.T) {
	payload := `Angel, D. L.; et al. (2002). "In situ biofiltration..." Hydrobiologia 469(1): 1-10.
The study examined biofiltration near fish farms.
doi: 10.1023/A:1015531712224`

	records := ParseFreeform(payload)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Title != "In situ biofiltration..." {
		t.Errorf("title: %q", rec.Title)
	}
	if rec.Journal != "Hydrobiologia" {
		t.Errorf("journal: %q", rec.Journal)
	}
	if rec.Volume != "469" || rec.Issue != "1" || rec.Pages != "1-10" {
		t.Errorf("citation fields: %q %q %q", rec.Volume, rec.Issue, rec.Pages)
	}
	if rec.Year != "2002" {
		t.Errorf("year: %q", rec.Year)
	}
	if !reflect.DeepEqual(rec.Authors, []string{"Angel, D. L", "et al"}) {
		t.Errorf("authors: %v", rec.Authors)
	}
	if rec.DOI != "10.1023/A:1015531712224" {
		t.Errorf("doi: %q", rec.DOI)
	}
	if !strings.Contains(rec.Abstract, "biofiltration near fish farms") {
		t.Errorf("abstract: %q", rec.Abstract)
	}
}

func TestParseFreeformUnquotedTitle(t *testing.T) {
	records := ParseFreeform("Lee, P. (2019). Reef surveys. Coral Reports 3(2): 10-20.")
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Title != "Reef surveys" {
		t.Errorf("title: %q", rec.Title)
	}
	if rec.Journal != "Coral Reports" || rec.Volume != "3" || rec.Issue != "2" || rec.Pages != "10-20" {
		t.Errorf("citation fields: %q %q %q %q", rec.Journal, rec.Volume, rec.Issue, rec.Pages)
	}
	if !rec.Usable() {
		t.Fatal("record with a title must be usable")
	}
}

func TestParseFreeformUnrecognizedBlockHasNoTitle(t *testing.T) {
	records := ParseFreeform("just some stray text without a citation shape")
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Usable() {
		t.Fatalf("block without a lead line must not be usable")
	}
}

func TestParseAutoDetect(t *testing.T) {
	records, err := Parse(sampleRIS)
	if err != nil || len(records) != 2 {
		t.Fatalf("ris autodetect failed: %v (%d records)", err, len(records))
	}
	records, err = Parse("Lee, P. (2019). Reef surveys. Coral Reports 3(2): 10-20.")
	if err != nil || len(records) != 1 {
		t.Fatalf("freeform autodetect failed: %v (%d records)", err, len(records))
	}
}
