// Package outline holds the synopsis outline templates and the
// paragraph-based editing rules.
package outline

import "strings"

// TemplateSection is a numbered subsection of a front-matter chapter.
type TemplateSection struct {
	Number string
	Title  string
}

// TemplateChapter is a front-matter chapter template. Chapters created
// from a template keep its key so the structured editor can find them.
type TemplateChapter struct {
	Key      string
	Title    string
	Number   string
	Sections []TemplateSection
}

// FrontMatterTemplate lists the chapters every synopsis opens with.
var FrontMatterTemplate = []TemplateChapter{
	{
		Key:    "front_matter_advisory_board",
		Title:  "Advisory Board",
		Number: "0",
	},
	{
		Key:    "front_matter_authors",
		Title:  "About the authors",
		Number: "0.1",
	},
	{
		Key:    "front_matter_acknowledgements",
		Title:  "Acknowledgements",
		Number: "0.2",
	},
	{
		Key:    "front_matter_about",
		Title:  "About this book",
		Number: "1",
		Sections: []TemplateSection{
			{"1.1", "The Conservation Evidence project"},
			{"1.2", "The purpose of Conservation Evidence synopses"},
			{"1.3", "Who this synopsis is for"},
			{"1.4", "Background"},
			{"1.5", "Scope"},
			{"1.6", "Methods"},
			{"1.7", "How you can help to change conservation practice"},
			{"1.8", "References"},
		},
	},
}

// TemplateByKey returns the front-matter template for a key, or nil.
func TemplateByKey(key string) *TemplateChapter {
	for i := range FrontMatterTemplate {
		if FrontMatterTemplate[i].Key == key {
			return &FrontMatterTemplate[i]
		}
	}
	return nil
}

// Preset is a ready-made table of contents.
type Preset struct {
	Key         string
	Label       string
	Description string
	Chapters    []string
}

// StandardToC is the published synopsis chapter list. Subheadings and
// interventions are added by the authors afterwards.
var StandardToC = Preset{
	Key:         "standard_ce_toc",
	Label:       "Standard CE synopsis (full ToC, chapters only)",
	Description: "Top-level chapters from the published CE synopsis format; add subheadings/interventions yourself.",
	Chapters: []string{
		"Advisory Board",
		"About the authors",
		"Acknowledgements",
		"1. About this book",
		"2. Threat: Residential and commercial development",
		"3. Threat: Aquaculture & agriculture",
		"4. Threat: Energy production and mining",
		"5. Threat: Transportation and service corridors",
		"6. Threat: Biological resource use",
		"7. Threat: Human intrusions and disturbances",
		"8. Invasive alien and other problematic species",
		"9. Threat: Pollution",
		"10. Threat: Climate change and severe weather",
		"11. Habitat protection",
		"12. Habitat restoration and creation",
		"13. Species management",
		"14. Education and awareness",
		"References",
		"Appendix 1: English language journals (and years) searched",
		"Appendix 2: Non-English language journals (and years) searched",
		"Appendix 3: Reports (and years) searched",
		"Appendix 4: Literature reviewed for the Coral Conservation Synopsis",
		"Index",
	},
}

// Presets indexes the available ToC presets by key.
var Presets = map[string]Preset{
	StandardToC.Key: StandardToC,
}

// SplitParagraphs applies the editor rule: blank lines start a new
// paragraph, single line breaks stay within one.
func SplitParagraphs(value string) []string {
	text := strings.TrimSpace(strings.ReplaceAll(value, "\r\n", "\n"))
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n\n")
	paragraphs := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			paragraphs = append(paragraphs, part)
		}
	}
	return paragraphs
}

// SummaryPreview joins the first three paragraphs for the chapter list
// view.
func SummaryPreview(paragraphs []string) string {
	if len(paragraphs) > 3 {
		paragraphs = paragraphs[:3]
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}
