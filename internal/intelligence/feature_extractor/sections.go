package feature_extractor

import (
	"regexp"
	"strings"
)

// Section identifies a protocol section by its header.
type Section string

const (
	SectionInclusion   Section = "inclusion"
	SectionExclusion   Section = "exclusion"
	SectionPrimary     Section = "primary_endpoints"
	SectionSecondary   Section = "secondary_endpoints"
	SectionExploratory Section = "exploratory_endpoints"
	SectionSchedule    Section = "schedule"
	SectionOther       Section = "other"
)

// headerLine recognises a section header at the start of a line.  Group 1 is
// the header phrase, group 2 an optional separator and group 3 any inline
// content following it.
var headerLine = regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s*)?(?:\d{1,2}(?:\.\d{1,2})*\.?\s+|[ivx]{1,4}\.\s+)?(` +
	`(?:key\s+)?inclusion\s+criteria|(?:key\s+)?exclusion\s+criteria|` +
	`(?:primary|secondary|exploratory|tertiary|other)\s+(?:efficacy\s+|safety\s+)?(?:end\s*points?|outcomes?(?:\s+measures?)?|objectives?|variables?)|` +
	`schedule\s+of\s+(?:assessments|activities|events|visits)|visit\s+schedule|study\s+(?:procedures|visits)|` +
	`study\s+design|statistical\s+(?:methods|analysis|considerations)|sample\s+size(?:\s+(?:determination|calculation|justification))?|` +
	`study\s+population|eligibility(?:\s+criteria)?|objectives?|end\s*points?|outcome\s+measures?|` +
	`study\s+(?:treatments?|interventions?|drugs?)|background|introduction|rationale|synopsis|` +
	`safety\s+assessments?|efficacy\s+assessments?|randomi[sz]ation|blinding|study\s+duration|` +
	`concomitant\s+medications?|adverse\s+events?|references|appendix)` +
	`\b[ \t]*(:|–|-)?[ \t]*(.*)$`)

func classifyHeader(phrase string) Section {
	p := strings.ToLower(phrase)
	switch {
	case strings.Contains(p, "inclusion"):
		return SectionInclusion
	case strings.Contains(p, "exclusion"):
		return SectionExclusion
	case strings.HasPrefix(p, "primary"):
		return SectionPrimary
	case strings.HasPrefix(p, "secondary"):
		return SectionSecondary
	case strings.HasPrefix(p, "exploratory"), strings.HasPrefix(p, "tertiary"), strings.HasPrefix(p, "other"):
		return SectionExploratory
	case strings.Contains(p, "schedule"), strings.Contains(p, "visits"), strings.Contains(p, "procedures"):
		return SectionSchedule
	}
	return SectionOther
}

// parseHeader reports whether line is a section header.  A header either
// stands alone or is followed by a separator; "3. Treatment with metformin"
// is a list item, not a header.
func parseHeader(line string) (Section, string, bool) {
	m := headerLine.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	sep, rest := m[2], strings.TrimSpace(m[3])
	if sep == "" && rest != "" {
		return "", "", false
	}
	return classifyHeader(m[1]), rest, true
}

// Segment returns the body of the first section of kind s: the inline
// content on the header line plus every following line up to the next
// header.  ok is false when the section is absent.
func Segment(text string, s Section) (string, bool) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		kind, inline, ok := parseHeader(line)
		if !ok || kind != s {
			continue
		}
		var b strings.Builder
		if inline != "" {
			b.WriteString(inline)
			b.WriteByte('\n')
		}
		for _, next := range lines[i+1:] {
			if _, _, isHeader := parseHeader(next); isHeader {
				break
			}
			b.WriteString(next)
			b.WriteByte('\n')
		}
		return b.String(), true
	}
	return "", false
}

var (
	numberedMarker = regexp.MustCompile(`(?m)^\s*(?:\d{1,2}[.)]|\(\d{1,2}\)|[a-z][.)])\s+`)
	bulletMarker   = regexp.MustCompile(`(?m)^\s*[•\-*–·▪◦]\s+`)
	connective     = regexp.MustCompile(`(?i)\b(?:and|or)\b`)
)

// listItems counts numbered and bulleted items, returning the larger.
func listItems(segment string) int {
	return max(len(numberedMarker.FindAllStringIndex(segment, -1)), len(bulletMarker.FindAllStringIndex(segment, -1)))
}
