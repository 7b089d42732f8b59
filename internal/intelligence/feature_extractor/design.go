package feature_extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
)

// Design is the detected phase and design attributes.
type Design struct {
	Phase      protocol.Phase
	Randomized bool
	Masked     bool
}

var (
	earlyPhaseRe = regexp.MustCompile(`(?i)\bearly\s+phase\s*(?:1|i)\b`)
	phaseRe      = regexp.MustCompile(`(?i)\bphase\s*(iv|i{1,3}|[1-4])[ab]?(?:\s*(?:/|-|–|and)\s*(?:phase\s*)?(iv|i{1,3}|[1-4])[ab]?)?\b`)
	randomRe     = regexp.MustCompile(`(?i)\brandomi[sz](?:ed|ation|e)\b`)
	nonRandomRe  = regexp.MustCompile(`(?i)\bnon[- ]?randomi[sz]ed\b`)
	blindRe      = regexp.MustCompile(`(?i)\b(?:(?:single|double|triple|quadruple)[- ]?(?:blind(?:ed)?|mask(?:ed|ing)?)|blinded|masked|placebo[- ]controlled)\b`)
)

type regexDesign struct{}

// Design detects phase, randomization and masking.  Randomization is
// negated by an explicit "non-randomized"; masking requires a blinding or
// placebo-control statement, so open-label text alone is unmasked.
func (regexDesign) Design(text string) Design {
	d := Design{Phase: protocol.PhaseNA}
	if earlyPhaseRe.MatchString(text) {
		d.Phase = protocol.PhaseEarly1
	} else if m := phaseRe.FindStringSubmatch(text); m != nil {
		d.Phase = protocol.FromNumbers(phaseNumber(m[1]), phaseNumber(m[2]))
	}
	d.Randomized = randomRe.MatchString(text) && !nonRandomRe.MatchString(text)
	d.Masked = blindRe.MatchString(text)
	return d
}

func phaseNumber(tok string) int {
	switch strings.ToLower(tok) {
	case "1", "i":
		return 1
	case "2", "ii":
		return 2
	case "3", "iii":
		return 3
	case "4", "iv":
		return 4
	}
	return 0
}

// ---------------------------------------------------------------------------
// Endpoints
// ---------------------------------------------------------------------------

var (
	primaryMention     = regexp.MustCompile(`(?i)\bprimary\s+(?:efficacy\s+|safety\s+)?(?:end\s*points?|outcomes?(?:\s+measures?)?|objectives?)\b`)
	secondaryNumbered  = regexp.MustCompile(`(?i)\b(\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\s+(?:key\s+)?secondary\s+(?:efficacy\s+)?(?:end\s*points?|outcomes?)\b`)
	secondaryMention   = regexp.MustCompile(`(?i)\bsecondary\s+(?:efficacy\s+|safety\s+)?(?:end\s*points?|outcomes?(?:\s+measures?)?|objectives?)\b`)
	exploratoryNumbers = regexp.MustCompile(`(?i)\b(\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten)\s+(?:exploratory|tertiary|other)\s+(?:end\s*points?|outcomes?)\b`)
	exploratoryMention = regexp.MustCompile(`(?i)\b(?:exploratory|tertiary)\s+(?:end\s*points?|outcomes?(?:\s+measures?)?|objectives?)\b`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

func wordCount(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return numberWords[strings.ToLower(s)]
}

// Endpoint tier caps.
const (
	maxPrimaryEndpoints   = 10
	maxSecondaryEndpoints = 30
	maxOtherEndpoints     = 30
)

type sectionEndpoints struct{}

// Endpoints counts endpoints per tier.  A section header yields its item
// count (at least one); otherwise a stated number or a bare mention is used.
// The primary tier never drops below one.
func (sectionEndpoints) Endpoints(text string) protocol.EndpointCounts {
	primary := tierCount(text, SectionPrimary, nil, primaryMention, maxPrimaryEndpoints)
	return protocol.EndpointCounts{
		Primary:   max(1, primary),
		Secondary: tierCount(text, SectionSecondary, secondaryNumbered, secondaryMention, maxSecondaryEndpoints),
		Other:     tierCount(text, SectionExploratory, exploratoryNumbers, exploratoryMention, maxOtherEndpoints),
	}
}

func tierCount(text string, s Section, numbered, mention *regexp.Regexp, limit int) int {
	if seg, ok := Segment(text, s); ok {
		return min(max(1, listItems(seg)), limit)
	}
	if numbered != nil {
		if m := numbered.FindStringSubmatch(text); m != nil {
			if n := wordCount(m[1]); n > 0 {
				return min(n, limit)
			}
		}
	}
	if mention.MatchString(text) {
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// Visit schedule
// ---------------------------------------------------------------------------

type frequencyRule struct {
	freq protocol.VisitFrequency
	re   *regexp.Regexp
}

// frequencyRules are checked in order; biweekly precedes weekly so that
// "every 2 weeks" is not read as weekly.
var frequencyRules = []frequencyRule{
	{protocol.VisitDaily, regexp.MustCompile(`(?i)\b(?:daily\s+(?:clinic\s+|site\s+|study\s+)?visits|visits?\s+(?:will\s+(?:occur|take\s+place)\s+)?(?:every\s+day|daily))\b`)},
	{protocol.VisitBiweekly, regexp.MustCompile(`(?i)\b(?:bi-?weekly|every\s+(?:2|two|other)\s+weeks?|fortnightly|q2w)\b`)},
	{protocol.VisitWeekly, regexp.MustCompile(`(?i)\b(?:weekly|every\s+(?:1\s+|one\s+)?week|once\s+(?:a|per|each)\s+week|q1w)\b`)},
	{protocol.VisitMonthly, regexp.MustCompile(`(?i)\b(?:monthly|every\s+(?:4|four)\s+weeks|every\s+(?:1\s+|one\s+)?month|once\s+(?:a|per|each)\s+month|q4w)\b`)},
	{protocol.VisitQuarterly, regexp.MustCompile(`(?i)\b(?:quarterly|every\s+(?:3|three)\s+months|every\s+(?:12|twelve)\s+weeks|q12w)\b`)},
}

// visitContext selects the lines that talk about visits rather than dosing.
var visitContext = regexp.MustCompile(`(?i)\b(?:visits?|clinic|site|return|attend\w*|assessments?|schedule[ds]?)\b`)

type regexSchedule struct{}

// VisitFrequency detects the visit cadence from lines mentioning visits,
// falling back to the schedule section.  ok is false when nothing matches.
func (regexSchedule) VisitFrequency(text string) (protocol.VisitFrequency, bool) {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if visitContext.MatchString(line) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	if seg, ok := Segment(text, SectionSchedule); ok {
		b.WriteString(seg)
	}
	scope := b.String()
	for _, r := range frequencyRules {
		if r.re.MatchString(scope) {
			return r.freq, true
		}
	}
	return "", false
}
