package feature_extractor

import "github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"

// CriteriaSignals are the three independent counts taken over an
// eligibility segment.
type CriteriaSignals struct {
	Numbered    int
	Bulleted    int
	Connectives int
}

// Max returns the largest signal.  Different authoring styles (numbered,
// bulleted, prose) each light up one signal; the maximum is used so that
// none is undercounted.
func (s CriteriaSignals) Max() int { return max(s.Numbered, s.Bulleted, s.Connectives) }

// Signals counts the markers in one segment.
func Signals(segment string) CriteriaSignals {
	return CriteriaSignals{
		Numbered:    len(numberedMarker.FindAllStringIndex(segment, -1)),
		Bulleted:    len(bulletMarker.FindAllStringIndex(segment, -1)),
		Connectives: len(connective.FindAllStringIndex(segment, -1)),
	}
}

type segmentCriteriaCounter struct{}

// Inclusion counts inclusion criteria, clamped to [1,30].  ok is false when
// the text has no inclusion section.
func (segmentCriteriaCounter) Inclusion(text string) (int, bool) {
	seg, ok := Segment(text, SectionInclusion)
	if !ok {
		return 0, false
	}
	return clamp(Signals(seg).Max(), protocol.MinInclusionCount, protocol.MaxInclusionCount), true
}

// Exclusion counts exclusion criteria, clamped to [0,20].
func (segmentCriteriaCounter) Exclusion(text string) (int, bool) {
	seg, ok := Segment(text, SectionExclusion)
	if !ok {
		return 0, false
	}
	return clamp(Signals(seg).Max(), 0, protocol.MaxExclusionCount), true
}

func clamp(v, lo, hi int) int { return min(max(v, lo), hi) }
