package protocol

import (
	"regexp"
	"strings"
)

// Phase is the canonical trial phase key used to partition the corpus.  The
// values match the registry's phase enumeration; combined phases are joined
// with a slash.
type Phase string

const (
	PhaseEarly1 Phase = "EARLY_PHASE1"
	Phase1      Phase = "PHASE1"
	Phase1_2    Phase = "PHASE1/PHASE2"
	Phase2      Phase = "PHASE2"
	Phase2_3    Phase = "PHASE2/PHASE3"
	Phase3      Phase = "PHASE3"
	Phase4      Phase = "PHASE4"
	PhaseNA     Phase = "NA"
)

// AllPhases lists every phase key in development order.
var AllPhases = []Phase{PhaseEarly1, Phase1, Phase1_2, Phase2, Phase2_3, Phase3, Phase4, PhaseNA}

// Valid reports whether p is a known key.
func (p Phase) Valid() bool {
	for _, known := range AllPhases {
		if p == known {
			return true
		}
	}
	return false
}

// Count is the number of development phases the key spans.  NA counts as 0.
func (p Phase) Count() int {
	switch p {
	case PhaseNA, "":
		return 0
	case Phase1_2, Phase2_3:
		return 2
	default:
		return 1
	}
}

// Label renders the key for reports ("Phase 2/3").
func (p Phase) Label() string {
	switch p {
	case PhaseEarly1:
		return "Early Phase 1"
	case PhaseNA, "":
		return "N/A"
	}
	s := strings.ReplaceAll(string(p), "PHASE", "")
	return "Phase " + s
}

var (
	phaseToken  = regexp.MustCompile(`(?i)^(?:phase\s*)?(iv|i{1,3}|[1-4])[ab]?$`)
	phaseSplit  = regexp.MustCompile(`(?i)\s*(?:/|-|–|,|\band\b)\s*`)
	earlyPhase1 = regexp.MustCompile(`(?i)^early[\s_]*phase[\s_]*(1|i)$`)
)

// romanDigit maps a phase token to its number, 0 when unknown.
func romanDigit(tok string) int {
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

// combine maps one or two phase numbers to a key.
func combine(a, b int) Phase {
	if b == 0 || a == b {
		switch a {
		case 1:
			return Phase1
		case 2:
			return Phase2
		case 3:
			return Phase3
		case 4:
			return Phase4
		}
		return PhaseNA
	}
	if a > b {
		a, b = b, a
	}
	switch {
	case a == 1 && b == 2:
		return Phase1_2
	case a == 2 && b == 3:
		return Phase2_3
	}
	// Non-adjacent combinations collapse to the later phase.
	return combine(b, 0)
}

// FromNumbers builds a key from one or two phase numbers (0 = absent).
func FromNumbers(a, b int) Phase {
	if a == 0 {
		a, b = b, 0
	}
	return combine(a, b)
}

// NormalizePhase accepts the spellings seen in protocols, API requests and
// the registry ("II", "phase 2", "Phase I/II", "PHASE2", "2/3",
// "EARLY_PHASE1") and returns the canonical key, PhaseNA when unrecognised.
func NormalizePhase(s string) Phase {
	s = strings.TrimSpace(s)
	if s == "" {
		return PhaseNA
	}
	upper := strings.ToUpper(s)
	if p := Phase(upper); p.Valid() {
		return p
	}
	if earlyPhase1.MatchString(s) {
		return PhaseEarly1
	}
	upper = strings.ReplaceAll(upper, "PHASE", "")
	parts := phaseSplit.Split(strings.TrimSpace(upper), -1)
	nums := make([]int, 0, 2)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := phaseToken.FindStringSubmatch(part)
		if m == nil {
			return PhaseNA
		}
		nums = append(nums, romanDigit(m[1]))
	}
	switch len(nums) {
	case 1:
		return FromNumbers(nums[0], 0)
	case 2:
		return FromNumbers(nums[0], nums[1])
	}
	return PhaseNA
}

// PhaseFromList folds the registry's phase array (["PHASE1","PHASE2"]) into
// one key.
func PhaseFromList(phases []string) Phase {
	switch len(phases) {
	case 0:
		return PhaseNA
	case 1:
		return NormalizePhase(phases[0])
	}
	if strings.EqualFold(phases[0], string(PhaseEarly1)) {
		return PhaseEarly1
	}
	return NormalizePhase(phases[0] + "/" + phases[len(phases)-1])
}
