package clinicaltrials

import (
	"strconv"
	"strings"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
)

// Study is one record from /api/v2/studies.  Only the fields the collector
// reads are declared; absent nested objects decode to zero values.
type Study struct {
	ProtocolSection ProtocolSection `json:"protocolSection"`
	DocumentSection DocumentSection `json:"documentSection"`
	HasResults      bool            `json:"hasResults"`
}

type ProtocolSection struct {
	Identification IdentificationModule `json:"identificationModule"`
	Status         StatusModule         `json:"statusModule"`
	Description    DescriptionModule    `json:"descriptionModule"`
	Conditions     ConditionsModule     `json:"conditionsModule"`
	Design         DesignModule         `json:"designModule"`
	Eligibility    EligibilityModule    `json:"eligibilityModule"`
	Outcomes       OutcomesModule       `json:"outcomesModule"`
}

type IdentificationModule struct {
	NCTID         string `json:"nctId"`
	BriefTitle    string `json:"briefTitle"`
	OfficialTitle string `json:"officialTitle"`
}

type StatusModule struct {
	OverallStatus string `json:"overallStatus"`
}

type DescriptionModule struct {
	BriefSummary        string `json:"briefSummary"`
	DetailedDescription string `json:"detailedDescription"`
}

type ConditionsModule struct {
	Conditions []string `json:"conditions"`
	Keywords   []string `json:"keywords"`
}

type DesignModule struct {
	StudyType  string         `json:"studyType"`
	Phases     []string       `json:"phases"`
	DesignInfo DesignInfo     `json:"designInfo"`
	Enrollment EnrollmentInfo `json:"enrollmentInfo"`
}

type DesignInfo struct {
	Allocation  string      `json:"allocation"`
	MaskingInfo MaskingInfo `json:"maskingInfo"`
}

type MaskingInfo struct {
	Masking string `json:"masking"`
}

type EnrollmentInfo struct {
	Count int    `json:"count"`
	Type  string `json:"type"`
}

type EligibilityModule struct {
	Criteria   string `json:"eligibilityCriteria"`
	Sex        string `json:"sex"`
	MinimumAge string `json:"minimumAge"`
	MaximumAge string `json:"maximumAge"`
}

type OutcomesModule struct {
	Primary   []Outcome `json:"primaryOutcomes"`
	Secondary []Outcome `json:"secondaryOutcomes"`
	Other     []Outcome `json:"otherOutcomes"`
}

type Outcome struct {
	Measure   string `json:"measure"`
	TimeFrame string `json:"timeFrame"`
}

type DocumentSection struct {
	LargeDocuments LargeDocumentModule `json:"largeDocumentModule"`
}

type LargeDocumentModule struct {
	Documents []LargeDocument `json:"largeDocs"`
}

type LargeDocument struct {
	TypeAbbrev  string `json:"typeAbbrev"`
	HasProtocol bool   `json:"hasProtocol"`
	HasSAP      bool   `json:"hasSap"`
	HasICF      bool   `json:"hasIcf"`
	Filename    string `json:"filename"`
}

// NCTID returns the upper-cased registry identifier.
func (s Study) NCTID() string {
	return strings.ToUpper(strings.TrimSpace(s.ProtocolSection.Identification.NCTID))
}

// Title prefers the brief title.
func (s Study) Title() string {
	id := s.ProtocolSection.Identification
	if id.BriefTitle != "" {
		return id.BriefTitle
	}
	return id.OfficialTitle
}

// Phase folds the phase list into one key.
func (s Study) Phase() protocol.Phase {
	return protocol.PhaseFromList(s.ProtocolSection.Design.Phases)
}

// Randomized reports a randomized allocation.
func (s Study) Randomized() bool {
	return strings.EqualFold(s.ProtocolSection.Design.DesignInfo.Allocation, "RANDOMIZED")
}

// Masked reports any masking other than open label.
func (s Study) Masked() bool {
	m := strings.ToUpper(strings.TrimSpace(s.ProtocolSection.Design.DesignInfo.MaskingInfo.Masking))
	return m != "" && m != "NONE"
}

// HasProtocolDocument reports whether a full protocol PDF is attached.
func (s Study) HasProtocolDocument() bool {
	for _, d := range s.DocumentSection.LargeDocuments.Documents {
		if d.HasProtocol || strings.HasPrefix(strings.ToUpper(d.TypeAbbrev), "PROT") {
			return true
		}
	}
	return false
}

// Text renders the registry fields as a protocol-like document so the text
// extractor can run over it.
func (s Study) Text() string {
	ps := s.ProtocolSection
	var b strings.Builder
	line := func(parts ...string) {
		for _, p := range parts {
			b.WriteString(p)
		}
		b.WriteByte('\n')
	}

	line(s.Title())
	if ps.Identification.OfficialTitle != "" && ps.Identification.OfficialTitle != s.Title() {
		line(ps.Identification.OfficialTitle)
	}
	for _, p := range ps.Design.Phases {
		line("Phase: ", strings.ReplaceAll(p, "PHASE", "Phase "))
	}
	if ps.Design.Enrollment.Count > 0 {
		line("Enrollment: ", strconv.Itoa(ps.Design.Enrollment.Count), " participants")
	}
	if len(ps.Conditions.Conditions) > 0 {
		line("Conditions: ", strings.Join(ps.Conditions.Conditions, ", "))
	}
	if len(ps.Conditions.Keywords) > 0 {
		line("Keywords: ", strings.Join(ps.Conditions.Keywords, ", "))
	}
	if s.Randomized() {
		line("Allocation: randomized")
	}
	if s.Masked() {
		line("Masking: ", strings.ToLower(ps.Design.DesignInfo.MaskingInfo.Masking), " blind")
	}
	if ps.Description.BriefSummary != "" {
		line()
		line(ps.Description.BriefSummary)
	}
	if ps.Description.DetailedDescription != "" {
		line()
		line(ps.Description.DetailedDescription)
	}
	if ps.Eligibility.Criteria != "" {
		line()
		line(ps.Eligibility.Criteria)
	}
	writeOutcomes := func(header string, outs []Outcome) {
		if len(outs) == 0 {
			return
		}
		line()
		line(header)
		for i, o := range outs {
			line(strconv.Itoa(i+1), ". ", o.Measure)
		}
	}
	writeOutcomes("Primary Outcome Measures:", ps.Outcomes.Primary)
	writeOutcomes("Secondary Outcome Measures:", ps.Outcomes.Secondary)
	writeOutcomes("Other Outcome Measures:", ps.Outcomes.Other)
	return b.String()
}
