package feature_extractor

import (
	"regexp"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
)

// ---------------------------------------------------------------------------
// Therapeutic area
// ---------------------------------------------------------------------------

type areaRule struct {
	area protocol.TherapeuticArea
	re   *regexp.Regexp
}

// areaRules are evaluated in order; the first area with any keyword hit wins.
var areaRules = []areaRule{
	{protocol.AreaOncology, regexp.MustCompile(`(?i)\b(?:cancers?|tumou?rs?|carcinomas?|oncolog\w*|lymphomas?|leuka?emias?|melanomas?|sarcomas?|myelomas?|neoplas\w*|metasta\w*|glioblastoma|glioma|malignan\w*)\b`)},
	{protocol.AreaHematology, regexp.MustCompile(`(?i)\b(?:ana?emia|ha?emophilia|sickle[- ]cell|thalassa?emia|thrombocytopenia|ha?ematolog\w*|coagulation|neutropenia|myelodysplastic|von\s+willebrand)\b`)},
	{protocol.AreaCardiology, regexp.MustCompile(`(?i)\b(?:cardi\w*|heart|hypertension|atrial\s+fibrillation|coronary|myocardial|arrhythmi\w*|angina|dyslipid\w*|hypercholesterol\w*)\b`)},
	{protocol.AreaNeurology, regexp.MustCompile(`(?i)\b(?:alzheimer\S*|parkinson\S*|epilep\w*|seizures?|multiple\s+sclerosis|migraines?|strokes?|neuropath\w*|dementia|amyotrophic|huntington\S*|neurolog\w*)\b`)},
	{protocol.AreaPsychiatry, regexp.MustCompile(`(?i)\b(?:depress\w*|schizophreni\w*|bipolar|anxiety|psychiatr\w*|ptsd|adhd|autis\w*|substance\s+use|opioid\s+use|insomnia)\b`)},
	{protocol.AreaEndocrinology, regexp.MustCompile(`(?i)\b(?:diabet\w*|obesity|obese|thyroid\w*|insulin|glyca?emic|hba1c|endocrin\w*|metabolic\s+syndrome|acromegaly|cushing\S*)\b`)},
	{protocol.AreaInfectiousDisease, regexp.MustCompile(`(?i)\b(?:hiv|hepatitis|covid(?:-19)?|sars-cov-2|influenza|infections?|infectious|tuberculosis|malaria|bacterial|viral|vaccines?|sepsis)\b`)},
	{protocol.AreaRespiratory, regexp.MustCompile(`(?i)\b(?:asthma|copd|pulmonary|respiratory|lung\s+function|cystic\s+fibrosis|bronch\w*|pneumon\w*|emphysema)\b`)},
	{protocol.AreaImmunology, regexp.MustCompile(`(?i)\b(?:rheumatoid|lupus|autoimmun\w*|psoriatic\s+arthritis|ankylosing|immunolog\w*|sj[öo]gren\S*|vasculitis|allerg\w*)\b`)},
	{protocol.AreaGastroenterology, regexp.MustCompile(`(?i)\b(?:crohn\S*|colitis|inflammatory\s+bowel|ibd|gastro\w*|irritable\s+bowel|cirrhosis|nash|fatty\s+liver|pancreatitis|celiac|gerd)\b`)},
	{protocol.AreaNephrology, regexp.MustCompile(`(?i)\b(?:kidney|renal|nephr\w*|dialysis|glomerul\w*)\b`)},
	{protocol.AreaDermatology, regexp.MustCompile(`(?i)\b(?:psoriasis|dermatitis|eczema|acne|dermatolog\w*|skin|vitiligo|hidradenitis|urticaria)\b`)},
	{protocol.AreaOphthalmology, regexp.MustCompile(`(?i)\b(?:macular|glaucoma|retin\w*|ophthalm\w*|uveitis|eyes?|cataracts?|visual\s+acuity)\b`)},
}

type keywordAreaClassifier struct{}

func (keywordAreaClassifier) Classify(text string) protocol.TherapeuticArea {
	for _, r := range areaRules {
		if r.re.MatchString(text) {
			return r.area
		}
	}
	return protocol.AreaOther
}

// ---------------------------------------------------------------------------
// Population
// ---------------------------------------------------------------------------

var (
	sexEligible = regexp.MustCompile(`(?i)\bsex(?:es)?(?:\s+eligible(?:\s+for\s+study)?)?\s*:\s*(female|male|all|both)\b`)
	femaleOnly  = regexp.MustCompile(`(?i)\b(?:(?:female|women)\s+only|only\s+(?:female|women)|(?:post|pre|peri)menopausal\s+women|pregnant\s+women|female\s+(?:patients|participants|subjects)\s+only)\b`)
	maleOnly    = regexp.MustCompile(`(?i)\b(?:(?:male|men)\s+only|only\s+(?:male|men)|male\s+(?:patients|participants|subjects)\s+only|men\s+with\s+prostate)\b`)

	veryRare = regexp.MustCompile(`(?i)\b(?:ultra[- ]rare|very\s+rare)\b|prevalence\s+(?:of\s+)?(?:<|less\s+than)\s*1\s*(?:in|/|per)\s*(?:50,?000|100,?000|1,?000,?000)`)
	rare     = regexp.MustCompile(`(?i)\b(?:rare\s+(?:diseases?|disorders?|conditions?|cancers?|tumou?rs?|genetic)|orphan(?:\s+(?:drug|disease|designation))?)\b`)
	uncommon = regexp.MustCompile(`(?i)\b(?:uncommon|less\s+common|low\s+prevalence|infrequent(?:ly)?\s+(?:diagnosed|occurring))\b`)
)

type keywordPopulation struct{}

func (keywordPopulation) Gender(text string) protocol.Gender {
	if m := sexEligible.FindStringSubmatch(text); m != nil {
		switch m[1][0] | 0x20 {
		case 'f':
			return protocol.GenderFemale
		case 'm':
			return protocol.GenderMale
		}
		return protocol.GenderBoth
	}
	switch {
	case femaleOnly.MatchString(text):
		return protocol.GenderFemale
	case maleOnly.MatchString(text):
		return protocol.GenderMale
	}
	return protocol.GenderBoth
}

func (keywordPopulation) Prevalence(text string) protocol.Prevalence {
	switch {
	case veryRare.MatchString(text):
		return protocol.PrevalenceVeryRare
	case rare.MatchString(text):
		return protocol.PrevalenceRare
	case uncommon.MatchString(text):
		return protocol.PrevalenceUncommon
	}
	return protocol.PrevalenceCommon
}

// ---------------------------------------------------------------------------
// Operational requirements
// ---------------------------------------------------------------------------

// Requirements are the boolean eligibility and procedure flags plus the
// number of comorbidity restrictions.
type Requirements struct {
	Geographic     bool
	Biomarker      bool
	PriorTreatment bool
	Invasive       bool
	Inpatient      bool
	Comorbidities  int
}

var (
	geographicRe = regexp.MustCompile(`(?i)\b(?:resid(?:e|es|ents?|ing)\s+(?:in|of|within)|living\s+(?:in|within)|within\s+\d+\s*(?:miles|km|kilometers|kilometres)\s+of|geographic(?:al)?\s+(?:restriction|area|region)|catchment\s+area)\b`)
	biomarkerRe  = regexp.MustCompile(`(?i)\b(?:biomarkers?|mutations?|mutant|genotyp\w*|gene\s+(?:fusion|rearrangement|expression)|her2|egfr|alk|braf|kras|brca[12]?|pd-?l1|msi-?h|companion\s+diagnostic|amplification)\b`)
	priorTxRe    = regexp.MustCompile(`(?i)\b(?:(?:prior|previous)\s+(?:systemic\s+|standard\s+)?(?:treatment|therapy|therapies|regimens?|lines?|chemotherapy)|(?:refractory|resistant|intolerant)\s+to|(?:failed|inadequate\s+response\s+to)\b[^.\n]{0,40}?\b(?:therap\w*|treatments?|regimens?)|treatment[- ]experienced|(?:second|third)[- ]line)\b`)
	invasiveRe   = regexp.MustCompile(`(?i)\b(?:biops(?:y|ies)|lumbar\s+punctures?|bone\s+marrow\s+(?:aspirat\w*|biops\w*)|endoscop\w*|colonoscop\w*|bronchoscop\w*|catheteri[sz]ation|arthroscop\w*|surgical\s+procedures?|intrathecal)\b`)
	inpatientRe  = regexp.MustCompile(`(?i)\b(?:inpatient|hospitali[sz](?:ed|ation)\s+(?:for|during)|overnight\s+stays?|confinement|domiciled|admitted\s+to\s+the\s+(?:clinical\s+)?(?:research\s+)?unit|in[- ]house\s+(?:period|stay))\b`)

	comorbidityTerms = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bhypertension\b`),
		regexp.MustCompile(`(?i)\bdiabet\w*\b`),
		regexp.MustCompile(`(?i)\bheart\s+failure\b`),
		regexp.MustCompile(`(?i)\bmyocardial\s+infarction\b`),
		regexp.MustCompile(`(?i)\b(?:cardiovascular|cardiac)\s+disease\b`),
		regexp.MustCompile(`(?i)\b(?:renal|kidney)\s+(?:impairment|disease|failure|insufficiency)\b`),
		regexp.MustCompile(`(?i)\b(?:hepatic|liver)\s+(?:impairment|disease|failure|insufficiency)\b`),
		regexp.MustCompile(`(?i)\b(?:malignan\w*|cancer)\b`),
		regexp.MustCompile(`(?i)\bhiv\b`),
		regexp.MustCompile(`(?i)\bhepatitis\b`),
		regexp.MustCompile(`(?i)\bstroke\b`),
		regexp.MustCompile(`(?i)\b(?:copd|asthma)\b`),
		regexp.MustCompile(`(?i)\bdepress\w*\b`),
		regexp.MustCompile(`(?i)\b(?:seizure|epilep\w*)\b`),
		regexp.MustCompile(`(?i)\bautoimmun\w*\b`),
		regexp.MustCompile(`(?i)\b(?:active|chronic|systemic)\s+infections?\b`),
		regexp.MustCompile(`(?i)\bpsychiatric\b`),
		regexp.MustCompile(`(?i)\bdementia\b`),
		regexp.MustCompile(`(?i)\bbleeding\s+disorders?\b`),
		regexp.MustCompile(`(?i)\b(?:thyroid|adrenal)\s+(?:disease|disorder|dysfunction)\b`),
		regexp.MustCompile(`(?i)\b(?:pulmonary|lung)\s+disease\b`),
		regexp.MustCompile(`(?i)\bimmunodeficien\w*\b`),
	}
)

type keywordRequirements struct{}

// Requirements scans the whole text for operational flags and the
// exclusion section for comorbidity restrictions.
func (keywordRequirements) Requirements(text string) Requirements {
	r := Requirements{
		Geographic:     geographicRe.MatchString(text),
		Biomarker:      biomarkerRe.MatchString(text),
		PriorTreatment: priorTxRe.MatchString(text),
		Invasive:       invasiveRe.MatchString(text),
		Inpatient:      inpatientRe.MatchString(text),
	}
	if excl, ok := Segment(text, SectionExclusion); ok {
		for _, re := range comorbidityTerms {
			if re.MatchString(excl) {
				r.Comorbidities++
			}
		}
		r.Comorbidities = min(r.Comorbidities, protocol.MaxComorbidities)
	}
	return r
}

// ---------------------------------------------------------------------------
// Competition
// ---------------------------------------------------------------------------

var (
	competitionHigh   = regexp.MustCompile(`(?i)\b(?:highly\s+competitive|competitive\s+(?:landscape|enrol(?:l)?ment|recruitment)|many\s+(?:competing|concurrent)\s+(?:trials|studies)|competing\s+trials?\s*:\s*high)\b`)
	competitionMedium = regexp.MustCompile(`(?i)\b(?:competing\s+(?:trials|studies)|concurrent\s+(?:trials|studies)|competing\s+trials?\s*:\s*medium)\b`)
)

type keywordCompetition struct{}

func (keywordCompetition) Competition(text string) protocol.CompetitionLevel {
	switch {
	case competitionHigh.MatchString(text):
		return protocol.CompetitionHigh
	case competitionMedium.MatchString(text):
		return protocol.CompetitionMedium
	}
	return protocol.CompetitionLow
}
