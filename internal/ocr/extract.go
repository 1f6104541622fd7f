package ocr

import (
	"regexp"
	"strings"
)

// ExtractedFields is the partial structured record pulled out of OCR text.
// A nil field means "not found", which is different from an empty string:
// absent fields are skipped during comparison instead of counting as
// mismatches.
type ExtractedFields struct {
	Name          *string `json:"name,omitempty"`
	SeatNumber    *string `json:"seatNumber,omitempty"`
	SGPA          *string `json:"sgpa,omitempty"`
	Semester      *string `json:"semester,omitempty"`
	Result        *string `json:"result,omitempty"`
	Institution   *string `json:"institution,omitempty"`
	Course        *string `json:"course,omitempty"`
	CertificateID *string `json:"certificateId,omitempty"`
}

var (
	nameLabelRe       = regexp.MustCompile(`(?i)(?:^|\s)(?:Name|Student'?s Name|Candidate Name)\s*[:\-]?\s*([A-Z][A-Z\s.',]{3,})`)
	nameUppercaseRe   = regexp.MustCompile(`[A-Z]{3,}\s+[A-Z]{3,}`)
	headingKeywordRe  = regexp.MustCompile(`(?i)GRADE CARD|INSTITUTE|INSTITUTION|UNIVERSITY|COLLEGE`)
	nameLabelStripRe  = regexp.MustCompile(`(?i)^(?:NAME|STUDENT'?S NAME|CANDIDATE NAME)\b[:\-]*\s*`)
	nameSymbolRe      = regexp.MustCompile(`[©®™]+`)
	nameTrailingIDRe  = regexp.MustCompile(`(?i)\b(?:SEAT\s*NO\.?|ROLL\s*NO\.?|PRN|ENROLLMENT\s*NO\.?).*$`)
	seatLabelRe       = regexp.MustCompile(`(?i)(?:Seat\s*No\.?|Roll\s*No\.?|Enrollment\s*No\.?|Registration\s*No\.?|PRN)\s*[:\-#]?\s*([A-Za-z0-9/\-]{3,})`)
	sgpaLabelRe       = regexp.MustCompile(`(?i)(?:SGPA|CGPA|GPA|Grade\s*Points)\s*[:\-]?\s*(\d+\.\d{1,2})`)
	semesterLabelRe   = regexp.MustCompile(`(?i)(?:Semester|Sem)\s*[:\-]?\s*([IVXLCDM1-8]+)`)
	resultLabelRe     = regexp.MustCompile(`(?i)Result\s*[:\-]?\s*(PASSED|FAILED|COMPLETED|PASS|FAIL)`)
	certIDLabelRe     = regexp.MustCompile(`(?i)(?:Certificate\s*(?:No|ID)|Serial\s*(?:No|Number))\s*[:\-]?\s*([A-Z0-9\-]+)`)
	instituteOfTechRe = regexp.MustCompile(`(?i)([A-Z][A-Za-z\s.,'\-]*Institute of Technology)`)
	universityRe      = regexp.MustCompile(`(?i)([A-Z][A-Za-z\s.,'\-]*University)`)
	instKeywordRe     = regexp.MustCompile(`(?i)INSTITUTE|INSTITUTION|COLLEGE|UNIVERSITY`)
	instLeadNoiseRe   = regexp.MustCompile(`^(?:[A-Z] ){1,4}`)
	digitRe           = regexp.MustCompile(`\d`)
)

// DefaultKnownInstitutions are exact institution phrases tried before the
// generic "<words> Institute of Technology" / "<words> University" patterns.
// Matching a known phrase lets leading OCR noise be cut at the phrase
// boundary instead of guessed at.
var DefaultKnownInstitutions = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(VIDYALANKAR[ A-Z]*INSTITUTE OF TECHNOLOGY)`),
}

// DefaultNameParticles are tokens that OCR tends to glue onto the preceding
// word inside a student name (BAWEJARAUNAK for BAWEJA RAUNAK). A space is
// inserted before any of these when missing.
var DefaultNameParticles = []string{
	"SINGH", "KAUR", "KUMAR", "KUMARI", "RAO", "RAJ", "ALI", "AHMED",
	"PRASAD", "PRAKASH", "ANAND", "DEVI", "LAL",
	"RAUNAK", "JASPREET", "MOHAMMED", "MOHAMMAD", "AHMAD",
}

// extractRule is one step of a field's cascade: given the normalized text and
// the raw (line-preserving) text, it either yields a value or passes.
type extractRule func(normalized, raw string) (string, bool)

// Extractor holds the pattern tables used to pull structured fields out of
// noisy OCR text. The institution and name-particle tables are plain fields
// so tests can substitute them.
type Extractor struct {
	KnownInstitutions []*regexp.Regexp
	NameParticles     []string

	particleRes []*regexp.Regexp
}

func NewExtractor() *Extractor {
	e := &Extractor{
		KnownInstitutions: DefaultKnownInstitutions,
		NameParticles:     DefaultNameParticles,
	}
	e.compileParticles()
	return e
}

func (e *Extractor) compileParticles() {
	e.particleRes = e.particleRes[:0]
	for _, p := range e.NameParticles {
		e.particleRes = append(e.particleRes, regexp.MustCompile(`([^\s])(`+p+`)\b`))
	}
}

// Extract runs the per-field rule cascades over the text and returns whatever
// subset of fields was found. It never fails; a submission with neither seat
// number nor certificate ID is rejected by the caller, not here.
func (e *Extractor) Extract(text string) ExtractedFields {
	normalized := Normalize(text)

	var out ExtractedFields
	out.Name = e.runCascade(e.nameRules(), normalized, text)
	out.SeatNumber = e.runCascade(e.seatNumberRules(), normalized, text)
	out.SGPA = e.runCascade(e.sgpaRules(), normalized, text)
	out.Semester = e.runCascade(e.semesterRules(), normalized, text)
	out.Result = e.runCascade(e.resultRules(), normalized, text)
	out.Institution = e.runCascade(e.institutionRules(), normalized, text)
	// Course/branch extraction stays off: branch strings on grade cards are
	// too noisy to capture without polluting the comparison stage.
	out.Course = nil
	out.CertificateID = e.runCascade(e.certificateIDRules(), normalized, text)
	return out
}

func (e *Extractor) runCascade(rules []extractRule, normalized, raw string) *string {
	for _, rule := range rules {
		if v, ok := rule(normalized, raw); ok {
			return &v
		}
	}
	return nil
}

func (e *Extractor) nameRules() []extractRule {
	return []extractRule{
		// Label-anchored capture.
		func(normalized, _ string) (string, bool) {
			m := nameLabelRe.FindStringSubmatch(normalized)
			if m == nil {
				return "", false
			}
			name := collapseSpaces(strings.ToUpper(strings.TrimSpace(m[1])))
			return e.cleanName(name), true
		},
		// Fallback: a line of long uppercase tokens that is not a heading.
		func(_, raw string) (string, bool) {
			for _, line := range splitLines(raw) {
				if nameUppercaseRe.MatchString(line) && !headingKeywordRe.MatchString(line) {
					name := collapseSpaces(strings.ToUpper(line))
					return e.cleanName(name), true
				}
			}
			return "", false
		},
	}
}

// cleanName strips residual label fragments, stray symbols and any trailing
// seat/roll segment the capture swallowed, then re-inserts spaces before name
// particles that OCR merged into the preceding word.
func (e *Extractor) cleanName(name string) string {
	cleaned := nameLabelStripRe.ReplaceAllString(name, "")
	cleaned = nameSymbolRe.ReplaceAllString(cleaned, "")
	cleaned = nameTrailingIDRe.ReplaceAllString(cleaned, "")
	for _, re := range e.particleRes {
		cleaned = re.ReplaceAllString(cleaned, "$1 $2")
	}
	return strings.TrimSpace(collapseSpaces(cleaned))
}

func (e *Extractor) seatNumberRules() []extractRule {
	return []extractRule{
		// Only a label-anchored capture is accepted; a free-floating
		// alphanumeric fallback would pick up subject codes like OEC11.
		func(normalized, _ string) (string, bool) {
			m := seatLabelRe.FindStringSubmatch(normalized)
			if m == nil {
				return "", false
			}
			value := strings.TrimSpace(m[1])
			digits := len(digitRe.FindAllString(value, -1))
			ratio := float64(digits) / float64(len(value))
			if ratio >= 0.5 || digits > 0 {
				return strings.ToUpper(value), true
			}
			return "", false
		},
	}
}

func (e *Extractor) sgpaRules() []extractRule {
	return []extractRule{
		func(normalized, _ string) (string, bool) {
			m := sgpaLabelRe.FindStringSubmatch(normalized)
			if m == nil {
				return "", false
			}
			return m[1], true
		},
	}
}

func (e *Extractor) semesterRules() []extractRule {
	return []extractRule{
		func(normalized, _ string) (string, bool) {
			m := semesterLabelRe.FindStringSubmatch(normalized)
			if m == nil {
				return "", false
			}
			return m[1], true
		},
	}
}

func (e *Extractor) resultRules() []extractRule {
	return []extractRule{
		func(normalized, _ string) (string, bool) {
			m := resultLabelRe.FindStringSubmatch(normalized)
			if m == nil {
				return "", false
			}
			return strings.ToUpper(m[1]), true
		},
	}
}

func (e *Extractor) institutionRules() []extractRule {
	return []extractRule{
		// Exact known-institution phrases first.
		func(_, raw string) (string, bool) {
			for _, re := range e.KnownInstitutions {
				if m := re.FindStringSubmatch(raw); m != nil {
					return cleanInstitution(m[1]), true
				}
			}
			return "", false
		},
		// Generic "<words> Institute of Technology" / "<words> University".
		func(_, raw string) (string, bool) {
			if m := instituteOfTechRe.FindStringSubmatch(raw); m != nil {
				return cleanInstitution(m[1]), true
			}
			if m := universityRe.FindStringSubmatch(raw); m != nil {
				return cleanInstitution(m[1]), true
			}
			return "", false
		},
		// Any prominent header line mentioning an institution keyword.
		func(_, raw string) (string, bool) {
			for _, line := range splitLines(raw) {
				if instKeywordRe.MatchString(line) && len(line) > 10 {
					return cleanInstitution(line), true
				}
			}
			return "", false
		},
	}
}

// cleanInstitution upper-cases and strips the leading single-letter noise
// tokens ("Y Y VIDYALANKAR ...") that OCR produces from logos and borders.
func cleanInstitution(s string) string {
	inst := strings.ToUpper(strings.TrimSpace(s))
	inst = instLeadNoiseRe.ReplaceAllString(inst, "")
	return strings.TrimSpace(collapseSpaces(inst))
}

func (e *Extractor) certificateIDRules() []extractRule {
	return []extractRule{
		func(normalized, _ string) (string, bool) {
			m := certIDLabelRe.FindStringSubmatch(normalized)
			if m == nil {
				return "", false
			}
			return strings.ToUpper(strings.TrimSpace(m[1])), true
		},
	}
}

func splitLines(text string) []string {
	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return lines
}

func collapseSpaces(s string) string {
	return whitespaceRe.ReplaceAllString(s, " ")
}
