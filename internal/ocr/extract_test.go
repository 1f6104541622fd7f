package ocr

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gradeCardText = `VIDYALANKAR INSTITUTE OF TECHNOLOGY
GRADE CARD
Name: RAUNAK SINGH
Seat No: 14120
Semester: IV
SGPA : 8.10
Result: PASS
Certificate No: CERT2024001`

func TestExtractLabeledFields(t *testing.T) {
	fields := NewExtractor().Extract(gradeCardText)

	require.NotNil(t, fields.Name)
	assert.Equal(t, "RAUNAK SINGH", *fields.Name)
	require.NotNil(t, fields.SeatNumber)
	assert.Equal(t, "14120", *fields.SeatNumber)
	require.NotNil(t, fields.Semester)
	assert.Equal(t, "IV", *fields.Semester)
	require.NotNil(t, fields.SGPA)
	assert.Equal(t, "8.10", *fields.SGPA)
	require.NotNil(t, fields.Result)
	assert.Equal(t, "PASS", *fields.Result)
	require.NotNil(t, fields.Institution)
	assert.Equal(t, "VIDYALANKAR INSTITUTE OF TECHNOLOGY", *fields.Institution)
	require.NotNil(t, fields.CertificateID)
	assert.Equal(t, "CERT2024001", *fields.CertificateID)
}

func TestExtractCourseAlwaysAbsent(t *testing.T) {
	fields := NewExtractor().Extract(gradeCardText + "\nCourse: B.E. Information Technology")
	assert.Nil(t, fields.Course)
}

func TestExtractNameFallbackLine(t *testing.T) {
	text := "GRADE CARD\nBAWEJARAUNAK SINGH\nSeat No: 14120"
	fields := NewExtractor().Extract(text)
	require.NotNil(t, fields.Name)
	// Heading lines are skipped and the merged particle gets its space back.
	assert.Equal(t, "BAWEJA RAUNAK SINGH", *fields.Name)
}

func TestExtractNameStripsTrailingSeatSegment(t *testing.T) {
	fields := NewExtractor().Extract("Name: RAUNAK SINGH Seat No. 14120")
	require.NotNil(t, fields.Name)
	assert.Equal(t, "RAUNAK SINGH", *fields.Name)
}

func TestExtractSeatNumberRejectsNonNumericCandidates(t *testing.T) {
	// A captured value with no digit at all is a subject code, not a seat no.
	fields := NewExtractor().Extract("Seat No: OEC-A")
	assert.Nil(t, fields.SeatNumber)

	fields = NewExtractor().Extract("Roll No: A-1412")
	require.NotNil(t, fields.SeatNumber)
	assert.Equal(t, "A-1412", *fields.SeatNumber)
}

func TestExtractSeatNumberHasNoFreeFloatingFallback(t *testing.T) {
	fields := NewExtractor().Extract("random text 14120 without a label")
	assert.Nil(t, fields.SeatNumber)
}

func TestExtractResultVocabulary(t *testing.T) {
	for in, want := range map[string]string{
		"Result: PASS":      "PASS",
		"Result: passed":    "PASSED",
		"RESULT - FAILED":   "FAILED",
		"Result: Completed": "COMPLETED",
	} {
		fields := NewExtractor().Extract(in)
		require.NotNil(t, fields.Result, in)
		assert.Equal(t, want, *fields.Result, in)
	}
	fields := NewExtractor().Extract("Result: WITHHELD")
	assert.Nil(t, fields.Result)
}

func TestExtractInstitutionKnownPhraseCutsLeadingNoise(t *testing.T) {
	fields := NewExtractor().Extract("Y Y VIDYALANKAR INSTITUTE OF TECHNOLOGY\nGRADE CARD")
	require.NotNil(t, fields.Institution)
	assert.Equal(t, "VIDYALANKAR INSTITUTE OF TECHNOLOGY", *fields.Institution)
}

func TestExtractInstitutionGenericUniversityPattern(t *testing.T) {
	fields := NewExtractor().Extract("Shivaji University\nStatement of Marks")
	require.NotNil(t, fields.Institution)
	assert.Equal(t, "SHIVAJI UNIVERSITY", *fields.Institution)
}

func TestExtractInstitutionHeaderLineFallback(t *testing.T) {
	fields := NewExtractor().Extract("Y Y VIDYALANKAR POLYTECHNIC COLLEGE\nsome other text")
	require.NotNil(t, fields.Institution)
	assert.Equal(t, "VIDYALANKAR POLYTECHNIC COLLEGE", *fields.Institution)
}

func TestExtractInstitutionTableIsConfigurable(t *testing.T) {
	e := NewExtractor()
	e.KnownInstitutions = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(ACME[ A-Z]*INSTITUTE OF TECHNOLOGY)`),
	}
	fields := e.Extract("x x ACME INSTITUTE OF TECHNOLOGY\nGRADE CARD")
	require.NotNil(t, fields.Institution)
	assert.Equal(t, "ACME INSTITUTE OF TECHNOLOGY", *fields.Institution)
}

func TestExtractNothingFound(t *testing.T) {
	fields := NewExtractor().Extract("completely unrelated scribbles")
	assert.Equal(t, ExtractedFields{}, fields)
}
