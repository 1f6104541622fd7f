package verify

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"certverify/internal/models"
	"certverify/internal/ocr"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// nameSimilarityThreshold tolerates a single-character OCR slip on reasonably
// long names.
const nameSimilarityThreshold = 0.9

// sgpaTolerance is the absolute difference under which a submitted SGPA is
// considered equal to a stored semester value.
const sgpaTolerance = 0.01

var (
	fieldSpaceRe    = regexp.MustCompile(`\s+`)
	semesterTokenRe = regexp.MustCompile(`^(?:[ivxlcdm]+|\d+)$`)
	divisionTokenRe = regexp.MustCompile(`^[a-z]$`)
)

func normalizeValue(s string) string {
	return strings.TrimSpace(fieldSpaceRe.ReplaceAllString(strings.ToLower(s), " "))
}

// Compare checks every field present in the combined submission against the
// official record and returns one entry per disagreement. Absent fields are
// never compared. Pure function of its inputs.
//
// Policies:
//   - name: exact after normalization, else Levenshtein similarity >= 0.90
//   - sgpa: within 0.01 of any of the eight stored semester slots; the slot
//     position is deliberately ignored so a forged semester label alone
//     cannot produce a false mismatch
//   - course vs department: either value a substring of the other
//   - semester vs division: skipped entirely when the submitted token looks
//     numeric/Roman and the stored division is a single letter — those are
//     different field types, not a disagreement
func Compare(combined ocr.ExtractedFields, record *models.StudentRecord) []string {
	mismatches := []string{}

	if combined.Name != nil && record.Name != "" {
		ocrName := normalizeValue(*combined.Name)
		dbName := normalizeValue(record.Name)
		if ocrName != dbName {
			similarity := strutil.Similarity(ocrName, dbName, metrics.NewLevenshtein())
			if similarity < nameSimilarityThreshold {
				mismatches = append(mismatches,
					fmt.Sprintf("Name (OCR: '%s', DB: '%s')", *combined.Name, record.Name))
			}
		}
	}

	if combined.SGPA != nil {
		matched := false
		if v, err := strconv.ParseFloat(strings.TrimSpace(*combined.SGPA), 64); err == nil {
			for _, slot := range record.SemesterSGPAs() {
				if slot != nil && math.Abs(v-*slot) <= sgpaTolerance {
					matched = true
					break
				}
			}
		}
		if !matched {
			mismatches = append(mismatches,
				fmt.Sprintf("SGPA (OCR: %s, not found in any semester records)", *combined.SGPA))
		}
	}

	if combined.Course != nil && record.Department != "" {
		ocrCourse := normalizeValue(*combined.Course)
		dbDepartment := normalizeValue(record.Department)
		if !strings.Contains(ocrCourse, dbDepartment) && !strings.Contains(dbDepartment, ocrCourse) {
			mismatches = append(mismatches,
				fmt.Sprintf("Course/Department (OCR: '%s', DB: '%s')", *combined.Course, record.Department))
		}
	}

	if combined.Semester != nil && record.Division != "" {
		ocrSem := normalizeValue(*combined.Semester)
		dbDiv := normalizeValue(record.Division)
		differentKinds := semesterTokenRe.MatchString(ocrSem) && divisionTokenRe.MatchString(dbDiv)
		if !differentKinds && ocrSem != dbDiv {
			mismatches = append(mismatches,
				fmt.Sprintf("Division/Semester (OCR: '%s', DB: '%s')", *combined.Semester, record.Division))
		}
	}

	return mismatches
}
