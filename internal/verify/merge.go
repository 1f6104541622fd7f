package verify

import "certverify/internal/ocr"

// Merge overlays user-asserted values onto the extracted ones. Precedence is
// field by field: an asserted value always wins over the extracted one, and a
// nil asserted field falls back to whatever extraction found. The inputs are
// not modified.
func Merge(extracted ocr.ExtractedFields, asserted *ocr.ExtractedFields) ocr.ExtractedFields {
	out := extracted
	if asserted == nil {
		return out
	}
	if asserted.Name != nil {
		out.Name = asserted.Name
	}
	if asserted.SeatNumber != nil {
		out.SeatNumber = asserted.SeatNumber
	}
	if asserted.SGPA != nil {
		out.SGPA = asserted.SGPA
	}
	if asserted.Semester != nil {
		out.Semester = asserted.Semester
	}
	if asserted.Result != nil {
		out.Result = asserted.Result
	}
	if asserted.Institution != nil {
		out.Institution = asserted.Institution
	}
	if asserted.Course != nil {
		out.Course = asserted.Course
	}
	if asserted.CertificateID != nil {
		out.CertificateID = asserted.CertificateID
	}
	return out
}
