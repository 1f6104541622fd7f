package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"certverify/internal/imaging"
	"certverify/internal/models"
	"certverify/internal/ocr"
)

// Terminal verification statuses. Exactly one per attempt; never revised.
const (
	StatusVerified           = "VERIFIED"
	StatusRejectedMismatch   = "REJECTED_MISMATCH"
	StatusRejectedNotFound   = "REJECTED_NOT_FOUND"
	StatusRejectedOCRFailure = "REJECTED_OCR_FAILURE"
	StatusErrorDBCheck       = "ERROR_DB_CHECK"
)

const verifiedNote = "All extracted details perfectly match the official database record."
const ocrFailureNote = "Critical failure: Could not extract Seat Number or Certificate ID from the document."

// Store is the authoritative data surface the pipeline needs: two read
// lookups, the registry indirection, the conflicting-fingerprint count, and
// the append-only log write.
type Store interface {
	CertificateByCode(ctx context.Context, code string) (*models.Certificate, error)
	RecordByCertificate(ctx context.Context, certificateID uint) (*models.StudentRecord, error)
	RecordByRoll(ctx context.Context, roll string) (*models.StudentRecord, error)
	CountConflictingAttempts(ctx context.Context, identifier, imageHash string) (int64, error)
	AppendAttempt(ctx context.Context, attempt *models.VerificationLog) error
}

// OCRClient is the external recognition capability.
type OCRClient interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Uploader persists the submitted image and returns a public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, path string) (string, error)
}

// FallbackParser is an optional second-chance extractor consulted only when
// the rule cascade finds neither key identifier.
type FallbackParser func(ctx context.Context, text string) (ocr.ExtractedFields, error)

// Result is the caller-facing outcome of one submission. The caller always
// receives a well-formed Result with exactly one status value; no error from
// the post-extraction stages escapes the pipeline.
type Result struct {
	VerificationStatus   string              `json:"verification_status"`
	OCRExtractedData     ocr.ExtractedFields `json:"ocr_extracted_data"`
	IsDBVerified         bool                `json:"is_db_verified"`
	IsTamperingSuspected bool                `json:"is_tampering_suspected"`
	Notes                string              `json:"notes"`
	ImageHash            string              `json:"image_hash,omitempty"`
	ImageURL             *string             `json:"image_url,omitempty"`
	Mismatches           []string            `json:"mismatches"`
}

// Service runs the verification pipeline. Stateless between calls: every
// submission is an independent unit of work and concurrent submissions need
// no coordination beyond what the store provides.
type Service struct {
	store     Store
	ocrClient OCRClient
	uploader  Uploader
	extractor *ocr.Extractor
	fallback  FallbackParser
}

func NewService(store Store, ocrClient OCRClient, uploader Uploader) *Service {
	return &Service{
		store:     store,
		ocrClient: ocrClient,
		uploader:  uploader,
		extractor: ocr.NewExtractor(),
	}
}

// SetFallback installs the optional LLM-assisted extraction fallback.
func (s *Service) SetFallback(p FallbackParser) {
	s.fallback = p
}

// SetExtractor swaps the pattern tables, mainly for tests.
func (s *Service) SetExtractor(e *ocr.Extractor) {
	s.extractor = e
}

// Verify runs one submission through extraction, fingerprinting, resolution,
// comparison, the tamper check and verdict synthesis, in that order, and
// appends exactly one VerificationLog for the terminal verdict.
func (s *Service) Verify(ctx context.Context, image []byte, filename string, asserted *ocr.ExtractedFields) Result {
	// Recognition errors are degraded input, not a distinct terminal state.
	text, err := s.ocrClient.Recognize(ctx, image)
	if err != nil {
		log.Println("ocr recognition failed:", err)
		text = ""
	}

	extracted := s.extractor.Extract(text)
	combined := Merge(extracted, asserted)

	if combined.SeatNumber == nil && combined.CertificateID == nil && s.fallback != nil && strings.TrimSpace(text) != "" {
		if parsed, ferr := s.fallback(ctx, text); ferr == nil {
			combined = Merge(parsed, asserted)
		} else {
			log.Println("fallback extraction failed:", ferr)
		}
	}

	// Without either identifier there is nothing to resolve against:
	// fingerprinting, resolution and the tamper check are all skipped.
	if combined.SeatNumber == nil && combined.CertificateID == nil {
		res := Result{
			VerificationStatus: StatusRejectedOCRFailure,
			OCRExtractedData:   combined,
			Notes:              ocrFailureNote,
			Mismatches:         []string{},
		}
		s.appendAttempt(ctx, &res, combined, nil)
		return res
	}

	imageHash, err := imaging.Fingerprint(image)
	if err != nil {
		return s.errorResult(ctx, combined, "", nil, err)
	}

	// Durable copy is best-effort; verification proceeds without a URL.
	var imageURL *string
	if s.uploader != nil {
		path := fmt.Sprintf("verified/%s_%d%s", storageIdentifier(combined), time.Now().UnixMilli(), filepath.Ext(filename))
		if url, uerr := s.uploader.Upload(ctx, image, path); uerr != nil {
			log.Println("image upload failed:", uerr)
		} else {
			imageURL = &url
		}
	}

	record, err := s.resolve(ctx, combined)
	if err != nil {
		return s.errorResult(ctx, combined, imageHash, imageURL, err)
	}

	if record == nil {
		// The tamper check still runs on not-found: an unregistered
		// identifier resubmitted with a different image is still suspicious.
		tampered := s.checkTampering(ctx, tamperIdentifier(combined), imageHash)
		res := Result{
			VerificationStatus:   StatusRejectedNotFound,
			OCRExtractedData:     combined,
			IsTamperingSuspected: tampered,
			Notes:                notFoundNote(combined),
			ImageHash:            imageHash,
			ImageURL:             imageURL,
			Mismatches:           []string{},
		}
		s.appendAttempt(ctx, &res, combined, nil)
		return res
	}

	mismatches := Compare(combined, record)
	tampered := s.checkTampering(ctx, tamperIdentifier(combined), imageHash)

	res := Result{
		OCRExtractedData:     combined,
		IsTamperingSuspected: tampered,
		ImageHash:            imageHash,
		ImageURL:             imageURL,
		Mismatches:           mismatches,
	}
	if len(mismatches) == 0 {
		res.VerificationStatus = StatusVerified
		res.IsDBVerified = true
		res.Notes = verifiedNote
	} else {
		res.VerificationStatus = StatusRejectedMismatch
		res.Notes = "Mismatch found in fields: " + strings.Join(mismatches, ", ")
	}
	s.appendAttempt(ctx, &res, combined, &record.ID)
	return res
}

// resolve locates zero-or-one student record: certificate registry first,
// then the roll-number fallback. A miss is (nil, nil), not an error.
func (s *Service) resolve(ctx context.Context, combined ocr.ExtractedFields) (*models.StudentRecord, error) {
	if combined.CertificateID != nil {
		cert, err := s.store.CertificateByCode(ctx, *combined.CertificateID)
		if err != nil {
			return nil, err
		}
		if cert != nil {
			return s.store.RecordByCertificate(ctx, cert.ID)
		}
		if combined.SeatNumber == nil {
			return nil, nil
		}
	}
	if combined.SeatNumber != nil {
		return s.store.RecordByRoll(ctx, *combined.SeatNumber)
	}
	return nil, nil
}

// checkTampering reports whether the identifier was previously submitted with
// a different fingerprint. Advisory only: it never rejects on its own (a
// legitimate re-scan produces a different hash too) and query errors read as
// no signal.
func (s *Service) checkTampering(ctx context.Context, identifier, imageHash string) bool {
	if identifier == "" || imageHash == "" {
		return false
	}
	n, err := s.store.CountConflictingAttempts(ctx, identifier, imageHash)
	if err != nil {
		log.Println("tamper check failed:", err)
		return false
	}
	return n > 0
}

// errorResult downgrades any post-extraction failure to the catch-all
// terminal state. The underlying message is preserved in the notes and the
// attempt is still logged, best-effort.
func (s *Service) errorResult(ctx context.Context, combined ocr.ExtractedFields, imageHash string, imageURL *string, err error) Result {
	log.Println("verification failed:", err)
	res := Result{
		VerificationStatus: StatusErrorDBCheck,
		OCRExtractedData:   combined,
		Notes:              fmt.Sprintf("Verification failed: %v", err),
		ImageHash:          imageHash,
		ImageURL:           imageURL,
		Mismatches:         []string{},
	}
	s.appendAttempt(ctx, &res, combined, nil)
	return res
}

// appendAttempt writes the single immutable log row for a terminal verdict.
// Every terminal state logs, including OCR failure and the error state, so
// failure patterns stay auditable. A failed write never masks the verdict.
func (s *Service) appendAttempt(ctx context.Context, res *Result, combined ocr.ExtractedFields, recordID *uint) {
	ocrJSON, _ := json.Marshal(combined)
	mmJSON, _ := json.Marshal(res.Mismatches)
	attempt := &models.VerificationLog{
		Status:               res.VerificationStatus,
		SeatNumber:           combined.SeatNumber,
		CertificateCode:      combined.CertificateID,
		OCRData:              string(ocrJSON),
		IsDBVerified:         res.IsDBVerified,
		IsTamperingSuspected: res.IsTamperingSuspected,
		Notes:                res.Notes,
		Mismatches:           string(mmJSON),
		ImageHash:            res.ImageHash,
		ImageURL:             res.ImageURL,
		StudentRecordID:      recordID,
	}
	if err := s.store.AppendAttempt(ctx, attempt); err != nil {
		log.Println("failed to save verification log:", err)
	}
}

func notFoundNote(combined ocr.ExtractedFields) string {
	if combined.CertificateID != nil {
		return fmt.Sprintf("No official record found for Certificate ID: %s.", *combined.CertificateID)
	}
	return fmt.Sprintf("No official record found for Roll No: %s.", *combined.SeatNumber)
}

// tamperIdentifier prefers the seat number for attempt correlation.
func tamperIdentifier(combined ocr.ExtractedFields) string {
	if combined.SeatNumber != nil {
		return *combined.SeatNumber
	}
	if combined.CertificateID != nil {
		return *combined.CertificateID
	}
	return ""
}

// storageIdentifier names the stored image; the certificate code wins when
// both identifiers are present.
func storageIdentifier(combined ocr.ExtractedFields) string {
	if combined.CertificateID != nil {
		return *combined.CertificateID
	}
	if combined.SeatNumber != nil {
		return *combined.SeatNumber
	}
	return "unknown"
}
