package verify

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"certverify/internal/models"
	"certverify/internal/ocr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	certs    map[string]*models.Certificate
	byCert   map[uint]*models.StudentRecord
	byRoll   map[string]*models.StudentRecord
	attempts []*models.VerificationLog

	certErr   error
	rollErr   error
	countErr  error
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		certs:  map[string]*models.Certificate{},
		byCert: map[uint]*models.StudentRecord{},
		byRoll: map[string]*models.StudentRecord{},
	}
}

func (f *fakeStore) CertificateByCode(_ context.Context, code string) (*models.Certificate, error) {
	if f.certErr != nil {
		return nil, f.certErr
	}
	return f.certs[code], nil
}

func (f *fakeStore) RecordByCertificate(_ context.Context, certificateID uint) (*models.StudentRecord, error) {
	return f.byCert[certificateID], nil
}

func (f *fakeStore) RecordByRoll(_ context.Context, roll string) (*models.StudentRecord, error) {
	if f.rollErr != nil {
		return nil, f.rollErr
	}
	return f.byRoll[roll], nil
}

func (f *fakeStore) CountConflictingAttempts(_ context.Context, identifier, imageHash string) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	var n int64
	for _, a := range f.attempts {
		matched := (a.SeatNumber != nil && *a.SeatNumber == identifier) ||
			(a.CertificateCode != nil && *a.CertificateCode == identifier)
		if matched && a.ImageHash != "" && a.ImageHash != imageHash {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) AppendAttempt(_ context.Context, attempt *models.VerificationLog) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.attempts = append(f.attempts, attempt)
	return nil
}

type fakeOCR struct {
	text string
	err  error
}

func (f fakeOCR) Recognize(context.Context, []byte) (string, error) { return f.text, f.err }

type fakeUploader struct {
	lastPath string
}

func (f *fakeUploader) Upload(_ context.Context, _ []byte, path string) (string, error) {
	f.lastPath = path
	return "https://files.test/" + path, nil
}

func testPNG(t *testing.T, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: seed, G: uint8(x * 50), B: uint8(y * 50), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

const cleanGradeCard = `VIDYALANKAR INSTITUTE OF TECHNOLOGY
GRADE CARD
Name: RAUNAK SINGH
Seat No: 14120
Semester: IV
SGPA : 8.10
Result: PASS`

func storeWithRaunak() *fakeStore {
	store := newFakeStore()
	store.byRoll["14120"] = &models.StudentRecord{
		ID:         1,
		RollNumber: "14120",
		Name:       "Raunak Singh",
		Department: "Information Technology",
		Division:   "A",
		SGPASem4:   floatPtr(8.10),
	}
	return store
}

func TestVerifyCleanDocument(t *testing.T) {
	store := storeWithRaunak()
	up := &fakeUploader{}
	svc := NewService(store, fakeOCR{text: cleanGradeCard}, up)

	res := svc.Verify(context.Background(), testPNG(t, 10), "card.png", nil)

	assert.Equal(t, StatusVerified, res.VerificationStatus)
	assert.True(t, res.IsDBVerified)
	assert.False(t, res.IsTamperingSuspected)
	assert.Empty(t, res.Mismatches)
	assert.Equal(t, "All extracted details perfectly match the official database record.", res.Notes)
	assert.Len(t, res.ImageHash, 64)
	require.NotNil(t, res.ImageURL)
	assert.Contains(t, *res.ImageURL, "verified/14120_")

	require.Len(t, store.attempts, 1)
	logged := store.attempts[0]
	assert.Equal(t, StatusVerified, logged.Status)
	require.NotNil(t, logged.StudentRecordID)
	assert.Equal(t, uint(1), *logged.StudentRecordID)
	require.NotNil(t, logged.SeatNumber)
	assert.Equal(t, "14120", *logged.SeatNumber)
}

func TestVerifyAlteredSGPA(t *testing.T) {
	store := storeWithRaunak()
	svc := NewService(store, fakeOCR{text: `Name: RAUNAK SINGH
Seat No: 14120
SGPA : 9.80`}, nil)

	res := svc.Verify(context.Background(), testPNG(t, 10), "card.png", nil)

	assert.Equal(t, StatusRejectedMismatch, res.VerificationStatus)
	assert.False(t, res.IsDBVerified)
	require.Len(t, res.Mismatches, 1)
	assert.Equal(t, "SGPA (OCR: 9.80, not found in any semester records)", res.Mismatches[0])
	assert.Equal(t, "Mismatch found in fields: SGPA (OCR: 9.80, not found in any semester records)", res.Notes)
	require.Len(t, store.attempts, 1)
	assert.Equal(t, StatusRejectedMismatch, store.attempts[0].Status)
}

func TestVerifyUnknownSeatNumber(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeOCR{text: "Seat No: 99999"}, nil)

	res := svc.Verify(context.Background(), testPNG(t, 10), "card.png", nil)

	assert.Equal(t, StatusRejectedNotFound, res.VerificationStatus)
	assert.False(t, res.IsDBVerified)
	assert.Equal(t, "No official record found for Roll No: 99999.", res.Notes)
	assert.NotEmpty(t, res.ImageHash)
	require.Len(t, store.attempts, 1)
	assert.Nil(t, store.attempts[0].StudentRecordID)
}

func TestVerifyUnknownCertificateID(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeOCR{text: "Certificate No: CERT9999"}, nil)

	res := svc.Verify(context.Background(), testPNG(t, 10), "card.png", nil)

	assert.Equal(t, StatusRejectedNotFound, res.VerificationStatus)
	assert.Equal(t, "No official record found for Certificate ID: CERT9999.", res.Notes)
}

func TestVerifyCertificateRegistryResolution(t *testing.T) {
	store := newFakeStore()
	store.certs["CERT2024001"] = &models.Certificate{ID: 7, Code: "CERT2024001"}
	store.byCert[7] = &models.StudentRecord{
		ID:       3,
		Name:     "Raunak Singh",
		SGPASem4: floatPtr(8.10),
	}
	svc := NewService(store, fakeOCR{text: "Certificate No: CERT2024001\nName: RAUNAK SINGH"}, nil)

	res := svc.Verify(context.Background(), testPNG(t, 10), "card.png", nil)

	assert.Equal(t, StatusVerified, res.VerificationStatus)
	require.Len(t, store.attempts, 1)
	require.NotNil(t, store.attempts[0].StudentRecordID)
	assert.Equal(t, uint(3), *store.attempts[0].StudentRecordID)
}

func TestVerifyCertificateMissFallsBackToSeat(t *testing.T) {
	store := storeWithRaunak()
	svc := NewService(store, fakeOCR{text: "Certificate No: CERT404\nSeat No: 14120\nName: RAUNAK SINGH"}, nil)

	res := svc.Verify(context.Background(), testPNG(t, 10), "card.png", nil)

	assert.Equal(t, StatusVerified, res.VerificationStatus)
}

func TestVerifyIllegibleDocument(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeOCR{text: "smudged unreadable scribbles"}, nil)

	res := svc.Verify(context.Background(), testPNG(t, 10), "card.png", nil)

	assert.Equal(t, StatusRejectedOCRFailure, res.VerificationStatus)
	assert.Equal(t, "Critical failure: Could not extract Seat Number or Certificate ID from the document.", res.Notes)
	assert.Empty(t, res.ImageHash)
	assert.Nil(t, res.ImageURL)
	// The failed attempt is still logged.
	require.Len(t, store.attempts, 1)
	assert.Equal(t, StatusRejectedOCRFailure, store.attempts[0].Status)
}

func TestVerifyRecognitionErrorDegradesToOCRFailure(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeOCR{err: errors.New("vision unavailable")}, nil)

	res := svc.Verify(context.Background(), testPNG(t, 10), "card.png", nil)

	assert.Equal(t, StatusRejectedOCRFailure, res.VerificationStatus)
}

func TestVerifyFallbackParserRescuesIdentifier(t *testing.T) {
	store := storeWithRaunak()
	svc := NewService(store, fakeOCR{text: "text the rule tables cannot parse"}, nil)
	called := false
	svc.SetFallback(func(_ context.Context, text string) (ocr.ExtractedFields, error) {
		called = true
		return ocr.ExtractedFields{SeatNumber: strPtr("14120"), Name: strPtr("Raunak Singh")}, nil
	})

	res := svc.Verify(context.Background(), testPNG(t, 10), "card.png", nil)

	assert.True(t, called)
	assert.Equal(t, StatusVerified, res.VerificationStatus)
}

func TestVerifyFallbackNotConsultedWhenIdentifierPresent(t *testing.T) {
	store := storeWithRaunak()
	svc := NewService(store, fakeOCR{text: "Seat No: 14120"}, nil)
	svc.SetFallback(func(context.Context, string) (ocr.ExtractedFields, error) {
		t.Fatal("fallback must not run when an identifier was extracted")
		return ocr.ExtractedFields{}, nil
	})

	res := svc.Verify(context.Background(), testPNG(t, 10), "card.png", nil)
	assert.Equal(t, StatusVerified, res.VerificationStatus)
}

func TestVerifyAssertedFieldsOverrideExtraction(t *testing.T) {
	store := storeWithRaunak()
	svc := NewService(store, fakeOCR{text: "Name: SOMEBODY ELSE\nSeat No: 14120"}, nil)

	asserted := &ocr.ExtractedFields{Name: strPtr("Raunak Singh")}
	res := svc.Verify(context.Background(), testPNG(t, 10), "card.png", asserted)

	assert.Equal(t, StatusVerified, res.VerificationStatus)
}

func TestVerifyTamperEscalation(t *testing.T) {
	store := storeWithRaunak()
	svc := NewService(store, fakeOCR{text: cleanGradeCard}, nil)
	ctx := context.Background()

	// First submission establishes the fingerprint.
	first := svc.Verify(ctx, testPNG(t, 10), "card.png", nil)
	assert.Equal(t, StatusVerified, first.VerificationStatus)
	assert.False(t, first.IsTamperingSuspected)

	// Same image again: same hash, still no tamper signal.
	second := svc.Verify(ctx, testPNG(t, 10), "card.png", nil)
	assert.False(t, second.IsTamperingSuspected)

	// A different image for the same seat number trips the flag, but the
	// field comparison still decides the verdict.
	third := svc.Verify(ctx, testPNG(t, 200), "card.png", nil)
	assert.True(t, third.IsTamperingSuspected)
	assert.Equal(t, StatusVerified, third.VerificationStatus)

	require.Len(t, store.attempts, 3)
	assert.True(t, store.attempts[2].IsTamperingSuspected)
}

func TestVerifyTamperCheckRunsOnNotFound(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeOCR{text: "Seat No: 55555"}, nil)
	ctx := context.Background()

	first := svc.Verify(ctx, testPNG(t, 10), "card.png", nil)
	assert.Equal(t, StatusRejectedNotFound, first.VerificationStatus)
	assert.False(t, first.IsTamperingSuspected)

	second := svc.Verify(ctx, testPNG(t, 200), "card.png", nil)
	assert.Equal(t, StatusRejectedNotFound, second.VerificationStatus)
	assert.True(t, second.IsTamperingSuspected)
}

func TestVerifyStoreErrorBecomesErrorVerdict(t *testing.T) {
	store := newFakeStore()
	store.rollErr = errors.New("connection refused")
	svc := NewService(store, fakeOCR{text: "Seat No: 14120"}, nil)

	res := svc.Verify(context.Background(), testPNG(t, 10), "card.png", nil)

	assert.Equal(t, StatusErrorDBCheck, res.VerificationStatus)
	assert.Equal(t, "Verification failed: connection refused", res.Notes)
	assert.False(t, res.IsDBVerified)
	require.Len(t, store.attempts, 1)
	assert.Equal(t, StatusErrorDBCheck, store.attempts[0].Status)
}

func TestVerifyUndecodableImageBecomesErrorVerdict(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeOCR{text: "Seat No: 14120"}, nil)

	res := svc.Verify(context.Background(), []byte("definitely not an image"), "card.png", nil)

	assert.Equal(t, StatusErrorDBCheck, res.VerificationStatus)
	assert.Contains(t, res.Notes, "Verification failed: ")
}

func TestVerifyTamperQueryErrorReadsAsNoSignal(t *testing.T) {
	store := storeWithRaunak()
	store.countErr = errors.New("query timeout")
	svc := NewService(store, fakeOCR{text: cleanGradeCard}, nil)

	res := svc.Verify(context.Background(), testPNG(t, 10), "card.png", nil)

	assert.Equal(t, StatusVerified, res.VerificationStatus)
	assert.False(t, res.IsTamperingSuspected)
}

func TestVerifyFailedLogWriteDoesNotMaskVerdict(t *testing.T) {
	store := storeWithRaunak()
	store.appendErr = errors.New("insert failed")
	svc := NewService(store, fakeOCR{text: cleanGradeCard}, nil)

	res := svc.Verify(context.Background(), testPNG(t, 10), "card.png", nil)

	assert.Equal(t, StatusVerified, res.VerificationStatus)
	assert.Empty(t, store.attempts)
}

func TestVerifyStorageUsesCertificateIdentifier(t *testing.T) {
	store := storeWithRaunak()
	up := &fakeUploader{}
	svc := NewService(store, fakeOCR{text: cleanGradeCard + "\nCertificate No: CERT2024001"}, up)

	svc.Verify(context.Background(), testPNG(t, 10), "card.png", nil)

	assert.Contains(t, up.lastPath, "verified/CERT2024001_")
	assert.Contains(t, up.lastPath, ".png")
}
