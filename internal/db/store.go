package db

import (
	"context"
	"errors"

	"certverify/internal/models"

	"gorm.io/gorm"
)

// Store is the GORM-backed read/append surface the verification pipeline
// uses: registry and student lookups, the conflicting-fingerprint query, and
// the append-only log write. Lookups that find nothing return (nil, nil) —
// a resolution miss is a valid outcome, not an error.
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// CertificateByCode looks up a registry entry by the human-assigned
// certificate code.
func (s *Store) CertificateByCode(ctx context.Context, code string) (*models.Certificate, error) {
	var cert models.Certificate
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&cert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// RecordByCertificate resolves the student record linked to a registry entry.
// Ties break on lowest primary key so repeated lookups are deterministic.
func (s *Store) RecordByCertificate(ctx context.Context, certificateID uint) (*models.StudentRecord, error) {
	return s.firstRecord(ctx, "certificate_id = ?", certificateID)
}

// RecordByRoll looks a student record up directly by roll/seat number.
func (s *Store) RecordByRoll(ctx context.Context, roll string) (*models.StudentRecord, error) {
	return s.firstRecord(ctx, "roll_number = ?", roll)
}

func (s *Store) firstRecord(ctx context.Context, query string, arg any) (*models.StudentRecord, error) {
	var rec models.StudentRecord
	err := s.db.WithContext(ctx).
		Preload("Institution").
		Where(query, arg).
		Order("id ASC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountConflictingAttempts counts prior attempts that carried the same
// identifier (as seat number or certificate code) but a different image
// fingerprint.
func (s *Store) CountConflictingAttempts(ctx context.Context, identifier, imageHash string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.VerificationLog{}).
		Where("(seat_number = ? OR certificate_code = ?) AND image_hash <> ?", identifier, identifier, imageHash).
		Count(&n).Error
	return n, err
}

// AppendAttempt writes one immutable verification log row.
func (s *Store) AppendAttempt(ctx context.Context, attempt *models.VerificationLog) error {
	return s.db.WithContext(ctx).Create(attempt).Error
}
