package models

import "time"

// Institution is the issuing body that owns student records. Rows are created
// through the bulk ingestion endpoint or by data entry; verification only
// reads them.
type Institution struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Certificate is a registry entry keyed by the human-assigned certificate
// code printed on the document (e.g. CERT2024002). It is only an indirection
// step: a submission carrying a certificate code resolves through here to the
// student record.
type Certificate struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Code          string     `gorm:"column:code;uniqueIndex;not null" json:"code"`
	InstitutionID uint       `json:"institution_id"`
	IssuedDate    *time.Time `json:"issued_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// StudentRecord is the authoritative academic record, keyed by the
// institution-scoped roll number. Never mutated by verification.
type StudentRecord struct {
	ID            uint     `gorm:"primaryKey" json:"id"`
	RollNumber    string   `gorm:"index;not null" json:"roll_number"`
	Name          string   `json:"name"`
	Department    string   `json:"department"`
	Division      string   `json:"division"`
	SGPASem1      *float64 `gorm:"column:sgpa_sem1" json:"sgpa_sem1,omitempty"`
	SGPASem2      *float64 `gorm:"column:sgpa_sem2" json:"sgpa_sem2,omitempty"`
	SGPASem3      *float64 `gorm:"column:sgpa_sem3" json:"sgpa_sem3,omitempty"`
	SGPASem4      *float64 `gorm:"column:sgpa_sem4" json:"sgpa_sem4,omitempty"`
	SGPASem5      *float64 `gorm:"column:sgpa_sem5" json:"sgpa_sem5,omitempty"`
	SGPASem6      *float64 `gorm:"column:sgpa_sem6" json:"sgpa_sem6,omitempty"`
	SGPASem7      *float64 `gorm:"column:sgpa_sem7" json:"sgpa_sem7,omitempty"`
	SGPASem8      *float64 `gorm:"column:sgpa_sem8" json:"sgpa_sem8,omitempty"`
	InstitutionID uint     `json:"institution_id"`
	Institution   Institution `gorm:"foreignKey:InstitutionID" json:"institution"`
	CertificateID *uint        `json:"certificate_id,omitempty"`
	Certificate   *Certificate `gorm:"foreignKey:CertificateID" json:"certificate,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// SemesterSGPAs returns all eight per-semester slots; absent semesters are nil.
func (r *StudentRecord) SemesterSGPAs() [8]*float64 {
	return [8]*float64{
		r.SGPASem1, r.SGPASem2, r.SGPASem3, r.SGPASem4,
		r.SGPASem5, r.SGPASem6, r.SGPASem7, r.SGPASem8,
	}
}

// VerificationLog is the append-only record of one verification attempt.
// Exactly one row is written per submission after the verdict is computed;
// rows are never updated or deleted, which is what makes the
// different-fingerprint tamper query meaningful.
type VerificationLog struct {
	ID                   uint    `gorm:"primaryKey" json:"id"`
	Status               string  `gorm:"not null" json:"verification_status"`
	SeatNumber           *string `gorm:"index" json:"seat_number,omitempty"`
	CertificateCode      *string `gorm:"index" json:"certificate_code,omitempty"`
	OCRData              string  `gorm:"type:text" json:"ocr_extracted_data"`
	IsDBVerified         bool    `json:"is_db_verified"`
	IsTamperingSuspected bool    `json:"is_tampering_suspected"`
	Notes                string  `gorm:"type:text" json:"notes"`
	Mismatches           string  `gorm:"type:text" json:"mismatches"`
	ImageHash            string  `gorm:"index" json:"image_hash"`
	ImageURL             *string `json:"image_url,omitempty"`
	StudentRecordID      *uint   `json:"student_record_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}
