package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"certverify/internal/db"
	"certverify/internal/models"

	"gorm.io/gorm"
)

var studentCSVHeaders = []string{
	"name", "roll_number", "department", "division",
	"sgpa_sem1", "sgpa_sem2", "sgpa_sem3", "sgpa_sem4",
	"sgpa_sem5", "sgpa_sem6", "sgpa_sem7", "sgpa_sem8",
	"certificate_code",
}

// BulkUploadHandler handles CSV bulk upload of authoritative student records
// for one institution. POST /api/v1/institution/bulk-upload with form field
// "institution_id" and CSV file field "recordsCsv".
func BulkUploadHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// 1) Parse multipart with a 50MB limit
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	instID, err := strconv.Atoi(strings.TrimSpace(r.FormValue("institution_id")))
	if err != nil || instID <= 0 {
		http.Error(w, "institution_id is required", http.StatusBadRequest)
		return
	}
	var inst models.Institution
	if err := db.DB.First(&inst, instID).Error; err != nil {
		http.Error(w, "institution not found", http.StatusNotFound)
		return
	}

	// Tolerant file field lookup: prefer "recordsCsv", try alternatives, then
	// fall back to the first file field.
	var file multipart.File
	var header *multipart.FileHeader

	file, header, err = r.FormFile("recordsCsv")
	if err != nil {
		alts := []string{"records", "csv", "file", "upload", "records_file", "recordsCSV", "recordsCsv[]", "files[]"}
		available := []string{}
		if r.MultipartForm != nil && r.MultipartForm.File != nil {
			for k := range r.MultipartForm.File {
				available = append(available, k)
			}
		}
		fmt.Println("bulk-upload: available multipart file fields:", available)

		lookup := func(name string) (multipart.File, *multipart.FileHeader, error) {
			if f, h, e := r.FormFile(name); e == nil {
				return f, h, nil
			}
			lname := strings.ToLower(name)
			for _, k := range available {
				if strings.ToLower(k) == lname {
					return r.FormFile(k)
				}
			}
			return nil, nil, fmt.Errorf("not found")
		}
		for _, a := range alts {
			if f2, h2, e2 := lookup(a); e2 == nil {
				file, header, err = f2, h2, nil
				fmt.Println("bulk-upload: using alternative file field:", a)
				break
			}
		}
		if err != nil && len(available) > 0 {
			k0 := available[0]
			if f2, h2, e2 := r.FormFile(k0); e2 == nil {
				file, header, err = f2, h2, nil
				fmt.Println("bulk-upload: falling back to first file field:", k0)
			}
		}
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":               "recordsCsv file is required",
				"expected_field":      "recordsCsv",
				"available_file_keys": available,
			})
			return
		}
	}
	defer file.Close()

	// 2) CSV reader and header validation
	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // allow variable-length; we'll validate

	headers, err := reader.Read()
	if err != nil {
		http.Error(w, "unable to read CSV header", http.StatusBadRequest)
		return
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
	}
	if !equalStringSlices(headers, studentCSVHeaders) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":    "Invalid CSV format. Please use the provided template.",
			"expected": studentCSVHeaders,
			"got":      headers,
		})
		return
	}

	// 3) Begin transaction
	tx := db.DB.Begin()
	if tx.Error != nil {
		http.Error(w, "could not start transaction", http.StatusInternalServerError)
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
		}
	}()

	// 4) Read and insert rows
	var count int
	var duplicates int
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			tx.Rollback()
			http.Error(w, "failed to read CSV rows", http.StatusBadRequest)
			return
		}
		if len(rec) != len(studentCSVHeaders) {
			tx.Rollback()
			http.Error(w, "row does not match header length", http.StatusBadRequest)
			return
		}

		row := models.StudentRecord{
			Name:          strings.TrimSpace(rec[0]),
			RollNumber:    strings.TrimSpace(rec[1]),
			Department:    strings.TrimSpace(rec[2]),
			Division:      strings.TrimSpace(rec[3]),
			InstitutionID: inst.ID,
		}
		sgpas := [8]**float64{
			&row.SGPASem1, &row.SGPASem2, &row.SGPASem3, &row.SGPASem4,
			&row.SGPASem5, &row.SGPASem6, &row.SGPASem7, &row.SGPASem8,
		}
		for i := 0; i < 8; i++ {
			cell := strings.TrimSpace(rec[4+i])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				tx.Rollback()
				http.Error(w, fmt.Sprintf("invalid sgpa_sem%d", i+1), http.StatusBadRequest)
				return
			}
			*sgpas[i] = &v
		}

		// Duplicate check: same roll_number for this institution
		var dup int64
		if err := tx.Model(&models.StudentRecord{}).
			Where("roll_number = ? AND institution_id = ?", row.RollNumber, inst.ID).
			Count(&dup).Error; err != nil {
			tx.Rollback()
			http.Error(w, "database error during duplicate check", http.StatusInternalServerError)
			return
		}
		if dup > 0 {
			duplicates++
			continue
		}

		// Optional registry linkage: find or create the certificate entry.
		if code := strings.ToUpper(strings.TrimSpace(rec[12])); code != "" {
			var cert models.Certificate
			err := tx.Where("code = ?", code).First(&cert).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				cert = models.Certificate{Code: code, InstitutionID: inst.ID}
				if err := tx.Create(&cert).Error; err != nil {
					tx.Rollback()
					http.Error(w, "failed to create certificate entry", http.StatusInternalServerError)
					return
				}
			} else if err != nil {
				tx.Rollback()
				http.Error(w, "database error during certificate lookup", http.StatusInternalServerError)
				return
			}
			row.CertificateID = &cert.ID
		}

		if err := tx.Create(&row).Error; err != nil {
			tx.Rollback()
			http.Error(w, "failed to insert row", http.StatusInternalServerError)
			return
		}
		count++
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		http.Error(w, "failed to commit transaction", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"message":            fmt.Sprintf("Successfully imported %d records. Skipped %d duplicates.", count, duplicates),
		"inserted":           count,
		"duplicates_skipped": duplicates,
		"file":               header.Filename,
	})
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
