package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"certverify/internal/ocr"
	"certverify/internal/verify"
)

// Verifier is the shared pipeline instance, set once at startup.
var Verifier *verify.Service

// Setup wires the verification service into the handler package.
func Setup(svc *verify.Service) {
	Verifier = svc
}

func writeJSONResp(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// VerifyDocument: POST /api/v1/verify-document
// multipart/form-data with file field "certificate" plus optional
// self-reported fields (name, seat_number, certificate_id, ...). Once a file
// is readable the response is always 200 with a single terminal verdict.
func VerifyDocument(w http.ResponseWriter, r *http.Request) {
	// Limit body to 10MB
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSONResp(w, http.StatusBadRequest, map[string]any{"status": "Bad_Request", "message": "failed to parse form or file too large"})
		return
	}

	file, header, err := r.FormFile("certificate")
	if err != nil {
		// Be tolerant about the file field name before giving up.
		if r.MultipartForm != nil && r.MultipartForm.File != nil {
			keys := make([]string, 0, len(r.MultipartForm.File))
			for k := range r.MultipartForm.File {
				keys = append(keys, k)
			}
			fmt.Println("verify: available multipart file fields:", keys)
			alts := []string{"file", "upload", "image", "document", "cert", "certificateFile", "certificate[]", "files[]"}
			for _, a := range alts {
				if f2, h2, err2 := r.FormFile(a); err2 == nil {
					file, header, err = f2, h2, nil
					fmt.Println("verify: using alternative file field:", a)
					break
				}
			}
			if err != nil && len(keys) > 0 {
				if f2, h2, err2 := r.FormFile(keys[0]); err2 == nil {
					file, header, err = f2, h2, nil
					fmt.Println("verify: falling back to first file field:", keys[0])
				}
			}
		}
		if err != nil {
			writeJSONResp(w, http.StatusBadRequest, map[string]any{"status": "Bad_Request", "message": "missing file field 'certificate' (send multipart/form-data with field name 'certificate')"})
			return
		}
	}
	defer file.Close()

	imgBytes, err := io.ReadAll(file)
	if err != nil || len(imgBytes) == 0 {
		writeJSONResp(w, http.StatusBadRequest, map[string]any{"status": "Bad_Request", "message": "failed to read uploaded file"})
		return
	}

	filename := ""
	if header != nil {
		filename = header.Filename
	}

	result := Verifier.Verify(r.Context(), imgBytes, filename, assertedFromForm(r))
	writeJSONResp(w, http.StatusOK, result)
}

// assertedFromForm collects the submitter's self-reported fields. Empty form
// values stay absent so they are never compared.
func assertedFromForm(r *http.Request) *ocr.ExtractedFields {
	get := func(key string) *string {
		v := strings.TrimSpace(r.FormValue(key))
		if v == "" {
			return nil
		}
		return &v
	}

	asserted := &ocr.ExtractedFields{
		Name:          get("name"),
		SeatNumber:    get("seat_number"),
		SGPA:          get("sgpa"),
		Semester:      get("semester"),
		Result:        get("result"),
		Institution:   get("institution"),
		Course:        get("course"),
		CertificateID: get("certificate_id"),
	}
	if *asserted == (ocr.ExtractedFields{}) {
		return nil
	}
	return asserted
}
