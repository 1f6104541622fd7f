package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/skip2/go-qrcode"

	"certverify/internal/db"
	"certverify/internal/models"
	"certverify/internal/ocr"
)

type shareClaims struct {
	AttemptID string `json:"attempt_id"`
	jwt.RegisteredClaims
}

type generateShareLinkResp struct {
	ShareableURL string `json:"shareable_url"`
}

func getShareSecret() ([]byte, error) {
	if s := os.Getenv("SHARE_TOKEN_SECRET"); s != "" {
		return []byte(s), nil
	}
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s), nil
	}
	return nil, errors.New("missing SHARE_TOKEN_SECRET/JWT_SECRET")
}

// POST /api/v1/attempts/generate-share-link
// Creates a time-boxed signed link to one verification attempt report.
func GenerateShareLink(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Be liberal in what we accept from the frontend
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	attemptID := ""
	switch v := payload["attempt_id"].(type) {
	case string:
		attemptID = strings.TrimSpace(v)
	case float64:
		attemptID = strconv.Itoa(int(v))
	}
	if attemptID == "" {
		if v, ok := payload["attemptId"].(string); ok { // optional camelCase fallback
			attemptID = strings.TrimSpace(v)
		}
	}
	if attemptID == "" {
		http.Error(w, "attempt_id is required", http.StatusBadRequest)
		return
	}

	// expires_in_hours may come as number or string, and snake_case or camelCase
	parseHours := func(x any) (int, bool) {
		switch t := x.(type) {
		case float64:
			return int(t), true
		case json.Number:
			if i, err := strconv.Atoi(t.String()); err == nil {
				return i, true
			}
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
				return i, true
			}
		}
		return 0, false
	}
	expires := 0
	if v, ok := payload["expires_in_hours"]; ok {
		if i, ok2 := parseHours(v); ok2 {
			expires = i
		}
	} else if v, ok := payload["expiresInHours"]; ok {
		if i, ok2 := parseHours(v); ok2 {
			expires = i
		}
	}
	// Enforce 1..168 hours to avoid immediately-expired tokens
	if expires < 1 || expires > 168 {
		http.Error(w, "expires_in_hours must be between 1 and 168", http.StatusBadRequest)
		return
	}

	var attempt models.VerificationLog
	if err := db.DB.Where("id = ?", attemptID).First(&attempt).Error; err != nil {
		http.Error(w, "attempt not found", http.StatusNotFound)
		return
	}

	secret, err := getShareSecret()
	if err != nil {
		http.Error(w, "server misconfigured", http.StatusInternalServerError)
		return
	}

	exp := time.Now().Add(time.Duration(expires) * time.Hour)
	claims := shareClaims{
		AttemptID: attemptID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(secret)
	if err != nil {
		http.Error(w, "failed to sign share token", http.StatusInternalServerError)
		return
	}

	url := fmt.Sprintf("%s/attempts/%s?token=%s", frontendBaseURL(), attemptID, signed)
	_ = json.NewEncoder(w).Encode(generateShareLinkResp{ShareableURL: url})
}

// GET /api/v1/attempts/{id}?token=...
func AttemptReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "This verification link is invalid or has expired.", http.StatusUnauthorized)
		return
	}

	secret, err := getShareSecret()
	if err != nil {
		http.Error(w, "server misconfigured", http.StatusInternalServerError)
		return
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &shareClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		http.Error(w, "This verification link is invalid or has expired.", http.StatusUnauthorized)
		return
	}
	claims, ok := parsed.Claims.(*shareClaims)
	if !ok || claims.AttemptID == "" || claims.ExpiresAt == nil || time.Now().After(claims.ExpiresAt.Time) {
		http.Error(w, "This verification link is invalid or has expired.", http.StatusUnauthorized)
		return
	}
	if claims.AttemptID != id {
		http.Error(w, "forbidden: id mismatch", http.StatusForbidden)
		return
	}

	var attempt models.VerificationLog
	if err := db.DB.Where("id = ?", id).First(&attempt).Error; err != nil {
		http.Error(w, "attempt not found", http.StatusNotFound)
		return
	}

	var extracted ocr.ExtractedFields
	_ = json.Unmarshal([]byte(attempt.OCRData), &extracted)
	mismatches := []string{}
	_ = json.Unmarshal([]byte(attempt.Mismatches), &mismatches)

	_ = json.NewEncoder(w).Encode(map[string]any{
		"attempt":     attempt,
		"extracted":   extracted,
		"mismatches":  mismatches,
		"valid_until": claims.ExpiresAt.Time,
	})
}

// GET /api/v1/attempts/{id}/qrcode
// Serves a QR code PNG pointing at the attempt report page.
func AttemptQRCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	data := fmt.Sprintf("%s/attempts/%s", frontendBaseURL(), id)
	png, err := qrcode.Encode(data, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "Failed to generate QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func frontendBaseURL() string {
	base := os.Getenv("FRONTEND_BASE_URL")
	if base == "" {
		base = "http://localhost:3000"
	}
	return strings.TrimRight(base, "/")
}
