// Package imaging derives content fingerprints from certificate images for
// duplicate and tamper detection.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"math"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Fingerprint reduces the image to its grayscale pixel stream and digests it
// with SHA-256, returned as lowercase hex. The same visual content always
// hashes identically; any pixel-level change produces a different hash. The
// hash is not reversible to the image.
//
// A decode failure is fatal to the submission: without a fingerprint no
// tamper check is possible.
func Fingerprint(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	digest := sha256.New()
	row := make([]byte, bounds.Dx())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma weights.
			gray := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			row[x-bounds.Min.X] = byte(math.Round(gray))
		}
		digest.Write(row)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
