package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img *image.RGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testImage(t *testing.T) *image.RGBA {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 20), B: 128, A: 255})
		}
	}
	return img
}

func TestFingerprintDeterministic(t *testing.T) {
	data := encodePNG(t, testImage(t))

	h1, err := Fingerprint(data)
	require.NoError(t, err)
	h2, err := Fingerprint(data)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.Equal(t, h1, string(bytes.ToLower([]byte(h1))))
}

func TestFingerprintSinglePixelChange(t *testing.T) {
	base := testImage(t)
	h1, err := Fingerprint(encodePNG(t, base))
	require.NoError(t, err)

	base.Set(3, 3, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	h2, err := Fingerprint(encodePNG(t, base))
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestFingerprintDecodeFailure(t *testing.T) {
	_, err := Fingerprint([]byte("not an image at all"))
	require.Error(t, err)
}
