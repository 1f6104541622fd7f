package ocr

import (
	"context"
	"fmt"

	vision "cloud.google.com/go/vision/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// VisionClient performs text recognition with the Google Cloud Vision API.
type VisionClient struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionClient builds the annotator client. With an empty credentialsFile
// the client falls back to application default credentials.
func NewVisionClient(ctx context.Context, credentialsFile string) (*VisionClient, error) {
	var (
		client *vision.ImageAnnotatorClient
		err    error
	)
	if credentialsFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credentialsFile))
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to init OCR client: %w", err)
	}
	return &VisionClient{client: client}, nil
}

// Recognize returns the full text annotation for the image. No text found is
// an empty string, not an error.
func (v *VisionClient) Recognize(ctx context.Context, image []byte) (string, error) {
	anns, err := v.client.DetectTexts(ctx, &visionpb.Image{Content: image}, nil, 1)
	if err != nil {
		return "", fmt.Errorf("could not extract text from image: %w", err)
	}
	if len(anns) == 0 || anns[0].Description == "" {
		return "", nil
	}
	return anns[0].Description, nil
}

func (v *VisionClient) Close() error {
	return v.client.Close()
}
