package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
)

// TextractProvider extracts text from images using AWS Textract.
// This is the required provider for images; confidence on receipts is
// typically 95%+.
type TextractProvider struct {
	client *textract.Client
	region string
	logger *slog.Logger
}

func NewTextractProvider(ctx context.Context, region string, logger *slog.Logger) (*TextractProvider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	logger.Info("textract provider initialized", "region", region)

	return &TextractProvider{
		client: textract.NewFromConfig(awsCfg),
		region: region,
		logger: logger,
	}, nil
}

func (p *TextractProvider) SupportsFileType(path string) bool {
	return isImage(path)
}

func (p *TextractProvider) ExtractText(ctx context.Context, path string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %w", err)
	}

	if !p.SupportsFileType(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, path)
	}

	// Textract accepts JPEG/PNG only as raw bytes; every image is decoded
	// and re-encoded first (HEIC/HEIF as PNG, all other formats as JPEG).
	imageBytes, err := transcodeForTextract(path)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image for textract: %w", err)
	}

	p.logger.Info("calling textract", "file", path, "size_bytes", len(imageBytes))

	return p.detect(ctx, imageBytes, MethodTextract)
}

// ExtractFromBytes runs Textract on pre-rasterized image bytes. Used for the
// scanned-PDF fallback path, where the caller rasterizes the first page.
func (p *TextractProvider) ExtractFromBytes(ctx context.Context, imageBytes []byte) (*Result, error) {
	return p.detect(ctx, imageBytes, MethodTextractFallback)
}

func (p *TextractProvider) detect(ctx context.Context, imageBytes []byte, method string) (*Result, error) {
	out, err := p.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: imageBytes},
	})
	if err != nil {
		return nil, fmt.Errorf("textract extraction failed: %w", err)
	}

	var (
		textLines     []string
		confidenceSum float64
		confidenceN   int
		boxes         []BoundingBox
	)

	lineNumber := 0
	for _, block := range out.Blocks {
		if block.BlockType != types.BlockTypeLine {
			continue
		}

		line := aws.ToString(block.Text)
		textLines = append(textLines, line)

		confidence := float64(aws.ToFloat32(block.Confidence)) / 100
		if block.Confidence != nil {
			confidenceSum += confidence
			confidenceN++
		}

		// Textract bounding boxes are already page-normalized [0,1].
		if block.Geometry != nil && block.Geometry.BoundingBox != nil {
			bb := block.Geometry.BoundingBox
			boxes = append(boxes, BoundingBox{
				Page:       1,
				LineNumber: lineNumber,
				Text:       line,
				Confidence: confidence,
				Left:       float64(bb.Left),
				Top:        float64(bb.Top),
				Width:      float64(bb.Width),
				Height:     float64(bb.Height),
			})
		}
		lineNumber++
	}

	avgConfidence := 0.95
	if confidenceN > 0 {
		avgConfidence = confidenceSum / float64(confidenceN)
	}

	text := ""
	for i, line := range textLines {
		if i > 0 {
			text += "\n"
		}
		text += line
	}

	p.logger.Info("textract complete",
		"lines", len(textLines),
		"confidence", avgConfidence,
		"bounding_boxes", len(boxes))

	return &Result{
		Text:          text,
		Confidence:    avgConfidence,
		PageCount:     1,
		Method:        method,
		BoundingBoxes: boxes,
	}, nil
}
