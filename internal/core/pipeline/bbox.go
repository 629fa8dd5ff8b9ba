package pipeline

import (
	"strings"

	"github.com/ThomasMcCrossin/curlys-books/internal/core/ocr"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
)

// matchLineToBoundingBox finds the OCR line box that best matches a parsed
// line description by shared-word count. A match needs at least two common
// words; receipts are full of near-identical short lines and one word is
// not enough signal.
func matchLineToBoundingBox(description string, boxes []ocr.BoundingBox) *receipts.BoundingBox {
	if description == "" || len(boxes) == 0 {
		return nil
	}

	descWords := wordSet(description)

	var best *ocr.BoundingBox
	bestScore := 0

	for i := range boxes {
		score := 0
		for word := range wordSet(boxes[i].Text) {
			if descWords[word] {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = &boxes[i]
		}
	}

	if bestScore < 2 {
		return nil
	}

	return &receipts.BoundingBox{
		Text:       best.Text,
		Confidence: best.Confidence,
		Left:       best.Left,
		Top:        best.Top,
		Width:      best.Width,
		Height:     best.Height,
	}
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = true
	}
	return out
}
