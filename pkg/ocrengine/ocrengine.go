// Package ocrengine wraps Tesseract (via gosseract) as the OCR stage's
// external collaborator (spec §1/§4.8). It returns per-word bounding boxes
// and confidences rather than a single parsed value, so the reasoning core
// in pkg/intelligence can run its own layout, consensus and extraction
// passes over structured words instead of raw text.
//
// Grounded on fardilk-fekeu/pkg/ocr/ocr.go and passes.go's gosseract client
// setup (language, whitelist, page segmentation mode), generalized from "one
// pass tuned to recover a single amount" to "one pass that returns the full
// word layer".
package ocrengine

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"docintel/pkg/intelligence"
)

// defaultWhitelist covers the Latin alphabet, digits and the punctuation
// that shows up on receipts, invoices, forms, letters and ID documents.
const defaultWhitelist = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz.,:()/-+'&@ "

// lowConfidenceThreshold marks a word as low-confidence for the scorer's
// OCR-quality factor (spec §4.6).
const lowConfidenceThreshold = 55.0

// Engine runs Tesseract over a preprocessed image and reports its output as
// structured words.
type Engine struct {
	// Whitelist restricts recognized characters; empty uses defaultWhitelist.
	Whitelist string
	// PageSegMode controls how Tesseract segments the page. Zero uses
	// gosseract's own default (PSM_AUTO).
	PageSegMode gosseract.PageSegMode
}

// NewEngine returns an Engine configured for general document text, as
// opposed to fardilk-fekeu's amount-only whitelist.
func NewEngine() *Engine {
	return &Engine{Whitelist: defaultWhitelist, PageSegMode: gosseract.PSM_AUTO}
}

// Run performs OCR on the image at imageIdentifier and returns the
// intelligence package's OCR pass result.
func (e *Engine) Run(imageIdentifier, lang string) (intelligence.OCRPassResult, error) {
	if lang == "" {
		lang = "eng"
	}
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(lang); err != nil {
		return intelligence.OCRPassResult{}, fmt.Errorf("set language: %w", err)
	}
	whitelist := e.Whitelist
	if whitelist == "" {
		whitelist = defaultWhitelist
	}
	if err := client.SetWhitelist(whitelist); err != nil {
		return intelligence.OCRPassResult{}, fmt.Errorf("set whitelist: %w", err)
	}
	if e.PageSegMode != 0 {
		if err := client.SetPageSegMode(e.PageSegMode); err != nil {
			return intelligence.OCRPassResult{}, fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if err := client.SetImage(imageIdentifier); err != nil {
		return intelligence.OCRPassResult{}, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return intelligence.OCRPassResult{}, fmt.Errorf("recognize text: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Bounding boxes are an enrichment, not a requirement: fall back to
		// box-less words split from the text, one line number per text line,
		// and let the intelligence package simulate positions.
		var textWords []intelligence.OCRWord
		for ln, line := range strings.Split(text, "\n") {
			for _, tok := range strings.Fields(line) {
				textWords = append(textWords, intelligence.OCRWord{Text: tok, LineNum: ln, WordNum: len(textWords)})
			}
		}
		return intelligence.OCRPassResult{PrimaryText: text, Words: textWords, BestConfidence: estimateConfidence(nil)}, nil
	}

	words := make([]intelligence.OCRWord, 0, len(boxes))
	var lowConfidence []string
	lineNum := 0
	lastTop := -1.0
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		top := float64(box.Box.Min.Y)
		if lastTop >= 0 && top-lastTop > 10 {
			lineNum++
		}
		lastTop = top
		ow := intelligence.OCRWord{
			Text:       word,
			Left:       float64(box.Box.Min.X),
			Top:        top,
			Width:      float64(box.Box.Dx()),
			Height:     float64(box.Box.Dy()),
			Confidence: box.Confidence,
			LineNum:    lineNum,
			WordNum:    len(words),
		}
		words = append(words, ow)
		if box.Confidence < lowConfidenceThreshold {
			lowConfidence = append(lowConfidence, word)
		}
	}

	return intelligence.OCRPassResult{
		PrimaryText:        text,
		Words:              words,
		LowConfidenceWords: lowConfidence,
		BestConfidence:     estimateConfidence(words),
	}, nil
}

func estimateConfidence(words []intelligence.OCRWord) float64 {
	if len(words) == 0 {
		return 50
	}
	sum := 0.0
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}
