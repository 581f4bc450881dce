package intelligence

import (
	"errors"
	"path/filepath"
	"testing"
)

type fakePreprocessor struct {
	quality float64
	err     error
}

func (f fakePreprocessor) Preprocess(string) (float64, error) { return f.quality, f.err }

type fakeOCR struct {
	result OCRPassResult
	err    error
}

func (f fakeOCR) Run(string, string) (OCRPassResult, error) { return f.result, f.err }

func newTestEngine(t *testing.T, pre Preprocessor, ocr OCREngine) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MemoryStoragePath = filepath.Join(t.TempDir(), "memory.json")
	return NewEngine(cfg, pre, ocr)
}

func TestProcessHappyPathReachesDone(t *testing.T) {
	ocrResult := OCRPassResult{
		PrimaryText:    "ACME STORE LTD\nDate: 2024-01-15\nItem A 10.00\nItem B 20.00\nTOTAL: 30.00\n",
		BestConfidence: 92,
	}
	engine := newTestEngine(t, fakePreprocessor{quality: 0.9}, fakeOCR{result: ocrResult})

	result := engine.Process("doc-1", "img-1", "", "eng")

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.VisitedStates[len(result.VisitedStates)-1] != StateDone {
		t.Fatalf("expected last visited state to be DONE, got %v", result.VisitedStates)
	}
	if result.DocumentType != DocReceipt {
		t.Fatalf("expected DocReceipt, got %s", result.DocumentType)
	}
	if !result.ExtractedFields.HasTotal || result.ExtractedFields.TotalAmount != 30.00 {
		t.Fatalf("expected total 30.00, got %+v", result.ExtractedFields)
	}
}

func TestProcessPreprocessFailureShortCircuits(t *testing.T) {
	engine := newTestEngine(t, fakePreprocessor{err: errors.New("boom")}, fakeOCR{})

	result := engine.Process("doc-2", "img-2", "", "eng")

	if result.Success {
		t.Fatalf("expected failure result")
	}
	if result.VisitedStates[len(result.VisitedStates)-1] != StateFailed {
		t.Fatalf("expected FAILED as last state, got %v", result.VisitedStates)
	}
	if result.VisitedStates[0] != StatePreprocess {
		t.Fatalf("expected preprocess to be the first attempted state, got %v", result.VisitedStates)
	}
}

func TestProcessEmptyTextShortCircuits(t *testing.T) {
	engine := newTestEngine(t, fakePreprocessor{quality: 0.9}, fakeOCR{result: OCRPassResult{PrimaryText: "   \n\t  "}})

	result := engine.Process("doc-3", "img-3", "", "eng")

	if result.Success {
		t.Fatalf("expected an unsuccessful result for empty OCR text")
	}
	if result.VisitedStates[len(result.VisitedStates)-1] != StateEmptyText {
		t.Fatalf("expected EMPTY_TEXT as last state, got %v", result.VisitedStates)
	}
	if !result.NeedsConfirmation {
		t.Fatalf("expected needs_confirmation=true on empty text")
	}
}

func TestProcessNeverPanicsToCaller(t *testing.T) {
	engine := newTestEngine(t, panicPreprocessor{}, fakeOCR{})

	result := engine.Process("doc-4", "img-4", "", "eng")

	if result.Success {
		t.Fatalf("expected failure result after recovering from a panic")
	}
	if result.VisitedStates[len(result.VisitedStates)-1] != StateFailed {
		t.Fatalf("expected FAILED as last state, got %v", result.VisitedStates)
	}
}

type panicPreprocessor struct{}

func (panicPreprocessor) Preprocess(string) (float64, error) { panic("preprocessor exploded") }

func TestApplyUserCorrectionsMarksVerified(t *testing.T) {
	ocrResult := OCRPassResult{
		PrimaryText:    "ACME STORE LTD\nDate: 2024-01-15\nItem A 10.00\nItem B 20.00\nTOTAL: 30.00\n",
		BestConfidence: 92,
	}
	engine := newTestEngine(t, fakePreprocessor{quality: 0.9}, fakeOCR{result: ocrResult})
	original := engine.Process("doc-5", "img-5", "", "eng")

	updated := engine.ApplyUserCorrections("doc-5", map[string]string{"total_amount": "33.00"}, original)

	if updated.Confidence != 1.0 || updated.ConfidenceLevel != LevelVerified {
		t.Fatalf("expected verified confidence, got %v/%s", updated.Confidence, updated.ConfidenceLevel)
	}
	if updated.NeedsConfirmation {
		t.Fatalf("expected needs_confirmation=false after user correction")
	}
	if !updated.ExtractedFields.HasTotal || updated.ExtractedFields.TotalAmount != 33.00 {
		t.Fatalf("expected corrected total 33.00, got %+v", updated.ExtractedFields)
	}

	reMatch := engine.Process("doc-6", "img-6", "", "eng")
	if !reMatch.MemoryMatch.Found {
		t.Fatalf("expected the corrected document's fingerprint to now be remembered")
	}
}
