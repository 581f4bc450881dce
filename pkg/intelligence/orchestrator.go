package intelligence

import (
	"fmt"
)

// Preprocessor is the named external collaborator for image preprocessing
// (spec §1: "treated as an external collaborator with a named interface
// only"). The core never touches image bytes; it only consumes the
// estimated quality score.
type Preprocessor interface {
	Preprocess(imageIdentifier string) (quality float64, err error)
}

// OCREngine is the named external collaborator for OCR (spec §1/§6). It
// returns primary text, per-word boxes and confidences, the words it
// itself flagged low-confidence, and its own best overall confidence.
type OCREngine interface {
	Run(imageIdentifier, lang string) (OCRPassResult, error)
}

// Config holds the core's configuration, recognized per spec §6. The
// service layer constructs this from environment variables; the core
// package itself never reads the environment (it is a library surface).
type Config struct {
	Language            string
	ConfidenceThreshold float64
	EnableLearning      bool
	MemoryStoragePath   string
	MaxMemoryEntries    int
}

// DefaultConfig returns the spec §6 defaults.
func DefaultConfig() Config {
	return Config{
		Language:            "eng",
		ConfidenceThreshold: 0.60,
		EnableLearning:      true,
		MemoryStoragePath:   "uploads/learning_memory.json",
		MaxMemoryEntries:    MaxMemoryEntries,
	}
}

// Engine is the Orchestrator of spec §4.8: it runs the pipeline stages in
// order, assembles the result, and feeds the fingerprint and accepted
// fields back into the Learning Memory.
type Engine struct {
	cfg          Config
	memory       *Memory
	preprocessor Preprocessor
	ocr          OCREngine
}

// NewEngine constructs an Engine. When cfg.EnableLearning is false, memory
// is neither read nor written (spec §6).
func NewEngine(cfg Config, preprocessor Preprocessor, ocr OCREngine) *Engine {
	e := &Engine{cfg: cfg, preprocessor: preprocessor, ocr: ocr}
	if cfg.EnableLearning {
		e.memory = NewMemory(cfg.MemoryStoragePath, cfg.MaxMemoryEntries)
	}
	return e
}

// Process runs the full pipeline for one document, per spec §4.8. It never
// panics to its caller: every path returns a Result (spec §7).
func (e *Engine) Process(documentID, imageIdentifier string, documentHint DocumentType, lang string) (result Result) {
	visited := []State{}
	defer func() {
		if r := recover(); r != nil {
			result = e.failedResult(documentID, visited, fmt.Sprintf("unexpected failure: %v", r))
		}
	}()

	if lang == "" {
		lang = e.cfg.Language
	}

	visited = append(visited, StatePreprocess)
	quality, err := e.preprocessor.Preprocess(imageIdentifier)
	if err != nil {
		return e.failedResult(documentID, visited, "preprocessing failed: "+err.Error())
	}

	visited = append(visited, StateOCR)
	ocrResult, err := e.ocr.Run(imageIdentifier, lang)
	if err != nil {
		return e.failedResult(documentID, visited, "OCR failed: "+err.Error())
	}

	if trimmedEmpty(ocrResult.PrimaryText) {
		visited = append(visited, StateEmptyText)
		return e.emptyTextResult(documentID, visited)
	}

	visited = append(visited, StateClean)
	cleaning := CleanText(ocrResult.PrimaryText)

	visited = append(visited, StateLayout)
	words := ocrResult.Words
	if !wordsHaveBoxes(words) {
		words = SimulateWordBoxes(words)
	}
	layout := AnalyzeLayout(words)

	docType := DetectDocumentType(cleaning.CleanedText)
	if documentHint != "" && documentHint != DocUnknown {
		docType = documentHint
	}
	currency := DetectCurrency(cleaning.CleanedText)

	var memMatch MemoryMatch
	var fp DocumentFingerprint
	if e.cfg.EnableLearning {
		visited = append(visited, StateMemoryLookup)
		fp = BuildFingerprint(cleaning.CleanedText, docType, "", currency)
		fp.HasTable = len(layout.Tables) > 0
		memMatch = e.memory.FindMatch(fp)
	}

	visited = append(visited, StateConsensusExtract)
	consensus := RunConsensus(cleaning.CleanedText)

	visited = append(visited, StateBuildFields)
	fields := ExtractFields(cleaning.CleanedText, docType, currency, consensus)

	visited = append(visited, StateClassify)
	fields.DocumentType = docType

	if e.cfg.EnableLearning {
		fp.VendorName = fields.Vendor
		fp.DocumentType = docType
	}

	visited = append(visited, StateScore)
	breakdown := Score(ScoreInput{
		OCRConfidence:      ocrResult.BestConfidence,
		LowConfidenceWords: len(ocrResult.LowConfidenceWords),
		Consensus:          consensus,
		Layout:             layout,
		Fields:             fields,
		Memory:             memMatch,
	})
	breakdown.OverallScore += memMatch.ConfidenceBoost()
	if breakdown.OverallScore > 1 {
		breakdown.OverallScore = 1
	}
	breakdown.Level = LevelForScore(breakdown.OverallScore)

	visited = append(visited, StateConfirmationPlan)
	plan := PlanConfirmation(documentID, fields, consensus, breakdown.OverallScore, e.cfg.ConfidenceThreshold, cleaning.CleanedText)

	if e.cfg.EnableLearning {
		visited = append(visited, StateMemoryUpdate)
		positions := derivePositions(fields, layout)
		e.memory.LearnFromDocument(fp, positions, false)
	}

	visited = append(visited, StateDone)

	warnings := append([]string{}, breakdown.Warnings...)
	warnings = append(warnings, SuspiciousValues(cleaning.CleanedText)...)
	if quality < 0.5 {
		warnings = append(warnings, "Image quality was low even after preprocessing")
	}

	return Result{
		DocumentID:   documentID,
		DocumentType: docType,
		RawText:      ocrResult.PrimaryText,
		CleanedText:  cleaning.CleanedText,

		ExtractedFields:  fields,
		ConsensusDetails: consensus,

		Confidence:            breakdown.OverallScore,
		ConfidenceLevel:       breakdown.Level,
		ConfidenceExplanation: breakdown.Explanation,
		ConfidenceBreakdown:   breakdown,

		NeedsConfirmation: plan.NeedsConfirmation,
		Confirmation:      &plan,

		MemoryMatch: memMatch,

		LayoutAnalysis: layout,

		Warnings:    warnings,
		Suggestions: breakdown.Suggestions,
		Notes:       correctionNotes(cleaning.Corrections),

		PreprocessQuality: quality,

		VisitedStates: visited,
		Success:       true,
	}
}

// ApplyUserCorrections applies user-supplied corrections to a prior result,
// records them in the Learning Memory as user-confirmed, and returns a new
// result with level VERIFIED, per spec §6.
func (e *Engine) ApplyUserCorrections(documentID string, corrections map[string]string, original Result) Result {
	updated := original
	updated.ExtractedFields = applyCorrectionsToFields(original.ExtractedFields, corrections)

	if e.cfg.EnableLearning {
		fp := BuildFingerprint(original.CleanedText, updated.ExtractedFields.DocumentType, updated.ExtractedFields.Vendor, updated.ExtractedFields.Currency)
		fp.HasTable = len(original.LayoutAnalysis.Tables) > 0
		for fieldName, newVal := range corrections {
			oldVal := currentValue(original.ExtractedFields, fieldName)
			e.memory.RecordCorrection(fp, fieldName, oldVal, newVal)
		}
		positions := derivePositions(updated.ExtractedFields, original.LayoutAnalysis)
		e.memory.LearnFromDocument(fp, positions, true)
	}

	updated.Confidence = 1.0
	updated.ConfidenceLevel = LevelVerified
	updated.NeedsConfirmation = false
	updated.Confirmation = nil
	updated.Success = true
	updated.VisitedStates = append(append([]State{}, original.VisitedStates...), StateDone)
	return updated
}

func applyCorrectionsToFields(fields ExtractionFields, corrections map[string]string) ExtractionFields {
	out := fields
	for field, value := range corrections {
		switch field {
		case "total_amount":
			if v, ok := parseFloatLenient(value); ok {
				out.TotalAmount = v
				out.HasTotal = true
			}
		case "date":
			out.Date = value
		case "vendor":
			out.Vendor = value
		case "currency":
			out.Currency = value
		case "invoice_number":
			out.InvoiceNumber = value
		case "tax_amount":
			if v, ok := parseFloatLenient(value); ok {
				out.TaxAmount = v
				out.HasTax = true
			}
		}
	}
	return out
}

func derivePositions(fields ExtractionFields, layout LayoutAnalysis) []FieldPosition {
	var positions []FieldPosition
	add := func(name, value string) {
		if value == "" {
			return
		}
		for _, l := range layout.Lines {
			if containsAny(l.Text(), value) {
				pct := 0.0
				if layout.PageHeight > 0 {
					pct = ((l.Top + l.Bottom) / 2) / layout.PageHeight
				}
				positions = append(positions, FieldPosition{FieldName: name, Zone: l.Zone, LinePercentage: clamp01(pct), Alignment: l.Alignment})
				return
			}
		}
	}
	add("vendor", fields.Vendor)
	if fields.HasTotal {
		add("total_amount", formatAmount(fields.TotalAmount))
	}
	add("date", fields.Date)
	return positions
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (e *Engine) failedResult(documentID string, visited []State, message string) Result {
	visited = append(visited, StateFailed)
	return Result{
		DocumentID:      documentID,
		ConfidenceLevel: LevelUnreliable,
		VisitedStates:   visited,
		Success:         false,
		Error:           message,
		Warnings:        []string{message},
	}
}

func (e *Engine) emptyTextResult(documentID string, visited []State) Result {
	return Result{
		DocumentID:            documentID,
		DocumentType:          DocUnknown,
		ConfidenceLevel:       LevelUnreliable,
		ConfidenceExplanation: "No text could be found in the image.",
		NeedsConfirmation:     true,
		VisitedStates:         visited,
		Warnings:              []string{"No text could be extracted"},
		Suggestions:           []string{"Try re-scanning with better lighting or higher resolution"},
		Success:               false,
		Error:                 "No text could be extracted from image",
	}
}

func trimmedEmpty(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\n' && r != '\t' && r != '\r' {
			return false
		}
	}
	return true
}

func wordsHaveBoxes(words []OCRWord) bool {
	for _, w := range words {
		if w.Width > 0 || w.Height > 0 {
			return true
		}
	}
	return len(words) == 0
}

func correctionNotes(corrections []Correction) []string {
	if len(corrections) == 0 {
		return nil
	}
	return []string{fmt.Sprintf("Applied %d text corrections", len(corrections))}
}
