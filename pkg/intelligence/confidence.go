package intelligence

import "fmt"

// ScoreInput carries everything the Confidence Scorer needs, per spec §4.6.
// Grounded on original_source/enterprise_confidence.py (NOT the older,
// mismatched-weights confidence_scorer.py — see DESIGN.md).
type ScoreInput struct {
	OCRConfidence      float64 // [0,100]
	LowConfidenceWords int
	Consensus          map[string]ConsensusResult
	Layout             LayoutAnalysis
	Fields             ExtractionFields
	Memory             MemoryMatch
	UserConfirmed      bool
}

const (
	weightOCR       = 0.20
	weightConsensus = 0.30
	weightLayout    = 0.15
	weightBusiness  = 0.20
	weightMemory    = 0.15
)

// Score computes the multi-factor confidence breakdown of spec §4.6.
func Score(in ScoreInput) ConfidenceBreakdown {
	var factors []ConfidenceFactor
	var warnings, suggestions []string

	ocrScore, ocrFactors, ocrWarn := scoreOCR(in.OCRConfidence, in.LowConfidenceWords)
	factors = append(factors, ocrFactors...)
	warnings = append(warnings, ocrWarn...)

	consensusScore, consensusFactors, consensusPenalty := scoreConsensus(in.Consensus)
	factors = append(factors, consensusFactors...)

	layoutScore, layoutFactors := scoreLayout(in.Layout, in.Fields)
	factors = append(factors, layoutFactors...)

	businessScore, businessFactors, businessWarn := scoreBusiness(in.Fields)
	factors = append(factors, businessFactors...)
	warnings = append(warnings, businessWarn...)

	memoryScore, memoryFactors := scoreMemory(in.Memory, in.UserConfirmed)
	factors = append(factors, memoryFactors...)

	base := ocrScore*weightOCR + consensusScore*weightConsensus + layoutScore*weightLayout +
		businessScore*weightBusiness + memoryScore*weightMemory

	base -= consensusPenalty

	boost := 0.0
	if in.UserConfirmed {
		boost += 0.20
		factors = append(factors, ConfidenceFactor{Name: "user_confirmed", Category: "boost", Score: 0.20, Weight: 1, Evidence: "user confirmed this extraction"})
	}
	if in.Memory.Found && in.Memory.Score >= 0.95 {
		boost += 0.10
		factors = append(factors, ConfidenceFactor{Name: "known_pattern", Category: "boost", Score: 0.10, Weight: 1, Evidence: "matches a known document pattern"})
	}
	base += boost

	if base < 0 {
		base = 0
	}
	if base > 1 {
		base = 1
	}

	level := LevelForScore(base)
	if base < 0.60 {
		suggestions = append(suggestions, "Verify the extracted fields manually")
	}
	if in.LowConfidenceWords > 5 {
		suggestions = append(suggestions, "Try re-scanning with better lighting or higher resolution")
	}

	explanation := explainConfidence(in.Fields.DocumentType, base, warnings)

	return ConfidenceBreakdown{
		OverallScore: base,
		Level:        level,
		Factors:      factors,
		Warnings:     warnings,
		Suggestions:  suggestions,
		Explanation:  explanation,
	}
}

func scoreOCR(conf float64, lowConfWords int) (float64, []ConfidenceFactor, []string) {
	base := conf / 100
	var factors []ConfidenceFactor
	var warnings []string
	factors = append(factors, ConfidenceFactor{Name: "ocr_base", Category: "ocr", Score: base, Weight: weightOCR, Evidence: fmt.Sprintf("OCR reported %.0f%% confidence", conf)})
	penalty := 0.0
	switch {
	case lowConfWords > 10:
		penalty = 0.15
		warnings = append(warnings, "Many low-confidence OCR words detected")
	case lowConfWords > 5:
		penalty = 0.08
		warnings = append(warnings, "Some low-confidence OCR words detected")
	}
	if penalty > 0 {
		factors = append(factors, ConfidenceFactor{Name: "ocr_low_confidence_penalty", Category: "ocr", Score: penalty, Weight: weightOCR, IsPenalty: true, Evidence: fmt.Sprintf("%d low-confidence words", lowConfWords)})
		base -= penalty
	}
	if base < 0 {
		base = 0
	}
	return base, factors, warnings
}

func scoreConsensus(consensus map[string]ConsensusResult) (float64, []ConfidenceFactor, float64) {
	if len(consensus) == 0 {
		return 0, nil, 0
	}
	var factors []ConfidenceFactor
	total := 0.0
	weakOrNone := 0
	for _, field := range CriticalFields {
		cr, ok := consensus[field]
		if !ok {
			continue
		}
		var s float64
		switch cr.Level {
		case ConsensusStrong:
			s = 1.0
		case ConsensusModerate:
			s = 0.7
		case ConsensusWeak:
			s = 0.4
			weakOrNone++
		case ConsensusNone:
			s = 0.2
			weakOrNone++
		}
		total += s
		factors = append(factors, ConfidenceFactor{Name: field + "_consensus", Category: "consensus", Score: s, Weight: weightConsensus / float64(len(CriticalFields)), Evidence: fmt.Sprintf("%s consensus level %s", field, cr.Level)})
	}
	avg := total / float64(len(CriticalFields))
	penalty := 0.25 * float64(weakOrNone)
	if penalty > 0.5 {
		penalty = 0.5
	}
	if penalty > 0 {
		factors = append(factors, ConfidenceFactor{Name: "conflicting_values", Category: "consensus", Score: penalty, Weight: weightConsensus, IsPenalty: true, Evidence: "one or more critical fields have weak/no consensus"})
	}
	return avg, factors, penalty
}

func scoreLayout(layout LayoutAnalysis, fields ExtractionFields) (float64, []ConfidenceFactor) {
	score := 0.5
	var factors []ConfidenceFactor
	factors = append(factors, ConfidenceFactor{Name: "layout_base", Category: "layout", Score: 0.5, Weight: weightLayout, Evidence: "baseline layout score"})
	if len(layout.Lines) >= 1 {
		score += 0.25
		factors = append(factors, ConfidenceFactor{Name: "layout_has_lines", Category: "layout", Score: 0.25, Weight: weightLayout, Evidence: "layout analysis produced at least one line"})
	}
	zonesOK := fieldsInExpectedZones(layout, fields)
	if zonesOK {
		score += 0.25
		factors = append(factors, ConfidenceFactor{Name: "layout_expected_zones", Category: "layout", Score: 0.25, Weight: weightLayout, Evidence: "accepted fields landed in expected zones"})
	}
	if score > 1 {
		score = 1
	}
	return score, factors
}

func fieldsInExpectedZones(layout LayoutAnalysis, fields ExtractionFields) bool {
	if len(layout.Lines) == 0 {
		return false
	}
	vendorOK := fields.Vendor == "" || lineTextContains(layout.HeaderLines(), fields.Vendor)
	totalOK := !fields.HasTotal || lineTextContains(layout.FooterLines(), formatAmount(fields.TotalAmount)) || lineTextContains(layout.BodyLines(), formatAmount(fields.TotalAmount))
	dateOK := fields.Date == "" || true // date format is normalized and usually not literally present in header text; treat as satisfied as a softer check.
	return vendorOK && totalOK && dateOK
}

func lineTextContains(lines []LayoutLine, needle string) bool {
	if needle == "" {
		return true
	}
	for _, l := range lines {
		if containsAny(l.Text(), needle) {
			return true
		}
	}
	return false
}

// BodyLines returns the lines assigned to the body zone.
func (a LayoutAnalysis) BodyLines() []LayoutLine { return a.linesInZone(ZoneBody) }

func scoreBusiness(fields ExtractionFields) (float64, []ConfidenceFactor, []string) {
	score := 0.7
	var factors []ConfidenceFactor
	var warnings []string
	factors = append(factors, ConfidenceFactor{Name: "business_base", Category: "business", Score: 0.7, Weight: weightBusiness, Evidence: "baseline business-rule score"})

	apply := func(name string, delta float64, evidence string) {
		score += delta
		factors = append(factors, ConfidenceFactor{Name: name, Category: "business", Score: -delta, Weight: weightBusiness, IsPenalty: true, Evidence: evidence})
		warnings = append(warnings, evidence)
	}

	if fields.HasTotal && fields.TotalAmount <= 0 {
		apply("total_non_positive", -0.2, "Total amount is not positive")
	}
	if fields.HasTotal && fields.TotalAmount > 100000000 {
		apply("total_implausibly_large", -0.1, "Total amount is implausibly large")
	}
	if year, ok := dateYear(fields.Date); ok {
		if year > 2030 {
			apply("date_too_far_future", -0.2, "Document date is far in the future")
		}
		if year < 2010 {
			apply("date_too_old", -0.15, "Document date is unusually old")
		}
	}
	if fields.Vendor != "" && (len(fields.Vendor) < 3 || len(fields.Vendor) > 100) {
		apply("vendor_length_unusual", -0.1, "Vendor name length is unusual")
	}
	if fields.DocumentType == DocReceipt || fields.DocumentType == DocInvoice {
		if fields.Vendor == "" {
			apply("missing_vendor", -0.1, "Vendor field is missing")
		}
		if !fields.HasTotal {
			apply("missing_total", -0.1, "Total amount field is missing")
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, factors, warnings
}

func dateYear(iso string) (int, bool) {
	if len(iso) < 4 {
		return 0, false
	}
	y := atoi(iso[:4])
	if y == 0 {
		return 0, false
	}
	return y, true
}

func scoreMemory(mm MemoryMatch, userConfirmed bool) (float64, []ConfidenceFactor) {
	var score float64
	var evidence string
	switch {
	case userConfirmed:
		score, evidence = 1.0, "document has been user-confirmed"
	case mm.Found && mm.Score >= 0.9:
		score, evidence = 0.9, "strong match to a known document"
	case mm.Found && mm.Score >= 0.6:
		score, evidence = 0.7, "moderate match to a known document"
	default:
		score = 0.5 + 0.2*mm.Score
		evidence = "weak or no match to prior documents"
	}
	return score, []ConfidenceFactor{{Name: "memory_match", Category: "memory", Score: score, Weight: weightMemory, Evidence: evidence}}
}
