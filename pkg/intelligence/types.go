// Package intelligence implements the post-OCR reasoning pipeline: consensus
// voting over independently-extracted fields, layout-zone cross-checking, a
// persistent learning memory keyed by document fingerprint, multi-factor
// confidence scoring, and a confirmation-request planner.
//
// The package depends on nothing beyond the standard library. It accepts OCR
// output (text plus per-word boxes) and returns a pure extraction result; it
// never touches HTTP, a relational schema, or image bytes.
package intelligence

import "time"

// Zone is a vertical region of a page.
type Zone string

const (
	ZoneHeader Zone = "HEADER"
	ZoneBody   Zone = "BODY"
	ZoneFooter Zone = "FOOTER"
)

// Alignment describes how a line of words sits relative to the page margins.
type Alignment string

const (
	AlignLeft    Alignment = "LEFT"
	AlignCenter  Alignment = "CENTER"
	AlignRight   Alignment = "RIGHT"
	AlignUnknown Alignment = "UNKNOWN"
)

// ConsensusLevel is the outcome of voting over detector results for one field.
type ConsensusLevel string

const (
	ConsensusStrong   ConsensusLevel = "STRONG"
	ConsensusModerate ConsensusLevel = "MODERATE"
	ConsensusWeak     ConsensusLevel = "WEAK"
	ConsensusNone     ConsensusLevel = "NONE"
)

// ConfidenceLevel buckets the overall confidence score.
type ConfidenceLevel string

const (
	LevelVerified  ConfidenceLevel = "VERIFIED"
	LevelHigh      ConfidenceLevel = "HIGH"
	LevelMedium    ConfidenceLevel = "MEDIUM"
	LevelLow       ConfidenceLevel = "LOW"
	LevelVeryLow   ConfidenceLevel = "VERY_LOW"
	LevelUnreliable ConfidenceLevel = "UNRELIABLE"
)

// LevelForScore maps an overall score to its confidence level per spec §3.
func LevelForScore(score float64) ConfidenceLevel {
	switch {
	case score >= 0.95:
		return LevelVerified
	case score >= 0.80:
		return LevelHigh
	case score >= 0.60:
		return LevelMedium
	case score >= 0.40:
		return LevelLow
	case score >= 0.20:
		return LevelVeryLow
	default:
		return LevelUnreliable
	}
}

// LevelForAgreement maps (agreement_count, total_detectors) to a
// ConsensusLevel. It is a pure function per spec §3's invariant.
func LevelForAgreement(agreementCount, totalDetectors int) ConsensusLevel {
	switch {
	case agreementCount >= 3:
		return ConsensusStrong
	case agreementCount == 2:
		return ConsensusModerate
	case agreementCount > 0:
		return ConsensusWeak
	default:
		return ConsensusNone
	}
}

// DocumentType tags the kind of document a text blob represents.
type DocumentType string

const (
	DocReceipt          DocumentType = "receipt"
	DocInvoice          DocumentType = "invoice"
	DocForm             DocumentType = "form"
	DocLetter           DocumentType = "letter"
	DocBirthCertificate DocumentType = "birth_certificate"
	DocNationalID       DocumentType = "national_id"
	DocPassport         DocumentType = "passport"
	DocDrivingLicense   DocumentType = "driving_license"
	DocUnknown          DocumentType = "unknown"
)

// OCRWord is one word emitted by the upstream OCR engine. Immutable once
// constructed.
type OCRWord struct {
	Text       string
	Left       float64
	Top        float64
	Width      float64
	Height     float64
	Confidence float64 // [0,100]
	LineNum    int
	WordNum    int
	BlockNum   int
}

// Right returns the right edge of the word's bounding box.
func (w OCRWord) Right() float64 { return w.Left + w.Width }

// Bottom returns the bottom edge of the word's bounding box.
func (w OCRWord) Bottom() float64 { return w.Top + w.Height }

// VerticalCenter returns the vertical midpoint of the word's bounding box.
func (w OCRWord) VerticalCenter() float64 { return w.Top + w.Height/2 }

// LayoutLine is an ordered sequence of OCRWords sharing a line index.
type LayoutLine struct {
	LineNum      int
	Words        []OCRWord
	Left         float64
	Top          float64
	Right        float64
	Bottom       float64
	Zone         Zone
	Alignment    Alignment
	AvgWordHeight float64
	IsProminent  bool
}

// Text joins the line's words with single spaces, in left-to-right order.
func (l LayoutLine) Text() string {
	out := ""
	for i, w := range l.Words {
		if i > 0 {
			out += " "
		}
		out += w.Text
	}
	return out
}

// TableCell is one cell of a detected table.
type TableCell struct {
	Row, Col int
	Text     string
}

// Table is a heuristically detected grid of aligned lines.
type Table struct {
	Rows    int
	Cols    int
	Cells   []TableCell
	Headers []string
}

// ZoneRange is a vertical interval [Start,End) expressed as a fraction of
// page height, along with the pixel bounds it was resolved to.
type ZoneRange struct {
	StartFrac, EndFrac float64
	StartPx, EndPx     float64
}

// LayoutAnalysis is the full result of grouping OCR words into lines, zones
// and tables.
type LayoutAnalysis struct {
	PageWidth, PageHeight float64
	HeaderZone, BodyZone, FooterZone ZoneRange
	Lines  []LayoutLine
	Tables []Table
}

// HeaderLines returns the lines assigned to the header zone.
func (a LayoutAnalysis) HeaderLines() []LayoutLine { return a.linesInZone(ZoneHeader) }

// FooterLines returns the lines assigned to the footer zone.
func (a LayoutAnalysis) FooterLines() []LayoutLine { return a.linesInZone(ZoneFooter) }

// ProminentLines returns lines flagged as prominent.
func (a LayoutAnalysis) ProminentLines() []LayoutLine {
	var out []LayoutLine
	for _, l := range a.Lines {
		if l.IsProminent {
			out = append(out, l)
		}
	}
	return out
}

func (a LayoutAnalysis) linesInZone(z Zone) []LayoutLine {
	var out []LayoutLine
	for _, l := range a.Lines {
		if l.Zone == z {
			out = append(out, l)
		}
	}
	return out
}

// HeaderText joins all header-zone line texts with newlines.
func (a LayoutAnalysis) HeaderText() string { return joinLineTexts(a.HeaderLines()) }

// FooterText joins all footer-zone line texts with newlines.
func (a LayoutAnalysis) FooterText() string { return joinLineTexts(a.FooterLines()) }

// ProminentText joins all prominent line texts with newlines.
func (a LayoutAnalysis) ProminentText() string { return joinLineTexts(a.ProminentLines()) }

func joinLineTexts(lines []LayoutLine) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l.Text()
	}
	return out
}

// Direction is used by FindTextNearLabel to control the search direction.
type Direction string

const (
	DirRight  Direction = "RIGHT"
	DirBelow  Direction = "BELOW"
	DirBoth   Direction = "BOTH"
)

// DetectorResult is the output of one detector for one field.
type DetectorResult struct {
	DetectorName string
	Value        string
	Confidence   float64 // [0,1]
	Evidence     string
	HasPosition  bool
	Line, Char   int
}

// Candidate is one (value, votes) entry in a ConsensusResult's candidate list.
type Candidate struct {
	Value string
	Votes int
}

// ConsensusResult is the voting outcome for one critical field.
type ConsensusResult struct {
	FieldName           string
	FinalValue          string
	HasFinalValue       bool
	Level               ConsensusLevel
	AgreementCount      int
	TotalDetectors      int
	DetectorResults     []DetectorResult
	AgreeingDetectors   []string
	DissentingDetectors []string
	AllCandidates       []Candidate
	NeedsConfirmation   bool
	ConfirmationReason  string
}

// ExtractionFields is the field-name-to-value bag produced for a document.
// Per spec §9 Design Notes this is a tagged variant keyed by DocumentType;
// unused fields are left at their zero value. ToMap renders only the fields
// that belong to DocumentType; encoding the struct itself with
// encoding/json (as the service layer does) carries every field.
type ExtractionFields struct {
	DocumentType DocumentType
	Currency     string

	// Receipt / invoice / unknown fields.
	Vendor      string
	TotalAmount float64
	HasTotal    bool
	Date        string
	InvoiceNumber string
	TaxAmount   float64
	HasTax      bool

	// Form fields.
	InstitutionName string
	FormTitle       string

	// Letter fields.
	Sender  string
	Subject string

	// Government ID fields.
	FullName         string
	DateOfBirth      string
	PlaceOfBirth     string
	IDNumber         string
	FatherName       string
	MotherName       string
	IssuingAuthority string

	Identifiers map[string]string
}

// ToMap renders the fields relevant to DocumentType into a generic map,
// matching the wire shape named in spec §6.
func (f ExtractionFields) ToMap() map[string]any {
	out := map[string]any{
		"document_type": string(f.DocumentType),
		"currency":       f.Currency,
		"date":           orNil(f.Date),
	}
	switch f.DocumentType {
	case DocReceipt, DocInvoice:
		out["vendor"] = orNil(f.Vendor)
		if f.HasTotal {
			out["total_amount"] = f.TotalAmount
		} else {
			out["total_amount"] = nil
		}
		if f.InvoiceNumber != "" {
			out["invoice_number"] = f.InvoiceNumber
		}
		if f.HasTax {
			out["tax_amount"] = f.TaxAmount
		}
	case DocForm:
		out["institution_name"] = orNil(f.InstitutionName)
		out["form_title"] = orNil(f.FormTitle)
		out["identifiers"] = f.Identifiers
	case DocLetter:
		out["sender"] = orNil(f.Sender)
		out["subject"] = orNil(f.Subject)
	case DocBirthCertificate, DocNationalID, DocPassport, DocDrivingLicense:
		out["full_name"] = orNil(f.FullName)
		out["date_of_birth"] = orNil(f.DateOfBirth)
		out["place_of_birth"] = orNil(f.PlaceOfBirth)
		out["id_number"] = orNil(f.IDNumber)
		out["father_name"] = orNil(f.FatherName)
		out["mother_name"] = orNil(f.MotherName)
		out["issuing_authority"] = orNil(f.IssuingAuthority)
		out["identifiers"] = f.Identifiers
	default:
		out["vendor"] = orNil(f.Vendor)
		if f.HasTotal {
			out["total_amount"] = f.TotalAmount
		} else {
			out["total_amount"] = nil
		}
		out["institution_name"] = orNil(f.InstitutionName)
		out["form_title"] = orNil(f.FormTitle)
		out["identifiers"] = f.Identifiers
		out["sender"] = orNil(f.Sender)
		out["subject"] = orNil(f.Subject)
	}
	return out
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// DocumentFingerprint is a compact signature of a document's layout and
// vocabulary used to find similar past documents.
type DocumentFingerprint struct {
	LineCountBucket    int
	HeaderKeywords     []string
	FooterKeywords     []string
	HasTable           bool
	ApproxWordCount    int
	DocumentType       DocumentType
	VendorName         string
	Currency           string
}

// FieldPosition is the remembered location of a field within a known layout.
type FieldPosition struct {
	FieldName     string
	Zone          Zone
	LinePercentage float64
	Alignment     Alignment
	NearKeywords  []string
}

// UserCorrection records a user's correction to a single field.
type UserCorrection struct {
	FieldName       string
	OriginalValue   string
	CorrectedValue  string
	DocumentType    DocumentType
	VendorName      string
	Timestamp       time.Time
	CorrectionCount int
}

// VendorRule is a vendor-specific extraction hint.
type VendorRule struct {
	VendorName      string
	FieldName       string
	ExtractionHint  string
	ExpectedFormat  string
}

// LearningMemoryEntry is one remembered fingerprint and everything learned
// about documents that share it.
type LearningMemoryEntry struct {
	Fingerprint    DocumentFingerprint
	FingerprintHash string
	FieldPositions []FieldPosition
	Corrections    []UserCorrection
	VendorRules    []VendorRule
	TimesSeen      int
	TimesConfirmed int
	FirstSeen      time.Time
	LastSeen       time.Time
}

// UtilityScore is the pruning key described in spec §3: times_seen plus
// twice times_confirmed.
func (e LearningMemoryEntry) UtilityScore() int {
	return e.TimesSeen + 2*e.TimesConfirmed
}

// MemoryMatch describes the result of looking up a fingerprint in the
// Learning Memory.
type MemoryMatch struct {
	Found       bool
	Score       float64
	Explanation string
	Entry       *LearningMemoryEntry
}

// ConfidenceFactor is one named, weighted contribution to the overall score.
type ConfidenceFactor struct {
	Name       string
	Category   string
	Score      float64
	Weight     float64
	Evidence   string
	IsPenalty  bool
}

// ConfidenceBreakdown is the full, explainable confidence result.
type ConfidenceBreakdown struct {
	OverallScore float64
	Level        ConfidenceLevel
	Factors      []ConfidenceFactor
	Warnings     []string
	Suggestions  []string
	Explanation  string
}

// ConfirmationReason tags why a field needs user review.
type ConfirmationReason string

const (
	ReasonLowConfidence        ConfirmationReason = "low_confidence"
	ReasonConflictingValues    ConfirmationReason = "conflicting_values"
	ReasonMissingCriticalField ConfirmationReason = "missing_critical_field"
	ReasonUnusualValue         ConfirmationReason = "unusual_value"
	ReasonOCRQualityPoor       ConfirmationReason = "ocr_quality_poor"
	ReasonMultipleCandidates   ConfirmationReason = "multiple_candidates"
)

// FieldPriority orders fields for the Confirmation Planner.
type FieldPriority string

const (
	PriorityCritical FieldPriority = "critical"
	PriorityHigh     FieldPriority = "high"
	PriorityMedium   FieldPriority = "medium"
	PriorityLow      FieldPriority = "low"
)

// ConfirmationCandidate is one candidate value offered to the user.
type ConfirmationCandidate struct {
	Value      string
	Source     string
	Confidence float64
	Evidence   string
}

// FieldConfirmationRequest asks the user to confirm or correct one field.
type FieldConfirmationRequest struct {
	FieldName    string
	DisplayName  string
	CurrentValue string
	HasCurrent   bool
	Candidates   []ConfirmationCandidate
	Reason       ConfirmationReason
	ReasonText   string
	Priority     FieldPriority
	Context      string
	AllowCustom  bool
}

// ConfirmationRequest is the complete, document-level confirmation plan.
type ConfirmationRequest struct {
	NeedsConfirmation bool
	Fields            []FieldConfirmationRequest
	DocumentID        string
	DocumentType      DocumentType
	OverallConfidence float64
	Summary           string
	CreatedAt         time.Time
}

// State is one stage of the Orchestrator's state machine (spec §4.8).
type State string

const (
	StatePreprocess       State = "PREPROCESS"
	StateOCR              State = "OCR"
	StateClean            State = "CLEAN"
	StateLayout           State = "LAYOUT"
	StateMemoryLookup     State = "MEMORY_LOOKUP"
	StateConsensusExtract State = "CONSENSUS_EXTRACT"
	StateBuildFields      State = "BUILD_FIELDS"
	StateClassify         State = "CLASSIFY"
	StateScore            State = "SCORE"
	StateConfirmationPlan State = "CONFIRMATION_PLAN"
	StateMemoryUpdate     State = "MEMORY_UPDATE"
	StateDone             State = "DONE"
	StateEmptyText        State = "EMPTY_TEXT"
	StateFailed           State = "FAILED"
)

// Result is the single wire-visible structure the core produces (spec §6).
type Result struct {
	DocumentID   string
	DocumentType DocumentType

	RawText     string
	CleanedText string

	ExtractedFields  ExtractionFields
	ConsensusDetails map[string]ConsensusResult

	Confidence            float64
	ConfidenceLevel       ConfidenceLevel
	ConfidenceExplanation string
	ConfidenceBreakdown   ConfidenceBreakdown

	NeedsConfirmation bool
	Confirmation      *ConfirmationRequest

	MemoryMatch MemoryMatch

	LayoutAnalysis LayoutAnalysis

	Warnings []string
	Suggestions []string
	Notes []string

	PreprocessQuality float64

	VisitedStates []State

	Success bool
	Error   string
}

// OCRPassResult is what the OCR collaborator hands to the orchestrator
// (spec §6): primary text, per-word boxes/confidences, the words the OCR
// engine itself flagged low-confidence, and its own best overall confidence.
type OCRPassResult struct {
	PrimaryText        string
	Words              []OCRWord
	LowConfidenceWords []string
	BestConfidence     float64 // [0,100]
}
