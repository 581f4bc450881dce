package intelligence

import (
	"fmt"
	"strings"
	"time"
)

// fieldPriorities and fieldDisplayNames implement spec §4.7's priority
// table, grounded on original_source/confirmation_flow.py.
var fieldPriorities = map[string]FieldPriority{
	"total_amount":   PriorityCritical,
	"date":           PriorityHigh,
	"vendor":         PriorityHigh,
	"invoice_number": PriorityHigh,
	"currency":       PriorityMedium,
	"tax_amount":     PriorityMedium,
}

var fieldDisplayNames = map[string]string{
	"total_amount":   "Total Amount",
	"date":           "Document Date",
	"vendor":         "Vendor/Business Name",
	"currency":       "Currency",
	"invoice_number": "Invoice Number",
	"tax_amount":     "Tax Amount",
}

func priorityOf(field string) FieldPriority {
	if p, ok := fieldPriorities[field]; ok {
		return p
	}
	return PriorityMedium
}

func displayNameOf(field string) string {
	if d, ok := fieldDisplayNames[field]; ok {
		return d
	}
	return field
}

// requiredCriticalFields are checked for presence regardless of consensus
// outcome (spec §4.7).
var requiredCriticalFields = []string{"total_amount", "date", "vendor"}

// contextKeywords drive PlanConfirmation's context-excerpt selection, per
// spec §4.7 "chosen by keyword for that field".
var contextKeywords = map[string][]string{
	"total_amount": {"total", "amount", "sum", "pay"},
	"date":         {"date", "dated"},
	"currency":     {"kes", "usd", "eur", "ksh", "$"},
}

// PlanConfirmation decides which fields need user review and builds the
// structured request, per spec §4.7.
func PlanConfirmation(documentID string, fields ExtractionFields, consensus map[string]ConsensusResult, overallConfidence float64, confidenceThreshold float64, rawText string) ConfirmationRequest {
	var requests []FieldConfirmationRequest

	for fieldName, cr := range consensus {
		if req, ok := evaluateField(fieldName, cr, currentValue(fields, fieldName), rawText); ok {
			requests = append(requests, req)
		}
	}

	haveField := func(name string) bool {
		for _, r := range requests {
			if r.FieldName == name {
				return true
			}
		}
		return false
	}

	for _, fieldName := range requiredCriticalFields {
		val, has := currentValueOK(fields, fieldName)
		if !has && !haveField(fieldName) {
			requests = append(requests, FieldConfirmationRequest{
				FieldName: fieldName, DisplayName: displayNameOf(fieldName),
				Reason: ReasonMissingCriticalField, ReasonText: "Could not extract " + fieldName,
				Priority: priorityOf(fieldName), Context: contextFor(fieldName, rawText), AllowCustom: true,
			})
		}
		_ = val
	}

	// Open Question #1 (SPEC_FULL §6): strict "<" so exactly 0.60 does not
	// trigger a LOW_CONFIDENCE request, consistent with MEDIUM's own ≥0.60.
	if overallConfidence < confidenceThreshold && len(requests) == 0 {
		for _, fieldName := range requiredCriticalFields {
			if val, ok := currentValueOK(fields, fieldName); ok {
				requests = append(requests, FieldConfirmationRequest{
					FieldName: fieldName, DisplayName: displayNameOf(fieldName),
					CurrentValue: val, HasCurrent: true,
					Candidates: []ConfirmationCandidate{{Value: val, Source: "extraction", Confidence: overallConfidence, Evidence: "Automatically extracted value"}},
					Reason:     ReasonLowConfidence,
					ReasonText: fmt.Sprintf("Low overall confidence (%.0f%%)", overallConfidence*100),
					Priority:   priorityOf(fieldName), Context: contextFor(fieldName, rawText), AllowCustom: true,
				})
			}
		}
	}

	sortByPriority(requests)

	needsConfirmation := len(requests) > 0
	summary := summarize(requests)

	return ConfirmationRequest{
		NeedsConfirmation: needsConfirmation,
		Fields:            requests,
		DocumentID:        documentID,
		DocumentType:      fields.DocumentType,
		OverallConfidence: overallConfidence,
		Summary:           summary,
		CreatedAt:         time.Now(),
	}
}

func currentValue(fields ExtractionFields, fieldName string) string {
	v, _ := currentValueOK(fields, fieldName)
	return v
}

func currentValueOK(fields ExtractionFields, fieldName string) (string, bool) {
	switch fieldName {
	case "total_amount":
		if fields.HasTotal {
			return formatAmount(fields.TotalAmount), true
		}
		return "", false
	case "date":
		return fields.Date, fields.Date != ""
	case "vendor":
		return fields.Vendor, fields.Vendor != ""
	case "currency":
		return fields.Currency, fields.Currency != ""
	case "invoice_number":
		return fields.InvoiceNumber, fields.InvoiceNumber != ""
	case "tax_amount":
		if fields.HasTax {
			return formatAmount(fields.TaxAmount), true
		}
		return "", false
	default:
		return "", false
	}
}

func evaluateField(fieldName string, cr ConsensusResult, currentVal, rawText string) (FieldConfirmationRequest, bool) {
	if !cr.NeedsConfirmation {
		return FieldConfirmationRequest{}, false
	}
	var candidates []ConfirmationCandidate
	for i, c := range cr.AllCandidates {
		if i >= 5 {
			break
		}
		candidates = append(candidates, ConfirmationCandidate{
			Value: c.Value, Source: fmt.Sprintf("%d detectors", c.Votes),
			Confidence: float64(c.Votes) / maxInt(cr.TotalDetectors, 1),
			Evidence:   fmt.Sprintf("Detected by %d method(s)", c.Votes),
		})
	}
	reason := ReasonConflictingValues
	reasonText := cr.ConfirmationReason
	if reasonText == "" {
		reasonText = "Multiple possible values detected"
	}
	if cr.Level == ConsensusWeak {
		reason = ReasonLowConfidence
		reasonText = fmt.Sprintf("Weak consensus (%d/%d agree)", cr.AgreementCount, cr.TotalDetectors)
	}
	return FieldConfirmationRequest{
		FieldName: fieldName, DisplayName: displayNameOf(fieldName),
		CurrentValue: currentVal, HasCurrent: currentVal != "",
		Candidates: candidates, Reason: reason, ReasonText: reasonText,
		Priority: priorityOf(fieldName), Context: contextFor(fieldName, rawText), AllowCustom: true,
	}, true
}

func maxInt(a, b int) float64 {
	if a > b {
		return float64(a)
	}
	return float64(b)
}

func contextFor(fieldName, rawText string) string {
	lines := strings.Split(rawText, "\n")
	keywords, ok := contextKeywords[fieldName]
	if !ok || len(keywords) == 0 {
		if fieldName == "vendor" {
			return strings.Join(lines[:limit(len(lines), 5)], "\n")
		}
		return strings.Join(lines[:limit(len(lines), 3)], "\n")
	}
	for i, line := range lines {
		if containsAny(line, keywords...) {
			start := i - 1
			if start < 0 {
				start = 0
			}
			end := i + 3
			if end > len(lines) {
				end = len(lines)
			}
			return strings.Join(lines[start:end], "\n")
		}
	}
	return strings.Join(lines[:limit(len(lines), 3)], "\n")
}

func sortByPriority(requests []FieldConfirmationRequest) {
	order := map[FieldPriority]int{PriorityCritical: 0, PriorityHigh: 1, PriorityMedium: 2, PriorityLow: 3}
	for i := 1; i < len(requests); i++ {
		for j := i; j > 0 && order[requests[j].Priority] < order[requests[j-1].Priority]; j-- {
			requests[j], requests[j-1] = requests[j-1], requests[j]
		}
	}
}

func summarize(requests []FieldConfirmationRequest) string {
	if len(requests) == 0 {
		return "All fields extracted with high confidence."
	}
	if len(requests) == 1 {
		return "Please verify: " + requests[0].DisplayName
	}
	names := make([]string, 0, 3)
	for i, r := range requests {
		if i >= 3 {
			break
		}
		names = append(names, r.DisplayName)
	}
	summary := "Please verify: " + strings.Join(names, ", ")
	if len(requests) > 3 {
		summary += fmt.Sprintf(" and %d more", len(requests)-3)
	}
	return summary
}
