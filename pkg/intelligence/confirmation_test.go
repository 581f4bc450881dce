package intelligence

import "testing"

func TestPlanConfirmationFlagsMissingCriticalFields(t *testing.T) {
	req := PlanConfirmation("doc-1", ExtractionFields{}, map[string]ConsensusResult{}, 0.9, 0.6, "irrelevant text")

	if !req.NeedsConfirmation {
		t.Fatalf("expected confirmation to be needed when every critical field is missing")
	}
	if len(req.Fields) != 3 {
		t.Fatalf("expected 3 missing-field requests, got %d: %+v", len(req.Fields), req.Fields)
	}
	if req.Fields[0].FieldName != "total_amount" || req.Fields[0].Priority != PriorityCritical {
		t.Fatalf("expected total_amount first with critical priority, got %+v", req.Fields[0])
	}
	for _, f := range req.Fields {
		if f.Reason != ReasonMissingCriticalField {
			t.Fatalf("expected missing_critical_field reason for %s, got %s", f.FieldName, f.Reason)
		}
	}
}

func TestPlanConfirmationFlagsWeakConsensusField(t *testing.T) {
	fields := ExtractionFields{Date: "2024-01-01", Vendor: "ACME"}
	consensus := map[string]ConsensusResult{
		"total_amount": {
			NeedsConfirmation: true,
			Level:             ConsensusWeak,
			AgreementCount:    1,
			TotalDetectors:    4,
			AllCandidates:     []Candidate{{Value: "30.00", Votes: 1}},
		},
	}
	req := PlanConfirmation("doc-2", fields, consensus, 0.9, 0.6, "TOTAL: 30.00")

	if len(req.Fields) != 1 {
		t.Fatalf("expected exactly 1 request, got %d: %+v", len(req.Fields), req.Fields)
	}
	f := req.Fields[0]
	if f.FieldName != "total_amount" || f.Reason != ReasonLowConfidence {
		t.Fatalf("expected total_amount/low_confidence, got %+v", f)
	}
	if f.ReasonText != "Weak consensus (1/4 agree)" {
		t.Fatalf("unexpected reason text: %q", f.ReasonText)
	}
	if req.Summary != "Please verify: Total Amount" {
		t.Fatalf("unexpected summary: %q", req.Summary)
	}
}

func TestPlanConfirmationFlagsLowOverallConfidenceWhenNoOtherIssues(t *testing.T) {
	fields := ExtractionFields{HasTotal: true, TotalAmount: 30, Date: "2024-01-01", Vendor: "ACME"}
	req := PlanConfirmation("doc-3", fields, map[string]ConsensusResult{}, 0.5, 0.6, "TOTAL: 30.00")

	if !req.NeedsConfirmation {
		t.Fatalf("expected confirmation to be needed for low overall confidence")
	}
	if len(req.Fields) != 3 {
		t.Fatalf("expected all 3 required critical fields flagged, got %d", len(req.Fields))
	}
	for _, f := range req.Fields {
		if f.Reason != ReasonLowConfidence {
			t.Fatalf("expected low_confidence reason for %s, got %s", f.FieldName, f.Reason)
		}
		if !f.HasCurrent {
			t.Fatalf("expected HasCurrent=true for %s since the field was extracted", f.FieldName)
		}
	}
}

func TestPlanConfirmationNoIssuesYieldsNoRequests(t *testing.T) {
	fields := ExtractionFields{HasTotal: true, TotalAmount: 30, Date: "2024-01-01", Vendor: "ACME"}
	req := PlanConfirmation("doc-4", fields, map[string]ConsensusResult{}, 0.9, 0.6, "TOTAL: 30.00")

	if req.NeedsConfirmation {
		t.Fatalf("expected no confirmation needed, got %+v", req)
	}
	if req.Summary != "All fields extracted with high confidence." {
		t.Fatalf("unexpected summary: %q", req.Summary)
	}
}
