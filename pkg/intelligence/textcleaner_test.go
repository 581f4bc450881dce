package intelligence

import "testing"

func TestCleanTextFixesCommonWordConfusions(t *testing.T) {
	result := CleanText("TOTAI: KSH 1,200.00")
	if result.CleanedText != "TOTAL: KES 1,200.00" {
		t.Fatalf("got %q", result.CleanedText)
	}
	if len(result.Corrections) < 2 {
		t.Fatalf("expected at least 2 corrections, got %d: %+v", len(result.Corrections), result.Corrections)
	}
}

func TestCleanTextFixesNumericContextConfusions(t *testing.T) {
	result := CleanText("Balance: 1O0 2I0")
	if result.CleanedText != "Balance: 100 210" {
		t.Fatalf("got %q", result.CleanedText)
	}
}

func TestCleanTextLeavesOrdinaryWordsAlone(t *testing.T) {
	result := CleanText("Balance carried forward")
	if result.CleanedText != "Balance carried forward" {
		t.Fatalf("got %q", result.CleanedText)
	}
	if len(result.Corrections) != 0 {
		t.Fatalf("expected no corrections, got %+v", result.Corrections)
	}
}

func TestCleanTextFixesDecimalSpacing(t *testing.T) {
	result := CleanText("Total 10. 00")
	if result.CleanedText != "Total 10.00" {
		t.Fatalf("got %q", result.CleanedText)
	}
}

func TestSuspiciousValuesFlagsUnusualDecimals(t *testing.T) {
	warnings := SuspiciousValues("Total due: $12,345.67")
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %v", len(warnings), warnings)
	}
}

func TestSuspiciousValuesIgnoresCommonDecimals(t *testing.T) {
	warnings := SuspiciousValues("Total due: $50.00")
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestSuspiciousValuesFlagsImplausiblyLargeAmounts(t *testing.T) {
	warnings := SuspiciousValues("Total due: $5,000,000.25")
	found := false
	for _, w := range warnings {
		if w == "Very large value - verify accuracy: 5,000,000.25" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a large-value warning, got %v", warnings)
	}
}
