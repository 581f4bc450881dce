package intelligence

import "testing"

func TestRunConsensusStrongAgreementOnCleanReceipt(t *testing.T) {
	text := "ACME STORE LTD\nDate: 2024-01-15\nItem A 10.00\nItem B 20.00\nTOTAL: 30.00\n"
	consensus := RunConsensus(text)

	total := consensus["total_amount"]
	if total.Level != ConsensusStrong {
		t.Fatalf("expected strong total_amount consensus, got %s (%+v)", total.Level, total)
	}
	if total.FinalValue != "30.00" {
		t.Fatalf("expected total 30.00, got %q", total.FinalValue)
	}

	vendor := consensus["vendor"]
	if vendor.Level != ConsensusStrong {
		t.Fatalf("expected strong vendor consensus, got %s (%+v)", vendor.Level, vendor)
	}
	if vendor.FinalValue != "ACME STORE LTD" {
		t.Fatalf("expected vendor ACME STORE LTD, got %q", vendor.FinalValue)
	}

	date := consensus["date"]
	if date.Level != ConsensusStrong {
		t.Fatalf("expected strong date consensus, got %s (%+v)", date.Level, date)
	}
	if date.FinalValue != "2024-01-15" {
		t.Fatalf("expected date 2024-01-15, got %q", date.FinalValue)
	}
}

func TestRunConsensusNoAgreementOnUnstructuredText(t *testing.T) {
	consensus := RunConsensus("asdf qwer zxcv mnbv")
	total := consensus["total_amount"]
	if total.Level != ConsensusNone {
		t.Fatalf("expected no consensus, got %s", total.Level)
	}
	if !total.NeedsConfirmation {
		t.Fatalf("expected needs_confirmation=true when no detector agrees")
	}
}

func TestTotalRegexDetectorSkipsSubtotalOnlyDocument(t *testing.T) {
	text := "ACME STORE\nItem A 10.00\nItem B 20.00\nSubtotal: 30.00\n"
	if _, ok := totalRegexDetector(text); ok {
		t.Fatalf("expected no regex total_amount candidate for a subtotal-only document")
	}
}

func TestTotalRegexDetectorStillMatchesRealTotalNearSubtotal(t *testing.T) {
	text := "ACME STORE\nItem A 10.00\nItem B 20.00\nSubtotal: 30.00\nTax: 3.00\nGrand Total: 33.00\n"
	r, ok := totalRegexDetector(text)
	if !ok {
		t.Fatalf("expected a regex total_amount candidate")
	}
	if r.Value != "33.00" {
		t.Fatalf("expected 33.00, got %q", r.Value)
	}
}

func TestLevelForAgreementThresholds(t *testing.T) {
	cases := []struct {
		count, total int
		want         ConsensusLevel
	}{
		{4, 4, ConsensusStrong},
		{3, 4, ConsensusStrong},
		{2, 4, ConsensusModerate},
		{1, 4, ConsensusWeak},
		{0, 4, ConsensusNone},
	}
	for _, c := range cases {
		if got := LevelForAgreement(c.count, c.total); got != c.want {
			t.Fatalf("LevelForAgreement(%d,%d) = %s, want %s", c.count, c.total, got, c.want)
		}
	}
}
