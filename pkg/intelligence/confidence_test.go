package intelligence

import "testing"

func TestScoreStrongInputsYieldVerifiedLevel(t *testing.T) {
	consensus := map[string]ConsensusResult{
		"total_amount": {Level: ConsensusStrong},
		"date":         {Level: ConsensusStrong},
		"vendor":       {Level: ConsensusStrong},
	}
	in := ScoreInput{
		OCRConfidence:      95,
		LowConfidenceWords: 0,
		Consensus:          consensus,
		Layout:             LayoutAnalysis{Lines: []LayoutLine{{Words: []OCRWord{{Text: "x"}}}}},
		Fields:             ExtractionFields{},
		Memory:             MemoryMatch{Found: true, Score: 1.0},
		UserConfirmed:      true,
	}
	out := Score(in)
	if out.OverallScore != 1.0 {
		t.Fatalf("expected overall score clamped to 1.0, got %v", out.OverallScore)
	}
	if out.Level != LevelVerified {
		t.Fatalf("expected VERIFIED level, got %s", out.Level)
	}
}

func TestScoreWeakInputsYieldUnreliableLevel(t *testing.T) {
	consensus := map[string]ConsensusResult{
		"total_amount": {Level: ConsensusNone},
		"date":         {Level: ConsensusNone},
		"vendor":       {Level: ConsensusNone},
	}
	in := ScoreInput{
		OCRConfidence:      40,
		LowConfidenceWords: 12,
		Consensus:          consensus,
		Layout:             LayoutAnalysis{},
		Fields:             ExtractionFields{},
		Memory:             MemoryMatch{},
		UserConfirmed:      false,
	}
	out := Score(in)
	if out.OverallScore != 0 {
		t.Fatalf("expected overall score floored at 0, got %v", out.OverallScore)
	}
	if out.Level != LevelUnreliable {
		t.Fatalf("expected UNRELIABLE level, got %s", out.Level)
	}
	if len(out.Suggestions) != 2 {
		t.Fatalf("expected 2 suggestions (manual verify + rescan), got %d: %v", len(out.Suggestions), out.Suggestions)
	}
}

func TestLevelForScoreThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  ConfidenceLevel
	}{
		{0.96, LevelVerified},
		{0.85, LevelHigh},
		{0.65, LevelMedium},
		{0.45, LevelLow},
		{0.25, LevelVeryLow},
		{0.05, LevelUnreliable},
	}
	for _, c := range cases {
		if got := LevelForScore(c.score); got != c.want {
			t.Fatalf("LevelForScore(%v) = %s, want %s", c.score, got, c.want)
		}
	}
}
