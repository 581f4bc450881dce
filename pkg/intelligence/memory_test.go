package intelligence

import (
	"path/filepath"
	"testing"
)

func TestDocumentFingerprintHashIsStable(t *testing.T) {
	fp := BuildFingerprint("ACME STORE LTD\nItem A 10.00\nTOTAL: 30.00", DocReceipt, "ACME STORE LTD", "KES")
	h1 := fp.Hash()
	h2 := BuildFingerprint("ACME STORE LTD\nItem A 10.00\nTOTAL: 30.00", DocReceipt, "ACME STORE LTD", "KES").Hash()
	if h1 != h2 {
		t.Fatalf("expected stable hash, got %s vs %s", h1, h2)
	}
	if len(h1) != 16 {
		t.Fatalf("expected 16-char hash, got %d chars: %s", len(h1), h1)
	}
}

func TestDocumentFingerprintSimilarityExactMatch(t *testing.T) {
	fp := BuildFingerprint("some receipt text", DocReceipt, "ACME", "KES")
	if sim := fp.Similarity(fp); sim != 1.0 {
		t.Fatalf("expected similarity 1.0 for identical fingerprint, got %v", sim)
	}
}

func TestMemoryLearnAndFindMatchRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	mem := NewMemory(path, 0)

	fp := BuildFingerprint("ACME STORE LTD\nItem A 10.00\nTOTAL: 30.00", DocReceipt, "ACME STORE LTD", "KES")
	mem.LearnFromDocument(fp, nil, false)

	match := mem.FindMatch(fp)
	if !match.Found || match.Score != 1.0 {
		t.Fatalf("expected an exact match after learning, got %+v", match)
	}

	reloaded := NewMemory(path, 0)
	if reloaded.Len() != 1 {
		t.Fatalf("expected persisted memory to round-trip, got %d entries", reloaded.Len())
	}
	reloadedMatch := reloaded.FindMatch(fp)
	if !reloadedMatch.Found {
		t.Fatalf("expected reloaded memory to still match")
	}
}

func TestMemoryTimesConfirmedIsMonotonic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	mem := NewMemory(path, 0)
	fp := BuildFingerprint("ACME STORE LTD\nTOTAL: 30.00", DocReceipt, "ACME STORE LTD", "KES")

	mem.LearnFromDocument(fp, nil, true)
	mem.LearnFromDocument(fp, nil, true)
	mem.LearnFromDocument(fp, nil, false)

	match := mem.FindMatch(fp)
	if match.Entry == nil || match.Entry.TimesConfirmed != 2 {
		t.Fatalf("expected times_confirmed=2, got %+v", match.Entry)
	}
	if match.Entry.TimesSeen != 3 {
		t.Fatalf("expected times_seen=3, got %d", match.Entry.TimesSeen)
	}
}

func TestMemoryPruneKeepsHighestUtility(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	mem := NewMemory(path, 2)

	keep := BuildFingerprint("ACME STORE LTD\nTOTAL: 99.00", DocReceipt, "ACME STORE LTD", "KES")
	mem.LearnFromDocument(keep, nil, true) // times_seen=1, times_confirmed=1 -> utility 3

	for i := 0; i < 2; i++ {
		drop := BuildFingerprint("SOME OTHER VENDOR\nTOTAL: 1.00", DocReceipt, "SOME OTHER VENDOR "+string(rune('A'+i)), "KES")
		mem.LearnFromDocument(drop, nil, false) // utility 1 each
	}

	if mem.Len() != 2 {
		t.Fatalf("expected prune to cap at 2 entries, got %d", mem.Len())
	}
	if match := mem.FindMatch(keep); !match.Found {
		t.Fatalf("expected the high-utility entry to survive pruning")
	}
}

func TestMemoryRecordCorrectionCollapsesRepeats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	mem := NewMemory(path, 0)
	fp := BuildFingerprint("ACME STORE LTD\nTOTAL: 30.00", DocReceipt, "ACME STORE LTD", "KES")

	mem.RecordCorrection(fp, "total_amount", "30.00", "33.00")
	mem.RecordCorrection(fp, "total_amount", "30.00", "33.00")

	match := mem.FindMatch(fp)
	if match.Entry == nil || len(match.Entry.Corrections) != 1 {
		t.Fatalf("expected repeated corrections to collapse into one entry, got %+v", match.Entry)
	}
	if match.Entry.Corrections[0].CorrectionCount != 2 {
		t.Fatalf("expected correction_count=2, got %d", match.Entry.Corrections[0].CorrectionCount)
	}
}
