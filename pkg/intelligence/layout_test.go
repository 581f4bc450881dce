package intelligence

import "testing"

func TestAnalyzeLayoutAssignsZonesBySimulatedPosition(t *testing.T) {
	var words []OCRWord
	for i := 0; i < 20; i++ {
		words = append(words, OCRWord{Text: "Word", LineNum: i, Confidence: 95})
	}
	words = SimulateWordBoxes(words)
	layout := AnalyzeLayout(words)

	if len(layout.Lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(layout.Lines))
	}
	if layout.Lines[0].Zone != ZoneHeader {
		t.Fatalf("expected first line in header zone, got %s", layout.Lines[0].Zone)
	}
	if layout.Lines[10].Zone != ZoneBody {
		t.Fatalf("expected middle line in body zone, got %s", layout.Lines[10].Zone)
	}
	if layout.Lines[19].Zone != ZoneFooter {
		t.Fatalf("expected last line in footer zone, got %s", layout.Lines[19].Zone)
	}
}

func TestAnalyzeLayoutDetectsAlignedTable(t *testing.T) {
	words := []OCRWord{
		{Text: "Apple", LineNum: 0, Left: 0, Top: 0, Width: 40, Height: 20},
		{Text: "10.00", LineNum: 0, Left: 100, Top: 0, Width: 40, Height: 20},
		{Text: "Banana", LineNum: 1, Left: 0, Top: 30, Width: 50, Height: 20},
		{Text: "5.00", LineNum: 1, Left: 100, Top: 30, Width: 30, Height: 20},
	}
	layout := AnalyzeLayout(words)
	if len(layout.Tables) != 1 {
		t.Fatalf("expected 1 detected table, got %d", len(layout.Tables))
	}
	table := layout.Tables[0]
	if table.Rows != 2 || table.Cols != 2 {
		t.Fatalf("expected a 2x2 table, got %dx%d", table.Rows, table.Cols)
	}
	if len(table.Headers) != 2 || table.Headers[0] != "Apple" || table.Headers[1] != "10.00" {
		t.Fatalf("expected headers [Apple 10.00], got %v", table.Headers)
	}
	for _, c := range table.Cells {
		if c.Row == 1 && c.Col == 0 && c.Text != "Banana" {
			t.Fatalf("expected cell (1,0) = Banana, got %q", c.Text)
		}
		if c.Row == 1 && c.Col == 1 && c.Text != "5.00" {
			t.Fatalf("expected cell (1,1) = 5.00, got %q", c.Text)
		}
	}
}

func TestSimulateWordBoxesLeavesExistingBoxesAlone(t *testing.T) {
	words := []OCRWord{{Text: "Hi", LineNum: 0, Left: 5, Top: 5, Width: 10, Height: 10}}
	out := SimulateWordBoxes(words)
	if out[0].Left != 5 || out[0].Top != 5 {
		t.Fatalf("expected existing box preserved, got %+v", out[0])
	}
}

func TestFindTextNearLabel(t *testing.T) {
	words := []OCRWord{
		{Text: "Total:", LineNum: 0, Left: 0, Top: 0, Width: 50, Height: 20},
		{Text: "42.00", LineNum: 0, Left: 60, Top: 0, Width: 50, Height: 20},
	}
	layout := AnalyzeLayout(words)
	got := layout.FindTextNearLabel("Total:", DirRight)
	if got != "42.00" {
		t.Fatalf("got %q", got)
	}
}
