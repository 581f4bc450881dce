package intelligence

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const (
	headerZoneFrac = 0.15
	footerZoneFrac = 0.80
	prominenceRatio = 1.3
	simulatedCharWidth  = 8.0
	simulatedLineHeight = 20.0
)

// AnalyzeLayout groups OCR words into lines, assigns each line to a zone,
// derives alignment and prominence, and detects aligned tables, per spec
// §4.2. If words carry no bounding-box information (a text-only input),
// SimulateWordBoxes should be called first.
func AnalyzeLayout(words []OCRWord) LayoutAnalysis {
	if len(words) == 0 {
		return LayoutAnalysis{}
	}

	pageWidth, pageHeight := inferPageExtent(words)

	header := ZoneRange{StartFrac: 0, EndFrac: headerZoneFrac, StartPx: 0, EndPx: headerZoneFrac * pageHeight}
	footer := ZoneRange{StartFrac: footerZoneFrac, EndFrac: 1, StartPx: footerZoneFrac * pageHeight, EndPx: pageHeight}
	body := ZoneRange{StartFrac: headerZoneFrac, EndFrac: footerZoneFrac, StartPx: header.EndPx, EndPx: footer.StartPx}

	lines := groupIntoLines(words)
	for i := range lines {
		lines[i].Zone = zoneFor(lines[i], header, footer)
	}

	median := medianLineHeight(lines)
	for i := range lines {
		lines[i].Alignment = alignmentFor(lines[i], pageWidth)
		lines[i].IsProminent = median > 0 && lines[i].AvgWordHeight > prominenceRatio*median
	}

	tables := detectTables(lines)

	return LayoutAnalysis{
		PageWidth: pageWidth, PageHeight: pageHeight,
		HeaderZone: header, BodyZone: body, FooterZone: footer,
		Lines: lines, Tables: tables,
	}
}

// SimulateWordBoxes assigns synthetic bounding boxes to words that carry
// none, using a fixed character width and line height (spec §4.2: "If
// bounding boxes are absent ... the analyzer simulates them"). It groups
// words by existing LineNum, placing them left to right.
func SimulateWordBoxes(words []OCRWord) []OCRWord {
	out := make([]OCRWord, len(words))
	copy(out, words)
	cursor := map[int]float64{}
	for i, w := range out {
		if w.Width > 0 || w.Height > 0 {
			continue
		}
		left := cursor[w.LineNum]
		width := float64(len([]rune(w.Text))) * simulatedCharWidth
		out[i].Left = left
		out[i].Top = float64(w.LineNum) * simulatedLineHeight
		out[i].Width = width
		out[i].Height = simulatedLineHeight
		cursor[w.LineNum] = left + width + simulatedCharWidth
	}
	return out
}

func inferPageExtent(words []OCRWord) (width, height float64) {
	var maxRight, maxBottom float64
	for _, w := range words {
		if r := w.Right(); r > maxRight {
			maxRight = r
		}
		if b := w.Bottom(); b > maxBottom {
			maxBottom = b
		}
	}
	return maxRight + 20, maxBottom + 20
}

func groupIntoLines(words []OCRWord) []LayoutLine {
	byLine := map[int][]OCRWord{}
	var order []int
	for _, w := range words {
		if _, seen := byLine[w.LineNum]; !seen {
			order = append(order, w.LineNum)
		}
		byLine[w.LineNum] = append(byLine[w.LineNum], w)
	}
	sort.Ints(order)

	lines := make([]LayoutLine, 0, len(order))
	for _, ln := range order {
		ws := byLine[ln]
		sort.Slice(ws, func(i, j int) bool { return ws[i].Left < ws[j].Left })

		left, top, right, bottom := math.MaxFloat64, math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64
		var heightSum float64
		for _, w := range ws {
			left = math.Min(left, w.Left)
			top = math.Min(top, w.Top)
			right = math.Max(right, w.Right())
			bottom = math.Max(bottom, w.Bottom())
			heightSum += w.Height
		}
		lines = append(lines, LayoutLine{
			LineNum: ln, Words: ws,
			Left: left, Top: top, Right: right, Bottom: bottom,
			AvgWordHeight: heightSum / float64(len(ws)),
		})
	}
	return lines
}

func zoneFor(l LayoutLine, header, footer ZoneRange) Zone {
	center := (l.Top + l.Bottom) / 2
	switch {
	case center < header.EndPx:
		return ZoneHeader
	case center >= footer.StartPx:
		return ZoneFooter
	default:
		return ZoneBody
	}
}

// alignmentFor derives alignment from left/right margins per spec §4.2:
// CENTER when margins differ by ≤50, RIGHT when right-margin<50 and
// left-margin>100, else LEFT.
func alignmentFor(l LayoutLine, pageWidth float64) Alignment {
	leftMargin := l.Left
	rightMargin := pageWidth - l.Right
	if math.Abs(leftMargin-rightMargin) <= 50 {
		return AlignCenter
	}
	if rightMargin < 50 && leftMargin > 100 {
		return AlignRight
	}
	return AlignLeft
}

func medianLineHeight(lines []LayoutLine) float64 {
	if len(lines) == 0 {
		return 0
	}
	heights := make([]float64, len(lines))
	for i, l := range lines {
		heights[i] = l.AvgWordHeight
	}
	sort.Float64s(heights)
	mid := len(heights) / 2
	if len(heights)%2 == 1 {
		return heights[mid]
	}
	return (heights[mid-1] + heights[mid]) / 2
}

// detectTables clusters consecutive lines with ≥2 words and a >30-unit
// inter-word gap whose per-column left coordinates align with the first
// line's columns within a 20-unit tolerance, per spec §4.2.
func detectTables(lines []LayoutLine) []Table {
	var tables []Table
	var cluster []LayoutLine
	var columns []float64

	flush := func() {
		if len(cluster) >= 2 && len(columns) >= 2 {
			t := Table{Rows: len(cluster), Cols: len(columns)}
			for r, line := range cluster {
				for c, colLeft := range columns {
					nextColLeft := math.MaxFloat64
					if c+1 < len(columns) {
						nextColLeft = columns[c+1]
					}
					cell := nearestWordText(line, colLeft, nextColLeft, 20)
					t.Cells = append(t.Cells, TableCell{Row: r, Col: c, Text: cell})
					if r == 0 {
						t.Headers = append(t.Headers, cell)
					}
				}
			}
			tables = append(tables, t)
		}
		cluster = nil
		columns = nil
	}

	for _, line := range lines {
		if !isCandidateTableLine(line) {
			flush()
			continue
		}
		cols := columnLefts(line)
		if len(cluster) == 0 {
			cluster = append(cluster, line)
			columns = cols
			continue
		}
		if columnsMatch(columns, cols, 20) {
			cluster = append(cluster, line)
		} else {
			flush()
			cluster = append(cluster, line)
			columns = cols
		}
	}
	flush()
	return tables
}

func isCandidateTableLine(l LayoutLine) bool {
	if len(l.Words) < 2 {
		return false
	}
	for i := 1; i < len(l.Words); i++ {
		if l.Words[i].Left-l.Words[i-1].Right() > 30 {
			return true
		}
	}
	return false
}

func columnLefts(l LayoutLine) []float64 {
	cols := []float64{l.Words[0].Left}
	for i := 1; i < len(l.Words); i++ {
		if l.Words[i].Left-l.Words[i-1].Right() > 30 {
			cols = append(cols, l.Words[i].Left)
		}
	}
	return cols
}

func columnsMatch(a, b []float64, tolerance float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tolerance {
			return false
		}
	}
	return true
}

// nearestWordText joins the words in l whose Left falls within this column's
// span: from colLeft-tolerance up to (but not including) the next column's
// left edge minus tolerance, so words belonging to a later column are never
// pulled into an earlier one. nextColLeft is math.MaxFloat64 for the last
// column (no upper bound).
func nearestWordText(l LayoutLine, colLeft, nextColLeft, tolerance float64) string {
	lower := colLeft - tolerance
	upper := math.MaxFloat64
	if nextColLeft != math.MaxFloat64 {
		upper = nextColLeft - tolerance
	}
	var parts []string
	for _, w := range l.Words {
		if w.Left >= lower && w.Left < upper {
			parts = append(parts, w.Text)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ")
}

var reAmountToken = regexp.MustCompile(`\d[\d,]*\.?\d*`)

// FindAmountsInZone returns every amount-shaped token found within lines of
// the given zone.
func (a LayoutAnalysis) FindAmountsInZone(z Zone) []string {
	var out []string
	for _, l := range a.linesInZone(z) {
		out = append(out, reAmountToken.FindAllString(l.Text(), -1)...)
	}
	return out
}

// FindRightmostAmount returns the amount token nearest the right margin
// among all lines, or "" if none.
func (a LayoutAnalysis) FindRightmostAmount() string {
	best := ""
	bestRight := -math.MaxFloat64
	for _, l := range a.Lines {
		matches := reAmountToken.FindAllStringIndex(l.Text(), -1)
		if len(matches) == 0 {
			continue
		}
		if l.Right > bestRight {
			bestRight = l.Right
			text := l.Text()
			last := matches[len(matches)-1]
			best = text[last[0]:last[1]]
		}
	}
	return best
}

// FindTextNearLabel returns the text found to the right of, below, or on
// either side of the first line containing label (case-insensitive).
func (a LayoutAnalysis) FindTextNearLabel(label string, dir Direction) string {
	lowerLabel := strings.ToLower(label)
	for i, l := range a.Lines {
		text := l.Text()
		idx := strings.Index(strings.ToLower(text), lowerLabel)
		if idx < 0 {
			continue
		}
		switch dir {
		case DirRight:
			return strings.TrimSpace(text[idx+len(label):])
		case DirBelow:
			if i+1 < len(a.Lines) {
				return a.Lines[i+1].Text()
			}
			return ""
		default: // DirBoth
			right := strings.TrimSpace(text[idx+len(label):])
			if right != "" {
				return right
			}
			if i+1 < len(a.Lines) {
				return a.Lines[i+1].Text()
			}
			return ""
		}
	}
	return ""
}
