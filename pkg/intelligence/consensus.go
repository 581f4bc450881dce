package intelligence

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// CriticalFields are the three fields the Consensus Extractor votes on.
var CriticalFields = []string{"total_amount", "date", "vendor"}

var (
	totalKeywords    = []string{"grand total", "net total", "amount due", "balance due", "total", "balance", "payable", "sum", "gross", "pay"}
	subtotalKeywords = []string{"sub-total", "sub total", "subtotal"}

	businessSuffixes = []string{"ltd", "limited", "inc", "llc", "corp", "corporation", "co.", "company", "plc", "llp"}
	vendorSkipPrefixes = []string{"tel", "phone", "fax", "email", "www.", "http", "receipt", "invoice", "order", "date", "time"}
	businessCategoryWords = []string{"store", "shop", "market", "restaurant", "cafe", "hotel", "bank"}
)

// RunConsensus runs all four detectors for each critical field and votes,
// per spec §4.3.
func RunConsensus(text string) map[string]ConsensusResult {
	lines := strings.Split(text, "\n")
	out := map[string]ConsensusResult{}
	out["total_amount"] = vote("total_amount", totalAmountDetectors(text, lines))
	out["date"] = vote("date", dateDetectors(text, lines))
	out["vendor"] = vote("vendor", vendorDetectors(lines))
	return out
}

func headerLines(lines []string) []string {
	n := len(lines) * 15 / 100
	if n < 5 {
		n = 5
	}
	if n > len(lines) {
		n = len(lines)
	}
	return lines[:n]
}

func footerLines(lines []string) []string {
	n := len(lines) * 20 / 100
	if n < 1 {
		n = 1
	}
	if n > len(lines) {
		n = len(lines)
	}
	return lines[len(lines)-n:]
}

func lineHasAny(line string, keywords []string) bool {
	lower := strings.ToLower(line)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// ---- total_amount detectors (spec §4.3.1) ----

var reTotalAmountMatch = regexp.MustCompile(`(?i)(?:^|[^\w])(grand total|net total|amount due|balance due|total|balance|payable|sum|gross|pay)\s*:?\s*[A-Za-z$€£]{0,4}\s*(\d[\d,]*\.?\d*)`)

func totalAmountDetectors(text string, lines []string) []DetectorResult {
	var results []DetectorResult

	// Regex
	if r, ok := totalRegexDetector(text); ok {
		results = append(results, r)
	}
	// Proximity
	if r, ok := totalProximityDetector(lines); ok {
		results = append(results, r)
	}
	// Position (footer)
	if r, ok := totalPositionDetector(lines); ok {
		results = append(results, r)
	}
	// Statistical
	if r, ok := totalStatisticalDetector(text); ok {
		results = append(results, r)
	}
	return results
}

func totalRegexDetector(text string) (DetectorResult, bool) {
	best := -1.0
	var evidence string
	for _, m := range reTotalAmountMatch.FindAllStringSubmatchIndex(text, -1) {
		keyword := text[m[2]:m[3]]
		amountStr := text[m[4]:m[5]]
		start := m[2] - 20
		if start < 0 {
			start = 0
		}
		preceding := text[start:m[2]]
		if lineHasAny(preceding, subtotalKeywords) {
			continue
		}
		value, ok := parseFloatLenient(amountStr)
		if !ok || looksLikeYear(value) || looksLikeDateShape(amountStr) {
			continue
		}
		if value > best {
			best = value
			evidence = keyword
		}
	}
	if best < 0 {
		return DetectorResult{}, false
	}
	return DetectorResult{
		DetectorName: "regex", Value: formatAmount(best), Confidence: 0.85,
		Evidence: fmt.Sprintf("matched keyword %q", evidence),
	}, true
}

func totalProximityDetector(lines []string) (DetectorResult, bool) {
	for i, line := range lines {
		lower := strings.ToLower(line)
		if !lineHasAny(lower, totalKeywords) || lineHasAny(lower, subtotalKeywords) {
			continue
		}
		for _, tok := range reAmountToken.FindAllString(line, -1) {
			if looksLikeYear(mustFloat(tok)) || looksLikeDateShape(tok) {
				continue
			}
			v, ok := parseFloatLenient(tok)
			if !ok {
				continue
			}
			return DetectorResult{
				DetectorName: "proximity", Value: formatAmount(v), Confidence: 0.90,
				Evidence: "found on total-keyword line", Line: i, HasPosition: true,
			}, true
		}
	}
	return DetectorResult{}, false
}

func totalPositionDetector(lines []string) (DetectorResult, bool) {
	best := -1.0
	for _, line := range footerLines(lines) {
		lower := strings.ToLower(line)
		if lineHasAny(lower, subtotalKeywords) {
			continue
		}
		for _, tok := range reAmountToken.FindAllString(line, -1) {
			if looksLikeYear(mustFloat(tok)) || looksLikeDateShape(tok) {
				continue
			}
			v, ok := parseFloatLenient(tok)
			if ok && v > best {
				best = v
			}
		}
	}
	if best < 0 {
		return DetectorResult{}, false
	}
	return DetectorResult{DetectorName: "position", Value: formatAmount(best), Confidence: 0.75, Evidence: "largest amount in footer zone"}, true
}

func totalStatisticalDetector(text string) (DetectorResult, bool) {
	lines := strings.Split(text, "\n")
	var values []float64
	for _, line := range lines {
		if lineHasAny(strings.ToLower(line), subtotalKeywords) {
			continue
		}
		for _, tok := range reAmountToken.FindAllString(line, -1) {
			if looksLikeDateShape(tok) {
				continue
			}
			v, ok := parseFloatLenient(tok)
			if !ok || v <= 0.5 || v >= 10000000 || looksLikeYear(v) {
				continue
			}
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return DetectorResult{}, false
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))
	top := values[0]
	conf := 0.70
	if len(values) > 1 {
		runnerUp := values[1]
		if runnerUp > 0 && top >= 1.5*runnerUp {
			conf = 0.80
		} else {
			conf = 0.60
		}
	}
	return DetectorResult{DetectorName: "statistical", Value: formatAmount(top), Confidence: conf, Evidence: "largest non-subtotal amount in document"}, true
}

func mustFloat(s string) float64 {
	v, _ := parseFloatLenient(s)
	return v
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(round2(v), 'f', 2, 64)
}

// ---- date detectors (spec §4.3.2) ----

type datePattern struct {
	re     *regexp.Regexp
	format string
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`\b(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})\b`), "YMD"},
	{regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})\b`), "DMY"},
	{regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{2})\b`), "DMY2"},
	{regexp.MustCompile(`(?i)\b(\d{1,2})\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+(\d{4})\b`), "DMonY"},
}

var monthNums = map[string]int{"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6, "jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12}

// normalizeDate converts a raw match plus format tag to YYYY-MM-DD, or
// returns ok=false when out of range (spec §4.3.2: 1≤day≤31, 1≤month≤12,
// 1900≤year≤2100).
func normalizeDate(groups []string, format string) (string, bool) {
	var day, month, year int
	switch format {
	case "YMD":
		year = atoi(groups[0])
		month = atoi(groups[1])
		day = atoi(groups[2])
	case "DMY":
		day = atoi(groups[0])
		month = atoi(groups[1])
		year = atoi(groups[2])
	case "DMY2":
		day = atoi(groups[0])
		month = atoi(groups[1])
		yy := atoi(groups[2])
		if yy < 50 {
			year = 2000 + yy
		} else {
			year = 1900 + yy
		}
	case "DMonY":
		day = atoi(groups[0])
		month = monthNums[strings.ToLower(groups[1])[:3]]
		year = atoi(groups[2])
	default:
		return "", false
	}
	if day < 1 || day > 31 || month < 1 || month > 12 || year < 1900 || year > 2100 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func firstValidDate(text string) (string, bool) {
	for _, dp := range datePatterns {
		loc := dp.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		groups := submatches(text, loc)
		if date, ok := normalizeDate(groups, dp.format); ok {
			return date, true
		}
	}
	return "", false
}

func allValidDates(text string) []string {
	var out []string
	for _, dp := range datePatterns {
		for _, loc := range dp.re.FindAllStringSubmatchIndex(text, -1) {
			groups := submatches(text, loc)
			if date, ok := normalizeDate(groups, dp.format); ok {
				out = append(out, date)
			}
		}
	}
	return out
}

func submatches(text string, loc []int) []string {
	n := len(loc)/2 - 1
	out := make([]string, n)
	for i := 0; i < n; i++ {
		s, e := loc[2+2*i], loc[2+2*i+1]
		if s < 0 {
			continue
		}
		out[i] = text[s:e]
	}
	return out
}

func dateDetectors(text string, lines []string) []DetectorResult {
	var results []DetectorResult
	if d, ok := firstValidDate(text); ok {
		results = append(results, DetectorResult{DetectorName: "regex", Value: d, Confidence: 0.85, Evidence: "first date pattern match"})
	}
	if d, ok := dateProximityDetector(lines); ok {
		results = append(results, d)
	}
	if d, ok := datePositionDetector(lines); ok {
		results = append(results, d)
	}
	if dates := allValidDates(text); len(dates) > 0 {
		sort.Strings(dates)
		mostRecent := dates[len(dates)-1]
		results = append(results, DetectorResult{DetectorName: "statistical", Value: mostRecent, Confidence: 0.65, Evidence: "most recent date found"})
	}
	return results
}

func dateProximityDetector(lines []string) (DetectorResult, bool) {
	for i, line := range lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "date") && !strings.Contains(lower, "dated") {
			continue
		}
		search := line
		if i+1 < len(lines) {
			search += " " + lines[i+1]
		}
		if d, ok := firstValidDate(search); ok {
			return DetectorResult{DetectorName: "proximity", Value: d, Confidence: 0.90, Evidence: "near date label", Line: i, HasPosition: true}, true
		}
	}
	return DetectorResult{}, false
}

func datePositionDetector(lines []string) (DetectorResult, bool) {
	header := strings.Join(headerLines(lines), "\n")
	if d, ok := firstValidDate(header); ok {
		return DetectorResult{DetectorName: "position", Value: d, Confidence: 0.75, Evidence: "first date in header zone"}, true
	}
	return DetectorResult{}, false
}

// ---- vendor detectors (spec §4.3.3) ----

func isVendorSkipLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	lower := strings.ToLower(trimmed)
	for _, p := range vendorSkipPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	if looksLikeDateShape(trimmed) || reOnlyNumberLine.MatchString(trimmed) {
		return true
	}
	return false
}

var reOnlyNumberLine = regexp.MustCompile(`^[\d,.\s$€£]+$`)

func vendorDetectors(lines []string) []DetectorResult {
	var results []DetectorResult
	if v, ok := vendorRegexDetector(lines); ok {
		results = append(results, v)
	}
	if v, ok := vendorProximityDetector(lines); ok {
		results = append(results, v)
	}
	if v, ok := vendorPositionDetector(lines); ok {
		results = append(results, v)
	}
	if v, ok := vendorStatisticalDetector(lines); ok {
		results = append(results, v)
	}
	return results
}

func validVendorCandidate(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) > 3 && hasLetter(s)
}

func vendorRegexDetector(lines []string) (DetectorResult, bool) {
	for i, line := range lines {
		if isVendorSkipLine(line) {
			continue
		}
		if containsAny(line, businessSuffixes...) && validVendorCandidate(line) {
			return DetectorResult{DetectorName: "regex", Value: strings.TrimSpace(line), Confidence: 0.90, Evidence: "contains business suffix", Line: i, HasPosition: true}, true
		}
	}
	return DetectorResult{}, false
}

func vendorProximityDetector(lines []string) (DetectorResult, bool) {
	limit := 10
	if limit > len(lines) {
		limit = len(lines)
	}
	for i := 0; i < limit; i++ {
		line := strings.TrimSpace(lines[i])
		if isVendorSkipLine(line) || !validVendorCandidate(line) {
			continue
		}
		return DetectorResult{DetectorName: "proximity", Value: line, Confidence: 0.80, Evidence: "first plausible line in top 10", Line: i, HasPosition: true}, true
	}
	return DetectorResult{}, false
}

func vendorPositionDetector(lines []string) (DetectorResult, bool) {
	header := headerLines(lines)
	for i, line := range header {
		trimmed := strings.TrimSpace(line)
		if isVendorSkipLine(trimmed) || !validVendorCandidate(trimmed) {
			continue
		}
		if isAllCaps(trimmed) {
			return DetectorResult{DetectorName: "position", Value: trimmed, Confidence: 0.85, Evidence: "all-caps header line", Line: i, HasPosition: true}, true
		}
	}
	for i, line := range header {
		trimmed := strings.TrimSpace(line)
		if isVendorSkipLine(trimmed) || !validVendorCandidate(trimmed) {
			continue
		}
		return DetectorResult{DetectorName: "position", Value: trimmed, Confidence: 0.70, Evidence: "first non-skip header line", Line: i, HasPosition: true}, true
	}
	return DetectorResult{}, false
}

func vendorStatisticalDetector(lines []string) (DetectorResult, bool) {
	limit := 15
	if limit > len(lines) {
		limit = len(lines)
	}
	bestScore := -1.0
	bestLine := ""
	bestIdx := -1
	for i := 0; i < limit; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if isVendorSkipLine(trimmed) || !validVendorCandidate(trimmed) {
			continue
		}
		score := 0.0
		if isAllCaps(trimmed) {
			score += 0.3
		}
		if containsAny(trimmed, businessCategoryWords...) {
			score += 0.2
		}
		if len(trimmed) >= 5 && len(trimmed) <= 40 {
			score += 0.1
		}
		score += float64(limit-i) / float64(limit) * 0.2
		if score > bestScore {
			bestScore = score
			bestLine = trimmed
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return DetectorResult{}, false
	}
	return DetectorResult{DetectorName: "statistical", Value: bestLine, Confidence: 0.65, Evidence: "highest-scoring early candidate line", Line: bestIdx, HasPosition: true}, true
}

// ---- voting (spec §4.3.4) ----

func normalizeValue(fieldName, value string) string {
	if fieldName == "total_amount" {
		v, ok := parseFloatLenient(value)
		if !ok {
			return normalizeString(value)
		}
		return formatAmount(v)
	}
	return normalizeString(value)
}

func vote(fieldName string, results []DetectorResult) ConsensusResult {
	votes := map[string]int{}
	firstSeen := map[string]string{} // normalized -> original value
	var order []string
	for _, r := range results {
		norm := normalizeValue(fieldName, r.Value)
		if _, ok := votes[norm]; !ok {
			order = append(order, norm)
			firstSeen[norm] = r.Value
		}
		votes[norm]++
	}

	candidates := make([]Candidate, 0, len(order))
	for _, norm := range order {
		candidates = append(candidates, Candidate{Value: norm, Votes: votes[norm]})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Votes > candidates[j].Votes })

	cr := ConsensusResult{
		FieldName:       fieldName,
		TotalDetectors:  len(results),
		DetectorResults: results,
		AllCandidates:   candidates,
	}

	if len(candidates) == 0 {
		cr.Level = ConsensusNone
		cr.NeedsConfirmation = true
		cr.ConfirmationReason = "no detector produced a value"
		return cr
	}

	winnerNorm := candidates[0].Value
	cr.FinalValue = firstSeen[winnerNorm]
	cr.HasFinalValue = true
	cr.AgreementCount = candidates[0].Votes

	for _, r := range results {
		if normalizeValue(fieldName, r.Value) == winnerNorm {
			cr.AgreeingDetectors = append(cr.AgreeingDetectors, r.DetectorName)
		} else {
			cr.DissentingDetectors = append(cr.DissentingDetectors, r.DetectorName)
		}
	}

	cr.Level = LevelForAgreement(cr.AgreementCount, cr.TotalDetectors)
	cr.NeedsConfirmation = cr.Level == ConsensusWeak || cr.Level == ConsensusNone
	if cr.NeedsConfirmation {
		cr.ConfirmationReason = fmt.Sprintf("only %d/%d detectors agree", cr.AgreementCount, cr.TotalDetectors)
	}
	return cr
}
