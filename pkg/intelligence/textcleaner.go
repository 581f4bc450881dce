package intelligence

import (
	"regexp"
	"strings"
)

// Correction records one substitution the cleaner applied, for auditability.
type Correction struct {
	Kind        string
	Description string
}

// CleaningResult is the outcome of running the TextCleaner.
type CleaningResult struct {
	OriginalText string
	CleanedText  string
	Corrections  []Correction
}

type charConfusionRule struct {
	pattern     *regexp.Regexp
	replacement string
	description string
}

// charConfusionRules repair common words garbled by OCR character confusions
// (TOTAL, SUBTOTAL, AMOUNT, BALANCE, RECEIPT, INVOICE). The numeric-context
// O/l/I/S/B repairs are done by fixNumericConfusions.
var charConfusionRules = []charConfusionRule{
	{regexp.MustCompile(`\bTOTAI\b`), "TOTAL", "TOTAI→TOTAL"},
	{regexp.MustCompile(`\bT0TAL\b`), "TOTAL", "T0TAL→TOTAL"},
	{regexp.MustCompile(`\bSUBTOTAI\b`), "SUBTOTAL", "SUBTOTAI→SUBTOTAL"},
	{regexp.MustCompile(`\bAM0UNT\b`), "AMOUNT", "AM0UNT→AMOUNT"},
	{regexp.MustCompile(`\bBAIANCE\b`), "BALANCE", "BAIANCE→BALANCE"},
	{regexp.MustCompile(`\bRECE1PT\b`), "RECEIPT", "RECE1PT→RECEIPT"},
	{regexp.MustCompile(`\bINV0ICE\b`), "INVOICE", "INV0ICE→INVOICE"},
}

// currencyRules normalize currency spellings per spec §4.1.
type currencyRule struct {
	pattern     *regexp.Regexp
	replacement string
	description string
}

var currencyRules = []currencyRule{
	{regexp.MustCompile(`(?i)\bKSHS\.?\s*`), "KES ", "KSHS→KES"},
	{regexp.MustCompile(`(?i)\bKSH\.?\s*`), "KES ", "KSH→KES"},
	{regexp.MustCompile(`(?i)\bKes\.?\s*`), "KES ", "Kes→KES"},
	{regexp.MustCompile(`(?i)\bUS\$\s*`), "USD ", "US$→USD"},
	{regexp.MustCompile(`(?i)\bUSD\s*\$`), "USD ", "USD$→USD"},
}

var (
	reMultiSpace      = regexp.MustCompile(` {2,}`)
	reMultiBlankLines = regexp.MustCompile(`\n{3,}`)
	reDecimalSpace    = regexp.MustCompile(`(\d+)\.\s+(\d{2})\b`)
	reDecimalComma    = regexp.MustCompile(`(\d+),(\d{2})\b(\D|$)`)
)

// fixNumericConfusions handles the lookbehind-dependent rules that Go's
// RE2 cannot express directly (no lookbehind support): it scans rune-by-rune
// and substitutes O→0, l→1, I→1, S→5, B→8 only when the surrounding
// characters are digits, or the preceding character is a currency symbol
// ($, €, £).
func fixNumericConfusions(s string) (string, bool) {
	confusable := map[rune]rune{'O': '0', 'l': '1', 'I': '1', 'S': '5', 'B': '8'}
	runes := []rune(s)
	changed := false
	for i, r := range runes {
		repl, ok := confusable[r]
		if !ok {
			continue
		}
		prevDigit := i > 0 && isDigit(runes[i-1])
		nextDigit := i+1 < len(runes) && isDigit(runes[i+1])
		prevCurrency := i > 0 && strings.ContainsRune("$€£", runes[i-1])
		if (prevDigit && nextDigit) || prevCurrency {
			runes[i] = repl
			changed = true
		}
	}
	return string(runes), changed
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// CleanText applies the deterministic OCR-text cleaning pipeline of spec
// §4.1, in order: whitespace normalization, numeric-context character
// confusion repair, common-word repair, currency normalization, decimal
// repair, final CRLF→LF. Every substitution is recorded for auditability;
// text outside the listed patterns is never altered.
func CleanText(text string) CleaningResult {
	var corrections []Correction
	original := text
	cleaned := text

	cleaned, whitespaceChanged := cleanWhitespace(cleaned)
	if whitespaceChanged {
		corrections = append(corrections, Correction{"whitespace", "Normalized whitespace"})
	}

	if fixed, changed := fixNumericConfusions(cleaned); changed {
		cleaned = fixed
		corrections = append(corrections, Correction{"char_confusion", "Numeric-context O/l/I/S/B repair"})
	}

	for _, rule := range charConfusionRules {
		if rule.pattern.MatchString(cleaned) {
			replaced := rule.pattern.ReplaceAllString(cleaned, rule.replacement)
			if replaced != cleaned {
				cleaned = replaced
				corrections = append(corrections, Correction{"char_confusion", rule.description})
			}
		}
	}

	for _, rule := range currencyRules {
		replaced := rule.pattern.ReplaceAllString(cleaned, rule.replacement)
		if replaced != cleaned {
			cleaned = replaced
			corrections = append(corrections, Correction{"currency", rule.description})
		}
	}

	if replaced := reDecimalSpace.ReplaceAllString(cleaned, "$1.$2"); replaced != cleaned {
		cleaned = replaced
		corrections = append(corrections, Correction{"decimal", "Fixed space in decimal"})
	}
	if replaced := reDecimalComma.ReplaceAllString(cleaned, "$1.$2$3"); replaced != cleaned {
		cleaned = replaced
		corrections = append(corrections, Correction{"decimal", "Converted comma decimal to period"})
	}

	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.ReplaceAll(cleaned, "\r\n", "\n")
	cleaned = strings.ReplaceAll(cleaned, "\r", "\n")

	return CleaningResult{OriginalText: original, CleanedText: cleaned, Corrections: corrections}
}

func cleanWhitespace(text string) (string, bool) {
	cleaned := reMultiSpace.ReplaceAllString(text, " ")
	cleaned = reMultiBlankLines.ReplaceAllString(cleaned, "\n\n")
	lines := strings.Split(cleaned, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	cleaned = strings.Join(lines, "\n")
	return cleaned, cleaned != text
}

// commonDecimals are the decimal fractions considered unremarkable by
// SuspiciousValues below.
var commonDecimals = map[string]bool{".00": true, ".25": true, ".50": true, ".75": true, ".95": true, ".99": true}

var reSuspiciousAmount = regexp.MustCompile(`\$?\s*([\d,]+\.\d+)`)

// SuspiciousValues flags amount-shaped substrings with unusual decimals or
// implausibly large magnitude, purely as diagnostic warnings (SPEC_FULL §4,
// grounded on original_source/text_cleaner.py::TextCorrector.identify_suspicious_values).
// It never participates in extraction.
func SuspiciousValues(text string) []string {
	var warnings []string
	for _, m := range reSuspiciousAmount.FindAllStringSubmatch(text, -1) {
		raw := strings.ReplaceAll(m[1], ",", "")
		dot := strings.IndexByte(raw, '.')
		if dot < 0 {
			continue
		}
		frac := raw[dot:]
		value, ok := parseFloatLenient(raw)
		if !ok {
			warnings = append(warnings, "Could not parse value near \""+m[1]+"\"")
			continue
		}
		if !commonDecimals[frac] && value > 10 {
			warnings = append(warnings, "Unusual decimal value: "+m[1])
		}
		if value > 1000000 {
			warnings = append(warnings, "Very large value - verify accuracy: "+m[1])
		}
	}
	return warnings
}
