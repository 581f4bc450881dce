package intelligence

import (
	"regexp"
	"strings"
)

// currencyPatterns supplements spec §4.1's currency normalization with
// symbol-based detection, grounded on original_source/field_extractor.py's
// Currency enum (SPEC_FULL §4).
var currencyPatterns = []struct {
	re       *regexp.Regexp
	currency string
}{
	{regexp.MustCompile(`(?i)\bKES\b|\bKSH\b|\bKSHS\b`), "KES"},
	{regexp.MustCompile(`\$|USD`), "USD"},
	{regexp.MustCompile(`€|EUR`), "EUR"},
	{regexp.MustCompile(`£|GBP`), "GBP"},
	{regexp.MustCompile(`(?i)\bUGX\b`), "UGX"},
	{regexp.MustCompile(`(?i)\bTZS\b`), "TZS"},
}

// DetectDocumentType classifies text by keyword priority, per spec §4.4:
// birth_certificate → national_id → passport → driving_license → invoice →
// receipt → form → letter → unknown.
func DetectDocumentType(text string) DocumentType {
	upper := strings.ToUpper(text)
	switch {
	case containsAny(upper, "BIRTH", "CERTIFICATE OF BIRTH", "BORN"):
		return DocBirthCertificate
	case containsAny(upper, "NATIONAL ID", "IDENTITY CARD", "ID CARD"):
		return DocNationalID
	case containsAny(upper, "PASSPORT", "TRAVEL DOCUMENT"):
		return DocPassport
	case containsAny(upper, "DRIVING LICENCE", "DRIVER'S LICENSE", "DRIVING LICENSE"):
		return DocDrivingLicense
	case containsAny(upper, "INVOICE", "DUE DATE"):
		return DocInvoice
	case containsAny(upper, "RECEIPT", "TOTAL", "AMOUNT"):
		return DocReceipt
	case containsAny(upper, "FORM", "STUDENT", "REGISTRATION", "SEMESTER"):
		return DocForm
	case strings.Contains(text, "Dear") || strings.Contains(text, "Yours faithfully"):
		return DocLetter
	default:
		return DocUnknown
	}
}

// DetectCurrency returns the most frequently occurring currency code,
// defaulting to KES when none is detected.
func DetectCurrency(text string) string {
	best := ""
	bestCount := 0
	for _, cp := range currencyPatterns {
		if n := len(cp.re.FindAllString(text, -1)); n > bestCount {
			bestCount = n
			best = cp.currency
		}
	}
	if best == "" {
		return "KES"
	}
	return best
}

// ExtractFields runs document-type-specific extraction for the non-core
// fields named in spec §4.4, using the already-chosen document type and
// consensus-voted critical fields.
func ExtractFields(text string, docType DocumentType, currency string, consensus map[string]ConsensusResult) ExtractionFields {
	fields := ExtractionFields{DocumentType: docType, Currency: currency, Identifiers: map[string]string{}}

	if dateResult, ok := consensus["date"]; ok && dateResult.HasFinalValue {
		fields.Date = dateResult.FinalValue
	}

	switch docType {
	case DocReceipt, DocInvoice, DocUnknown:
		if v, ok := consensus["vendor"]; ok && v.HasFinalValue {
			fields.Vendor = v.FinalValue
		}
		if t, ok := consensus["total_amount"]; ok && t.HasFinalValue {
			if val, ok := parseFloatLenient(t.FinalValue); ok {
				fields.TotalAmount = val
				fields.HasTotal = true
			}
		}
	case DocForm:
		extractFormFields(text, &fields)
	case DocLetter:
		fields.Sender = extractSender(text)
		fields.Subject = extractSubject(text)
	case DocBirthCertificate, DocNationalID, DocPassport, DocDrivingLicense:
		extractGovernmentIDFields(text, docType, &fields)
	}
	return fields
}

var (
	reInstitution = regexp.MustCompile(`(?i)\b(university|school|college|institute|academy|hospital|clinic)\b`)
	reFormTitle   = regexp.MustCompile(`(?i)\b(form|registration|application|admission|report)\b`)
	reRegNumber   = regexp.MustCompile(`(?i)(?:reg|registration|student|admission)\s*(?:no|number|id)?\s*[:.]?\s*([A-Z0-9/-]+)`)
	reIDNumber    = regexp.MustCompile(`(?i)(?:id|identity)\s*(?:no|number)\s*[:.]?\s*(\d+)`)
)

func extractFormFields(text string, fields *ExtractionFields) {
	lines := strings.Split(text, "\n")
	limit10 := limit(len(lines), 10)
	for _, l := range lines[:limit10] {
		if reInstitution.MatchString(l) {
			fields.InstitutionName = strings.TrimSpace(l)
			break
		}
	}
	for _, l := range lines[:limit10] {
		if reFormTitle.MatchString(l) {
			fields.FormTitle = strings.TrimSpace(l)
			break
		}
	}
	if m := reRegNumber.FindStringSubmatch(text); m != nil {
		fields.Identifiers["registration_number"] = m[1]
	}
	if m := reIDNumber.FindStringSubmatch(text); m != nil {
		fields.Identifiers["id_number"] = m[1]
	}
}

var reSubject = regexp.MustCompile(`(?i)(?:RE|REF|SUBJECT)\s*[:.]?\s*(.+)`)

func extractSender(text string) string {
	lines := strings.Split(text, "\n")
	for _, l := range lines[:limit(len(lines), 5)] {
		if len(l) > 3 && !containsDigit(l) {
			return strings.TrimSpace(l)
		}
	}
	return ""
}

func extractSubject(text string) string {
	if m := reSubject.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func limit(n, cap int) int {
	if n > cap {
		return cap
	}
	return n
}

var (
	reGovName       = regexp.MustCompile(`(?i)(?:NAME|FULL\s*NAME|NAME\s*OF\s*CHILD)\s*[:.]?\s*([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)+)`)
	reGovDOB        = regexp.MustCompile(`(?i)(?:DATE\s*OF\s*BIRTH|BORN\s*ON|D\.?O\.?B\.?)\s*[:.]?\s*(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`)
	reGovPlace      = regexp.MustCompile(`(?i)(?:PLACE\s*OF\s*BIRTH|BORN\s*(?:AT|IN)|DISTRICT)\s*[:.]?\s*([A-Za-z][A-Za-z\s]+?)(?:\n|,|\.)`)
	reGovID         = regexp.MustCompile(`(?i)(?:CERTIFICATE\s*NO|CERT\.?\s*NO|ID\s*NO|ENTRY\s*NO|NO\.?)\s*[:.]?\s*([A-Z0-9/-]+)`)
	reGovFather     = regexp.MustCompile(`(?i)(?:FATHER|NAME\s*OF\s*FATHER|FATHER'?S?\s*NAME)\s*[:.]?\s*([A-Za-z][A-Za-z\s]+?)(?:\n|,|\.)`)
	reGovMother     = regexp.MustCompile(`(?i)(?:MOTHER|NAME\s*OF\s*MOTHER|MOTHER'?S?\s*NAME|MAIDEN\s*NAME)\s*[:.]?\s*([A-Za-z][A-Za-z\s]+?)(?:\n|,|\.)`)
	reGovAuthority  = regexp.MustCompile(`(?i)REPUBLIC\s*OF\s*KENYA|DIRECTOR\s*OF\s*CIVIL\s*REGISTRATION|REGISTRAR`)
)

func extractGovernmentIDFields(text string, docType DocumentType, fields *ExtractionFields) {
	if m := reGovName.FindStringSubmatch(text); m != nil {
		fields.FullName = strings.TrimSpace(m[1])
	}
	if m := reGovDOB.FindStringSubmatch(text); m != nil {
		fields.DateOfBirth = m[1]
	}
	if m := reGovPlace.FindStringSubmatch(text); m != nil {
		fields.PlaceOfBirth = strings.TrimSpace(m[1])
	}
	if m := reGovID.FindStringSubmatch(text); m != nil {
		fields.IDNumber = m[1]
		fields.Identifiers["certificate_number"] = m[1]
	}
	if m := reGovFather.FindStringSubmatch(text); m != nil {
		fields.FatherName = strings.TrimSpace(m[1])
	}
	if m := reGovMother.FindStringSubmatch(text); m != nil {
		fields.MotherName = strings.TrimSpace(m[1])
	}
	if reGovAuthority.MatchString(text) {
		fields.IssuingAuthority = "Republic of Kenya - Civil Registration"
	}
	_ = docType
}
