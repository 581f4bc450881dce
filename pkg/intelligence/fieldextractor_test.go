package intelligence

import "testing"

func TestDetectDocumentTypePriority(t *testing.T) {
	cases := []struct {
		text string
		want DocumentType
	}{
		{"REPUBLIC OF KENYA\nBIRTH CERTIFICATE\nName of child: Jane", DocBirthCertificate},
		{"NATIONAL ID CARD\nRepublic of Kenya", DocNationalID},
		{"PASSPORT\nRepublic of Kenya", DocPassport},
		{"DRIVING LICENCE\nClass B", DocDrivingLicense},
		{"INVOICE #123\nDue Date: 2024-01-01", DocInvoice},
		{"RECEIPT\nTOTAL: 50.00", DocReceipt},
		{"STUDENT REGISTRATION FORM\nSemester 1", DocForm},
		{"Dear Sir,\nThank you for your letter.\nYours faithfully,\nJohn", DocLetter},
		{"just some unrelated scribble", DocUnknown},
	}
	for _, c := range cases {
		if got := DetectDocumentType(c.text); got != c.want {
			t.Fatalf("DetectDocumentType(%q) = %s, want %s", c.text, got, c.want)
		}
	}
}

func TestDetectCurrencyPicksMostFrequent(t *testing.T) {
	if got := DetectCurrency("Paid $100 in USD"); got != "USD" {
		t.Fatalf("got %s", got)
	}
	if got := DetectCurrency("KES 500 paid, KES 200 change"); got != "KES" {
		t.Fatalf("got %s", got)
	}
}

func TestDetectCurrencyDefaultsToKES(t *testing.T) {
	if got := DetectCurrency("no currency symbols here"); got != "KES" {
		t.Fatalf("got %s", got)
	}
}

func TestExtractFieldsReceiptUsesConsensusValues(t *testing.T) {
	consensus := map[string]ConsensusResult{
		"total_amount": {FinalValue: "123.45", HasFinalValue: true},
		"vendor":       {FinalValue: "ACME LTD", HasFinalValue: true},
		"date":         {FinalValue: "2024-01-01", HasFinalValue: true},
	}
	fields := ExtractFields("irrelevant raw text", DocReceipt, "USD", consensus)

	if fields.Vendor != "ACME LTD" {
		t.Fatalf("got vendor %q", fields.Vendor)
	}
	if !fields.HasTotal || fields.TotalAmount != 123.45 {
		t.Fatalf("got total %v hasTotal=%v", fields.TotalAmount, fields.HasTotal)
	}
	if fields.Date != "2024-01-01" {
		t.Fatalf("got date %q", fields.Date)
	}
	if fields.Currency != "USD" {
		t.Fatalf("got currency %q", fields.Currency)
	}
}

func TestExtractFieldsLetterUsesSenderAndSubject(t *testing.T) {
	text := "Jane Doe\nRE: Account Closure\nDear Sir,\nI am writing to close my account."
	fields := ExtractFields(text, DocLetter, "KES", map[string]ConsensusResult{})
	if fields.Sender != "Jane Doe" {
		t.Fatalf("got sender %q", fields.Sender)
	}
	if fields.Subject != "Account Closure" {
		t.Fatalf("got subject %q", fields.Subject)
	}
}
