package intelligence

import "fmt"

// explainConfidence generates a short human-readable explanation of the
// extraction's confidence, supplementing spec §6's confidence_explanation
// field (SPEC_FULL §4, grounded on
// original_source/document_intelligence.py::_generate_explanation).
func explainConfidence(docType DocumentType, confidence float64, warnings []string) string {
	if docType == "" || docType == DocUnknown {
		return "Could not determine the document type. Please ensure the image is clear."
	}
	base := fmt.Sprintf("This appears to be a %s.", docType)
	switch {
	case confidence > 0.85:
		return base + " The data was extracted with high confidence."
	case confidence > 0.6:
		if len(warnings) > 0 {
			return fmt.Sprintf("%s Some fields may require review: %s.", base, warnings[0])
		}
		return base + " Please review the extracted fields."
	default:
		return base + " The image quality made extraction difficult. Please verify all fields."
	}
}
