package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// readFileContent reads path's content and, for everything but PDF, applies
// the text-acceptance rule: valid UTF-8 with fewer than 30% non-printable
// bytes (excluding \n \r \t). PDFs are exempted: their content is extracted
// as plain text and accepted regardless of the source bytes' shape.
//
// Returns ok=false (no error) when the file is binary and should be
// silently skipped, per the per-file-error-is-non-fatal policy.
func readFileContent(path string, raw []byte, isPDF bool) (content []byte, ok bool, err error) {
	if isPDF {
		text, extractErr := extractPDFText(path)
		if extractErr != nil {
			// A PDF that fails to parse is treated as binary: skip, not fatal.
			return nil, false, nil
		}
		return []byte(text), true, nil
	}

	if !isTextContent(raw) {
		return nil, false, nil
	}

	return raw, true, nil
}

// isTextContent applies the File record's rejection rule.
func isTextContent(content []byte) bool {
	if !utf8.Valid(content) {
		return false
	}
	if len(content) == 0 {
		return true
	}

	nonPrintable := 0
	for _, b := range content {
		if b == '\n' || b == '\r' || b == '\t' {
			continue
		}
		if b < 0x20 || b == 0x7f {
			nonPrintable++
		}
	}

	return float64(nonPrintable)/float64(len(content)) < maxNonPrintableRatio
}

// extractPDFText extracts per-page plain text from a PDF file, joining pages
// with a blank line to approximate Markdown paragraph breaks.
func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = r.Close() }()

	var sb strings.Builder
	total := f.NumPage()
	for i := 1; i <= total; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	return sb.String(), nil
}

// hashContent returns the hex-encoded SHA-256 hash of content.
func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
