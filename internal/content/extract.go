package content

import (
	"bytes"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"notary/internal/model"
)

const (
	// MaxTextRunes caps extracted text.
	MaxTextRunes = 20000
	// SnippetRunes is the excerpt length stored in published metadata.
	SnippetRunes = 5000

	maxAmounts = 5
	maxDates   = 5
	maxIBANs   = 3
)

var (
	amountRe = regexp.MustCompile(`\b(\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2}))\b`)
	dateRe   = regexp.MustCompile(`\b(20\d{2}[-/](?:0?[1-9]|1[0-2])[-/](?:0?[1-9]|[12]\d|3[01]))\b`)
	ibanRe   = regexp.MustCompile(`\b([A-Z]{2}\d{2}[A-Z0-9]{11,30})\b`)
)

// ExtractText returns the readable text of a document. PDFs are parsed;
// anything else is read as UTF-8. Failures yield an empty string.
func ExtractText(data []byte, filename string) string {
	if isPDF(data, filename) {
		if text, ok := pdfText(data); ok {
			return Truncate(text, MaxTextRunes)
		}
	}
	return Truncate(strings.ToValidUTF8(string(data), ""), MaxTextRunes)
}

func isPDF(data []byte, filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf") || bytes.HasPrefix(data, []byte("%PDF-"))
}

// pdfText recovers from parser panics on malformed files.
func pdfText(data []byte) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			text, ok = "", false
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", false
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", false
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// ExtractFields finds monetary amounts, ISO-like dates and IBANs in text.
func ExtractFields(text string) model.Fields {
	return model.Fields{
		Amounts: firstGroups(amountRe, text, maxAmounts),
		Dates:   firstGroups(dateRe, text, maxDates),
		IBANs:   firstGroups(ibanRe, text, maxIBANs),
	}
}

func firstGroups(re *regexp.Regexp, text string, n int) []string {
	out := make([]string, 0, n)
	for _, m := range re.FindAllStringSubmatch(text, n) {
		out = append(out, m[1])
	}
	return out
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
