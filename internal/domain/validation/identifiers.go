// Package validation нормализует значения GTIN и MPN.
// Невалидный ввод не считается ошибкой: GTIN превращается в пустую строку,
// MPN очищается от недопустимых символов и обрезается.
package validation

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// MaxMPNLength - максимальная длина MPN
const MaxMPNLength = 50

var (
	nonDigit       = regexp.MustCompile(`[^0-9]`)
	nonMPN         = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)
	percentOctet   = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
	whitespaceRuns = regexp.MustCompile(`[\s\x{00a0}]+`)

	strictPolicy = bluemonday.StrictPolicy()
)

// ValidGTINLengths - допустимые длины GTIN (GTIN-8, UPC-A, EAN-13, GTIN-14)
var ValidGTINLengths = map[int]struct{}{8: {}, 12: {}, 13: {}, 14: {}}

// ValidateGTIN оставляет только цифры и принимает результат, если его длина
// 8, 12, 13 или 14. В остальных случаях возвращает "".
func ValidateGTIN(s string) string {
	if s == "" {
		return ""
	}

	digits := nonDigit.ReplaceAllString(s, "")
	if _, ok := ValidGTINLengths[len(digits)]; !ok {
		return ""
	}

	return digits
}

// ValidateMPN удаляет символы вне [A-Za-z0-9-_.] и обрезает до 50 символов
func ValidateMPN(s string) string {
	mpn := nonMPN.ReplaceAllString(s, "")
	if len(mpn) > MaxMPNLength {
		mpn = mpn[:MaxMPNLength]
	}
	return mpn
}

// SanitizeText очищает однострочное текстовое поле из формы или запроса:
// удаляет разметку, percent-кодированные октеты и управляющие символы,
// схлопывает пробелы.
func SanitizeText(s string) string {
	if s == "" {
		return ""
	}

	cleaned := stripMarkup(s)
	cleaned = percentOctet.ReplaceAllString(cleaned, "")
	cleaned = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, cleaned)
	cleaned = whitespaceRuns.ReplaceAllString(cleaned, " ")

	return strings.TrimSpace(cleaned)
}

const maxMarkupPasses = 3

// stripMarkup удаляет теги, в том числе закодированные сущностями.
// Результат не содержит ни тегов, ни сущностей, которые раскрываются в теги.
func stripMarkup(s string) string {
	for i := 0; i < maxMarkupPasses; i++ {
		cleaned := html.UnescapeString(strictPolicy.Sanitize(html.UnescapeString(s)))
		if cleaned == s {
			return cleaned
		}
		s = cleaned
	}
	return strings.NewReplacer("<", "", ">", "").Replace(s)
}
