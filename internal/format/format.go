// Package format holds the display transforms used by the HTML page and
// the exports: Brazilian currency and DD/MM/YYYY dates. Stored data keeps
// raw numbers and ISO dates.
package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// HighlightCost is the cost from which a task is rendered highlighted.
const HighlightCost = 1000.0

var brl = message.NewPrinter(language.BrazilianPortuguese)

var groupedInt = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

// CurrencyBR formats v as "R$ 1.234,56".
func CurrencyBR(v float64) string {
	return "R$ " + brl.Sprint(number.Decimal(v, number.Scale(2)))
}

// DateISOToBR turns "2026-01-15" into "15/01/2026". Malformed input yields "".
func DateISOToBR(iso string) string {
	parts := strings.Split(strings.TrimSpace(iso), "-")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", pad2(parts[2]), pad2(parts[1]), parts[0])
}

// DateBRToISO turns "15/1/2026" into "2026-01-15". Malformed input yields "".
func DateBRToISO(br string) string {
	parts := strings.Split(strings.TrimSpace(br), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ""
	}
	return fmt.Sprintf("%s-%s-%s", parts[2], pad2(parts[1]), pad2(parts[0]))
}

// NormalizeDate accepts either ISO or DD/MM/YYYY input and returns ISO.
func NormalizeDate(s string) string {
	if strings.Contains(s, "/") {
		return DateBRToISO(s)
	}
	return strings.TrimSpace(s)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// ParseNumber reads "1234.56" as well as the Brazilian "1.234,56".
// A lone dot is a decimal point, so "1.234" is 1.234; use ParseNumberBR
// for values typed by a person.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}

// ParseNumberBR is ParseNumber for form and CLI input, where a value such
// as "1.234" or "12.345.678" only has thousands separators.
func ParseNumberBR(s string) (float64, error) {
	t := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	if groupedInt.MatchString(t) {
		return strconv.ParseFloat(strings.ReplaceAll(t, ".", ""), 64)
	}
	return ParseNumber(s)
}
