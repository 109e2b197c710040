package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/aluiziolira/go-promotores/models"
)

// NormalizeOP turns arbitrary user or sheet input into the canonical
// EX-prefixed OP code. It never fails; empty input yields "".
func NormalizeOP(op string) string {
	if op == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range strings.ToUpper(op) {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			continue
		}
		b.WriteRune(r)
	}
	normalized := b.String()

	if isDigits(normalized) {
		return "EX" + normalized
	}
	if !strings.HasPrefix(normalized, "EX") && strings.IndexFunc(normalized, isDigit) >= 0 {
		return "EX" + keepDigits(normalized)
	}
	return normalized
}

// OPVariants returns the normalized spellings tried when an exact match
// on needle finds nothing: the needle itself, its "EX-"/"EX " forms and
// its bare suffix.
func OPVariants(needle string) []string {
	rest := needle
	if runes := []rune(needle); len(runes) >= 2 {
		rest = string(runes[2:])
	} else {
		rest = ""
	}

	candidates := []string{needle, "EX-" + rest, "EX " + rest, rest}
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		n := NormalizeOP(c)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanHeader trims, upper-cases and collapses inner whitespace of a
// sheet header. Blank headers stay blank so callers can drop the column.
func CleanHeader(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return ""
	}
	return whitespaceRun.ReplaceAllString(strings.ToUpper(h), " ")
}

type columnRule struct {
	field    string
	patterns []string
}

// Rule order matters: a header is assigned to the first rule that matches.
var columnRules = []columnRule{
	{field: "op", patterns: []string{"OP", "ORDEN", "PEDIDO"}},
	{field: "cliente", patterns: []string{"CLIENTE", "EMPRESA", "EMPRESA_OP"}},
	{field: "nombre", patterns: []string{"NOMBRE", "PERSONA", "CONTACTO"}},
	{field: "descripcion", patterns: []string{"DESCRIPCION", "DESCRIPCIÓN", "TELA", "PRODUCTO"}},
	{field: "cantidad", patterns: []string{"CANTIDAD", "CANT", "QTY"}},
	{field: "talla", patterns: []string{"TALLA", "SIZE", "MEDIDA"}},
	{field: "enlace", patterns: []string{"ENLACE", "LINK", "URL"}},
	{field: "qr", patterns: []string{"QR", "CODIGO"}},
}

// MapColumn returns the canonical record field for a cleaned header, or
// "" when the header matches no known pattern.
func MapColumn(header string) string {
	upper := strings.ToUpper(header)
	for _, rule := range columnRules {
		for _, p := range rule.patterns {
			if strings.Contains(upper, p) {
				return rule.field
			}
		}
	}
	return ""
}

// ValidateRecord ensures a loaded row carries an OP code.
func ValidateRecord(r *models.Record) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.OP) == "" {
		return fmt.Errorf("record missing op")
	}
	return nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isDigit(r) {
			return false
		}
	}
	return true
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
