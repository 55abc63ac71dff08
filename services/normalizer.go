package services

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextNormalizer concentra as normalizações de texto compartilhadas por todos
// os extratores e pelo validador de municípios.
type TextNormalizer struct {
	logger *zap.Logger
}

func NewTextNormalizer(logger *zap.Logger) *TextNormalizer {
	return &TextNormalizer{logger: logger}
}

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	// CEP grudado na sigla do estado, ex: "POMBAL - PB58840-000"
	glueRE = regexp.MustCompile(`(\s[A-Z]{2})(\d)`)
)

// StripAccents decompõe os caracteres (NFD) e descarta as marcas combinantes.
// Função total: nunca falha, entrada sem acentos passa inalterada.
func (tn *TextNormalizer) StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		// transform.String só falha com transformadores que retornam erro;
		// runes.Remove e norm nunca retornam. Mantém a entrada por segurança.
		return s
	}
	return out
}

// CollapseWhitespace troca sequências de espaço em branco por um único espaço
// e apara as pontas.
func (tn *TextNormalizer) CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}

// GlueFix insere um espaço entre a sigla de duas letras maiúsculas e a
// sequência de dígitos colada nela (CEP emendado no estado).
func (tn *TextNormalizer) GlueFix(s string) string {
	return glueRE.ReplaceAllString(s, "$1 $2")
}

// NormalizeKey produz a chave de comparação usada no casamento contra o
// gazetteer: maiúsculas, sem acentos, com o conserto de CEP grudado.
func (tn *TextNormalizer) NormalizeKey(s string) string {
	return tn.GlueFix(tn.StripAccents(strings.ToUpper(strings.TrimSpace(s))))
}
