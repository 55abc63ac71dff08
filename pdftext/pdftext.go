// Package pdftext extrai o texto bruto dos PDFs do SISREG. O caminho primário
// é a biblioteca ledongthuc/pdf; quando ela não consegue ler o arquivo (PDFs
// com fontes mal declaradas são comuns no SISREG), cai para o binário externo
// pdftotext, se configurado.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// ErrTextoVazio indica um PDF legível porém sem texto algum, tipicamente um
// documento escaneado como imagem.
var ErrTextoVazio = errors.New("pdf sem camada de texto")

// Extractor lê o texto de arquivos PDF no disco.
type Extractor struct {
	// Caminho do binário pdftotext. Vazio desativa o fallback.
	pdftotextPath string
	logger        *zap.Logger
}

func NewExtractor(pdftotextPath string, logger *zap.Logger) *Extractor {
	return &Extractor{pdftotextPath: pdftotextPath, logger: logger}
}

// Extract devolve o texto de todas as páginas, linhas preservadas. Tenta a
// biblioteca nativa primeiro e o pdftotext em seguida; devolve ErrTextoVazio
// quando ambos os caminhos produzem texto vazio.
func (e *Extractor) Extract(ctx context.Context, caminho string) (string, error) {
	texto, err := e.extrairNativo(caminho)
	if err == nil && strings.TrimSpace(texto) != "" {
		return texto, nil
	}
	if err != nil {
		e.logger.Warn("Extração nativa falhou, tentando pdftotext",
			zap.String("arquivo", caminho), zap.Error(err))
	}

	if e.pdftotextPath != "" {
		texto2, err2 := e.extrairPdftotext(ctx, caminho)
		if err2 == nil && strings.TrimSpace(texto2) != "" {
			return texto2, nil
		}
		if err2 != nil {
			e.logger.Warn("pdftotext falhou", zap.String("arquivo", caminho), zap.Error(err2))
		}
	}

	if err != nil {
		return "", fmt.Errorf("erro ao ler pdf %s: %w", caminho, err)
	}
	return "", fmt.Errorf("%w: %s", ErrTextoVazio, caminho)
}

func (e *Extractor) extrairNativo(caminho string) (string, error) {
	f, reader, err := pdf.Open(caminho)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for num := 1; num <= reader.NumPage(); num++ {
		pagina := reader.Page(num)
		if pagina.V.IsNull() {
			continue
		}
		linhas, err := pagina.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("erro na página %d: %w", num, err)
		}
		for _, linha := range linhas {
			for i, palavra := range linha.Content {
				if i > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(palavra.S)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// extrairPdftotext executa o binário externo com -layout, que preserva a
// disposição em colunas dos formulários do SISREG.
func (e *Extractor) extrairPdftotext(ctx context.Context, caminho string) (string, error) {
	cmd := exec.CommandContext(ctx, e.pdftotextPath, "-layout", caminho, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
