package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"censo-sisreg/models"
)

// Chaves internas dos campos, usadas no mapeamento cabeçalho -> campo.
const (
	campoCodigo       = "codigo_solicitacao"
	campoCNS          = "cns"
	campoSolicitante  = "unidade_solicitante"
	campoExecutante   = "unidade_executante"
	campoData         = "data_exame"
	campoProcedimento = "procedimento"
	campoArquivo      = "arquivo"
)

// ColunasPadrao é o cabeçalho criado quando a planilha de destino está vazia.
// Os nomes são os da planilha original do censo.
var ColunasPadrao = []string{
	"COD. SOLICITAÇÃO",
	"CNS DO PACIENTE",
	"UNID. SOLICITANTE",
	"UNID. EXECUTANTE",
	"DATA DO EXAME/CONSULTA",
	"CONSULTA/EXAME/ESPECIALIDADE",
	"ARQUIVO",
}

// mapeamentoColunas aceita também grafias alternativas de cabeçalho vistas em
// planilhas reais, para não quebrar quando a aba não usa os nomes padrão.
var mapeamentoColunas = map[string]string{
	"COD. SOLICITAÇÃO":             campoCodigo,
	"CÓDIGO DE SOLICITAÇÃO":        campoCodigo,
	"CÓDIGO SOLICITAÇÃO":           campoCodigo,
	"CNS DO PACIENTE":              campoCNS,
	"CNS":                          campoCNS,
	"UNID. SOLICITANTE":            campoSolicitante,
	"UNIDADE SOLICITANTE":          campoSolicitante,
	"UNID. EXECUTANTE":             campoExecutante,
	"UNIDADE EXECUTANTE":           campoExecutante,
	"DATA DO EXAME/CONSULTA":       campoData,
	"DATA DA AUTORIZAÇÃO":          campoData,
	"CONSULTA/EXAME/ESPECIALIDADE": campoProcedimento,
	"PROCEDIMENTO":                 campoProcedimento,
	"ESPECIALIDADE":                campoProcedimento,
	"PAES":                         campoProcedimento,
	"ARQUIVO":                      campoArquivo,
}

// ResultadoAppend resume um lote processado pelo appender.
type ResultadoAppend struct {
	Adicionadas [][]string        `json:"-"`
	Adicionados int               `json:"registros_adicionados"`
	Duplicados  []string          `json:"codigos_duplicados"`
	Invalidos   []models.Registro `json:"registros_invalidos,omitempty"`
	Mensagem    string            `json:"mensagem"`
}

// DeduplicatingAppender transforma registros em linhas posicionadas conforme o
// cabeçalho do destino, descartando códigos de solicitação já presentes.
// A lógica é pura: leitura e escrita da planilha ficam com o PlanilhaStore.
type DeduplicatingAppender struct {
	logger *zap.Logger
}

func NewDeduplicatingAppender(logger *zap.Logger) *DeduplicatingAppender {
	return &DeduplicatingAppender{logger: logger}
}

// AppendBatch filtra o lote contra as linhas existentes e devolve as linhas a
// adicionar, os códigos duplicados e os registros inválidos.
//
// A coluna do código de solicitação é obrigatória no cabeçalho: sem ela não há
// deduplicação possível e o lote inteiro falha. Dentro do mesmo lote o conjunto
// de códigos cresce conforme as linhas são aceitas: a primeira ocorrência entra,
// as seguintes são reportadas como duplicadas.
func (ap *DeduplicatingAppender) AppendBatch(header []string, existentes [][]string, registros []models.Registro) (*ResultadoAppend, error) {
	indices := mapearIndices(header)
	idxCodigo, ok := indices[campoCodigo]
	if !ok {
		return nil, fmt.Errorf("coluna do código de solicitação não encontrada no cabeçalho da planilha")
	}

	existentesSet := make(map[string]bool)
	for i, linha := range existentes {
		if i == 0 {
			// primeira linha é o cabeçalho
			continue
		}
		if idxCodigo < len(linha) && linha[idxCodigo] != "" {
			existentesSet[linha[idxCodigo]] = true
		}
	}

	res := &ResultadoAppend{Duplicados: []string{}}
	for _, reg := range registros {
		campos := validarEFormatar(reg)
		codigo := campos[campoCodigo]
		if codigo == "" {
			res.Invalidos = append(res.Invalidos, reg)
			continue
		}
		if existentesSet[codigo] {
			res.Duplicados = append(res.Duplicados, codigo)
			continue
		}
		existentesSet[codigo] = true

		linha := make([]string, len(header))
		for campo, idx := range indices {
			if idx < len(linha) {
				linha[idx] = campos[campo]
			}
		}
		res.Adicionadas = append(res.Adicionadas, linha)
	}
	res.Adicionados = len(res.Adicionadas)
	res.Mensagem = montarMensagem(res)

	ap.logger.Info("Lote deduplicado",
		zap.Int("adicionados", res.Adicionados),
		zap.Int("duplicados", len(res.Duplicados)),
		zap.Int("invalidos", len(res.Invalidos)))
	return res, nil
}

// mapearIndices localiza, para cada campo, o índice da coluna correspondente
// no cabeçalho (comparação por nome normalizado).
func mapearIndices(header []string) map[string]int {
	indices := make(map[string]int)
	for i, nome := range header {
		chave := strings.ToUpper(strings.TrimSpace(nome))
		if campo, ok := mapeamentoColunas[chave]; ok {
			if _, ja := indices[campo]; !ja {
				indices[campo] = i
			}
		}
	}
	return indices
}

var naoDigitoRE = regexp.MustCompile(`[^0-9]`)

// formatosData aceitos além do canônico, na ordem de tentativa.
var formatosData = []string{"02/01/2006", "2006-01-02", "02-01-2006", "02.01.2006"}

// validarEFormatar transforma um Registro nos valores que vão para a planilha:
// código e CNS só com dígitos, data coagida para DD/MM/AAAA quando possível e
// sentinels rebaixados para célula vazia.
func validarEFormatar(reg models.Registro) map[string]string {
	out := map[string]string{
		campoCodigo:       somenteDigitos(reg.CodigoSolicitacao),
		campoCNS:          somenteDigitos(reg.CNS),
		campoSolicitante:  valorOuVazio(reg.UnidadeSolicitante),
		campoExecutante:   valorOuVazio(reg.UnidadeExecutante),
		campoData:         formatarData(reg.DataExame),
		campoProcedimento: valorOuVazio(reg.Procedimento),
		campoArquivo:      reg.Arquivo,
	}
	return out
}

func somenteDigitos(s string) string {
	if s == "" || s == models.NaoEncontrado {
		return ""
	}
	return naoDigitoRE.ReplaceAllString(s, "")
}

func valorOuVazio(s string) string {
	if s == models.NaoEncontrado {
		return ""
	}
	return s
}

func formatarData(s string) string {
	if s == "" || s == models.NaoEncontrado {
		return ""
	}
	if m := dataDDMMYYYYRE.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	for _, layout := range formatosData {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.Format("02/01/2006")
		}
	}
	// sem conversão possível, mantém o original
	return s
}

// montarMensagem distingue as três formas do resumo: só duplicados, nada a
// adicionar e o caso normal (com ou sem duplicados ao lado).
func montarMensagem(res *ResultadoAppend) string {
	if res.Adicionados == 0 && len(res.Duplicados) > 0 {
		return fmt.Sprintf("Documento %s já se encontra na planilha. Registros adicionados: 0",
			strings.Join(res.Duplicados, ", "))
	}
	if res.Adicionados == 0 {
		return "Nenhum novo registro para adicionar à planilha"
	}
	msg := fmt.Sprintf("Registros adicionados: %d", res.Adicionados)
	if len(res.Duplicados) > 0 {
		msg = fmt.Sprintf("Documento %s já se encontra na planilha. %s",
			strings.Join(res.Duplicados, ", "), msg)
	}
	return msg
}
