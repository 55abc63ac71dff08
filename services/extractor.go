package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"censo-sisreg/models"
)

// RecordAssembler orquestra os seis extratores de campo sobre o texto de um
// documento. O contrato é total: Assemble nunca falha, campos sem valor ficam
// no sentinel e um extrator nunca bloqueia o outro.
type RecordAssembler struct {
	normalizer *TextNormalizer
	validator  *MunicipioValidator
	// keepRaw mantém o texto bruto limpo do município quando o gazetteer não
	// reconhece; false rebaixa para o sentinel.
	keepRaw bool
	logger  *zap.Logger
}

func NewRecordAssembler(normalizer *TextNormalizer, validator *MunicipioValidator, keepRaw bool, logger *zap.Logger) *RecordAssembler {
	return &RecordAssembler{
		normalizer: normalizer,
		validator:  validator,
		keepRaw:    keepRaw,
		logger:     logger,
	}
}

// Assemble extrai os seis campos do texto e devolve um Registro sempre
// completamente populado (valor ou sentinel, nunca vazio).
func (a *RecordAssembler) Assemble(texto, arquivo string) models.Registro {
	reg := models.NovoRegistro(arquivo)

	// CNS primeiro: o código de solicitação usa o CNS já extraído para não
	// confundir duas sequências longas de dígitos vizinhas.
	reg.CNS = a.ExtrairCNS(texto)
	reg.CodigoSolicitacao = a.ExtrairCodigo(texto, reg.CNS)
	reg.UnidadeSolicitante = a.ExtrairMunicipio(texto)
	reg.UnidadeExecutante = a.ExtrairUnidadeExecutante(texto)
	reg.DataExame = a.ExtrairDataExame(texto)
	reg.Procedimento = a.ExtrairProcedimento(texto)
	reg.Completo = reg.EhCompleto()

	if !reg.Completo {
		a.logger.Warn("Registro incompleto após extração",
			zap.String("arquivo", arquivo),
			zap.String("codigo", reg.CodigoSolicitacao))
	}
	return reg
}

// ---------------------------------------------------------------------------
// CNS (Cartão Nacional de Saúde)

// cnsRules: rótulos explícitos, busca na seção de dados do paciente e, por
// último, qualquer token isolado de 15 dígitos.
var cnsRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)CNS\s*:?\s*(\d{15})`),
	regexp.MustCompile(`(?i)CNS\s*:?\s*(\d+)`),
	regexp.MustCompile(`(?i)DADOS\s+DO\s+PACIENTE[\s\S]*?CNS\s*:?\s*(\d+)`),
	regexp.MustCompile(`(?i)Apelido\s*:?\s*(\d{15})`),
	regexp.MustCompile(`\b(\d{15})\b`),
}

// ExtrairCNS percorre a cascata de padrões do CNS; o primeiro casamento vence.
func (a *RecordAssembler) ExtrairCNS(texto string) string {
	for _, re := range cnsRules {
		if m := re.FindStringSubmatch(texto); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return models.NaoEncontrado
}

// ---------------------------------------------------------------------------
// Código de solicitação

// regraCodigo descreve um degrau da cascata do código de solicitação.
// ancorado5 marca os padrões que já exigem o prefixo 5 no próprio regex;
// candidatos sem prefixo 5 só são aceitos (como reserva) vindos de padrões
// de fallback.
type regraCodigo struct {
	re        *regexp.Regexp
	ancorado5 bool
}

var codigoRules = []regraCodigo{
	// Código emendado (ou quase) na data de atendimento. O \s* cobre tanto
	// "51234567801/02/2024" quanto "512345678 01/02/2024".
	{regexp.MustCompile(`(?i)Vaga\s*Solicitada\s*:\s*Vaga\s*Consumida\s*:\s*(5\d{8})\s*\d{2}/\d{2}/\d{4}`), true},
	{regexp.MustCompile(`(?i)Consumida\s*:\s*(5\d{8})\s*\d{2}/\d{2}/\d{4}`), true},
	{regexp.MustCompile(`:\s*(5\d{8})\s*\d{2}/\d{2}/\d{4}`), true},
	{regexp.MustCompile(`\b(5\d{8})\s*\d{2}/\d{2}/\d{4}`), true},

	// Rótulos de seção e rótulos adjacentes.
	{regexp.MustCompile(`(?i)C[óo]digo\s*d[ae]\s*Solicita[çc][ãa]o\s*:?[\s\S]{0,100}?(5\d{8})\b`), true},
	{regexp.MustCompile(`(?i)C[óo]digo\s*d[ae]\s*Solicita[çc][ãa]o\s*:?\s*(5\d+)`), true},
	{regexp.MustCompile(`(?i)Vaga\s+Solicitada\s*:?\s*Vaga\s+Consumida\s*:?[\s\S]{0,100}?(5\d{8})\b`), true},
	{regexp.MustCompile(`(?i)1[ªa]\s+Vez[\s\S]{0,50}?(5\d{8})\b`), true},

	// Isolado em linha própria, depois em qualquer lugar.
	{regexp.MustCompile(`(?m)^\s*(5\d{8})\s*$`), true},
	{regexp.MustCompile(`\b(5\d{8})\b`), true},

	// Fallbacks sem o prefixo 5.
	{regexp.MustCompile(`(?i)C[óo]digo\s*d[ae]\s*Solicita[çc][ãa]o\s*:?[\s\S]{0,100}?(\d{9})\b`), false},
	{regexp.MustCompile(`(?i)C[óo]digo\s*d[ae]\s*Solicita[çc][ãa]o\s*:?\s*(\d+)`), false},
	{regexp.MustCompile(`(?i)Vaga\s+Solicitada\s*:?\s*Vaga\s+Consumida\s*:?[\s\S]{0,100}?(\d{9})\b`), false},
	{regexp.MustCompile(`(?i)1[ªa]\s+Vez[\s\S]{0,50}?(\d{9})\b`), false},
	{regexp.MustCompile(`(?m)^\s*(\d{9})\s*$`), false},
	{regexp.MustCompile(`\b(\d{9})\b`), false},
}

// ExtrairCodigo percorre a cascata do código de solicitação. Aceitação: nove
// dígitos exatos e diferente do CNS. Candidato com prefixo 5 encerra a busca
// na hora; candidato sem prefixo 5 vira reserva e a varredura continua, pois
// os códigos válidos desta família de documentos convencionalmente começam
// com 5 (heurística, não regra dura).
func (a *RecordAssembler) ExtrairCodigo(texto, cns string) string {
	reserva := ""
	for _, regra := range codigoRules {
		m := regra.re.FindStringSubmatch(texto)
		if m == nil {
			continue
		}
		codigo := strings.TrimSpace(m[1])
		if len(codigo) != 9 || codigo == cns {
			continue
		}
		if strings.HasPrefix(codigo, "5") {
			return codigo
		}
		if reserva == "" && !regra.ancorado5 {
			reserva = codigo
		}
	}
	if reserva != "" {
		return reserva
	}
	return models.NaoEncontrado
}

// ---------------------------------------------------------------------------
// Município de residência (unidade solicitante na planilha)

var (
	// Captura após o rótulo até a próxima borda reconhecível: CEP, telefone,
	// justificativa ou a próxima seção de unidade.
	municipioLabelRE = regexp.MustCompile(`(?im)Munic[íi]pio\s+de\s+Resid[êe]ncia\s*:?\s*([^\r\n]+?)\s*(?:CEP\b|\d{5}-?\d{3}|Telefone|Justificativa|UNIDADE|$)`)
	// Cidade-UF grudada depois do CEP, ex: "CEP: CENTROPOMBAL - PB".
	municipioCEPRE = regexp.MustCompile(`(?i)CEP\s*:\s*([A-ZÀ-Ú][A-ZÀ-Ú\s]*[-–]\s*[A-Z]{2})`)
	// Qualquer "CIDADE - UF" sem dígitos.
	municipioUFRE = regexp.MustCompile(`([A-ZÀ-Ú][A-ZÀ-Ú\s]+[-–]\s*[A-Z]{2})\b`)

	nacionalidadeRE = regexp.MustCompile(`(?i)\bBRASILEIR[AO]\b`)
	ufSuffixRE      = regexp.MustCompile(`\s*[-–]\s*[A-Z]{2}\s*$`)
	temLetraRE      = regexp.MustCompile(`[A-Za-zÀ-Úà-ú]`)
	temDigitoRE     = regexp.MustCompile(`\d`)
)

// ExtrairMunicipio localiza o município de residência e o valida contra o
// gazetteer. Com o validador sem resposta, a política keepRaw decide entre o
// texto bruto limpo e o sentinel.
func (a *RecordAssembler) ExtrairMunicipio(texto string) string {
	bruto := ""
	if m := municipioLabelRE.FindStringSubmatch(texto); m != nil {
		bruto = m[1]
	} else if m := municipioCEPRE.FindStringSubmatch(texto); m != nil {
		bruto = m[1]
	} else {
		// Candidatos CIDADE-UF espalhados; o primeiro sem dígitos serve.
		for _, cand := range municipioUFRE.FindAllStringSubmatch(texto, -1) {
			if !temDigitoRE.MatchString(cand[1]) {
				bruto = cand[1]
				break
			}
		}
	}

	limpo := a.limparMunicipio(bruto)
	if limpo != "" {
		if nome := a.validator.Validate(limpo); nome != models.NaoEncontrado {
			return nome
		}
	}

	// Último recurso: contenção direta do gazetteer sobre o documento inteiro.
	if nome := a.validator.Validate(texto); nome != models.NaoEncontrado {
		return nome
	}

	if limpo != "" && a.keepRaw {
		return limpo
	}
	return models.NaoEncontrado
}

// limparMunicipio remove o token de nacionalidade, a sigla do estado no fim e
// normaliza os espaços.
func (a *RecordAssembler) limparMunicipio(s string) string {
	if s == "" {
		return ""
	}
	s = nacionalidadeRE.ReplaceAllString(s, " ")
	s = ufSuffixRE.ReplaceAllString(s, "")
	s = a.normalizer.CollapseWhitespace(s)
	if utf8.RuneCountInString(s) < 3 || !temLetraRE.MatchString(s) {
		return ""
	}
	return s
}

// ---------------------------------------------------------------------------
// Unidade executante

var (
	executanteNomeRE = regexp.MustCompile(`(?i)UNIDADE\s*EXECUTANTE[\s\S]*?Nome\s*:\s*([^\r\n:]+)`)

	// Fallbacks quando a seção não existe ou a limpeza descarta o resultado.
	executanteFallbacks = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(HOSPITAL\s+[^\r\n:]+)`),
		regexp.MustCompile(`(?i)EXECUTANTE[\s\S]*?Nome\s*:\s*([A-ZÀ-Ú][A-ZÀ-Ú\s]+)`),
		regexp.MustCompile(`(?i)Nome\s*:\s*([A-ZÀ-Ú][^\r\n:]*?)[\s\S]*?Endere[çc]o\s*:`),
	}

	cnesLabelRE      = regexp.MustCompile(`(?i)Cod\.?\s*CNES\s*:?|CNES\s*:?|^Cod\.?\s+`)
	primeiroDigitoRE = regexp.MustCompile(`\d`)
	// Tudo que não é letra, espaço ou hífen.
	pontuacaoRE  = regexp.MustCompile(`[^A-Za-zÀ-Úà-ú\s\-]`)
	hifenSoltoRE = regexp.MustCompile(`(^|\s)-+|-+($|\s)`)
)

// ExtrairUnidadeExecutante captura o nome da unidade executante e aplica a
// limpeza; a cascata de fallback cobre documentos sem a seção explícita.
func (a *RecordAssembler) ExtrairUnidadeExecutante(texto string) string {
	if m := executanteNomeRE.FindStringSubmatch(texto); m != nil {
		if limpo := a.limparUnidade(m[1]); limpo != "" {
			return limpo
		}
	}
	for _, re := range executanteFallbacks {
		if m := re.FindStringSubmatch(texto); m != nil {
			if limpo := a.limparUnidade(m[1]); limpo != "" {
				return limpo
			}
		}
	}
	return models.NaoEncontrado
}

// limparUnidade assume que nome de unidade não tem dígito: tudo a partir do
// primeiro dígito é ruído de cauda (CNES, telefone) e é truncado. Depois caem
// os rótulos CNES, a pontuação (exceto hífen interno) e os espaços repetidos.
func (a *RecordAssembler) limparUnidade(s string) string {
	if loc := primeiroDigitoRE.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = cnesLabelRE.ReplaceAllString(s, " ")
	s = pontuacaoRE.ReplaceAllString(s, " ")
	s = hifenSoltoRE.ReplaceAllString(s, " ")
	s = a.normalizer.CollapseWhitespace(s)
	if utf8.RuneCountInString(s) < 3 || !temLetraRE.MatchString(s) {
		return ""
	}
	return s
}

// ---------------------------------------------------------------------------
// Data do exame

var (
	dataRules = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Data\s*e\s*Hor[áa]rio\s*de\s*Atendimento\s*:?\s*([^\r\n]+)`),
		regexp.MustCompile(`(\d{2}/\d{2}/\d{4}\s*\d{2}:\d{2})`),
		regexp.MustCompile(`(?i)Data\s*de\s*Atendimento\s*:?\s*([^\r\n]+)`),
	}
	dataDDMMYYYYRE = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})`)
)

// ExtrairDataExame busca a data de atendimento e trunca para DD/MM/AAAA,
// descartando hora e ruído de cauda quando a subdata existe.
func (a *RecordAssembler) ExtrairDataExame(texto string) string {
	for _, re := range dataRules {
		m := re.FindStringSubmatch(texto)
		if m == nil {
			continue
		}
		bruto := strings.TrimSpace(m[1])
		if d := dataDDMMYYYYRE.FindStringSubmatch(bruto); d != nil {
			return d[1]
		}
		return bruto
	}
	return models.NaoEncontrado
}

// ---------------------------------------------------------------------------
// Procedimento

var (
	procedimentoLabelRE = regexp.MustCompile(`(?i)Procedimentos\s*Autorizados\s*:?[\s\S]*?([^\r\n]+?)(?:\s{2,}|\r|\n|$)`)

	// Categorias clínicas em ordem fixa de prioridade; um casamento aqui é
	// mais específico e vence a limpeza genérica.
	procedimentoCategorias = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(CONSULTA\s+EM\s+[A-ZÀ-Úa-zà-ú\s\-]+)`),
		regexp.MustCompile(`(?i)(TOMOGRAFIA\s+[A-ZÀ-Úa-zà-ú\s\-]+)`),
		regexp.MustCompile(`(?i)(RESSONANCIA\s+[A-ZÀ-Úa-zà-ú\s\-]+)`),
		regexp.MustCompile(`(?i)(EXAME\s+[A-ZÀ-Úa-zà-ú\s\-]+)`),
	}

	codRotuloRE = regexp.MustCompile(`(?i)Cod\.\s*Unificado\s*:?|Cod\.\s*Interno\s*:?`)
	letrasRE    = regexp.MustCompile(`[A-ZÀ-Úa-zà-ú\s\-]+`)
)

// ExtrairProcedimento captura o primeiro trecho de linha após o rótulo de
// procedimentos autorizados e o limpa; esgotada a via principal, as categorias
// clínicas são tentadas contra o documento inteiro.
func (a *RecordAssembler) ExtrairProcedimento(texto string) string {
	bruto := ""
	if m := procedimentoLabelRE.FindStringSubmatch(texto); m != nil {
		bruto = strings.TrimSpace(m[1])
	}

	if limpo := a.limparProcedimento(bruto); limpo != "" {
		return limpo
	}

	for _, re := range procedimentoCategorias {
		if m := re.FindStringSubmatch(texto); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return models.NaoEncontrado
}

// limparProcedimento privilegia o span categoria+descrição quando presente;
// sem categoria, descarta rótulos de código e tudo que não for letra, espaço
// ou hífen. Resultado com menos de 3 caracteres é descartado.
func (a *RecordAssembler) limparProcedimento(s string) string {
	if s == "" {
		return ""
	}
	for _, re := range procedimentoCategorias {
		if m := re.FindStringSubmatch(s); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	s = codRotuloRE.ReplaceAllString(s, " ")
	s = strings.Join(letrasRE.FindAllString(s, -1), " ")
	s = a.normalizer.CollapseWhitespace(s)
	if utf8.RuneCountInString(s) < 3 {
		return ""
	}
	return s
}
