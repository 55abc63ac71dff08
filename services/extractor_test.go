package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"censo-sisreg/models"
)

func novoAssembler(keepRaw bool) *RecordAssembler {
	logger := zap.NewNop()
	normalizer := NewTextNormalizer(logger)
	validator := NewMunicipioValidator(normalizer, logger)
	return NewRecordAssembler(normalizer, validator, keepRaw, logger)
}

func TestExtrairCNS(t *testing.T) {
	a := novoAssembler(true)

	assert.Equal(t, "700123456789012", a.ExtrairCNS("CNS: 700123456789012"))
	assert.Equal(t, "700123456789012", a.ExtrairCNS("DADOS DO PACIENTE\nCNS 700123456789012"))
	// token isolado de 15 dígitos como último recurso
	assert.Equal(t, "898001234567890", a.ExtrairCNS("cartão 898001234567890 do paciente"))
	assert.Equal(t, models.NaoEncontrado, a.ExtrairCNS("documento sem cartão"))
}

func TestExtrairCodigoComDataVizinha(t *testing.T) {
	a := novoAssembler(true)

	// código separado da data por espaço
	assert.Equal(t, "512345678",
		a.ExtrairCodigo("Vaga Solicitada: Vaga Consumida: 512345678 01/02/2024", ""))
	// código emendado na data
	assert.Equal(t, "512345678",
		a.ExtrairCodigo("Vaga Consumida: 51234567801/02/2024", ""))
}

func TestExtrairCodigoRotulo(t *testing.T) {
	a := novoAssembler(true)

	assert.Equal(t, "598765432",
		a.ExtrairCodigo("Código da Solicitação: 598765432", ""))
	assert.Equal(t, "512345678",
		a.ExtrairCodigo("CODIGO DE SOLICITACAO\n512345678", ""))
}

func TestExtrairCodigoPreferePrefixoCinco(t *testing.T) {
	a := novoAssembler(true)

	// com os dois presentes, o prefixo 5 vence mesmo aparecendo depois
	assert.Equal(t, "523456789",
		a.ExtrairCodigo("protocolos 412345678 e 523456789 do dia", ""))
}

func TestExtrairCodigoReservaSemPrefixoCinco(t *testing.T) {
	a := novoAssembler(true)

	// sem candidato com prefixo 5, o fallback de nove dígitos serve
	assert.Equal(t, "412345678",
		a.ExtrairCodigo("Código da Solicitação: 412345678", ""))
	assert.Equal(t, models.NaoEncontrado, a.ExtrairCodigo("sem código aqui", ""))
}

func TestExtrairMunicipioValidado(t *testing.T) {
	a := novoAssembler(true)

	assert.Equal(t, "POMBAL",
		a.ExtrairMunicipio("Município de Residência: POMBAL CEP: 58840-000"))
	// grafia sem acento no documento, canônica na saída
	assert.Equal(t, "JOÃO PESSOA",
		a.ExtrairMunicipio("Municipio de Residencia: JOAO PESSOA Telefone: 83999990000"))
}

func TestExtrairMunicipioKeepRaw(t *testing.T) {
	texto := "Município de Residência: VILA FICTICIA"

	comRaw := novoAssembler(true)
	assert.Equal(t, "VILA FICTICIA", comRaw.ExtrairMunicipio(texto))

	semRaw := novoAssembler(false)
	assert.Equal(t, models.NaoEncontrado, semRaw.ExtrairMunicipio(texto))
}

func TestExtrairMunicipioRemoveNacionalidade(t *testing.T) {
	a := novoAssembler(true)

	assert.Equal(t, "PATOS",
		a.ExtrairMunicipio("Município de Residência: BRASILEIRA PATOS - PB"))
}

func TestExtrairUnidadeExecutante(t *testing.T) {
	a := novoAssembler(true)

	assert.Equal(t, "HOSPITAL SAO JOSE",
		a.ExtrairUnidadeExecutante("UNIDADE EXECUTANTE\nNome: HOSPITAL SAO JOSE CNES: 123456 Endereço"))
	// fallback sem a seção explícita
	assert.Equal(t, "HOSPITAL REGIONAL DE CAJAZEIRAS",
		a.ExtrairUnidadeExecutante("atendimento no HOSPITAL REGIONAL DE CAJAZEIRAS"))
	assert.Equal(t, models.NaoEncontrado, a.ExtrairUnidadeExecutante("texto sem unidade"))
}

func TestExtrairDataExame(t *testing.T) {
	a := novoAssembler(true)

	// a hora é descartada, fica só a data
	assert.Equal(t, "01/02/2024",
		a.ExtrairDataExame("Data e Horário de Atendimento: 01/02/2024 14:30"))
	assert.Equal(t, "15/03/2024",
		a.ExtrairDataExame("consulta confirmada para 15/03/2024 08:00 na unidade"))
	assert.Equal(t, models.NaoEncontrado, a.ExtrairDataExame("sem data marcada"))
}

func TestExtrairProcedimento(t *testing.T) {
	a := novoAssembler(true)

	assert.Equal(t, "CONSULTA EM CARDIOLOGIA GERAL",
		a.ExtrairProcedimento("Procedimentos Autorizados:\nCONSULTA EM CARDIOLOGIA GERAL\nCod. Unificado: 0301010072"))
	// categoria clínica contra o documento inteiro como último recurso
	assert.Equal(t, "TOMOGRAFIA DE CRANIO",
		a.ExtrairProcedimento("encaminhado para TOMOGRAFIA DE CRANIO."))
	// documento termina no procedimento, sem quebra de linha final
	assert.Equal(t, "ULTRASSONOGRAFIA OBSTETRICA",
		a.ExtrairProcedimento("Procedimentos Autorizados:\nULTRASSONOGRAFIA OBSTETRICA"))
	assert.Equal(t, models.NaoEncontrado, a.ExtrairProcedimento("nada autorizado"))
}

func TestAssembleDocumentoCompleto(t *testing.T) {
	a := novoAssembler(true)

	texto := `SISTEMA NACIONAL DE REGULAÇÃO - SISREG III
DADOS DO PACIENTE
Nome: JOSE DA SILVA
CNS: 700123456789012
Município de Residência: POMBAL CEP: 58840-000
UNIDADE EXECUTANTE
Nome: HOSPITAL REGIONAL DE CAJAZEIRAS CNES: 2612345
Endereço: RUA PRINCIPAL
Data e Horário de Atendimento: 15/03/2024 08:30
Procedimentos Autorizados:
CONSULTA EM CARDIOLOGIA GERAL
Vaga Solicitada: Vaga Consumida: 512345678 15/03/2024
`

	reg := a.Assemble(texto, "encaminhamento.pdf")

	assert.Equal(t, "512345678", reg.CodigoSolicitacao)
	assert.Equal(t, "700123456789012", reg.CNS)
	assert.Equal(t, "POMBAL", reg.UnidadeSolicitante)
	assert.Equal(t, "HOSPITAL REGIONAL DE CAJAZEIRAS", reg.UnidadeExecutante)
	assert.Equal(t, "15/03/2024", reg.DataExame)
	assert.Equal(t, "CONSULTA EM CARDIOLOGIA GERAL", reg.Procedimento)
	assert.Equal(t, "encaminhamento.pdf", reg.Arquivo)
	assert.True(t, reg.Completo)
}

func TestAssembleDocumentoVazio(t *testing.T) {
	a := novoAssembler(true)

	reg := a.Assemble("", "vazio.pdf")

	assert.Equal(t, models.NaoEncontrado, reg.CodigoSolicitacao)
	assert.Equal(t, models.NaoEncontrado, reg.CNS)
	assert.Equal(t, models.NaoEncontrado, reg.UnidadeSolicitante)
	assert.Equal(t, models.NaoEncontrado, reg.UnidadeExecutante)
	assert.Equal(t, models.NaoEncontrado, reg.DataExame)
	assert.Equal(t, models.NaoEncontrado, reg.Procedimento)
	assert.False(t, reg.Completo)
}
