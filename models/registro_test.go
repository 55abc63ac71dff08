package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNovoRegistroComecaNoSentinel(t *testing.T) {
	reg := NovoRegistro("doc.pdf")

	assert.Equal(t, "doc.pdf", reg.Arquivo)
	assert.Equal(t, NaoEncontrado, reg.CodigoSolicitacao)
	assert.Equal(t, NaoEncontrado, reg.Procedimento)
	assert.False(t, reg.EhCompleto())
}

func TestEhCompleto(t *testing.T) {
	reg := Registro{
		CodigoSolicitacao:  "512345678",
		CNS:                "700123456789012",
		UnidadeSolicitante: "POMBAL",
		UnidadeExecutante:  "HOSPITAL REGIONAL",
		DataExame:          "01/02/2024",
		Procedimento:       "CONSULTA EM CARDIOLOGIA",
	}
	assert.True(t, reg.EhCompleto())

	reg.DataExame = NaoEncontrado
	assert.False(t, reg.EhCompleto())

	reg.DataExame = ""
	assert.False(t, reg.EhCompleto())
}
