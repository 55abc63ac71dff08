package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"censo-sisreg/models"
)

func novoValidator() *MunicipioValidator {
	logger := zap.NewNop()
	return NewMunicipioValidator(NewTextNormalizer(logger), logger)
}

func TestValidateGrafiaCanonica(t *testing.T) {
	v := novoValidator()

	// casamento sem acentos devolve a grafia canônica acentuada
	assert.Equal(t, "JOÃO PESSOA", v.Validate("joao pessoa"))
	assert.Equal(t, "SÃO BENTO", v.Validate("SAO BENTO"))
	assert.Equal(t, "POMBAL", v.Validate("POMBAL"))
}

func TestValidateComRuido(t *testing.T) {
	v := novoValidator()

	// CEP grudado na sigla do estado
	assert.Equal(t, "POMBAL", v.Validate("POMBAL - PB58840-000"))
	// ruído de endereço ao redor
	assert.Equal(t, "CAJAZEIRAS", v.Validate("CENTRO CAJAZEIRAS - PB"))
}

func TestValidateSemCasamento(t *testing.T) {
	v := novoValidator()

	assert.Equal(t, models.NaoEncontrado, v.Validate("MOSSOROZINHO DO NORTE"))
	assert.Equal(t, models.NaoEncontrado, v.Validate(""))
	assert.Equal(t, models.NaoEncontrado, v.Validate("   "))
}

func TestValidateIdempotente(t *testing.T) {
	v := novoValidator()

	// o resultado canônico valida para si mesmo
	nome := v.Validate("campina grande")
	assert.Equal(t, "CAMPINA GRANDE", nome)
	assert.Equal(t, nome, v.Validate(nome))
}

func TestMunicipiosListaCanonica(t *testing.T) {
	v := novoValidator()

	lista := v.Municipios()
	assert.NotEmpty(t, lista)
	assert.Contains(t, lista, "JOÃO PESSOA")
	assert.Contains(t, lista, "CAMPINA GRANDE")
	// a ordem é a do gazetteer, começando pelo primeiro nome
	assert.Equal(t, "AGUIAR", lista[0])
}
