package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"censo-sisreg/models"
)

func novaPlanilhaTeste(t *testing.T) *PlanilhaStore {
	t.Helper()
	caminho := filepath.Join(t.TempDir(), "censo.xlsx")
	return NewPlanilhaStore(caminho, "geral", zap.NewNop())
}

func TestRowsCriaPlanilhaComCabecalho(t *testing.T) {
	p := novaPlanilhaTeste(t)

	linhas, err := p.Rows()
	require.NoError(t, err)

	require.Len(t, linhas, 1)
	assert.Equal(t, ColunasPadrao, linhas[0])
}

func TestRowsCriaAbaEmArquivoExistente(t *testing.T) {
	// arquivo já existe mas sem a aba configurada: a leitura cria a aba com o
	// cabeçalho e o deixa persistido no disco
	caminho := filepath.Join(t.TempDir(), "censo.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SaveAs(caminho))
	require.NoError(t, f.Close())

	p := NewPlanilhaStore(caminho, "geral", zap.NewNop())
	linhas, err := p.Rows()
	require.NoError(t, err)
	require.Len(t, linhas, 1)
	assert.Equal(t, ColunasPadrao, linhas[0])

	reaberto, err := excelize.OpenFile(caminho)
	require.NoError(t, err)
	defer reaberto.Close()
	persistidas, err := reaberto.GetRows("geral")
	require.NoError(t, err)
	require.Len(t, persistidas, 1)
	assert.Equal(t, ColunasPadrao, persistidas[0])
}

func TestAppendPersisteLinhas(t *testing.T) {
	p := novaPlanilhaTeste(t)
	ap := NewDeduplicatingAppender(zap.NewNop())

	res, err := p.Append(ap, []models.Registro{registroComCodigo("512345678")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Adicionados)

	linhas, err := p.Rows()
	require.NoError(t, err)
	require.Len(t, linhas, 2)
	assert.Equal(t, "512345678", linhas[1][0])
	assert.Equal(t, "POMBAL", linhas[1][2])
}

func TestAppendDeduplicaEntreLotes(t *testing.T) {
	p := novaPlanilhaTeste(t)
	ap := NewDeduplicatingAppender(zap.NewNop())

	_, err := p.Append(ap, []models.Registro{registroComCodigo("512345678")})
	require.NoError(t, err)

	// segundo lote com o mesmo código não grava nada
	res, err := p.Append(ap, []models.Registro{registroComCodigo("512345678")})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Adicionados)
	assert.Equal(t, []string{"512345678"}, res.Duplicados)

	linhas, err := p.Rows()
	require.NoError(t, err)
	assert.Len(t, linhas, 2)
}

func TestAppendAcumulaLotes(t *testing.T) {
	p := novaPlanilhaTeste(t)
	ap := NewDeduplicatingAppender(zap.NewNop())

	_, err := p.Append(ap, []models.Registro{registroComCodigo("512345678")})
	require.NoError(t, err)
	_, err = p.Append(ap, []models.Registro{registroComCodigo("598765432"), registroComCodigo("534567890")})
	require.NoError(t, err)

	linhas, err := p.Rows()
	require.NoError(t, err)
	require.Len(t, linhas, 4)
	assert.Equal(t, "512345678", linhas[1][0])
	assert.Equal(t, "598765432", linhas[2][0])
	assert.Equal(t, "534567890", linhas[3][0])
}
