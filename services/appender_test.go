package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"censo-sisreg/models"
)

func registroComCodigo(codigo string) models.Registro {
	reg := models.NovoRegistro("teste.pdf")
	reg.CodigoSolicitacao = codigo
	reg.CNS = "700123456789012"
	reg.UnidadeSolicitante = "POMBAL"
	reg.UnidadeExecutante = "HOSPITAL REGIONAL"
	reg.DataExame = "01/02/2024"
	reg.Procedimento = "CONSULTA EM CARDIOLOGIA"
	return reg
}

func linhasComCodigos(codigos ...string) [][]string {
	linhas := [][]string{ColunasPadrao}
	for _, c := range codigos {
		linha := make([]string, len(ColunasPadrao))
		linha[0] = c
		linhas = append(linhas, linha)
	}
	return linhas
}

func TestAppendBatchDeduplicaContraExistentes(t *testing.T) {
	ap := NewDeduplicatingAppender(zap.NewNop())

	res, err := ap.AppendBatch(ColunasPadrao, linhasComCodigos("512345678"),
		[]models.Registro{registroComCodigo("512345678"), registroComCodigo("598765432")})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Adicionados)
	assert.Equal(t, []string{"512345678"}, res.Duplicados)
	assert.Empty(t, res.Invalidos)
	assert.Equal(t, "598765432", res.Adicionadas[0][0])
}

func TestAppendBatchDeduplicaDentroDoLote(t *testing.T) {
	ap := NewDeduplicatingAppender(zap.NewNop())

	// mesmo código duas vezes no mesmo lote: a primeira entra, a segunda não
	res, err := ap.AppendBatch(ColunasPadrao, linhasComCodigos(),
		[]models.Registro{registroComCodigo("512345678"), registroComCodigo("512345678")})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Adicionados)
	assert.Equal(t, []string{"512345678"}, res.Duplicados)
}

func TestAppendBatchRejeitaSemCodigo(t *testing.T) {
	ap := NewDeduplicatingAppender(zap.NewNop())

	semCodigo := registroComCodigo(models.NaoEncontrado)
	res, err := ap.AppendBatch(ColunasPadrao, linhasComCodigos(), []models.Registro{semCodigo})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Adicionados)
	assert.Len(t, res.Invalidos, 1)
	assert.Equal(t, "Nenhum novo registro para adicionar à planilha", res.Mensagem)
}

func TestAppendBatchSemColunaDeCodigo(t *testing.T) {
	ap := NewDeduplicatingAppender(zap.NewNop())

	header := []string{"CNS DO PACIENTE", "ARQUIVO"}
	_, err := ap.AppendBatch(header, [][]string{header}, []models.Registro{registroComCodigo("512345678")})
	assert.Error(t, err)
}

func TestAppendBatchCabecalhoAlternativo(t *testing.T) {
	ap := NewDeduplicatingAppender(zap.NewNop())

	header := []string{"CÓDIGO DE SOLICITAÇÃO", "CNS", "PROCEDIMENTO"}
	res, err := ap.AppendBatch(header, [][]string{header}, []models.Registro{registroComCodigo("512345678")})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Adicionados)
	assert.Equal(t, "512345678", res.Adicionadas[0][0])
	assert.Equal(t, "700123456789012", res.Adicionadas[0][1])
	assert.Equal(t, "CONSULTA EM CARDIOLOGIA", res.Adicionadas[0][2])
}

func TestAppendBatchCoergeData(t *testing.T) {
	ap := NewDeduplicatingAppender(zap.NewNop())

	reg := registroComCodigo("512345678")
	reg.DataExame = "2024-02-01"
	res, err := ap.AppendBatch(ColunasPadrao, linhasComCodigos(), []models.Registro{reg})
	require.NoError(t, err)

	assert.Equal(t, "01/02/2024", res.Adicionadas[0][4])
}

func TestAppendBatchLimpaCodigoECNS(t *testing.T) {
	ap := NewDeduplicatingAppender(zap.NewNop())

	reg := registroComCodigo("512.345.678")
	reg.CNS = "700 1234 5678 9012"
	res, err := ap.AppendBatch(ColunasPadrao, linhasComCodigos(), []models.Registro{reg})
	require.NoError(t, err)

	assert.Equal(t, "512345678", res.Adicionadas[0][0])
	assert.Equal(t, "700123456789012", res.Adicionadas[0][1])
}

func TestMensagens(t *testing.T) {
	ap := NewDeduplicatingAppender(zap.NewNop())

	// só duplicados
	res, err := ap.AppendBatch(ColunasPadrao, linhasComCodigos("512345678"),
		[]models.Registro{registroComCodigo("512345678")})
	require.NoError(t, err)
	assert.Equal(t, "Documento 512345678 já se encontra na planilha. Registros adicionados: 0", res.Mensagem)

	// lote vazio
	res, err = ap.AppendBatch(ColunasPadrao, linhasComCodigos(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Nenhum novo registro para adicionar à planilha", res.Mensagem)

	// caso normal
	res, err = ap.AppendBatch(ColunasPadrao, linhasComCodigos(),
		[]models.Registro{registroComCodigo("512345678")})
	require.NoError(t, err)
	assert.Equal(t, "Registros adicionados: 1", res.Mensagem)

	// misto: duplicado reportado junto da contagem
	res, err = ap.AppendBatch(ColunasPadrao, linhasComCodigos("512345678"),
		[]models.Registro{registroComCodigo("512345678"), registroComCodigo("598765432")})
	require.NoError(t, err)
	assert.Equal(t, "Documento 512345678 já se encontra na planilha. Registros adicionados: 1", res.Mensagem)
}
