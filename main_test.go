package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"censo-sisreg/config"
	"censo-sisreg/models"
	"censo-sisreg/services"
)

func TestSweepManualComDiretorioVazio(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	cfg := &config.Config{PendingDir: t.TempDir(), MaxBatchFiles: 10}
	processor := services.NewProcessorService(cfg, nil, nil, nil, nil, nil, nil, logger)

	router := gin.New()
	setupUploadRoutes(router, cfg, processor, logger)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/uploads/sweep", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "arquivos")
}

func TestContabilizarLoteContaFalhasDeProcessamento(t *testing.T) {
	antes := testutil.ToFloat64(falhasProcessamentoCounter)

	contabilizarLote(&services.ResultadoLote{
		Arquivos: []services.ResultadoArquivo{
			{Arquivo: "a.pdf", Status: models.ArquivoErro, Erro: "pdf sem camada de texto"},
			{Arquivo: "b.pdf", Status: models.ArquivoSucesso},
			{Arquivo: "c.pdf", Status: models.ArquivoIncompleto},
		},
	})

	assert.Equal(t, antes+1, testutil.ToFloat64(falhasProcessamentoCounter))
}
