package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"censo-sisreg/config"
	"censo-sisreg/models"
	"censo-sisreg/pdftext"
	"censo-sisreg/services"
	"censo-sisreg/storage"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	registrosAdicionadosCounter prometheus.Counter
	duplicadosCounter           prometheus.Counter
	falhasProcessamentoCounter  prometheus.Counter
)

func init() {
	registrosAdicionadosCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "registros_adicionados_total",
			Help: "Total de registros novos anexados à planilha.",
		},
	)
	duplicadosCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "registros_duplicados_total",
			Help: "Total de registros rejeitados por código de solicitação repetido.",
		},
	)
	falhasProcessamentoCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "falhas_processamento_total",
			Help: "Total de PDFs cujo processamento falhou (extração de texto ou gravação no banco).",
		},
	)
	prometheus.MustRegister(registrosAdicionadosCounter, duplicadosCounter, falhasProcessamentoCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Erro ao carregar a configuração", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Falha ao conectar no banco de dados", zap.Error(err))
	}
	logging.Info("Conectado ao banco de dados.")

	logging.Info("Executando auto-migração do banco...")
	db.AutoMigrate(&models.Registro{}, &models.ArquivoProcessado{})

	// Arquivo morto em S3 só quando configurado
	var s3Client *awss3.Client
	if cfg.ArchiveEnabled() {
		s3Client, err = storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("Falha ao criar o cliente S3", zap.Error(err))
		}
		logging.Info("Arquivo morto S3 ativo", zap.String("bucket", cfg.ArchiveS3Bucket))
	}

	// Serviços
	normalizer := services.NewTextNormalizer(logging)
	validator := services.NewMunicipioValidator(normalizer, logging)
	assembler := services.NewRecordAssembler(normalizer, validator, cfg.MunicipioKeepRaw, logging)
	appender := services.NewDeduplicatingAppender(logging)
	planilha := services.NewPlanilhaStore(cfg.PlanilhaPath, cfg.PlanilhaSheet, logging)
	extractor := pdftext.NewExtractor(cfg.PdftotextPath, logging)
	processor := services.NewProcessorService(cfg, db, s3Client, extractor, assembler, appender, planilha, logging)
	exporter := services.NewExportService(db, logging)

	// Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "censo-sisreg"})
	})

	setupUploadRoutes(router, cfg, processor, logging)
	setupRegistroRoutes(router, db, assembler, logging)
	setupPlanilhaRoutes(router, planilha, appender, logging)
	setupMunicipioRoutes(router, validator)
	setupExportRoutes(router, exporter, logging)
	setupArquivoRoutes(router, db, logging)

	// Cron: varre o diretório de pendências em busca de PDFs deixados fora do
	// fluxo HTTP (por exemplo via rsync da secretaria).
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Varredura agendada de pendências...")
		lote, err := processor.SweepPendingDir(context.Background())
		if err != nil {
			logging.Error("Varredura de pendências falhou", zap.Error(err))
			return
		}
		contabilizarLote(lote)
		if len(lote.Arquivos) > 0 {
			logging.Info("Varredura concluída", zap.Int("arquivos", len(lote.Arquivos)))
		}
	})
	cronScheduler.Start()

	logging.Info("Iniciando o servidor", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Falha ao executar o servidor", zap.Error(err))
	}
}

// contabilizarLote atualiza os contadores Prometheus a partir do desfecho.
func contabilizarLote(lote *services.ResultadoLote) {
	for _, a := range lote.Arquivos {
		if a.Status == models.ArquivoErro {
			falhasProcessamentoCounter.Inc()
		}
	}
	if lote.Append != nil {
		registrosAdicionadosCounter.Add(float64(lote.Append.Adicionados))
		duplicadosCounter.Add(float64(len(lote.Append.Duplicados)))
	}
}

func setupUploadRoutes(router *gin.Engine, cfg *config.Config, processor *services.ProcessorService, log *zap.Logger) {
	rg := router.Group("/uploads")

	// POST - Recebe um lote de PDFs multipart (campo "files") e processa tudo
	// de ponta a ponta: extração, persistência e planilha.
	rg.POST("/", func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart inválido"})
			return
		}
		files := form.File["files"]
		if len(files) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "nenhum arquivo enviado (campo 'files')"})
			return
		}
		if len(files) > cfg.MaxBatchFiles {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("máximo de %d arquivos por lote", cfg.MaxBatchFiles),
			})
			return
		}

		tmpDir, err := os.MkdirTemp("", "censo-upload-*")
		if err != nil {
			log.Error("Falha ao criar diretório temporário", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "erro interno"})
			return
		}
		defer os.RemoveAll(tmpDir)

		var caminhos []string
		var rejeitados []gin.H
		for _, fh := range files {
			nome := filepath.Base(fh.Filename)
			if err := services.ValidarNomeUpload(nome); err != nil {
				rejeitados = append(rejeitados, gin.H{"arquivo": nome, "erro": err.Error()})
				continue
			}
			if fh.Size > cfg.MaxFileSizeBytes {
				rejeitados = append(rejeitados, gin.H{
					"arquivo": nome,
					"erro":    fmt.Sprintf("arquivo excede o limite de %d bytes", cfg.MaxFileSizeBytes),
				})
				continue
			}
			destino := filepath.Join(tmpDir, nome)
			if err := c.SaveUploadedFile(fh, destino); err != nil {
				log.Error("Falha ao salvar upload", zap.String("arquivo", nome), zap.Error(err))
				rejeitados = append(rejeitados, gin.H{"arquivo": nome, "erro": "falha ao salvar"})
				continue
			}
			caminhos = append(caminhos, destino)
		}

		if len(caminhos) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "nenhum arquivo aproveitável", "rejeitados": rejeitados})
			return
		}

		lote, err := processor.ProcessBatch(c.Request.Context(), caminhos)
		if err != nil {
			log.Error("Processamento do lote falhou", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		contabilizarLote(lote)

		resp := gin.H{
			"arquivos":   lote.Arquivos,
			"planilha":   lote.Append,
			"rejeitados": rejeitados,
		}
		if lote.AppendErro != "" {
			resp["planilha_erro"] = lote.AppendErro
		}
		c.JSON(http.StatusOK, resp)
	})

	// POST - Dispara manualmente a mesma varredura de pendências do cron.
	rg.POST("/sweep", func(c *gin.Context) {
		lote, err := processor.SweepPendingDir(c.Request.Context())
		if err != nil {
			log.Error("Varredura manual de pendências falhou", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		contabilizarLote(lote)
		c.JSON(http.StatusOK, lote)
	})
}

func setupRegistroRoutes(router *gin.Engine, db *gorm.DB, assembler *services.RecordAssembler, log *zap.Logger) {
	rg := router.Group("/registros")

	rg.GET("/", func(c *gin.Context) {
		var registros []models.Registro
		if err := db.Order("created_at desc").Find(&registros).Error; err != nil {
			log.Error("Consulta de registros falhou", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, registros)
	})

	// POST - Consulta com filtros no corpo
	rg.POST("/query", func(c *gin.Context) {
		type RegistroQuery struct {
			CodigoSolicitacao string `json:"codigo_solicitacao"`
			Arquivo           string `json:"arquivo"`
			Completo          *bool  `json:"completo"`
			Limit             int    `json:"limit"`
		}

		var req RegistroQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Registro{})
		if req.CodigoSolicitacao != "" {
			query = query.Where("codigo_solicitacao = ?", req.CodigoSolicitacao)
		}
		if req.Arquivo != "" {
			query = query.Where("arquivo = ?", req.Arquivo)
		}
		if req.Completo != nil {
			query = query.Where("completo = ?", *req.Completo)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var registros []models.Registro
		if err := query.Order("created_at desc").Find(&registros).Error; err != nil {
			log.Error("Consulta de registros falhou", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, registros)
	})

	// POST - Extrai os seis campos de um texto já extraído, sem persistir.
	// Útil para depurar as cascatas contra um PDF problemático.
	rg.POST("/extract", func(c *gin.Context) {
		var req struct {
			Texto   string `json:"texto" binding:"required"`
			Arquivo string `json:"arquivo"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'texto' field is required."})
			return
		}
		registro := assembler.Assemble(req.Texto, req.Arquivo)
		c.JSON(http.StatusOK, registro)
	})
}

func setupPlanilhaRoutes(router *gin.Engine, planilha *services.PlanilhaStore, appender *services.DeduplicatingAppender, log *zap.Logger) {
	rg := router.Group("/planilha")

	rg.GET("/rows", func(c *gin.Context) {
		linhas, err := planilha.Rows()
		if err != nil {
			log.Error("Leitura da planilha falhou", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rows": linhas, "total": len(linhas)})
	})

	// POST - Anexa registros montados externamente, com a mesma deduplicação
	// do fluxo de upload.
	rg.POST("/append", func(c *gin.Context) {
		var req struct {
			Registros []models.Registro `json:"registros" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'registros' field is required."})
			return
		}
		res, err := planilha.Append(appender, req.Registros)
		if err != nil {
			log.Error("Append na planilha falhou", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		registrosAdicionadosCounter.Add(float64(res.Adicionados))
		duplicadosCounter.Add(float64(len(res.Duplicados)))
		c.JSON(http.StatusOK, res)
	})
}

func setupMunicipioRoutes(router *gin.Engine, validator *services.MunicipioValidator) {
	rg := router.Group("/municipios")

	rg.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"municipios": validator.Municipios()})
	})

	rg.POST("/validate", func(c *gin.Context) {
		var req struct {
			Texto string `json:"texto" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'texto' field is required."})
			return
		}
		municipio := validator.Validate(req.Texto)
		c.JSON(http.StatusOK, gin.H{
			"municipio": municipio,
			"valido":    municipio != models.NaoEncontrado,
		})
	})
}

func setupExportRoutes(router *gin.Engine, exporter *services.ExportService, log *zap.Logger) {
	router.GET("/export", func(c *gin.Context) {
		formato := c.DefaultQuery("format", "csv")
		carimbo := time.Now().Format("2006-01-02")

		switch formato {
		case "csv":
			c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="registros-%s.csv"`, carimbo))
			c.Header("Content-Type", "text/csv")
			if err := exporter.ExportCSV(c.Writer); err != nil {
				log.Error("Exportação CSV falhou", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
		case "xlsx":
			c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="registros-%s.xlsx"`, carimbo))
			c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			if err := exporter.ExportXLSX(c.Writer); err != nil {
				log.Error("Exportação XLSX falhou", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "formato deve ser csv ou xlsx"})
		}
	})
}

func setupArquivoRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/arquivos-processados")

	rg.GET("/", func(c *gin.Context) {
		query := db.Model(&models.ArquivoProcessado{})
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}
		var arquivos []models.ArquivoProcessado
		if err := query.Order("created_at desc").Limit(200).Find(&arquivos).Error; err != nil {
			log.Error("Consulta de arquivos processados falhou", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, arquivos)
	})
}
