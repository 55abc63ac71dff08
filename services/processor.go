package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"censo-sisreg/config"
	"censo-sisreg/models"
	"censo-sisreg/pdftext"
	"censo-sisreg/storage"
)

// ResultadoArquivo é o desfecho do processamento de um único PDF.
type ResultadoArquivo struct {
	Arquivo  string           `json:"arquivo"`
	Status   string           `json:"status"`
	Erro     string           `json:"erro,omitempty"`
	Registro *models.Registro `json:"registro,omitempty"`
}

// ResultadoLote agrega os desfechos por arquivo e o resumo do append.
type ResultadoLote struct {
	Arquivos []ResultadoArquivo `json:"arquivos"`
	Append   *ResultadoAppend   `json:"planilha,omitempty"`
	// AppendErro registra a falha do passo de anexação na planilha. A falha
	// aborta só esse passo: os desfechos por arquivo continuam válidos.
	AppendErro string `json:"planilha_erro,omitempty"`
}

// ProcessorService orquestra o fluxo completo de um lote: texto do PDF,
// montagem do registro, persistência no banco, arquivamento opcional em S3 e
// anexação deduplicada na planilha.
type ProcessorService struct {
	Config    *config.Config
	DB        *gorm.DB
	S3Client  *s3.Client
	Extractor *pdftext.Extractor
	Assembler *RecordAssembler
	Appender  *DeduplicatingAppender
	Planilha  *PlanilhaStore
	Logger    *zap.Logger
}

func NewProcessorService(cfg *config.Config, db *gorm.DB, s3c *s3.Client, ex *pdftext.Extractor,
	asm *RecordAssembler, ap *DeduplicatingAppender, pl *PlanilhaStore, logger *zap.Logger) *ProcessorService {
	return &ProcessorService{
		Config:    cfg,
		DB:        db,
		S3Client:  s3c,
		Extractor: ex,
		Assembler: asm,
		Appender:  ap,
		Planilha:  pl,
		Logger:    logger,
	}
}

// ProcessBatch processa cada caminho na ordem recebida e, ao final, anexa os
// registros extraídos com sucesso na planilha em uma única passada. Falha de
// um arquivo não derruba o lote: o desfecho individual carrega o erro.
func (p *ProcessorService) ProcessBatch(ctx context.Context, caminhos []string) (*ResultadoLote, error) {
	lote := &ResultadoLote{}
	var registros []models.Registro

	for _, caminho := range caminhos {
		res := p.processarArquivo(ctx, caminho)
		lote.Arquivos = append(lote.Arquivos, res)
		if res.Registro != nil {
			registros = append(registros, *res.Registro)
		}
	}

	p.anexarLote(lote, registros)
	return lote, nil
}

// anexarLote executa o passo de anexação na planilha. Erro aqui não descarta
// o lote: os desfechos por arquivo já estão prontos e o chamador precisa
// deles, então a falha vai anotada no próprio resultado.
func (p *ProcessorService) anexarLote(lote *ResultadoLote, registros []models.Registro) {
	if len(registros) == 0 {
		return
	}
	resumo, err := p.Planilha.Append(p.Appender, registros)
	if err != nil {
		p.Logger.Error("Falha ao atualizar a planilha", zap.Error(err))
		lote.AppendErro = err.Error()
		return
	}
	lote.Append = resumo
}

// processarArquivo trata um único PDF e grava os rastros no banco.
func (p *ProcessorService) processarArquivo(ctx context.Context, caminho string) ResultadoArquivo {
	nome := filepath.Base(caminho)
	log := p.Logger.With(zap.String("arquivo", nome))

	texto, err := p.Extractor.Extract(ctx, caminho)
	if err != nil {
		log.Error("Falha na extração de texto", zap.Error(err))
		p.registrarArquivo(nome, models.ArquivoErro, err.Error(), "")
		return ResultadoArquivo{Arquivo: nome, Status: models.ArquivoErro, Erro: err.Error()}
	}

	registro := p.Assembler.Assemble(texto, nome)

	link := ""
	if p.Config.ArchiveEnabled() && p.S3Client != nil {
		link = p.arquivarPDF(ctx, caminho, nome, log)
	}

	if err := p.DB.Create(&registro).Error; err != nil {
		log.Error("Falha ao gravar registro no banco", zap.Error(err))
		p.registrarArquivo(nome, models.ArquivoErro, err.Error(), link)
		return ResultadoArquivo{Arquivo: nome, Status: models.ArquivoErro, Erro: err.Error()}
	}

	status := models.ArquivoSucesso
	if !registro.EhCompleto() {
		status = models.ArquivoIncompleto
	}
	p.registrarArquivo(nome, status, "", link)

	log.Info("PDF processado",
		zap.String("status", status),
		zap.String("codigo_solicitacao", registro.CodigoSolicitacao))
	return ResultadoArquivo{Arquivo: nome, Status: status, Registro: &registro}
}

// arquivarPDF envia o original ao arquivo morto. Falha aqui não interrompe o
// processamento, o PDF só fica sem link.
func (p *ProcessorService) arquivarPDF(ctx context.Context, caminho, nome string, log *zap.Logger) string {
	data, err := os.ReadFile(caminho)
	if err != nil {
		log.Warn("Falha ao ler PDF para arquivamento", zap.Error(err))
		return ""
	}
	key := fmt.Sprintf("pdfs/%s/%s", time.Now().Format("2006-01"), nome)
	link, err := storage.UploadFile(ctx, p.S3Client, p.Config.ArchiveS3Bucket, key, data, p.Config)
	if err != nil {
		log.Warn("Falha no upload para o arquivo morto", zap.Error(err))
		return ""
	}
	return link
}

func (p *ProcessorService) registrarArquivo(nome, status, erro, link string) {
	ap := models.ArquivoProcessado{Nome: nome, Status: status, Erro: erro, S3Link: link}
	if err := p.DB.Create(&ap).Error; err != nil {
		p.Logger.Error("Falha ao gravar arquivo processado", zap.String("arquivo", nome), zap.Error(err))
	}
}

// SweepPendingDir varre o diretório de pendências em busca de PDFs deixados lá
// fora do fluxo HTTP e os processa como um lote. Os arquivos varridos são
// movidos para o subdiretório processados, com ou sem sucesso, para que a
// próxima varredura não os reprocesse.
func (p *ProcessorService) SweepPendingDir(ctx context.Context) (*ResultadoLote, error) {
	padrao := filepath.Join(p.Config.PendingDir, "*.pdf")
	caminhos, err := filepath.Glob(padrao)
	if err != nil {
		return nil, err
	}
	if len(caminhos) == 0 {
		return &ResultadoLote{}, nil
	}
	p.Logger.Info("Varredura de pendências iniciada", zap.Int("arquivos", len(caminhos)))

	lote, err := p.ProcessBatch(ctx, caminhos)
	if err != nil {
		return nil, err
	}

	destino := filepath.Join(p.Config.PendingDir, "processados")
	if err := os.MkdirAll(destino, 0o755); err != nil {
		return lote, err
	}
	for _, caminho := range caminhos {
		novo := filepath.Join(destino, filepath.Base(caminho))
		if err := os.Rename(caminho, novo); err != nil {
			p.Logger.Warn("Falha ao mover PDF processado", zap.String("arquivo", caminho), zap.Error(err))
		}
	}
	return lote, nil
}

// ValidarNomeUpload rejeita uploads que não sejam .pdf.
func ValidarNomeUpload(nome string) error {
	if !strings.EqualFold(filepath.Ext(nome), ".pdf") {
		return fmt.Errorf("arquivo %s não é um PDF", nome)
	}
	return nil
}
