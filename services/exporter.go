package services

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"censo-sisreg/models"
)

// ExportService exporta o espelho dos registros no banco em CSV ou XLSX,
// para conferência fora da planilha de destino.
type ExportService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewExportService(db *gorm.DB, logger *zap.Logger) *ExportService {
	return &ExportService{DB: db, Logger: logger}
}

func (e *ExportService) carregar() ([]models.Registro, error) {
	var registros []models.Registro
	if err := e.DB.Order("created_at asc").Find(&registros).Error; err != nil {
		return nil, fmt.Errorf("erro ao carregar registros: %w", err)
	}
	return registros, nil
}

func linhaRegistro(r models.Registro) []string {
	return []string{
		r.CodigoSolicitacao,
		r.CNS,
		r.UnidadeSolicitante,
		r.UnidadeExecutante,
		r.DataExame,
		r.Procedimento,
		r.Arquivo,
	}
}

// ExportCSV escreve todos os registros no writer, cabeçalho incluído.
func (e *ExportService) ExportCSV(w io.Writer) error {
	registros, err := e.carregar()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ColunasPadrao); err != nil {
		return err
	}
	for _, r := range registros {
		if err := cw.Write(linhaRegistro(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	e.Logger.Info("Exportação CSV concluída", zap.Int("registros", len(registros)))
	return nil
}

// ExportXLSX escreve todos os registros como pasta de trabalho XLSX.
func (e *ExportService) ExportXLSX(w io.Writer) error {
	registros, err := e.carregar()
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const aba = "registros"
	idx, err := f.NewSheet(aba)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	if err := f.SetSheetRow(aba, "A1", &ColunasPadrao); err != nil {
		return err
	}
	for i, r := range registros {
		cel, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		linha := linhaRegistro(r)
		if err := f.SetSheetRow(aba, cel, &linha); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("erro ao escrever xlsx: %w", err)
	}
	e.Logger.Info("Exportação XLSX concluída", zap.Int("registros", len(registros)))
	return nil
}
