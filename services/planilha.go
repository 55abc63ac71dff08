package services

import (
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"censo-sisreg/models"
)

// PlanilhaStore é o destino dos registros extraídos: uma pasta de trabalho
// XLSX com uma aba fixa. O mutex serializa o ciclo ler-filtrar-anexar, para
// que dois lotes simultâneos não enxerguem o mesmo estado e gravem códigos
// repetidos.
type PlanilhaStore struct {
	caminho string
	aba     string
	mu      sync.Mutex
	logger  *zap.Logger
}

func NewPlanilhaStore(caminho, aba string, logger *zap.Logger) *PlanilhaStore {
	return &PlanilhaStore{caminho: caminho, aba: aba, logger: logger}
}

func (p *PlanilhaStore) Caminho() string { return p.caminho }

// abrir carrega a pasta de trabalho do disco, criando-a com o cabeçalho padrão
// quando ainda não existe. Quem chama é responsável por fechar.
func (p *PlanilhaStore) abrir() (*excelize.File, error) {
	if _, err := os.Stat(p.caminho); os.IsNotExist(err) {
		f := excelize.NewFile()
		idx, err := f.NewSheet(p.aba)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("erro ao criar aba %s: %w", p.aba, err)
		}
		f.SetActiveSheet(idx)
		if p.aba != "Sheet1" {
			if err := f.DeleteSheet("Sheet1"); err != nil {
				f.Close()
				return nil, err
			}
		}
		if err := f.SetSheetRow(p.aba, "A1", &ColunasPadrao); err != nil {
			f.Close()
			return nil, fmt.Errorf("erro ao gravar cabeçalho: %w", err)
		}
		if err := f.SaveAs(p.caminho); err != nil {
			f.Close()
			return nil, fmt.Errorf("erro ao criar planilha %s: %w", p.caminho, err)
		}
		p.logger.Info("Planilha criada com cabeçalho padrão",
			zap.String("caminho", p.caminho), zap.String("aba", p.aba))
		return f, nil
	}

	f, err := excelize.OpenFile(p.caminho)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir planilha %s: %w", p.caminho, err)
	}
	if idx, err := f.GetSheetIndex(p.aba); err != nil || idx < 0 {
		// aba ausente em arquivo existente: cria, grava o cabeçalho e salva
		// na hora, para que uma leitura pura já enxergue o arquivo consistente
		if _, err := f.NewSheet(p.aba); err != nil {
			f.Close()
			return nil, fmt.Errorf("erro ao criar aba %s: %w", p.aba, err)
		}
		if err := f.SetSheetRow(p.aba, "A1", &ColunasPadrao); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Save(); err != nil {
			f.Close()
			return nil, fmt.Errorf("erro ao salvar planilha %s: %w", p.caminho, err)
		}
	}
	return f, nil
}

// Rows devolve todas as linhas da aba, cabeçalho incluído.
func (p *PlanilhaStore) Rows() ([][]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.abrir()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return p.lerLinhas(f)
}

func (p *PlanilhaStore) lerLinhas(f *excelize.File) ([][]string, error) {
	linhas, err := f.GetRows(p.aba)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler aba %s: %w", p.aba, err)
	}
	if len(linhas) == 0 {
		// aba criada sem cabeçalho gravado ainda
		linhas = [][]string{ColunasPadrao}
	}
	return linhas, nil
}

// Append executa o ciclo completo sob o lock: lê o estado atual, passa lote e
// linhas existentes ao appender e grava apenas as linhas aceitas.
func (p *PlanilhaStore) Append(ap *DeduplicatingAppender, registros []models.Registro) (*ResultadoAppend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.abrir()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	linhas, err := p.lerLinhas(f)
	if err != nil {
		return nil, err
	}

	res, err := ap.AppendBatch(linhas[0], linhas, registros)
	if err != nil {
		return nil, err
	}
	if len(res.Adicionadas) == 0 {
		return res, nil
	}

	proxima := len(linhas) + 1
	for i, linha := range res.Adicionadas {
		cel, err := excelize.CoordinatesToCellName(1, proxima+i)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(p.aba, cel, &linha); err != nil {
			return nil, fmt.Errorf("erro ao gravar linha %d: %w", proxima+i, err)
		}
	}
	if err := f.Save(); err != nil {
		return nil, fmt.Errorf("erro ao salvar planilha %s: %w", p.caminho, err)
	}
	p.logger.Info("Planilha atualizada",
		zap.String("caminho", p.caminho),
		zap.Int("linhas_novas", len(res.Adicionadas)))
	return res, nil
}
