package models

import (
	"time"
)

// NaoEncontrado é o sentinel usado quando a extração de um campo falha.
// Todo campo de um Registro carrega sempre um valor extraído ou este marcador,
// nunca string vazia.
const NaoEncontrado = "NÃO ENCONTRADO"

// Registro representa os seis campos extraídos de um documento do SISREG III,
// mais o arquivo de origem.
type Registro struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CodigoSolicitacao  string `json:"codigo_solicitacao" gorm:"index"`
	CNS                string `json:"cns"`
	UnidadeSolicitante string `json:"unidade_solicitante"`
	UnidadeExecutante  string `json:"unidade_executante"`
	DataExame          string `json:"data_exame"`
	Procedimento       string `json:"procedimento"`

	Arquivo string `json:"arquivo"`

	// Completo indica que nenhum campo ficou no sentinel. Registros incompletos
	// continuam sendo persistidos, apenas sinalizados para revisão manual.
	Completo bool `json:"completo"`
}

// NovoRegistro cria um Registro com todos os campos no sentinel.
func NovoRegistro(arquivo string) Registro {
	return Registro{
		CodigoSolicitacao:  NaoEncontrado,
		CNS:                NaoEncontrado,
		UnidadeSolicitante: NaoEncontrado,
		UnidadeExecutante:  NaoEncontrado,
		DataExame:          NaoEncontrado,
		Procedimento:       NaoEncontrado,
		Arquivo:            arquivo,
	}
}

// EhCompleto verifica se todos os seis campos foram extraídos.
func (r *Registro) EhCompleto() bool {
	campos := []string{
		r.CodigoSolicitacao, r.CNS, r.UnidadeSolicitante,
		r.UnidadeExecutante, r.DataExame, r.Procedimento,
	}
	for _, v := range campos {
		if v == NaoEncontrado || v == "" {
			return false
		}
	}
	return true
}
