package models

import (
	"time"
)

// Status de processamento de um arquivo.
const (
	ArquivoSucesso    = "sucesso"
	ArquivoIncompleto = "incompleto"
	ArquivoErro       = "erro"
)

// ArquivoProcessado registra o resultado do processamento de um PDF enviado,
// incluindo falhas de extração de texto que não geram Registro algum.
type ArquivoProcessado struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Nome   string `json:"nome" gorm:"index"`
	Status string `json:"status" gorm:"index"`
	Erro   string `json:"erro,omitempty"`

	// Link do PDF no arquivo morto S3, quando o arquivamento está ativo.
	S3Link string `json:"s3_link,omitempty"`
}
