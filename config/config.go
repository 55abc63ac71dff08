package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config contém todos os parâmetros de configuração vindos de variáveis de ambiente.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4280"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Planilha de destino (workbook XLSX que faz o papel da planilha do censo)
	PlanilhaPath  string `envconfig:"PLANILHA_PATH" default:"censo.xlsx"`
	PlanilhaSheet string `envconfig:"PLANILHA_SHEET" default:"geral"`

	// Limites do upload de PDFs
	MaxFileSizeBytes int64 `envconfig:"MAX_FILE_SIZE_BYTES" default:"2097152"`
	MaxBatchFiles    int   `envconfig:"MAX_BATCH_FILES" default:"10"`

	// Diretório varrido pelo cron em busca de PDFs pendentes
	PendingDir   string `envconfig:"PENDING_DIR" default:"pdfs"`
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 * * * *"`

	// Caminho do binário pdftotext usado como fallback de extração
	PdftotextPath string `envconfig:"PDFTOTEXT_PATH" default:"pdftotext"`

	// Política quando o validador de municípios não reconhece o texto extraído:
	// true mantém o texto bruto limpo, false rebaixa para o sentinel.
	MunicipioKeepRaw bool `envconfig:"MUNICIPIO_KEEP_RAW" default:"true"`

	// Arquivo morto opcional dos PDFs enviados (desativado quando URL vazia)
	ArchiveS3Key    string `envconfig:"ARCHIVE_S3_KEY"`
	ArchiveS3Secret string `envconfig:"ARCHIVE_S3_SECRET"`
	ArchiveS3URL    string `envconfig:"ARCHIVE_S3_URL"`
	ArchiveS3Region string `envconfig:"ARCHIVE_S3_REGION" default:"us-east-1"`
	ArchiveS3Bucket string `envconfig:"ARCHIVE_S3_BUCKET"`
}

// DSN devolve o Data Source Name para a conexão PostgreSQL.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// ArchiveEnabled indica se o arquivamento dos PDFs em S3 está configurado.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveS3URL != "" && c.ArchiveS3Bucket != ""
}

// Load carrega a configuração a partir das variáveis de ambiente.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
