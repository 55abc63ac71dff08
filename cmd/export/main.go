// Exportador de linha de comando: despeja a tabela de registros em CSV ou
// XLSX e, opcionalmente, envia o resultado ao bucket de arquivamento. Pensado
// para rodar via cron fora do serviço HTTP.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"censo-sisreg/config"
	"censo-sisreg/services"
)

func main() {
	formato := flag.String("format", "csv", "formato de saída: csv ou xlsx")
	saida := flag.String("out", "", "arquivo de saída (padrão: registros-<data>.<formato>)")
	upload := flag.Bool("upload", false, "envia o arquivo exportado ao bucket de arquivamento")
	flag.Parse()

	if *formato != "csv" && *formato != "xlsx" {
		log.Fatalf("formato inválido %q: use csv ou xlsx", *formato)
	}

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
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logging.Fatal("Falha ao conectar no banco de dados", zap.Error(err))
	}

	exporter := services.NewExportService(db, logging)

	var buf bytes.Buffer
	switch *formato {
	case "csv":
		err = exporter.ExportCSV(&buf)
	case "xlsx":
		err = exporter.ExportXLSX(&buf)
	}
	if err != nil {
		logging.Fatal("Exportação falhou", zap.Error(err))
	}

	nome := *saida
	if nome == "" {
		nome = fmt.Sprintf("registros-%s.%s", time.Now().Format("2006-01-02"), *formato)
	}
	if err := os.WriteFile(nome, buf.Bytes(), 0o644); err != nil {
		logging.Fatal("Falha ao gravar o arquivo de saída", zap.Error(err))
	}
	logging.Info("Exportação gravada", zap.String("arquivo", nome))

	if *upload {
		if !cfg.ArchiveEnabled() {
			logging.Fatal("Upload solicitado mas o arquivamento S3 não está configurado")
		}
		client, err := criarClienteS3(cfg)
		if err != nil {
			logging.Fatal("Falha ao criar o cliente S3", zap.Error(err))
		}
		key := fmt.Sprintf("exportacoes/%s", nome)
		_, err = client.PutObject(context.TODO(), &s3.PutObjectInput{
			Bucket: aws.String(cfg.ArchiveS3Bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(buf.Bytes()),
		})
		if err != nil {
			logging.Fatal("Falha no upload da exportação", zap.Error(err))
		}
		logging.Info("Exportação enviada", zap.String("key", key))
	}
}

func criarClienteS3(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               cfg.ArchiveS3URL,
			SigningRegion:     cfg.ArchiveS3Region,
			HostnameImmutable: true,
		}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithEndpointResolverWithOptions(resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.ArchiveS3Key, cfg.ArchiveS3Secret, "")),
		awsconfig.WithRegion(cfg.ArchiveS3Region),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}
