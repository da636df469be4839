// Command lambda serves the upload API from AWS Lambda behind an API Gateway
// HTTP API. API Gateway caps request payloads at 10 MB, so UPLOAD_MAX_BYTES
// should stay below that.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/artgallery/service/internal/config"
	"github.com/artgallery/service/internal/logger"
	"github.com/artgallery/service/internal/server"
	"github.com/artgallery/service/internal/storage"
	"github.com/artgallery/service/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	store := storage.Open(context.Background(), cfg.Storage, zl)

	svc := upload.NewService(store, upload.Config{
		MaxBytes:            cfg.Upload.MaxBytes,
		AllowedContentTypes: cfg.Upload.AllowedContentTypes,
		TempDir:             cfg.Upload.TempDir,
		Secrets:             []string{cfg.Storage.AccessKey, cfg.Storage.SecretKey},
	}, zl)

	router := server.NewRouter(server.Deps{
		Upload:      upload.NewHandler(svc, zl),
		Logger:      zl,
		CORSOrigins: cfg.CORSOrigins,
		JWTSecret:   cfg.Upload.JWTSecret,
	})

	lambda.Start(httpadapter.NewV2(router).ProxyWithContext)
}
