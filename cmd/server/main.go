package main

import (
	"context"
	"net/http"
	"os"

	"github.com/Brownie44l1/eye-diagnosis/internal/config"
	"github.com/Brownie44l1/eye-diagnosis/internal/diagnosis"
	"github.com/Brownie44l1/eye-diagnosis/internal/handlers"
	"github.com/Brownie44l1/eye-diagnosis/internal/model"
	"github.com/Brownie44l1/eye-diagnosis/internal/preprocess"
	"github.com/Brownie44l1/eye-diagnosis/internal/server"
)

func main() {
	configPath := os.Getenv("EYEDIAG_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		server.SetupLogger("").Error("failed to load config", "path", configPath, "err", err)
		os.Exit(1)
	}
	logger := server.SetupLogger(cfg.LogLevel)

	logger.Info("loading model", "model", cfg.ModelPath, "labels", cfg.LabelsPath)
	modelServer, err := model.NewServer(model.Options{
		ModelPath:    cfg.ModelPath,
		MetadataPath: cfg.MetadataPath,
		LabelsPath:   cfg.LabelsPath,
		OnnxLibrary:  cfg.OnnxLibrary,
		ImageSize:    cfg.ImageSize,
	})
	if err != nil {
		logger.Error("failed to initialize model server", "err", err)
		os.Exit(1)
	}
	defer modelServer.Close()

	prep := preprocess.Options{
		Size:          cfg.ImageSize,
		Scale:         cfg.Normalization.Scale,
		Offset:        cfg.Normalization.Offset,
		ChannelsFirst: modelServer.Metadata.Layout == model.LayoutNCHW,
		MaxPixels:     cfg.MaxImagePixels,
	}
	diagnoser := diagnosis.NewDiagnoser(modelServer, modelServer.Labels, diagnosis.EyeCatalog(), prep, logger)
	handler := handlers.NewHandler(diagnoser, modelServer.Metadata.InputLen(), cfg.MaxUploadBytes, logger)

	logger.Info("model loaded",
		"classes", modelServer.Labels,
		"input_shape", modelServer.Metadata.InputShape,
		"layout", modelServer.Metadata.Layout,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if err := server.Run(context.Background(), srv, logger); err != nil {
		logger.Error("server failed", "err", err)
		modelServer.Close()
		os.Exit(1)
	}
}
