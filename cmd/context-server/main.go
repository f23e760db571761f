package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"codebase-context-server/internal/config"
	"codebase-context-server/internal/filesystem"
	"codebase-context-server/internal/lock"
	"codebase-context-server/internal/sandbox"
	"codebase-context-server/internal/service"
	"codebase-context-server/internal/tokenizer"
	"codebase-context-server/internal/transport"
)

func main() {
	cfg := config.ParseFlags()
	initLogger(cfg.Transport)

	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("configuration error")
	}
	logEffectiveConfig(cfg)

	validator, err := sandbox.NewValidator(cfg.AllowedDirectories)
	if err != nil {
		logrus.WithError(err).Fatal("initializing sandbox validator")
	}
	logrus.Infof("allowed directories: %v", validator.Roots())

	engine, err := service.NewDefaultEngine(
		filesystem.NewOSAdapter(),
		validator,
		lock.NewFlockManager(),
		tokenizer.NewService(nil),
		cfg,
	)
	if err != nil {
		logrus.WithError(err).Fatal("initializing engine")
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)
	serverDone := make(chan error, 1)

	var httpHandler *transport.HTTPHandler
	switch cfg.Transport {
	case "http":
		httpHandler = transport.NewHTTPHandler(engine)
		go func() {
			err := httpHandler.StartServer(cfg.Port)
			if err != nil && err != http.ErrServerClosed {
				serverDone <- err
				return
			}
			serverDone <- nil
		}()
	case "stdio":
		go func() {
			handler := transport.NewStdioHandler(engine)
			serverDone <- handler.Start(os.Stdin, os.Stdout)
		}()
	}

	select {
	case sig := <-shutdownChan:
		logrus.Infof("shutdown signal received: %s", sig)
		if httpHandler != nil {
			timeout := time.Duration(cfg.OperationTimeoutSec) * time.Second
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := httpHandler.Server.Shutdown(ctx); err != nil {
				logrus.WithError(err).Error("HTTP server shutdown")
			}
		}
	case err := <-serverDone:
		if err != nil {
			logrus.WithError(err).Fatal("transport stopped")
		}
		logrus.Info("transport stopped")
	}
}

// initLogger routes logs to stderr for the stdio transport, where stdout
// carries JSON-RPC responses.
func initLogger(transportType string) {
	if transportType == "stdio" {
		logrus.SetOutput(os.Stderr)
	} else {
		logrus.SetOutput(os.Stdout)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func logEffectiveConfig(cfg *config.Config) {
	logrus.Info("effective configuration:")
	logrus.Infof("  allowed directories: %v", cfg.AllowedDirectories)
	logrus.Infof("  tokenizer model: %s", cfg.TokenizerModel)
	logrus.Infof("  transport: %s", cfg.Transport)
	if cfg.Transport == "http" {
		logrus.Infof("  http port: %d", cfg.Port)
	}
	logrus.Infof("  max file size (MB): %d", cfg.MaxFileSizeMB)
	logrus.Infof("  operation timeout (sec): %d", cfg.OperationTimeoutSec)
}
