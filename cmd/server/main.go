package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-summarizer/api/handlers"
	"github.com/feichai0017/document-summarizer/api/routes"
	"github.com/feichai0017/document-summarizer/config"
	"github.com/feichai0017/document-summarizer/internal/app"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// init logger
	log, err := logger.FromConfig(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log, app.Options{WithQueue: true})
	if err != nil {
		log.Fatal("Failed to initialize application", logger.Error(err))
	}
	defer application.Close()

	// init handlers
	h := handlers.NewHandlers(application.Service, log.Named("api"))
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = cfg.Upload.MaxFileSize
	routes.SetupRoutes(r, h, log.Named("http"))

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	// start server
	go func() {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	// graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
		os.Exit(1)
	}
}
