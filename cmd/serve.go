package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mtserver/internal/apihandlers"
	"mtserver/internal/app"
)

var (
	serveAddr          string
	servePort          string
	serveMaxConcurrent int64
	serveRelease       bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the translation HTTP API server",
	Long: `Starts an HTTP server exposing the translation endpoints (single, streamed
and batch) and the task administration endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}

		// Flags win over the config file.
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if cmd.Flags().Changed("max-concurrent") {
			cfg.Server.MaxConcurrent = serveMaxConcurrent
		}

		appInstance, err := app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		defer appInstance.Close()

		if serveRelease {
			gin.SetMode(gin.ReleaseMode)
		}
		router := gin.New()
		router.Use(gin.Recovery(), requestLogger())

		apihandlers.NewAPIHandler(appInstance).RegisterRoutes(router)

		srv := &http.Server{
			Addr:    cfg.ListenAddr(),
			Handler: router,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Infof("Starting translation API server on http://%s", cfg.ListenAddr())
			errCh <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Failed to run API server: %v", err)
				return fmt.Errorf("failed to run API server: %w", err)
			}
		case <-shutdown:
			log.Info("Shutdown signal received. Initiating graceful shutdown...")
		}

		// Running streams get time to finish; cancel them explicitly via the
		// task endpoints if needed.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warnf("Server shutdown: %v", err)
		}

		log.Info("Translation API server stopped.")
		return nil
	},
}

// requestLogger logs one line per request through logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("HTTP request")
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1", "Address to listen on (e.g., '0.0.0.0' for all interfaces)")
	serveCmd.Flags().StringVar(&servePort, "port", "8000", "Port to listen on")
	serveCmd.Flags().Int64Var(&serveMaxConcurrent, "max-concurrent", 1, "Maximum concurrent translations (0 = unlimited)")
	serveCmd.Flags().BoolVar(&serveRelease, "release", false, "Run gin in release mode")
}
