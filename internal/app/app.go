package app

import (
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"mtserver/internal/config"
	"mtserver/internal/gate"
	"mtserver/internal/imageloader"
	"mtserver/internal/pipeline"
	"mtserver/internal/registry"
	"mtserver/internal/services"
	"mtserver/internal/store"
)

// App owns every long-lived service of the process. Registry and Gate are
// the only state shared between jobs.
type App struct {
	Config *config.Config

	Registry *registry.Registry
	Gate     *gate.Gate
	Pipeline pipeline.Pipeline
	Loader   imageloader.Loader

	// JobClient is nil when queued batches are disabled (no redis address).
	JobClient store.JobClient

	Orchestrator *services.Orchestrator
}

func NewApp(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	if err := app.initPipeline(); err != nil {
		return nil, err
	}
	app.initAdmission()
	app.initLoader()

	if err := app.initOrchestrator(); err != nil {
		return nil, err
	}
	if err := app.initJobClient(); err != nil {
		app.Close()
		return nil, err
	}

	log.Println("Application initialization complete.")
	return app, nil
}

// --- Private Helper Methods ---

func (a *App) initPipeline() error {
	cfg := a.Config
	switch cfg.Pipeline.Provider {
	case "", "none":
		log.Warn("Pipeline provider is 'none': images are returned untranslated")
		a.Pipeline = pipeline.NewNone()
	case "remote":
		log.Infof("Using remote pipeline at %s", cfg.Pipeline.Endpoint)
		a.Pipeline = pipeline.NewRemote(cfg.Pipeline.Endpoint, cfg.Pipeline.Timeout)
	default:
		return fmt.Errorf("unknown or unsupported pipeline provider configured: %s", cfg.Pipeline.Provider)
	}
	return nil
}

func (a *App) initAdmission() {
	a.Registry = registry.New()
	a.Gate = gate.New(a.Config.Server.MaxConcurrent)

	if a.Gate.Limited() {
		log.Infof("Concurrency limit: %d translation(s) at a time", a.Gate.Limit())
	} else {
		log.Warn("Concurrency limit disabled, translations run without a bound")
	}
}

func (a *App) initLoader() {
	a.Loader = imageloader.New(imageloader.Options{
		FetchTimeout: a.Config.Image.FetchTimeout,
		MaxBytes:     a.Config.Image.MaxBytes,
	})
}

func (a *App) initOrchestrator() error {
	cfg := a.Config

	fontDir, err := config.ResolveFontDir(cfg.Server.FontDir)
	if err != nil {
		log.Warnf("Font directory unavailable, client font paths are ignored: %v", err)
		fontDir = ""
	}

	orch, err := services.NewOrchestrator(services.OrchestratorDeps{
		Registry: a.Registry,
		Gate:     a.Gate,
		Pipeline: a.Pipeline,
		Loader:   a.Loader,
		Policy: services.ServerPolicy{
			UseGPU:        cfg.Server.UseGPU,
			UseGPULimited: cfg.Server.UseGPULimited,
			Verbose:       cfg.Server.Verbose,
			ModelsTTL:     cfg.Server.ModelsTTL,
			RetryAttempts: cfg.Server.RetryAttempts,
			FontDir:       fontDir,
		},
	})
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}
	a.Orchestrator = orch
	return nil
}

func (a *App) initJobClient() error {
	if a.Config.Redis.Address == "" {
		log.Println("Redis address not set, queued batch translation is disabled.")
		return nil
	}
	jc, err := store.NewAsynqJobClient(a.RedisOpt(), a.Config.Worker.ResultRetention)
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	a.JobClient = jc
	return nil
}

// RedisOpt returns the asynq connection options from the config.
func (a *App) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}
}

// Close releases the connections held by the app.
func (a *App) Close() {
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			log.Printf("Error closing job client: %v", err)
		}
		a.JobClient = nil
	}
}
