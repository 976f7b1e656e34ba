package config

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Server.MaxConcurrent < 0 {
		return errors.New("server.max_concurrent must not be negative (0 means unlimited)")
	}
	if c.Server.RetryAttempts != nil && *c.Server.RetryAttempts < -1 {
		return errors.New("server.retry_attempts must be -1 or greater")
	}

	switch c.Pipeline.Provider {
	case "none":
	case "remote":
		if c.Pipeline.Endpoint == "" {
			return errors.New("pipeline.endpoint is required when pipeline.provider is remote")
		}
	default:
		return fmt.Errorf("unknown pipeline.provider %q", c.Pipeline.Provider)
	}

	if c.Batch.DefaultSize <= 0 {
		return errors.New("batch.default_size must be a positive integer")
	}
	if c.Batch.MaxImages < 0 {
		return errors.New("batch.max_images must not be negative")
	}

	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues priority for queue '%s' must be positive", name)
		}
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}
