package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/campaign"
	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/config"
	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/netlife"
	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/output"
	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/pkg/logger"
	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/secrets"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "path", configPath, "error", err.Error())
		os.Exit(1)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err.Error())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Netlife.Username == "" && cfg.Netlife.SecretARN != "" {
		region := cfg.Output.AWSRegion
		if region == "" {
			region = cfg.Output.S3Region
		}
		loader, err := secrets.NewLoader(ctx, region)
		if err != nil {
			logger.Error("Failed to initialize secrets loader", "error", err.Error())
			os.Exit(1)
		}
		auth, err := loader.LoadBasicAuth(ctx, cfg.Netlife.SecretARN)
		if err != nil {
			logger.Error("Failed to load portal credentials", "error", err.Error())
			os.Exit(1)
		}
		cfg.Netlife.Username = auth.Username
		cfg.Netlife.Password = auth.Password
		if auth.TimeoutSeconds > 0 {
			cfg.Netlife.TimeoutSeconds = auth.TimeoutSeconds
		}
	}
	if cfg.Netlife.Username == "" {
		logger.Error("No portal credentials: set NETLIFE_USERNAME/NETLIFE_PASSWORD or NETLIFE_SECRET_ARN")
		os.Exit(1)
	}

	limiter := netlife.NewLimiter(cfg.Pipeline.Concurrency)
	portals := make([]campaign.PortalAPI, 0, len(cfg.Portals.Selected))
	for _, key := range cfg.Portals.Selected {
		client := netlife.NewClient(netlife.Config{
			PortalName: key,
			BaseURL:    cfg.Portals.Allowed[key],
			Username:   cfg.Netlife.Username,
			Password:   cfg.Netlife.Password,
			Timeout:    cfg.Netlife.Timeout(),
			Retries:    cfg.Netlife.Retries,
			RetryBase:  cfg.Netlife.RetryBase(),
			RetryCap:   cfg.Netlife.RetryCap(),
		}, limiter)
		portals = append(portals, client)
		logger.Info("Portal configured", "portal", key, "brand", config.PortalBrand(key))
	}

	started := time.Now()
	dataset := campaign.NewPipeline(cfg.Pipeline, portals...).Run(ctx)

	sink := output.NewSink(cfg.Output)
	if err := sink.Write(ctx, dataset); err != nil {
		logger.Error("Failed to write dataset", "error", err.Error())
		os.Exit(1)
	}

	logger.Info("Run complete",
		"run_id", dataset.Metadata.RunID,
		"contacts", len(dataset.Contacts),
		"jobs_processed", dataset.Metadata.JobsProcessed,
		"jobs_failed", dataset.Metadata.JobsFailed,
		"duration", time.Since(started).Round(time.Millisecond).String(),
	)
}
