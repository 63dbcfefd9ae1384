package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/config"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/logger"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/proxy"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/version"
)

func main() {
	var envFile string

	cmd := &cobra.Command{
		Use:   "vlp-proxy",
		Short: "Edge proxy for the vlp admin api",
		Long: `Forwards /admin/* requests to the upstream api, caching successful responses
and rate limiting each client address.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(envFile)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.Version = version.Get().String()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(envFile string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	cfg, err := config.NewProxyConfig()
	if err != nil {
		return fmt.Errorf("failed to load proxy configuration: %w", err)
	}

	appLogger := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)
	slog.SetDefault(appLogger)

	appLogger.Info("starting proxy",
		slog.String("version", version.Get().Version),
		slog.String("environment", cfg.Environment),
		slog.String("upstream", cfg.UpstreamURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []proxy.Option
	if cfg.RedisURL != "" {
		client, err := proxy.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		opts = append(opts,
			proxy.WithCacheStore(proxy.NewRedisCache(client, cfg.CacheTTL, appLogger)),
			proxy.WithClientLimiter(proxy.NewRedisLimiter(client, cfg.ClientRateLimit, cfg.ClientRateWindow)),
		)
		appLogger.Info("using redis for the response cache and client rate limits")
	}

	server, err := proxy.NewServer(cfg, appLogger, opts...)
	if err != nil {
		return err
	}

	if err := server.Run(ctx); err != nil {
		appLogger.Error("proxy error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("proxy shutdown complete")
	return nil
}
