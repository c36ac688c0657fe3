package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/absmach/fedguard"
	"github.com/absmach/fedguard/cli"
	"github.com/absmach/fedguard/pkg/tracing"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	svcName = "fedguard"
	pathEnv = ".env"
)

type envConfig struct {
	LogLevel   string  `env:"FEDGUARD_LOG_LEVEL"   envDefault:"info"`
	InstanceID string  `env:"FEDGUARD_INSTANCE_ID"`
	OTELURL    url.URL `env:"FEDGUARD_OTEL_URL"`
	TraceRatio float64 `env:"FEDGUARD_TRACE_RATIO" envDefault:"0"`
	fedguard.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)
	cli.SetLogger(logger)

	if cfg.OTELURL != (url.URL{}) {
		tp, err := tracing.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		cli.SetTracer(tp.Tracer(svcName))
	}

	var configPath string
	rootCmd := &cobra.Command{
		Use:   "fedguard",
		Short: "Robust federated learning aggregation",
		Long:  `fedguard aggregates federated learning updates with poisoning-robust rules and simulates attacks against them.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			conf := cfg.Config
			if configPath != "" {
				var err error
				if conf, err = fedguard.LoadConfig(configPath, conf); err != nil {
					return err
				}
			}
			if _, err := conf.Aggregator.FLConfig(); err != nil {
				return err
			}
			cli.SetConfig(conf)

			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")

	rootCmd.AddCommand(cli.NewAggregateCmd())
	rootCmd.AddCommand(cli.NewSimulateCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("fedguard exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}
