package main

import (
	"flag"
	"fmt"
	"os"

	pyroscope "github.com/grafana/pyroscope-go"

	"PulseScan/internal/di"
	"PulseScan/pkg/config"
	"PulseScan/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: "stderr",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}

	if cfg.Profiling.Enabled {
		profiler, err := startProfiler(cfg, l)
		if err != nil {
			l.Warn("pyroscope start failed, continuing without profiling", logger.Error(err))
		} else {
			defer func() { _ = profiler.Stop() }()
		}
	}

	l.Info("starting pulsescan",
		logger.String("env", cfg.Environment),
		logger.String("feed", cfg.Feed.Source),
		logger.Bool("postgres", cfg.Postgres.Enabled),
		logger.Bool("clickhouse", cfg.ClickHouse.Enabled),
		logger.Bool("redis", cfg.Redis.Enabled),
	)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		l.Error("app initialization failed", logger.Error(err))
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		l.Error("app error", logger.Error(err))
		os.Exit(1)
	}
}

func startProfiler(cfg *config.Config, l *logger.Logger) (*pyroscope.Profiler, error) {
	return pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.Profiling.AppName,
		ServerAddress:   cfg.Profiling.ServerAddress,
		Tags: map[string]string{
			"env": cfg.Environment,
		},
		Logger: profilerLogger{l: l},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
}

// profilerLogger adapts logger.Logger to pyroscope's printf-style logger.
type profilerLogger struct {
	l *logger.Logger
}

func (p profilerLogger) Infof(format string, args ...interface{}) {
	p.l.Debug(fmt.Sprintf(format, args...), logger.String("source", "pyroscope"))
}

func (p profilerLogger) Debugf(format string, args ...interface{}) {
	p.l.Debug(fmt.Sprintf(format, args...), logger.String("source", "pyroscope"))
}

func (p profilerLogger) Errorf(format string, args ...interface{}) {
	p.l.Warn(fmt.Sprintf(format, args...), logger.String("source", "pyroscope"))
}
