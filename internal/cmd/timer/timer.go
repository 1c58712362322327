// Package timer parses timer command flags and launches the timer runtime.
package timer

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/soundcheck-app/soundcheck/internal/platform/cmd"
	timerserver "github.com/soundcheck-app/soundcheck/internal/services/timer/app"
)

// Config holds timer command configuration.
type Config struct {
	HTTPPort        int           `env:"SOUNDCHECK_TIMER_HTTP_PORT" envDefault:"8080"`
	HealthPort      int           `env:"SOUNDCHECK_TIMER_HEALTH_PORT" envDefault:"8081"`
	DBPath          string        `env:"SOUNDCHECK_TIMER_DB_PATH" envDefault:"data/timer.db"`
	SessionTTL      time.Duration `env:"SOUNDCHECK_TIMER_SESSION_TTL" envDefault:"1h"`
	PollInterval    time.Duration `env:"SOUNDCHECK_TIMER_POLL_INTERVAL" envDefault:"10s"`
	InitialDelay    time.Duration `env:"SOUNDCHECK_TIMER_INITIAL_DELAY" envDefault:"5s"`
	Workers         int           `env:"SOUNDCHECK_TIMER_WORKERS" envDefault:"4"`
	GCInterval      time.Duration `env:"SOUNDCHECK_TIMER_GC_INTERVAL" envDefault:"5m"`
	ShutdownTimeout time.Duration `env:"SOUNDCHECK_TIMER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "The timer control API and websocket port")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The timer health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The timer SQLite database path")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "Session record expiry window")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Completion check cadence")
	fs.DurationVar(&cfg.InitialDelay, "initial-delay", cfg.InitialDelay, "Delay before the first completion check")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Completion check worker count")
	fs.DurationVar(&cfg.GCInterval, "gc-interval", cfg.GCInterval, "Expired session sweep interval")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "HTTP server drain timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the timer runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceTimer, func(context.Context) error {
		return timerserver.Run(ctx, timerserver.RuntimeConfig{
			HTTPPort:        cfg.HTTPPort,
			HealthPort:      cfg.HealthPort,
			DBPath:          cfg.DBPath,
			SessionTTL:      cfg.SessionTTL,
			PollInterval:    cfg.PollInterval,
			InitialDelay:    cfg.InitialDelay,
			Workers:         cfg.Workers,
			GCInterval:      cfg.GCInterval,
			ShutdownTimeout: cfg.ShutdownTimeout,
		})
	})
}
