// Package seed parses seed command flags and loads band and timer
// fixtures into the timer database.
package seed

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/soundcheck-app/soundcheck/internal/services/timer/storage"
	"github.com/soundcheck-app/soundcheck/internal/services/timer/storage/sqlite"
)

// Config holds seed command configuration.
type Config struct {
	DBPath      string
	FixturePath string
	Verbose     bool
}

// Fixture is the JSON document the seed command loads. Timers nest under
// their band so a fixture never references a band it does not define.
type Fixture struct {
	Bands []BandFixture `json:"bands"`
}

// BandFixture describes one band and its rehearsal timers.
type BandFixture struct {
	ID          string         `json:"band_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Timers      []TimerFixture `json:"timers"`
}

// TimerFixture describes one timer preset. Active defaults to true when
// the fixture omits it.
type TimerFixture struct {
	ID              string `json:"timer_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Order           int    `json:"order"`
	Active          *bool  `json:"active"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{DBPath: "data/timer.db"}
	if path := os.Getenv("SOUNDCHECK_TIMER_DB_PATH"); strings.TrimSpace(path) != "" {
		cfg.DBPath = path
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The timer SQLite database path")
	fs.StringVar(&cfg.FixturePath, "fixture", "", "JSON fixture file (default: built-in demo data)")
	fs.BoolVar(&cfg.Verbose, "v", false, "verbose output")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run loads the fixture and upserts its bands and timers. Reruns are
// safe: existing rows are updated in place.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	fixture, err := loadFixture(cfg.FixturePath)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	return Apply(ctx, store, fixture, cfg.Verbose, out)
}

// Apply upserts every band and timer in the fixture through the store.
func Apply(ctx context.Context, store *sqlite.Store, fixture Fixture, verbose bool, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	bands := 0
	timers := 0
	for _, band := range fixture.Bands {
		if err := store.SeedBand(ctx, band.ID, band.Name, band.Description); err != nil {
			return err
		}
		bands++
		if verbose {
			fmt.Fprintf(out, "band %s (%s)\n", band.ID, band.Name)
		}
		for _, timer := range band.Timers {
			active := true
			if timer.Active != nil {
				active = *timer.Active
			}
			err := store.SeedTimer(ctx, storage.TimerDefinition{
				ID:              timer.ID,
				BandID:          band.ID,
				Name:            timer.Name,
				DurationMinutes: timer.DurationMinutes,
				Order:           timer.Order,
				Active:          active,
			})
			if err != nil {
				return err
			}
			timers++
			if verbose {
				fmt.Fprintf(out, "  timer %s (%s, %dm)\n", timer.ID, timer.Name, timer.DurationMinutes)
			}
		}
	}

	fmt.Fprintf(out, "seeded %d bands, %d timers\n", bands, timers)
	return nil
}

func loadFixture(path string) (Fixture, error) {
	if strings.TrimSpace(path) == "" {
		return demoFixture(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var fixture Fixture
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	if len(fixture.Bands) == 0 {
		return Fixture{}, fmt.Errorf("fixture %s defines no bands", path)
	}
	return fixture, nil
}

func demoFixture() Fixture {
	return Fixture{Bands: []BandFixture{
		{
			ID:          "band-demo",
			Name:        "Demo Band",
			Description: "Seeded rehearsal space for local development",
			Timers: []TimerFixture{
				{ID: "timer-warmup", Name: "Warmup", DurationMinutes: 10, Order: 1},
				{ID: "timer-setlist", Name: "Setlist run", DurationMinutes: 45, Order: 2},
				{ID: "timer-break", Name: "Break", DurationMinutes: 15, Order: 3},
			},
		},
	}}
}
