package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig_FlagsOverrideDefaults(t *testing.T) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, []string{"-db-path", "tmp/seed.db", "-fixture", "bands.json", "-v"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "tmp/seed.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "tmp/seed.db")
	}
	if cfg.FixturePath != "bands.json" {
		t.Fatalf("fixture = %q, want %q", cfg.FixturePath, "bands.json")
	}
	if !cfg.Verbose {
		t.Fatal("verbose = false, want true")
	}
}

func TestParseConfig_EnvDBPath(t *testing.T) {
	t.Setenv("SOUNDCHECK_TIMER_DB_PATH", "env/timer.db")
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "env/timer.db" {
		t.Fatalf("db path = %q, want env value", cfg.DBPath)
	}
}

func TestRunSeedsFixtureIntoStore(t *testing.T) {
	dir := t.TempDir()
	fixturePath := filepath.Join(dir, "bands.json")
	inactive := false
	fixture := Fixture{Bands: []BandFixture{
		{
			ID:          "band-1",
			Name:        "The Loud Ones",
			Description: "Tuesday night slot",
			Timers: []TimerFixture{
				{ID: "timer-1", Name: "Full run", DurationMinutes: 30, Order: 1},
				{ID: "timer-2", Name: "Retired", DurationMinutes: 15, Order: 2, Active: &inactive},
			},
		},
	}}
	raw, err := json.Marshal(fixture)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(fixturePath, raw, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var out bytes.Buffer
	cfg := Config{DBPath: filepath.Join(dir, "timer.db"), FixturePath: fixturePath}
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "seeded 1 bands, 2 timers") {
		t.Fatalf("output = %q, want seed summary", out.String())
	}
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{DBPath: filepath.Join(dir, "timer.db")}

	for i := 0; i < 2; i++ {
		if err := Run(context.Background(), cfg, nil); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
}

func TestLoadFixtureRejectsEmptyDocument(t *testing.T) {
	dir := t.TempDir()
	fixturePath := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(fixturePath, []byte(`{"bands": []}`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := loadFixture(fixturePath); err == nil {
		t.Fatal("expected error for fixture with no bands")
	}
}
