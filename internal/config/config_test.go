package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fc-troll-detector/internal/score"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
)

func TestFillDefaults(t *testing.T) {
	var c Config
	c.FillDefaults()
	if c.Cache.Backend != "sqlite" || c.Cache.Prefix != "fc_troll_cache_" || c.CacheTTL() != 24*time.Hour {
		t.Errorf("cache defaults = %+v", c.Cache)
	}
	if c.Forum.Thread.Concurrency != 4 || c.Forum.Thread.MaxItems != 50 {
		t.Errorf("thread defaults = %+v", c.Forum.Thread)
	}
	if c.Forum.Listing.Concurrency != 6 || c.Forum.Listing.MaxItems != 40 {
		t.Errorf("listing defaults = %+v", c.Forum.Listing)
	}
	if c.Forum.Thread.Delay() != 50*time.Millisecond {
		t.Errorf("delay = %v", c.Forum.Thread.Delay())
	}
	if diff := cmp.Diff(score.DefaultParams(), c.ScoreParams()); diff != "" {
		t.Errorf("score params (-want +got):\n%s", diff)
	}
	if !c.Settings.Tooltip() || !c.Settings.Auto() {
		t.Errorf("tooltip and auto analyze default to on")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestFillDefaultsKeepsExplicitValues(t *testing.T) {
	off := false
	c := Config{Settings: Settings{HighThreshold: 80, WeightAge: 30, WeightActivity: 70, ShowTooltip: &off}}
	c.FillDefaults()
	p := c.ScoreParams()
	if p.HighThreshold != 80 || p.MediumThreshold != 40 || p.WeightAge != 0.3 || p.WeightActivity != 0.7 {
		t.Errorf("params = %+v", p)
	}
	if c.Settings.Tooltip() {
		t.Errorf("explicit false tooltip overridden")
	}
}

func TestValidateRejectsBadDuration(t *testing.T) {
	var c Config
	c.FillDefaults()
	c.Cache.TTL = "one day"
	if err := c.Validate(); err == nil {
		t.Errorf("expected error")
	}
	if c.CacheTTL() != 24*time.Hour {
		t.Errorf("CacheTTL fallback = %v", c.CacheTTL())
	}
}

func TestListEditing(t *testing.T) {
	s := DefaultSettings()
	if err := s.AddTrusted("Pepe"); err != nil {
		t.Fatalf("AddTrusted: %v", err)
	}
	if err := s.AddTrusted("PEPE"); !errors.Is(err, ErrAlreadyListed) {
		t.Errorf("duplicate trusted: %v", err)
	}
	if err := s.AddTrusted("  "); !errors.Is(err, ErrEmptyUsername) {
		t.Errorf("blank trusted: %v", err)
	}
	if err := s.AddBlacklisted("pepe"); !errors.Is(err, ErrTrustedUser) {
		t.Errorf("blacklisting a trusted user: %v", err)
	}
	if err := s.AddBlacklisted("Troll"); err != nil {
		t.Fatalf("AddBlacklisted: %v", err)
	}
	if err := s.AddBlacklisted("troll"); !errors.Is(err, ErrAlreadyListed) {
		t.Errorf("duplicate blacklist: %v", err)
	}
	if err := s.RemoveTrusted("pepe"); err != nil {
		t.Errorf("RemoveTrusted: %v", err)
	}
	if err := s.RemoveTrusted("pepe"); !errors.Is(err, ErrNotListed) {
		t.Errorf("second remove: %v", err)
	}
	if err := s.RemoveBlacklisted("TROLL"); err != nil {
		t.Errorf("RemoveBlacklisted: %v", err)
	}
	if len(s.TrustedUsers) != 0 || len(s.BlacklistUsers) != 0 {
		t.Errorf("lists not empty: %+v", s)
	}
}

func TestExportJSON(t *testing.T) {
	s := DefaultSettings()
	s.TrustedUsers = []string{"Ana"}
	var buf bytes.Buffer
	now := time.Date(2025, time.May, 1, 10, 30, 0, 0, time.UTC)
	if err := s.Export(&buf, "json", now); err != nil {
		t.Fatalf("Export: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("exported file is not JSON: %v", err)
	}
	want := map[string]any{
		"umbralAlto":        70.0,
		"umbralMedio":       40.0,
		"pesoAntiguedad":    50.0,
		"pesoActividad":     50.0,
		"usuariosFiables":   []any{"Ana"},
		"usuariosBlacklist": []any{},
		"mostrarTooltip":    true,
		"analizarAuto":      true,
		"_exportInfo": map[string]any{
			"version":   "1.4.0",
			"fecha":     "2025-05-01T10:30:00.000Z",
			"extension": "FC Troll Detector",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("export mismatch (-want +got):\n%s", diff)
	}
}

func TestExportImportYAML(t *testing.T) {
	s := DefaultSettings()
	s.HighThreshold = 85
	s.BlacklistUsers = []string{"Troll"}
	var buf bytes.Buffer
	if err := s.Export(&buf, "yaml", time.Now()); err != nil {
		t.Fatalf("Export: %v", err)
	}
	got, err := Import(&buf, "yaml", DefaultSettings())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("settings changed (-want +got):\n%s", diff)
	}
}

func TestImport(t *testing.T) {
	base := DefaultSettings()
	base.TrustedUsers = []string{"Old"}

	tests := []struct {
		name    string
		in      string
		wantErr bool
		check   func(Settings) bool
	}{
		{"not an object", `[1,2]`, true, nil},
		{"no known field", `{"foo": 1}`, true, nil},
		{"threshold as text", `{"umbralAlto": "80"}`, true, nil},
		{"list as text", `{"usuariosFiables": "Ana"}`, true, nil},
		{"malformed", `{`, true, nil},
		{"partial", `{"umbralAlto": 90, "mostrarTooltip": false}`, false, func(s Settings) bool {
			return s.HighThreshold == 90 && s.MediumThreshold == 40 && !s.Tooltip() && len(s.TrustedUsers) == 0
		}},
		{"snake case keys", `{"trusted_users": ["Ana", " "], "weight_age": 20, "weight_activity": 80}`, false, func(s Settings) bool {
			return cmp.Equal(s.TrustedUsers, []string{"Ana"}) && s.WeightAge == 20 && s.WeightActivity == 80
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Import(strings.NewReader(tt.in), "json", base)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidImport) {
					t.Fatalf("expected ErrInvalidImport, got %v", err)
				}
				if diff := cmp.Diff(base, got); diff != "" {
					t.Errorf("failed import changed settings:\n%s", diff)
				}
				return
			}
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			if !tt.check(got) {
				t.Errorf("unexpected settings %+v", got)
			}
		})
	}
	if _, err := Import(strings.NewReader(`{}`), "toml", base); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("unknown format: %v", err)
	}
}

func TestPersisterWritesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("app:\n  log_level: debug\nsettings:\n  high_threshold: 75\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}
	p := NewPersister(v, "")
	if err := p.SaveTrusted(context.Background(), []string{"Pepe"}); err != nil {
		t.Fatalf("SaveTrusted: %v", err)
	}

	reread := viper.New()
	reread.SetConfigFile(path)
	if err := reread.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}
	var c Config
	if err := reread.Unmarshal(&c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if c.App.LogLevel != "debug" || c.Settings.HighThreshold != 75 {
		t.Errorf("other keys lost: %+v", c)
	}
	if diff := cmp.Diff([]string{"Pepe"}, c.Settings.TrustedUsers); diff != "" {
		t.Errorf("trusted users (-want +got):\n%s", diff)
	}
}

func TestPersisterKeepsLaterFileEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("settings:\n  trusted_users: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}
	p := NewPersister(v, "")
	ctx := context.Background()
	if err := p.SaveTrusted(ctx, []string{"Pepe"}); err != nil {
		t.Fatalf("SaveTrusted: %v", err)
	}

	// Another process edits the file; the watcher reloads v.
	if err := os.WriteFile(path, []byte("settings:\n  trusted_users: [Pepe, Juan]\n  high_threshold: 80\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	reload := func() Settings {
		t.Helper()
		if err := v.ReadInConfig(); err != nil {
			t.Fatalf("ReadInConfig: %v", err)
		}
		var c Config
		if err := v.Unmarshal(&c); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		return c.Settings
	}
	if diff := cmp.Diff([]string{"Pepe", "Juan"}, reload().TrustedUsers); diff != "" {
		t.Errorf("file edit hidden after save (-want +got):\n%s", diff)
	}

	// A later save starts from the edited file.
	if err := p.SaveTrusted(ctx, []string{"Pepe", "Juan", "Ana"}); err != nil {
		t.Fatalf("SaveTrusted: %v", err)
	}
	got := reload()
	if diff := cmp.Diff([]string{"Pepe", "Juan", "Ana"}, got.TrustedUsers); diff != "" {
		t.Errorf("trusted after second save (-want +got):\n%s", diff)
	}
	if got.HighThreshold != 80 {
		t.Errorf("high_threshold = %d, the external edit was overwritten", got.HighThreshold)
	}
}

func TestPersisterCreatesFallbackFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.yaml")
	v := viper.New()
	s := DefaultSettings()
	s.BlacklistUsers = []string{"Troll"}
	if err := NewPersister(v, path).SaveSettings(s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config not created: %v", err)
	}
	if !strings.Contains(string(b), "Troll") {
		t.Errorf("config file = %s", b)
	}
}
