package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/viper"
)

// Persister writes settings back into the config file v was loaded from.
// Each save re-reads the file into a private viper, so v itself is never
// modified and keeps following the file through reloads.
type Persister struct {
	v        *viper.Viper
	fallback string

	mu sync.Mutex
}

// NewPersister writes to the file v uses. fallback is the file created
// when v was loaded without one.
func NewPersister(v *viper.Viper, fallback string) *Persister {
	if fallback == "" {
		fallback = "config.yaml"
	}
	return &Persister{v: v, fallback: fallback}
}

// SaveSettings replaces the settings block and writes the config file.
func (p *Persister) SaveSettings(s Settings) error {
	return p.update(func(w *viper.Viper) {
		w.Set("settings.high_threshold", s.HighThreshold)
		w.Set("settings.medium_threshold", s.MediumThreshold)
		w.Set("settings.weight_age", s.WeightAge)
		w.Set("settings.weight_activity", s.WeightActivity)
		w.Set("settings.new_account_days", s.NewAccountDays)
		w.Set("settings.high_messages_per_day", s.HighMessagesPerDay)
		w.Set("settings.trusted_users", nonNil(s.TrustedUsers))
		w.Set("settings.blacklist_users", nonNil(s.BlacklistUsers))
		w.Set("settings.show_tooltip", s.Tooltip())
		w.Set("settings.auto_analyze", s.Auto())
	})
}

// SaveTrusted replaces only the trusted list. It satisfies trust.Persister.
func (p *Persister) SaveTrusted(_ context.Context, names []string) error {
	return p.update(func(w *viper.Viper) {
		w.Set("settings.trusted_users", nonNil(names))
	})
}

// update reads the current file, applies set and writes it back.
func (p *Persister) update(set func(w *viper.Viper)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	path := p.v.ConfigFileUsed()
	created := false
	if path == "" {
		path = p.fallback
		created = true
	}

	w := viper.New()
	w.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := w.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	set(w)
	if err := w.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	if created {
		p.v.SetConfigFile(path)
		slog.Info("config: created config file", "path", path)
	}
	return nil
}
