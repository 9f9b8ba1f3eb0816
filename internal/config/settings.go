package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"fc-troll-detector/internal/score"

	"gopkg.in/yaml.v3"
)

// Settings are the user-tunable scoring and display options.
type Settings struct {
	HighThreshold      int      `mapstructure:"high_threshold"`
	MediumThreshold    int      `mapstructure:"medium_threshold"`
	WeightAge          int      `mapstructure:"weight_age"`      // percent
	WeightActivity     int      `mapstructure:"weight_activity"` // percent
	NewAccountDays     int      `mapstructure:"new_account_days"`
	HighMessagesPerDay float64  `mapstructure:"high_messages_per_day"`
	TrustedUsers       []string `mapstructure:"trusted_users"`
	BlacklistUsers     []string `mapstructure:"blacklist_users"`
	ShowTooltip        *bool    `mapstructure:"show_tooltip"`
	AutoAnalyze        *bool    `mapstructure:"auto_analyze"`
}

var (
	ErrAlreadyListed = errors.New("user already listed")
	ErrTrustedUser   = errors.New("user is trusted")
	ErrNotListed     = errors.New("user not listed")
	ErrInvalidImport = errors.New("invalid settings file")
	ErrUnknownFormat = errors.New("unknown format")
	ErrEmptyUsername = errors.New("empty username")
)

// DefaultSettings returns the factory settings.
func DefaultSettings() Settings {
	var s Settings
	s.FillDefaults()
	return s
}

// FillDefaults replaces zero values with defaults. A zero threshold or
// weight therefore cannot be configured.
func (s *Settings) FillDefaults() {
	d := score.DefaultParams()
	if s.HighThreshold == 0 {
		s.HighThreshold = d.HighThreshold
	}
	if s.MediumThreshold == 0 {
		s.MediumThreshold = d.MediumThreshold
	}
	if s.WeightAge == 0 {
		s.WeightAge = int(d.WeightAge * 100)
	}
	if s.WeightActivity == 0 {
		s.WeightActivity = int(d.WeightActivity * 100)
	}
	if s.NewAccountDays == 0 {
		s.NewAccountDays = d.NewAccountDays
	}
	if s.HighMessagesPerDay == 0 {
		s.HighMessagesPerDay = d.HighMessagesPerDay
	}
	if s.TrustedUsers == nil {
		s.TrustedUsers = []string{}
	}
	if s.BlacklistUsers == nil {
		s.BlacklistUsers = []string{}
	}
	if s.ShowTooltip == nil {
		s.ShowTooltip = boolPtr(true)
	}
	if s.AutoAnalyze == nil {
		s.AutoAnalyze = boolPtr(true)
	}
}

func boolPtr(b bool) *bool { return &b }

// Tooltip reports whether badges carry the detail tooltip.
func (s Settings) Tooltip() bool { return s.ShowTooltip == nil || *s.ShowTooltip }

// Auto reports whether pages are analysed without being asked.
func (s Settings) Auto() bool { return s.AutoAnalyze == nil || *s.AutoAnalyze }

// ScoreParams converts percent weights into fractions.
func (s Settings) ScoreParams() score.Params {
	return score.Params{
		WeightAge:          float64(s.WeightAge) / 100,
		WeightActivity:     float64(s.WeightActivity) / 100,
		HighThreshold:      s.HighThreshold,
		MediumThreshold:    s.MediumThreshold,
		NewAccountDays:     s.NewAccountDays,
		HighMessagesPerDay: s.HighMessagesPerDay,
	}
}

func indexFold(list []string, name string) int {
	for i, n := range list {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

// AddTrusted appends name unless it is already trusted.
func (s *Settings) AddTrusted(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyUsername
	}
	if indexFold(s.TrustedUsers, name) >= 0 {
		return fmt.Errorf("%q: %w", name, ErrAlreadyListed)
	}
	s.TrustedUsers = append(s.TrustedUsers, name)
	return nil
}

// RemoveTrusted drops name, ignoring case.
func (s *Settings) RemoveTrusted(name string) error {
	i := indexFold(s.TrustedUsers, strings.TrimSpace(name))
	if i < 0 {
		return fmt.Errorf("%q: %w", name, ErrNotListed)
	}
	s.TrustedUsers = append(s.TrustedUsers[:i:i], s.TrustedUsers[i+1:]...)
	return nil
}

// AddBlacklisted appends name unless it is already blacklisted or trusted.
func (s *Settings) AddBlacklisted(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyUsername
	}
	if indexFold(s.BlacklistUsers, name) >= 0 {
		return fmt.Errorf("%q: %w", name, ErrAlreadyListed)
	}
	if indexFold(s.TrustedUsers, name) >= 0 {
		return fmt.Errorf("%q: %w", name, ErrTrustedUser)
	}
	s.BlacklistUsers = append(s.BlacklistUsers, name)
	return nil
}

// RemoveBlacklisted drops name, ignoring case.
func (s *Settings) RemoveBlacklisted(name string) error {
	i := indexFold(s.BlacklistUsers, strings.TrimSpace(name))
	if i < 0 {
		return fmt.Errorf("%q: %w", name, ErrNotListed)
	}
	s.BlacklistUsers = append(s.BlacklistUsers[:i:i], s.BlacklistUsers[i+1:]...)
	return nil
}

const (
	ExportVersion   = "1.4.0"
	ExportExtension = "FC Troll Detector"
)

// exportDoc is the portable settings file. Its keys are shared with the
// browser extension so files can move between the two.
type exportDoc struct {
	UmbralAlto        int        `json:"umbralAlto" yaml:"umbralAlto"`
	UmbralMedio       int        `json:"umbralMedio" yaml:"umbralMedio"`
	PesoAntiguedad    int        `json:"pesoAntiguedad" yaml:"pesoAntiguedad"`
	PesoActividad     int        `json:"pesoActividad" yaml:"pesoActividad"`
	UsuariosFiables   []string   `json:"usuariosFiables" yaml:"usuariosFiables"`
	UsuariosBlacklist []string   `json:"usuariosBlacklist" yaml:"usuariosBlacklist"`
	MostrarTooltip    bool       `json:"mostrarTooltip" yaml:"mostrarTooltip"`
	AnalizarAuto      bool       `json:"analizarAuto" yaml:"analizarAuto"`
	ExportInfo        exportInfo `json:"_exportInfo" yaml:"_exportInfo"`
}

type exportInfo struct {
	Version   string `json:"version" yaml:"version"`
	Fecha     string `json:"fecha" yaml:"fecha"`
	Extension string `json:"extension" yaml:"extension"`
}

// Export writes the settings as "json" or "yaml".
func (s Settings) Export(w io.Writer, format string, now time.Time) error {
	doc := exportDoc{
		UmbralAlto:        s.HighThreshold,
		UmbralMedio:       s.MediumThreshold,
		PesoAntiguedad:    s.WeightAge,
		PesoActividad:     s.WeightActivity,
		UsuariosFiables:   nonNil(s.TrustedUsers),
		UsuariosBlacklist: nonNil(s.BlacklistUsers),
		MostrarTooltip:    s.Tooltip(),
		AnalizarAuto:      s.Auto(),
		ExportInfo: exportInfo{
			Version:   ExportVersion,
			Fecha:     now.UTC().Format("2006-01-02T15:04:05.000Z"),
			Extension: ExportExtension,
		},
	}
	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

// importKeys maps every accepted key to its canonical name; the
// snake_case config keys are accepted next to the exported ones.
var importKeys = map[string]string{
	"umbralAlto":        "umbralAlto",
	"high_threshold":    "umbralAlto",
	"umbralMedio":       "umbralMedio",
	"medium_threshold":  "umbralMedio",
	"pesoAntiguedad":    "pesoAntiguedad",
	"weight_age":        "pesoAntiguedad",
	"pesoActividad":     "pesoActividad",
	"weight_activity":   "pesoActividad",
	"usuariosFiables":   "usuariosFiables",
	"trusted_users":     "usuariosFiables",
	"usuariosBlacklist": "usuariosBlacklist",
	"blacklist_users":   "usuariosBlacklist",
	"mostrarTooltip":    "mostrarTooltip",
	"show_tooltip":      "mostrarTooltip",
	"analizarAuto":      "analizarAuto",
	"auto_analyze":      "analizarAuto",
}

// required lists the keys of which at least one must be present.
var required = []string{"umbralAlto", "umbralMedio", "usuariosFiables", "usuariosBlacklist"}

// Import reads a settings file produced by Export (or by the browser
// extension) and applies it on top of base. Scalars absent from the file
// keep their base value; the user lists are replaced, absent lists
// becoming empty.
func Import(r io.Reader, format string, base Settings) (Settings, error) {
	var raw any
	switch strings.ToLower(format) {
	case "", "json":
		if err := json.NewDecoder(r).Decode(&raw); err != nil {
			return base, fmt.Errorf("decode json: %v: %w", err, ErrInvalidImport)
		}
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
			return base, fmt.Errorf("decode yaml: %v: %w", err, ErrInvalidImport)
		}
	default:
		return base, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return base, fmt.Errorf("not an object: %w", ErrInvalidImport)
	}
	fields := map[string]any{}
	for k, v := range obj {
		if canon, ok := importKeys[k]; ok {
			fields[canon] = v
		}
	}
	found := false
	for _, k := range required {
		if _, ok := fields[k]; ok {
			found = true
			break
		}
	}
	if !found {
		return base, fmt.Errorf("none of %s present: %w", strings.Join(required, ", "), ErrInvalidImport)
	}

	out := base
	for key, dst := range map[string]*int{
		"umbralAlto":     &out.HighThreshold,
		"umbralMedio":    &out.MediumThreshold,
		"pesoAntiguedad": &out.WeightAge,
		"pesoActividad":  &out.WeightActivity,
	} {
		v, ok := fields[key]
		if !ok {
			continue
		}
		n, ok := number(v)
		if !ok {
			return base, fmt.Errorf("%s must be a number: %w", key, ErrInvalidImport)
		}
		*dst = n
	}
	for key, dst := range map[string]*[]string{
		"usuariosFiables":   &out.TrustedUsers,
		"usuariosBlacklist": &out.BlacklistUsers,
	} {
		list, err := stringList(fields[key])
		if err != nil {
			return base, fmt.Errorf("%s %v: %w", key, err, ErrInvalidImport)
		}
		*dst = list
	}
	for key, dst := range map[string]**bool{
		"mostrarTooltip": &out.ShowTooltip,
		"analizarAuto":   &out.AutoAnalyze,
	} {
		if b, ok := fields[key].(bool); ok {
			*dst = boolPtr(b)
		}
	}
	out.FillDefaults()
	return out, nil
}

func number(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}

func stringList(v any) ([]string, error) {
	if v == nil {
		return []string{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, errors.New("must be a list")
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, errors.New("must contain only names")
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
