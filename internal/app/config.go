package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

const (
	appName           = "fitctl"
	projectConfigName = ".fitctl.toml"
	stateFileName     = "state.db"
)

type fileConfig struct {
	BaseURL       string                `toml:"base_url"`
	TZ            string                `toml:"tz"`
	Output        string                `toml:"output"`
	Fields        string                `toml:"fields"`
	ViewportWidth int                   `toml:"viewport_width"`
	PollInterval  string                `toml:"poll_interval"`
	StatePath     string                `toml:"state_path"`
	Profile       string                `toml:"profile"`
	Profiles      map[string]fileConfig `toml:"profiles"`
}

func resolveGlobalOptions(cmd *cobra.Command, defaults *globalOptions) (*globalOptions, error) {
	resolved := *defaults

	profile := firstNonEmpty(env("FITCTL_PROFILE"), defaults.Profile)
	if flagValueChanged(cmd, "profile") {
		profile = defaults.Profile
	}
	if profile == "" {
		profile = "default"
	}
	resolved.Profile = profile

	userPath := defaultUserConfigPath()
	configPath := firstNonEmpty(env("FITCTL_CONFIG"), userPath)
	if flagValueChanged(cmd, "config") {
		configPath = defaults.Config
	}

	for _, path := range uniquePaths(userPath, projectConfigName, configPath) {
		cfg, ok, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := applyFileConfig(&resolved, cfg, profile); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&resolved); err != nil {
		return nil, err
	}
	applyFlags(cmd, &resolved, defaults)

	if resolved.Config == "" {
		resolved.Config = configPath
	}
	if resolved.StatePath == "" {
		resolved.StatePath = defaultStatePath(resolved.Config)
	}
	if resolved.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", resolved.PollInterval)
	}
	return &resolved, nil
}

func uniquePaths(paths ...string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func applyFileConfig(dst *globalOptions, cfg fileConfig, profile string) error {
	if p, ok := cfg.Profiles[profile]; ok {
		cfg = mergeFileConfig(cfg, p)
	}
	if cfg.BaseURL != "" {
		dst.BaseURL = cfg.BaseURL
	}
	if cfg.TZ != "" {
		dst.TZ = cfg.TZ
	}
	if cfg.Fields != "" {
		dst.Fields = cfg.Fields
	}
	if cfg.ViewportWidth > 0 {
		dst.ViewportWidth = cfg.ViewportWidth
	}
	if cfg.StatePath != "" {
		dst.StatePath = expandHome(cfg.StatePath)
	}
	if cfg.PollInterval != "" {
		d, err := time.ParseDuration(cfg.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid poll_interval: %w", err)
		}
		dst.PollInterval = d
	}
	applyOutputMode(dst, cfg.Output)
	return nil
}

func mergeFileConfig(base, overlay fileConfig) fileConfig {
	if overlay.BaseURL != "" {
		base.BaseURL = overlay.BaseURL
	}
	if overlay.TZ != "" {
		base.TZ = overlay.TZ
	}
	if overlay.Output != "" {
		base.Output = overlay.Output
	}
	if overlay.Fields != "" {
		base.Fields = overlay.Fields
	}
	if overlay.ViewportWidth > 0 {
		base.ViewportWidth = overlay.ViewportWidth
	}
	if overlay.PollInterval != "" {
		base.PollInterval = overlay.PollInterval
	}
	if overlay.StatePath != "" {
		base.StatePath = overlay.StatePath
	}
	if overlay.Profile != "" {
		base.Profile = overlay.Profile
	}
	return base
}

func applyOutputMode(dst *globalOptions, v string) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "json":
		dst.JSON, dst.JSONL, dst.Plain = true, false, false
	case "jsonl":
		dst.JSON, dst.JSONL, dst.Plain = false, true, false
	case "plain":
		dst.JSON, dst.JSONL, dst.Plain = false, false, true
	}
}

func applyEnv(dst *globalOptions) error {
	if v := env("FITCTL_BASE_URL"); v != "" {
		dst.BaseURL = v
	}
	if v := env("FITCTL_TIMEZONE"); v != "" {
		dst.TZ = v
	}
	if v := env("FITCTL_FIELDS"); v != "" {
		dst.Fields = v
	}
	if v := env("FITCTL_STATE_PATH"); v != "" {
		dst.StatePath = expandHome(v)
	}
	applyOutputMode(dst, env("FITCTL_OUTPUT"))
	if v := env("FITCTL_NO_INPUT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			dst.NoInput = b
		}
	}
	if v := env("FITCTL_VIEWPORT_WIDTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid FITCTL_VIEWPORT_WIDTH %q", v)
		}
		dst.ViewportWidth = n
	}
	if v := env("FITCTL_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FITCTL_POLL_INTERVAL: %w", err)
		}
		dst.PollInterval = d
	}
	return nil
}

func applyFlags(cmd *cobra.Command, dst, fromFlags *globalOptions) {
	copyIfChanged(cmd, "json", func() { dst.JSON = fromFlags.JSON })
	copyIfChanged(cmd, "jsonl", func() { dst.JSONL = fromFlags.JSONL })
	copyIfChanged(cmd, "plain", func() { dst.Plain = fromFlags.Plain })
	copyIfChanged(cmd, "fields", func() { dst.Fields = fromFlags.Fields })
	copyIfChanged(cmd, "quiet", func() { dst.Quiet = fromFlags.Quiet })
	copyIfChanged(cmd, "verbose", func() { dst.Verbose = fromFlags.Verbose })
	copyIfChanged(cmd, "no-color", func() { dst.NoColor = fromFlags.NoColor })
	copyIfChanged(cmd, "no-input", func() { dst.NoInput = fromFlags.NoInput })
	copyIfChanged(cmd, "profile", func() { dst.Profile = fromFlags.Profile })
	copyIfChanged(cmd, "config", func() { dst.Config = fromFlags.Config })
	copyIfChanged(cmd, "base-url", func() { dst.BaseURL = fromFlags.BaseURL })
	copyIfChanged(cmd, "tz", func() { dst.TZ = fromFlags.TZ })
	copyIfChanged(cmd, "timeout", func() { dst.Timeout = fromFlags.Timeout })
	copyIfChanged(cmd, "width", func() { dst.ViewportWidth = fromFlags.ViewportWidth })
	copyIfChanged(cmd, "poll-interval", func() { dst.PollInterval = fromFlags.PollInterval })
	copyIfChanged(cmd, "state", func() { dst.StatePath = fromFlags.StatePath })
	copyIfChanged(cmd, "schema-version", func() { dst.SchemaVersion = fromFlags.SchemaVersion })

	// If exactly one output mode flag is explicitly set, it overrides env/config output mode.
	modeSet := 0
	for _, name := range []string{"json", "jsonl", "plain"} {
		if flagValueChanged(cmd, name) && flagBool(fromFlags, name) {
			modeSet++
		}
	}
	if modeSet == 1 {
		for _, name := range []string{"json", "jsonl", "plain"} {
			if flagValueChanged(cmd, name) && flagBool(fromFlags, name) {
				applyOutputMode(dst, name)
			}
		}
	}
}

func flagBool(o *globalOptions, name string) bool {
	switch name {
	case "json":
		return o.JSON
	case "jsonl":
		return o.JSONL
	default:
		return o.Plain
	}
}

func copyIfChanged(cmd *cobra.Command, name string, fn func()) {
	if flagValueChanged(cmd, name) {
		fn()
	}
}

func flagValueChanged(cmd *cobra.Command, name string) bool {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return true
	}
	if f := cmd.InheritedFlags().Lookup(name); f != nil && f.Changed {
		return true
	}
	return false
}

// readConfigFile reports ok=false for a missing file; a file that exists but
// does not parse is an error.
func readConfigFile(path string) (fileConfig, bool, error) {
	if strings.TrimSpace(path) == "" {
		return fileConfig{}, false, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileConfig{}, false, nil
		}
		return fileConfig{}, false, err
	}
	var cfg fileConfig
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return fileConfig{}, false, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, true, nil
}

func configDir() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home := strings.TrimSpace(os.Getenv("HOME"))
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

func defaultUserConfigPath() string {
	dir := configDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.toml")
}

// defaultStatePath places the state database next to the active config file.
func defaultStatePath(configPath string) string {
	if strings.TrimSpace(configPath) != "" {
		return filepath.Join(filepath.Dir(configPath), stateFileName)
	}
	if dir := configDir(); dir != "" {
		return filepath.Join(dir, stateFileName)
	}
	return stateFileName
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home := strings.TrimSpace(os.Getenv("HOME"))
	if home == "" {
		return path
	}
	return filepath.Join(home, path[2:])
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
