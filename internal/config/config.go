// Package config loads and validates dcg's configuration (spec.md §6).
//
// Grounded on the teacher's internal/config contract as evidenced by its
// surviving config_test.go: Load(LoadOptions{ProjectDir, ConfigPath,
// FlagOverrides}), DefaultConfig, Validate, WriteValue, GetValue,
// ConfigPaths, ParseValue, and a BurntSushi/toml + viper precedence chain
// of CLI flag > env > project > user > defaults. The field set itself is
// new: SLB's General/Daemon/RateLimits/Patterns approval-workflow schema
// is replaced by the spec's response.*/interactive.*/history.* schema,
// but the loading machinery and every exported function's shape and
// error-handling style are kept.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Response configures graduated-response behavior (spec.md §4.8.1, §6).
type Response struct {
	Mode               string `toml:"mode"`
	SessionThreshold   int    `toml:"session_threshold"`
	HistoryThreshold   int    `toml:"history_threshold"`
	HistoryWindow      string `toml:"history_window"`
	CriticalAlwaysHard bool   `toml:"critical_always_hard"`
	Scope              string `toml:"scope"`
}

// Interactive configures the TTY allow-once/confirm prompt (spec.md §6).
type Interactive struct {
	Enabled        bool   `toml:"enabled"`
	Verification   string `toml:"verification"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	CodeLength     int    `toml:"code_length"`
	MaxAttempts    int    `toml:"max_attempts"`
	LockoutSeconds int    `toml:"lockout_seconds"`
}

// History configures history.jsonl retention (spec.md §4.7, §6).
type History struct {
	MaxAge         string `toml:"max_age"`
	MaxEntries     int    `toml:"max_entries"`
	PruneOnStartup bool   `toml:"prune_on_startup"`
}

// Packs configures which catalog packs are disabled (spec.md §4.1 "filtered
// by the active configuration").
type Packs struct {
	Disabled []string `toml:"disabled"`
}

// Allowlist configures where the project/user allowlist files live.
type Allowlist struct {
	ProjectPath string `toml:"project_path"`
	UserPath    string `toml:"user_path"`
}

// Config is the fully resolved, validated configuration.
type Config struct {
	Response    Response    `toml:"response"`
	Interactive Interactive `toml:"interactive"`
	History     History     `toml:"history"`
	Packs       Packs       `toml:"packs"`
	Allowlist   Allowlist   `toml:"allowlist"`
}

// DefaultConfig returns spec.md's defaults (§4.8.1, §4.7, §6).
func DefaultConfig() Config {
	return Config{
		Response: Response{
			Mode:               "standard",
			SessionThreshold:   2,
			HistoryThreshold:   5,
			HistoryWindow:      "30d",
			CriticalAlwaysHard: true,
			Scope:              "project",
		},
		Interactive: Interactive{
			Enabled:        true,
			Verification:   "code",
			TimeoutSeconds: 15,
			CodeLength:     4,
			MaxAttempts:    3,
			LockoutSeconds: 60,
		},
		History: History{
			MaxAge:         "30d",
			MaxEntries:     10000,
			PruneOnStartup: true,
		},
	}
}

var validModes = map[string]bool{"paranoid": true, "strict": true, "standard": true, "lenient": true}
var validVerifications = map[string]bool{"code": true, "command": true, "none": true}
var validScopes = map[string]bool{"project": true, "global": true}

// Validate enforces spec.md §6's recognized-option ranges, matching the
// teacher's "accumulate every violation, return one combined error" style
// rather than failing on the first bad field.
func Validate(cfg Config) error {
	var problems []string

	if !validModes[cfg.Response.Mode] {
		problems = append(problems, fmt.Sprintf("response.mode: unrecognized mode %q", cfg.Response.Mode))
	}
	if cfg.Response.SessionThreshold < 1 {
		problems = append(problems, "response.session_threshold: must be >= 1")
	}
	if cfg.Response.HistoryThreshold < 1 {
		problems = append(problems, "response.history_threshold: must be >= 1")
	}
	if _, err := parseFlexDuration(cfg.Response.HistoryWindow); err != nil {
		problems = append(problems, fmt.Sprintf("response.history_window: %v", err))
	}
	if !validScopes[cfg.Response.Scope] {
		problems = append(problems, fmt.Sprintf("response.scope: unrecognized scope %q", cfg.Response.Scope))
	}

	if !validVerifications[cfg.Interactive.Verification] {
		problems = append(problems, fmt.Sprintf("interactive.verification: unrecognized mode %q", cfg.Interactive.Verification))
	}
	if cfg.Interactive.TimeoutSeconds < 1 || cfg.Interactive.TimeoutSeconds > 30 {
		problems = append(problems, "interactive.timeout_seconds: must be in [1,30]")
	}
	if cfg.Interactive.CodeLength < 4 || cfg.Interactive.CodeLength > 8 {
		problems = append(problems, "interactive.code_length: must be in [4,8]")
	}
	if cfg.Interactive.MaxAttempts < 1 || cfg.Interactive.MaxAttempts > 10 {
		problems = append(problems, "interactive.max_attempts: must be in [1,10]")
	}
	if cfg.Interactive.LockoutSeconds < 0 {
		problems = append(problems, "interactive.lockout_seconds: must be >= 0")
	}

	if _, err := parseFlexDuration(cfg.History.MaxAge); err != nil {
		problems = append(problems, fmt.Sprintf("history.max_age: %v", err))
	}
	if cfg.History.MaxEntries < 0 {
		problems = append(problems, "history.max_entries: must be >= 0")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// parseFlexDuration extends time.ParseDuration with a "d" (day) suffix,
// since spec.md §6 allows duration values like "30d" that stdlib doesn't
// parse natively.
func parseFlexDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		numPart := strings.TrimSuffix(s, "d")
		n, err := strconv.Atoi(numPart)
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q: %w", s, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// HistoryWindowDuration parses cfg.Response.HistoryWindow, falling back to the
// default on a parse error the validator would already have caught.
func (c Config) HistoryWindowDuration() time.Duration {
	d, err := parseFlexDuration(c.Response.HistoryWindow)
	if err != nil {
		d, _ = parseFlexDuration(DefaultConfig().Response.HistoryWindow)
	}
	return d
}

// HistoryMaxAgeDuration parses cfg.History.MaxAge the same way.
func (c Config) HistoryMaxAgeDuration() time.Duration {
	d, err := parseFlexDuration(c.History.MaxAge)
	if err != nil {
		d, _ = parseFlexDuration(DefaultConfig().History.MaxAge)
	}
	return d
}

// LoadOptions configures Load's sources (spec.md §6 "Configuration sources").
type LoadOptions struct {
	ProjectDir    string         // defaults to os.Getwd() if empty
	ConfigPath    string         // explicit project config path override
	FlagOverrides map[string]any // highest-precedence layer
}

// ConfigPaths returns the user and project config file paths for a given
// project directory and optional project-path override.
func ConfigPaths(projectDir, configPathOverride string) (userPath, projectPath string) {
	home, _ := os.UserHomeDir()
	userPath = filepath.Join(home, ".config", "dcg", "config.toml")
	projectPath = projectConfigPath(projectDir, configPathOverride)
	return userPath, projectPath
}

func projectConfigPath(projectDir, override string) string {
	if override != "" {
		return override
	}
	return filepath.Join(projectDir, ".dcg", "config.toml")
}

// systemConfigPath is the lowest-precedence file source (spec.md §6 "(5)
// system /etc/dcg/config.toml").
const systemConfigPath = "/etc/dcg/config.toml"

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("response.mode", def.Response.Mode)
	v.SetDefault("response.session_threshold", def.Response.SessionThreshold)
	v.SetDefault("response.history_threshold", def.Response.HistoryThreshold)
	v.SetDefault("response.history_window", def.Response.HistoryWindow)
	v.SetDefault("response.critical_always_hard", def.Response.CriticalAlwaysHard)
	v.SetDefault("response.scope", def.Response.Scope)
	v.SetDefault("interactive.enabled", def.Interactive.Enabled)
	v.SetDefault("interactive.verification", def.Interactive.Verification)
	v.SetDefault("interactive.timeout_seconds", def.Interactive.TimeoutSeconds)
	v.SetDefault("interactive.code_length", def.Interactive.CodeLength)
	v.SetDefault("interactive.max_attempts", def.Interactive.MaxAttempts)
	v.SetDefault("interactive.lockout_seconds", def.Interactive.LockoutSeconds)
	v.SetDefault("history.max_age", def.History.MaxAge)
	v.SetDefault("history.max_entries", def.History.MaxEntries)
	v.SetDefault("history.prune_on_startup", def.History.PruneOnStartup)
	v.SetDefault("packs.disabled", []string{})
	v.SetDefault("allowlist.project_path", "")
	v.SetDefault("allowlist.user_path", "")
}

// bindEnv wires spec.md §6's exact environment variable names onto their
// config keys. The literal names (DCG_SESSION_THRESHOLD, not
// DCG_RESPONSE_SESSION_THRESHOLD) don't follow viper's automatic
// prefix-plus-dot-to-underscore convention, so each is bound explicitly —
// the same approach the teacher's config_test.go demonstrates for
// SLB_MIN_APPROVALS against general.min_approvals.
func bindEnv(v *viper.Viper) error {
	binds := map[string]string{
		"response.mode":                 "DCG_RESPONSE_MODE",
		"response.session_threshold":    "DCG_SESSION_THRESHOLD",
		"response.history_threshold":    "DCG_HISTORY_THRESHOLD",
		"response.critical_always_hard": "DCG_CRITICAL_ALWAYS_HARD",
		"response.scope":                "DCG_RESPONSE_SCOPE",
	}
	for key, env := range binds {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding env %s: %w", env, err)
		}
	}
	return nil
}

// mergeConfigFile merges path's TOML contents into v, if it exists. An
// empty path is a no-op; a missing file is a no-op (spec.md §7 ParseError
// "local recovery" for config discovery, not the hook's fail-open path —
// an explicitly named config.toml that fails to parse is a startup error).
func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// Load resolves Config from defaults, system, user, project, environment,
// and explicit flag overrides, in that precedence order (spec.md §6).
func Load(opts LoadOptions) (Config, error) {
	projectDir := opts.ProjectDir
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolving project directory: %w", err)
		}
		projectDir = wd
	}

	v := viper.New()
	setDefaults(v)

	if err := mergeConfigFile(v, systemConfigPath); err != nil {
		return Config{}, err
	}
	userPath, projectPath := ConfigPaths(projectDir, opts.ConfigPath)
	if err := mergeConfigFile(v, userPath); err != nil {
		return Config{}, err
	}
	if err := mergeConfigFile(v, projectPath); err != nil {
		return Config{}, err
	}

	if err := bindEnv(v); err != nil {
		return Config{}, err
	}

	for key, val := range opts.FlagOverrides {
		v.Set(key, val)
	}

	cfg := DefaultConfig()
	cfg.Response.Mode = v.GetString("response.mode")
	cfg.Response.HistoryWindow = v.GetString("response.history_window")
	cfg.Response.CriticalAlwaysHard = v.GetBool("response.critical_always_hard")
	cfg.Response.Scope = v.GetString("response.scope")
	cfg.Interactive.Enabled = v.GetBool("interactive.enabled")
	cfg.Interactive.Verification = v.GetString("interactive.verification")
	cfg.Interactive.TimeoutSeconds = v.GetInt("interactive.timeout_seconds")
	cfg.Interactive.CodeLength = v.GetInt("interactive.code_length")
	cfg.Interactive.MaxAttempts = v.GetInt("interactive.max_attempts")
	cfg.Interactive.LockoutSeconds = v.GetInt("interactive.lockout_seconds")
	cfg.History.MaxAge = v.GetString("history.max_age")
	cfg.History.MaxEntries = v.GetInt("history.max_entries")
	cfg.History.PruneOnStartup = v.GetBool("history.prune_on_startup")
	cfg.Packs.Disabled = v.GetStringSlice("packs.disabled")
	cfg.Allowlist.ProjectPath = v.GetString("allowlist.project_path")
	cfg.Allowlist.UserPath = v.GetString("allowlist.user_path")

	// Integer thresholds read through a raw env var must error on a
	// non-numeric value rather than silently falling back to 0 — viper's
	// GetInt swallows a parse failure, so these two are checked by hand
	// against the raw string when set via environment or flag.
	sessionThreshold, err := intSetting(v, "response.session_threshold")
	if err != nil {
		return Config{}, err
	}
	cfg.Response.SessionThreshold = sessionThreshold

	historyThreshold, err := intSetting(v, "response.history_threshold")
	if err != nil {
		return Config{}, err
	}
	cfg.Response.HistoryThreshold = historyThreshold

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func intSetting(v *viper.Viper, key string) (int, error) {
	raw := v.Get(key)
	switch t := raw.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid integer %q: %w", key, t, err)
		}
		return n, nil
	default:
		return v.GetInt(key), nil
	}
}

// valueKind mirrors the teacher's reflect-free "kind tag" approach for
// ParseValue/GetValue dispatch over a small fixed key set, avoiding a
// reflection-heavy generic config walker for a config this size.
type valueKind int

const (
	kindInt valueKind = iota
	kindBool
	kindString
	kindStringSlice
)

var keyKinds = map[string]valueKind{
	"response.mode":                 kindString,
	"response.session_threshold":    kindInt,
	"response.history_threshold":    kindInt,
	"response.history_window":       kindString,
	"response.critical_always_hard": kindBool,
	"response.scope":                kindString,
	"interactive.enabled":           kindBool,
	"interactive.verification":      kindString,
	"interactive.timeout_seconds":   kindInt,
	"interactive.code_length":       kindInt,
	"interactive.max_attempts":      kindInt,
	"interactive.lockout_seconds":   kindInt,
	"history.max_age":               kindString,
	"history.max_entries":           kindInt,
	"history.prune_on_startup":      kindBool,
	"packs.disabled":                kindStringSlice,
	"allowlist.project_path":        kindString,
	"allowlist.user_path":           kindString,
}

// ParseValue parses a raw string (as supplied on a `dcg config set` CLI
// invocation) into the Go value appropriate for key.
func ParseValue(key, raw string) (any, error) {
	kind, ok := keyKinds[key]
	if !ok {
		return nil, fmt.Errorf("unsupported config key %q", key)
	}
	return parseValueByKind(raw, kind)
}

func parseValueByKind(raw string, kind valueKind) (any, error) {
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", raw, err)
		}
		return n, nil
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean %q: %w", raw, err)
		}
		return b, nil
	case kindString:
		return raw, nil
	case kindStringSlice:
		var out []string
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value kind %v", kind)
	}
}

// GetValue looks up key (e.g. "response.mode" or the bare section
// "response") against cfg, returning (value, true) on a recognized key.
func GetValue(cfg Config, key string) (any, bool) {
	if key == "" {
		return nil, false
	}
	switch key {
	case "response":
		return cfg.Response, true
	case "interactive":
		return cfg.Interactive, true
	case "history":
		return cfg.History, true
	case "packs":
		return cfg.Packs, true
	case "allowlist":
		return cfg.Allowlist, true
	}

	switch key {
	case "response.mode":
		return cfg.Response.Mode, true
	case "response.session_threshold":
		return cfg.Response.SessionThreshold, true
	case "response.history_threshold":
		return cfg.Response.HistoryThreshold, true
	case "response.history_window":
		return cfg.Response.HistoryWindow, true
	case "response.critical_always_hard":
		return cfg.Response.CriticalAlwaysHard, true
	case "response.scope":
		return cfg.Response.Scope, true
	case "interactive.enabled":
		return cfg.Interactive.Enabled, true
	case "interactive.verification":
		return cfg.Interactive.Verification, true
	case "interactive.timeout_seconds":
		return cfg.Interactive.TimeoutSeconds, true
	case "interactive.code_length":
		return cfg.Interactive.CodeLength, true
	case "interactive.max_attempts":
		return cfg.Interactive.MaxAttempts, true
	case "interactive.lockout_seconds":
		return cfg.Interactive.LockoutSeconds, true
	case "history.max_age":
		return cfg.History.MaxAge, true
	case "history.max_entries":
		return cfg.History.MaxEntries, true
	case "history.prune_on_startup":
		return cfg.History.PruneOnStartup, true
	case "packs.disabled":
		return cfg.Packs.Disabled, true
	case "allowlist.project_path":
		return cfg.Allowlist.ProjectPath, true
	case "allowlist.user_path":
		return cfg.Allowlist.UserPath, true
	default:
		return nil, false
	}
}

// WriteValue merges a single dotted key/value into the TOML file at path,
// creating it (and its parent directory) if necessary. Used by
// `dcg config set` and by tests seeding a config fixture.
func WriteValue(path, key string, value any) error {
	if path == "" {
		return fmt.Errorf("WriteValue: empty path")
	}
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return fmt.Errorf("WriteValue: empty key")
	}

	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return fmt.Errorf("decode config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	cursor := doc
	for _, seg := range parts[:len(parts)-1] {
		next, ok := cursor[seg]
		if !ok {
			table := map[string]any{}
			cursor[seg] = table
			cursor = table
			continue
		}
		table, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("WriteValue: %q is not a table", seg)
		}
		cursor = table
	}
	cursor[parts[len(parts)-1]] = value

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(sortedDoc(doc))
}

// sortedDoc is a no-op placeholder kept for readability at the call
// site; BurntSushi/toml does not guarantee key order, and the spec does
// not require one for config.toml (unlike the JSONL stores).
func sortedDoc(doc map[string]any) map[string]any {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return doc
}

// Watcher reloads Config whenever one of its source files changes on
// disk, for a long-lived consumer (`dcg config watch`) that would
// otherwise need a restart to pick up an edited config.toml.
// Short-lived invocations (the hook path, `dcg config get/set`) have no
// use for this and call Load directly instead.
type Watcher struct {
	fsw  *fsnotify.Watcher
	opts LoadOptions
}

// NewWatcher builds a Watcher over every config path that could affect
// opts (system, user, project), watching their parent directories since
// a file that doesn't exist yet cannot be added to fsnotify directly and
// `dcg config edit` may create it while the watcher is already running.
func NewWatcher(opts LoadOptions) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting config watcher: %w", err)
	}

	projectDir := opts.ProjectDir
	if projectDir == "" {
		if wd, err := os.Getwd(); err == nil {
			projectDir = wd
		}
	}
	userPath, projectPath := ConfigPaths(projectDir, opts.ConfigPath)

	dirs := map[string]bool{
		filepath.Dir(systemConfigPath): true,
		filepath.Dir(userPath):         true,
		filepath.Dir(projectPath):      true,
	}
	watched := 0
	for dir := range dirs {
		if err := fsw.Add(dir); err == nil {
			watched++
		}
	}
	if watched == 0 {
		fsw.Close()
		return nil, fmt.Errorf("config watcher: no watchable config directory found")
	}

	return &Watcher{fsw: fsw, opts: opts}, nil
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run calls onChange with a freshly reloaded Config every time a
// watched directory reports a write, create, or rename event, until ctx
// is cancelled. A reload that fails validation is reported through
// onError rather than onChange, leaving the caller's last-known-good
// config in place.
func (w *Watcher) Run(ctx context.Context, onChange func(Config), onError func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load(w.opts)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onChange != nil {
				onChange(cfg)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
