package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(DefaultConfig) unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Response.Mode = "bad"
	cfg.Response.SessionThreshold = 0
	cfg.Response.HistoryThreshold = 0
	cfg.Response.HistoryWindow = "not-a-duration"
	cfg.Response.Scope = "bad"
	cfg.Interactive.Verification = "bad"
	cfg.Interactive.TimeoutSeconds = 0
	cfg.Interactive.CodeLength = 1
	cfg.Interactive.MaxAttempts = 0
	cfg.Interactive.LockoutSeconds = -1
	cfg.History.MaxAge = "nope"
	cfg.History.MaxEntries = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "config validation failed") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseFlexDuration(t *testing.T) {
	d, err := parseFlexDuration("30d")
	if err != nil {
		t.Fatalf("parseFlexDuration(30d): %v", err)
	}
	if d.Hours() != 30*24 {
		t.Fatalf("30d = %v, want 720h", d)
	}
	if _, err := parseFlexDuration("24h"); err != nil {
		t.Fatalf("parseFlexDuration(24h): %v", err)
	}
	if _, err := parseFlexDuration("garbage"); err == nil {
		t.Fatalf("expected error for garbage duration")
	}
}

func TestLoad_Precedence_DefaultsUserProjectEnvFlags(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	project := t.TempDir()

	userPath := filepath.Join(home, ".config", "dcg", "config.toml")
	if err := WriteValue(userPath, "response.session_threshold", 3); err != nil {
		t.Fatalf("WriteValue user: %v", err)
	}

	projectPath := filepath.Join(project, ".dcg", "config.toml")
	if err := WriteValue(projectPath, "response.session_threshold", 4); err != nil {
		t.Fatalf("WriteValue project: %v", err)
	}

	t.Setenv("DCG_SESSION_THRESHOLD", "5")

	cfg, err := Load(LoadOptions{
		ProjectDir: project,
		FlagOverrides: map[string]any{
			"response.session_threshold": 6,
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Response.SessionThreshold != 6 {
		t.Fatalf("session_threshold=%d want 6", cfg.Response.SessionThreshold)
	}
}

func TestLoad_InvalidEnvValueErrors(t *testing.T) {
	t.Setenv("DCG_SESSION_THRESHOLD", "not-an-int")
	if _, err := Load(LoadOptions{ProjectDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoad_ProjectDirEmptyUsesCWD(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	project := t.TempDir()

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})
	if err := os.Chdir(project); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	projectPath := filepath.Join(project, ".dcg", "config.toml")
	if err := WriteValue(projectPath, "response.session_threshold", 9); err != nil {
		t.Fatalf("WriteValue project: %v", err)
	}

	cfg, err := Load(LoadOptions{ProjectDir: ""})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Response.SessionThreshold != 9 {
		t.Fatalf("session_threshold=%d want 9", cfg.Response.SessionThreshold)
	}
}

func TestMergeConfigFile(t *testing.T) {
	v := newTestViper()

	if err := mergeConfigFile(v, ""); err != nil {
		t.Fatalf("mergeConfigFile(empty): %v", err)
	}

	if err := mergeConfigFile(v, filepath.Join(t.TempDir(), "missing.toml")); err != nil {
		t.Fatalf("mergeConfigFile(missing): %v", err)
	}

	if err := mergeConfigFile(v, t.TempDir()); err == nil {
		t.Fatalf("expected error for directory path")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("response = [\n"), 0644); err != nil {
		t.Fatalf("write invalid toml: %v", err)
	}
	if err := mergeConfigFile(v, path); err == nil {
		t.Fatalf("expected error for invalid toml")
	}
}

func newTestViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func TestConfigPathsAndProjectConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	u, p := ConfigPaths("/proj", "")
	if u != filepath.Join(home, ".config", "dcg", "config.toml") {
		t.Fatalf("unexpected user path: %q", u)
	}
	if p != filepath.Join("/proj", ".dcg", "config.toml") {
		t.Fatalf("unexpected project path: %q", p)
	}

	if got := projectConfigPath("", ""); got != ".dcg/config.toml" {
		t.Fatalf("projectConfigPath(empty)=%q", got)
	}
	if got := projectConfigPath("/proj", "/override.toml"); got != "/override.toml" {
		t.Fatalf("projectConfigPath(override)=%q", got)
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue("response.session_threshold", "7")
	if err != nil {
		t.Fatalf("ParseValue int: %v", err)
	}
	if v.(int) != 7 {
		t.Fatalf("unexpected value: %#v", v)
	}

	v, err = ParseValue("interactive.enabled", "true")
	if err != nil {
		t.Fatalf("ParseValue bool: %v", err)
	}
	if v.(bool) != true {
		t.Fatalf("unexpected value: %#v", v)
	}

	v, err = ParseValue("packs.disabled", "cloud.aws, , kubernetes.kubectl")
	if err != nil {
		t.Fatalf("ParseValue slice: %v", err)
	}
	if !reflect.DeepEqual(v, []string{"cloud.aws", "kubernetes.kubectl"}) {
		t.Fatalf("unexpected slice: %#v", v)
	}

	v, err = ParseValue("response.mode", "strict")
	if err != nil {
		t.Fatalf("ParseValue string: %v", err)
	}
	if v.(string) != "strict" {
		t.Fatalf("unexpected value: %#v", v)
	}

	if _, err := parseValueByKind("x", valueKind(123)); err == nil {
		t.Fatalf("expected error for unsupported value kind")
	}

	if _, err := ParseValue("nope.nope", "x"); err == nil {
		t.Fatalf("expected unsupported key error")
	}
}

func TestGetValue(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		key  string
		want any
	}{
		{"response.mode", cfg.Response.Mode},
		{"response.session_threshold", cfg.Response.SessionThreshold},
		{"response.history_threshold", cfg.Response.HistoryThreshold},
		{"response.history_window", cfg.Response.HistoryWindow},
		{"response.critical_always_hard", cfg.Response.CriticalAlwaysHard},
		{"response.scope", cfg.Response.Scope},

		{"interactive.enabled", cfg.Interactive.Enabled},
		{"interactive.verification", cfg.Interactive.Verification},
		{"interactive.timeout_seconds", cfg.Interactive.TimeoutSeconds},
		{"interactive.code_length", cfg.Interactive.CodeLength},
		{"interactive.max_attempts", cfg.Interactive.MaxAttempts},
		{"interactive.lockout_seconds", cfg.Interactive.LockoutSeconds},

		{"history.max_age", cfg.History.MaxAge},
		{"history.max_entries", cfg.History.MaxEntries},
		{"history.prune_on_startup", cfg.History.PruneOnStartup},

		{"packs.disabled", cfg.Packs.Disabled},
		{"allowlist.project_path", cfg.Allowlist.ProjectPath},
		{"allowlist.user_path", cfg.Allowlist.UserPath},

		{"response", cfg.Response},
		{"interactive", cfg.Interactive},
		{"history", cfg.History},
		{"packs", cfg.Packs},
		{"allowlist", cfg.Allowlist},
	}

	for _, tc := range cases {
		got, ok := GetValue(cfg, tc.key)
		if !ok {
			t.Fatalf("GetValue(%q) not found", tc.key)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("GetValue(%q)=%#v want %#v", tc.key, got, tc.want)
		}
	}

	if _, ok := GetValue(cfg, ""); ok {
		t.Fatalf("expected empty key to be not found")
	}

	badKeys := []string{"nope", "response.nope", "interactive.nope", "history.nope", "packs.nope", "allowlist.nope"}
	for _, key := range badKeys {
		if _, ok := GetValue(cfg, key); ok {
			t.Fatalf("expected %q to be not found", key)
		}
	}
}

func TestWriteValue(t *testing.T) {
	if err := WriteValue("", "response.session_threshold", 2); err == nil {
		t.Fatalf("expected error for empty path")
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteValue(path, "response.session_threshold", 3); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "[response]") || !strings.Contains(string(data), "session_threshold = 3") {
		t.Fatalf("unexpected toml: %q", string(data))
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("response = \"oops\"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteValue(bad, "response.session_threshold", 2); err == nil {
		t.Fatalf("expected error when response is not a table")
	}
}

func TestWriteValue_DecodeExistingInvalidTOMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("response = [\n"), 0644); err != nil {
		t.Fatalf("write invalid toml: %v", err)
	}
	if err := WriteValue(path, "response.session_threshold", 2); err == nil {
		t.Fatalf("expected decode error")
	} else if !strings.Contains(err.Error(), "decode config") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHistoryWindowDuration(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HistoryWindowDuration() != 30*24*time.Hour {
		t.Fatalf("unexpected default history window: %v", cfg.HistoryWindowDuration())
	}
	cfg.Response.HistoryWindow = "garbage"
	if cfg.HistoryWindowDuration() != 30*24*time.Hour {
		t.Fatalf("expected fallback to default on parse error")
	}
}
