package allowlist

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestLoad_MissingFilesTreatedAsEmpty(t *testing.T) {
	list, err := Load("/no/such/project.toml", "/no/such/user.toml", time.Now())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list.Entries) != 0 || len(list.Warnings) != 0 {
		t.Fatalf("expected empty list, got %+v", list)
	}
}

func TestLoad_MergesProjectOverUser(t *testing.T) {
	dir := t.TempDir()
	project := writeFile(t, dir, "project.toml", `
[[allow]]
command = "git status"
reason = "read-only"
`)
	user := writeFile(t, dir, "user.toml", `
[[allow]]
command_prefix = "terraform plan"
reason = "dry run"
`)

	list, err := Load(project, user, time.Now())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list.Entries))
	}
	if list.Entries[0].Kind != KindExact || list.Entries[0].Command != "git status" {
		t.Fatalf("expected project entry first, got %+v", list.Entries[0])
	}
	if list.Entries[1].Kind != KindPrefix || list.Entries[1].Prefix != "terraform plan" {
		t.Fatalf("expected user prefix entry second, got %+v", list.Entries[1])
	}
}

func TestLoad_DropsExpiredEntries(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "project.toml", `
[[allow]]
command = "rm -rf ./build"
expires_at = "2000-01-01T00:00:00Z"
`)
	list, err := Load(path, "", time.Now())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list.Entries) != 0 {
		t.Fatalf("expected expired entry dropped, got %+v", list.Entries)
	}
}

func TestLoad_RegexWithoutRiskAcknowledgedRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "project.toml", `
[[allow]]
pattern = "^rm .*"
`)
	list, err := Load(path, "", time.Now())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list.Entries) != 0 {
		t.Fatalf("expected entry rejected, got %+v", list.Entries)
	}
	if len(list.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %+v", list.Warnings)
	}
}

func TestLoad_RegexMatchingEmptyStringWarnsButLoads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "project.toml", `
[[allow]]
pattern = ".*"
risk_acknowledged = true
`)
	list, err := Load(path, "", time.Now())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list.Entries) != 1 {
		t.Fatalf("expected entry loaded despite broad pattern, got %+v", list.Entries)
	}
	if len(list.Warnings) != 1 {
		t.Fatalf("expected a dangerously-broad warning, got %+v", list.Warnings)
	}
}

func TestMatch_ExactPrefixRegex(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "project.toml", `
[[allow]]
command = "git status"

[[allow]]
command_prefix = "docker compose down"
context = "string-argument"

[[allow]]
pattern = "^echo .*$"
risk_acknowledged = true
`)
	list, err := Load(path, "", time.Now())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := list.Match("git status", ""); !ok {
		t.Fatalf("expected exact match for git status")
	}
	if _, ok := list.Match("git status --short", ""); ok {
		t.Fatalf("exact entry must not match a superstring")
	}

	if _, ok := list.Match("docker compose down -v", ContextStringArgument); !ok {
		t.Fatalf("expected prefix match in matching context")
	}
	if _, ok := list.Match("docker compose down -v", ContextComment); ok {
		t.Fatalf("prefix entry scoped to string-argument must not match comment context")
	}
	if _, ok := list.Match("docker compose downtown -v", ContextStringArgument); ok {
		t.Fatalf("prefix match must respect a word boundary")
	}

	if _, ok := list.Match("echo hello", ""); !ok {
		t.Fatalf("expected regex match")
	}
}

func TestEntry_Expired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	e := Entry{ExpiresAt: &past}
	if !e.Expired(now) {
		t.Fatalf("expected expired entry to report true")
	}
	e.ExpiresAt = &future
	if e.Expired(now) {
		t.Fatalf("expected non-expired entry to report false")
	}
	e.ExpiresAt = nil
	if e.Expired(now) {
		t.Fatalf("expected entry with no expiry to never expire")
	}
}
