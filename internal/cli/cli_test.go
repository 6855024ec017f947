package cli

import (
	"os"
	"testing"
)

func resetOutputFlags() {
	flagJSON, flagTOON, flagOutput = false, false, "text"
}

func TestGetOutput_FlagPrecedence(t *testing.T) {
	defer resetOutputFlags()

	resetOutputFlags()
	if got := GetOutput(); got != "text" {
		t.Fatalf("expected default text, got %q", got)
	}

	resetOutputFlags()
	flagOutput = "yaml"
	if got := GetOutput(); got != "yaml" {
		t.Fatalf("expected explicit --output=yaml honored, got %q", got)
	}

	resetOutputFlags()
	flagTOON = true
	if got := GetOutput(); got != "toon" {
		t.Fatalf("expected --toon shorthand honored, got %q", got)
	}

	resetOutputFlags()
	flagJSON = true
	flagTOON = true
	if got := GetOutput(); got != "json" {
		t.Fatalf("expected --json to take precedence over --toon, got %q", got)
	}
}

func TestGetOutput_EnvFallback(t *testing.T) {
	defer resetOutputFlags()
	resetOutputFlags()
	t.Setenv("DCG_FORMAT", "json")
	if got := GetOutput(); got != "json" {
		t.Fatalf("expected DCG_FORMAT env honored when no flag set, got %q", got)
	}
}

func TestGetActor_FallsBackToUserAtHost(t *testing.T) {
	defer func() { flagActor = "" }()
	flagActor = ""
	t.Setenv("DCG_ACTOR", "")
	t.Setenv("USER", "alice")
	if got := GetActor(); got == "" {
		t.Fatalf("expected a non-empty actor derived from USER/hostname")
	}
}

func TestGetActor_PrefersExplicitFlag(t *testing.T) {
	defer func() { flagActor = "" }()
	flagActor = "explicit-actor"
	if got := GetActor(); got != "explicit-actor" {
		t.Fatalf("expected explicit --actor flag honored, got %q", got)
	}
}

func TestProjectPath_DefaultsToWorkingDirectory(t *testing.T) {
	defer func() { flagProject = "" }()
	flagProject = ""
	want, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	got, err := projectPath()
	if err != nil {
		t.Fatalf("projectPath: %v", err)
	}
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestProjectPath_HonorsExplicitFlag(t *testing.T) {
	defer func() { flagProject = "" }()
	flagProject = "/tmp/some-project"
	got, err := projectPath()
	if err != nil {
		t.Fatalf("projectPath: %v", err)
	}
	if got != "/tmp/some-project" {
		t.Fatalf("expected explicit --project honored, got %q", got)
	}
}

func TestPackListCmd_ListsBundledPacks(t *testing.T) {
	defer resetOutputFlags()
	resetOutputFlags()
	if err := packListCmd.RunE(packListCmd, nil); err != nil {
		t.Fatalf("pack list: %v", err)
	}
}

func TestPackShowCmd_UnknownPackReturnsError(t *testing.T) {
	defer resetOutputFlags()
	resetOutputFlags()
	if err := packShowCmd.RunE(packShowCmd, []string{"not-a-real-pack"}); err == nil {
		t.Fatalf("expected an error for an unknown pack id")
	}
}

func TestPackShowCmd_KnownPackSucceeds(t *testing.T) {
	defer resetOutputFlags()
	resetOutputFlags()
	if err := packShowCmd.RunE(packShowCmd, []string{"core.filesystem"}); err != nil {
		t.Fatalf("pack show core.filesystem: %v", err)
	}
}
