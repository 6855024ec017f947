package catalog

import "testing"

func testSpecs() []packSpec {
	return []packSpec{
		{
			id:       "pkg-b",
			tier:     TierCore,
			keywords: []string{"rm"},
			destructive: []specPattern{
				{name: "rm-rf-root", regex: `^rm\s+-rf\s+/$`, severity: SeverityCritical, reason: "deletes the filesystem root"},
			},
		},
		{
			id:       "pkg-a",
			tier:     TierSafe,
			keywords: []string{"status"},
			safe: []specPattern{
				{name: "git-status", regex: `^git status$`},
			},
		},
	}
}

func TestLoad_SortsPacksByTierThenID(t *testing.T) {
	c := Load(testSpecs())
	all := c.AllPacks()
	if len(all) != 2 {
		t.Fatalf("expected 2 packs, got %d", len(all))
	}
	if all[0].ID != "pkg-a" || all[1].ID != "pkg-b" {
		t.Fatalf("expected safe-tier pack first, got order %v", []string{all[0].ID, all[1].ID})
	}
}

func TestPattern_RuleID(t *testing.T) {
	c := Load(testSpecs())
	p := c.AllPacks()[1].Destructive[0]
	if got := p.RuleID(); got != "pkg-b:rm-rf-root" {
		t.Fatalf("expected rule_id pkg-b:rm-rf-root, got %q", got)
	}
}

func TestLoad_DestructiveDefaultsModeToDeny(t *testing.T) {
	c := Load(testSpecs())
	p := c.AllPacks()[1].Destructive[0]
	if p.Mode != ModeDeny {
		t.Fatalf("expected default mode deny, got %q", p.Mode)
	}
}

func TestLoad_PanicsOnMissingSeverity(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on destructive pattern with no severity")
		}
	}()
	Load([]packSpec{{
		id: "bad",
		destructive: []specPattern{
			{name: "no-severity", regex: `^x$`, reason: "missing severity"},
		},
	}})
}

func TestLoad_PanicsOnDuplicateRuleID(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on duplicate rule_id")
		}
	}()
	Load([]packSpec{{
		id: "dup",
		destructive: []specPattern{
			{name: "x", regex: `^a$`, severity: SeverityLow, reason: "r"},
			{name: "x", regex: `^b$`, severity: SeverityLow, reason: "r"},
		},
	}})
}

func TestLoad_PanicsOnInvalidRegex(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on invalid regex")
		}
	}()
	Load([]packSpec{{
		id: "bad-regex",
		safe: []specPattern{
			{name: "broken", regex: `(unterminated`},
		},
	}})
}

func TestEnabledPacks_FiltersDisabled(t *testing.T) {
	c := Load(testSpecs())
	enabled := c.EnabledPacks(map[string]bool{"pkg-a": true})
	if len(enabled) != 1 || enabled[0].ID != "pkg-b" {
		t.Fatalf("expected only pkg-b enabled, got %+v", enabled)
	}
}

func TestTriggerKeywords_UnionOfEnabledPacks(t *testing.T) {
	c := Load(testSpecs())
	kws := c.TriggerKeywords(nil)
	if _, ok := kws["rm"]; !ok {
		t.Fatalf("expected rm in trigger keywords")
	}
	if _, ok := kws["status"]; !ok {
		t.Fatalf("expected status in trigger keywords")
	}

	kws = c.TriggerKeywords(map[string]bool{"pkg-a": true})
	if _, ok := kws["status"]; ok {
		t.Fatalf("expected status excluded once pkg-a is disabled")
	}
}

func TestTierIndex_OrdersKnownTiersAndFallsBackForUnknown(t *testing.T) {
	if TierIndex(TierSafe) >= TierIndex(TierCore) {
		t.Fatalf("expected safe tier to sort before core tier")
	}
	if TierIndex(Tier("not-a-real-tier")) != len(tierOrder) {
		t.Fatalf("expected unknown tier to fall back to len(tierOrder)")
	}
}
