// Package catalog implements the immutable, process-scoped Pattern Catalog.
//
// Packs are loaded once from a bundled static table and never mutated
// after Load returns. Patterns are owned by their pack;
// there is no cross-pack linkage, so the catalog is a flat arena rather
// than a graph.
package catalog

import (
	"fmt"
	"regexp"
	"sort"
)

// Tier orders packs for deterministic iteration (§3 Pack).
type Tier string

const (
	TierSafe           Tier = "safe"
	TierCore           Tier = "core"
	TierSystem         Tier = "system"
	TierInfrastructure Tier = "infrastructure"
	TierCloud          Tier = "cloud"
	TierKubernetes     Tier = "kubernetes"
	TierContainers     Tier = "containers"
	TierDatabase       Tier = "database"
	TierPackageManager Tier = "package_managers"
	TierStrictGit      Tier = "strict_git"
	TierCICD           Tier = "cicd"
)

// tierOrder fixes the tier ordering invariant (§3 "Pack order is stable").
var tierOrder = map[Tier]int{
	TierSafe:           0,
	TierCore:           1,
	TierSystem:         2,
	TierInfrastructure: 3,
	TierCloud:          4,
	TierKubernetes:     5,
	TierContainers:     6,
	TierDatabase:       7,
	TierPackageManager: 8,
	TierStrictGit:      9,
	TierCICD:           10,
}

// Severity of a destructive pattern.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Category distinguishes safe from destructive patterns within a pack.
type Category string

const (
	CategorySafe        Category = "safe"
	CategoryDestructive Category = "destructive"
)

// Mode is the pattern's effect when it is the authoritative match.
type Mode string

const (
	ModeDeny Mode = "deny"
	ModeWarn Mode = "warn"
	ModeLog  Mode = "log"
)

// Pattern is a single compiled rule inside a pack (§3 Pattern).
type Pattern struct {
	PackID      string
	Name        string
	Regex       *regexp.Regexp
	Source      string // regex source, kept for Trace payloads
	Severity    Severity
	Reason      string
	Category    Category
	Mode        Mode
	FullSegment bool // opts into matching the whole segment instead of the executable span
}

// RuleID returns the pattern's stable identifier: "${pack_id}:${name}".
func (p *Pattern) RuleID() string {
	return p.PackID + ":" + p.Name
}

// Pack groups related patterns under one trigger-keyword gate (§3 Pack).
type Pack struct {
	ID             string
	Tier           Tier
	Safe           []*Pattern
	Destructive    []*Pattern
	TriggerKeywords map[string]struct{}
	Enabled        bool
}

// specPattern is the declarative shape patterns are authored in before compilation.
type specPattern struct {
	name        string
	regex       string
	severity    Severity
	reason      string
	mode        Mode
	fullSegment bool
}

// packSpec is the declarative shape a pack is authored in before compilation.
type packSpec struct {
	id       string
	tier     Tier
	keywords []string
	safe     []specPattern
	destructive []specPattern
}

// Catalog is the immutable set of loaded, compiled packs.
type Catalog struct {
	packs []*Pack // sorted tier-then-lex at Load time
}

// Load compiles the bundled pack specs into an immutable Catalog.
//
// Build-time validation (spec.md §4.1): every regex must compile, every
// pattern belongs to exactly one pack, rule_ids must be globally unique,
// and every destructive pattern must carry a severity and reason. A
// violation here is a programming error in the bundled table, not a
// runtime condition, so Load panics rather than returning an error —
// mirroring the teacher's compilePatterns, which panics on an invalid
// builtin regex (internal/core/patterns.go).
func Load(specs []packSpec) *Catalog {
	seen := make(map[string]struct{})
	packs := make([]*Pack, 0, len(specs))

	for _, ps := range specs {
		pack := &Pack{
			ID:              ps.id,
			Tier:            ps.tier,
			Enabled:         true,
			TriggerKeywords: make(map[string]struct{}, len(ps.keywords)),
		}
		for _, kw := range ps.keywords {
			pack.TriggerKeywords[kw] = struct{}{}
		}

		pack.Safe = compile(ps.id, CategorySafe, ps.safe, seen)
		pack.Destructive = compile(ps.id, CategoryDestructive, ps.destructive, seen)

		packs = append(packs, pack)
	}

	sort.SliceStable(packs, func(i, j int) bool {
		ti, tj := tierOrder[packs[i].Tier], tierOrder[packs[j].Tier]
		if ti != tj {
			return ti < tj
		}
		return packs[i].ID < packs[j].ID
	})

	return &Catalog{packs: packs}
}

func compile(packID string, cat Category, specs []specPattern, seen map[string]struct{}) []*Pattern {
	out := make([]*Pattern, 0, len(specs))
	for _, sp := range specs {
		rx, err := regexp.Compile(sp.regex)
		if err != nil {
			panic(fmt.Sprintf("catalog: invalid builtin pattern %s:%s: %v", packID, sp.name, err))
		}
		p := &Pattern{
			PackID:      packID,
			Name:        sp.name,
			Regex:       rx,
			Source:      sp.regex,
			Severity:    sp.severity,
			Reason:      sp.reason,
			Category:    cat,
			Mode:        sp.mode,
			FullSegment: sp.fullSegment,
		}
		if cat == CategoryDestructive {
			if p.Severity == "" {
				panic(fmt.Sprintf("catalog: destructive pattern %s missing severity", p.RuleID()))
			}
			if p.Reason == "" {
				panic(fmt.Sprintf("catalog: destructive pattern %s missing reason", p.RuleID()))
			}
			if p.Mode == "" {
				p.Mode = ModeDeny
			}
		}
		id := p.RuleID()
		if _, dup := seen[id]; dup {
			panic(fmt.Sprintf("catalog: duplicate rule_id %s", id))
		}
		seen[id] = struct{}{}
		out = append(out, p)
	}
	return out
}

// EnabledPacks yields packs in the fixed tier-then-lex order, filtered to
// those enabled by the active configuration (§4.1 enabled_packs).
func (c *Catalog) EnabledPacks(disabled map[string]bool) []*Pack {
	out := make([]*Pack, 0, len(c.packs))
	for _, p := range c.packs {
		if disabled[p.ID] {
			continue
		}
		if !p.Enabled {
			continue
		}
		out = append(out, p)
	}
	return out
}

// AllPacks returns every loaded pack regardless of configuration, for
// introspection commands (`dcg pack list`).
func (c *Catalog) AllPacks() []*Pack {
	return c.packs
}

// TriggerKeywords is the union of every enabled pack's trigger keywords,
// used by the Quick-Reject Filter (§4.3).
func (c *Catalog) TriggerKeywords(disabled map[string]bool) map[string]struct{} {
	union := make(map[string]struct{})
	for _, p := range c.EnabledPacks(disabled) {
		for kw := range p.TriggerKeywords {
			union[kw] = struct{}{}
		}
	}
	return union
}

// TierIndex exposes the fixed tier ordering so callers outside this
// package (the engine, comparing a heredoc sub-match against an outer
// match) can order candidates the same way Load does (spec.md §4.8
// "first Deny by pack/tier order wins").
func TierIndex(t Tier) int {
	if i, ok := tierOrder[t]; ok {
		return i
	}
	return len(tierOrder)
}
