package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Repo.Root = "/tmp/repo"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on default config: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "lmake.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Capacity != DefaultBackendConfig().Capacity {
		t.Fatalf("Load on missing file did not fall back to defaults")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Repo.Root = "/work/proj"
	cfg.Rules = []RuleConfig{{
		Name:    "compile",
		JobName: "cc {target}",
		Matches: []MatchConfig{{Tag: "target", Pattern: "{stem}.o"}},
		Cmd:     AttrConfig{Static: "cc -c {stem}.c -o {stem}.o"},
	}}

	path := filepath.Join(t.TempDir(), "lmake.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Repo.Root != "/work/proj" {
		t.Fatalf("Repo.Root = %q, want /work/proj", loaded.Repo.Root)
	}
	if len(loaded.Rules) != 1 || loaded.Rules[0].Name != "compile" {
		t.Fatalf("Rules = %+v, want one rule named compile", loaded.Rules)
	}
}

func TestValidateRejectsDuplicateRuleNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Repo.Root = "/tmp/repo"
	cfg.Rules = []RuleConfig{
		{Name: "compile"},
		{Name: "compile"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject duplicate rule names")
	}
}

func TestRuleConfigCompile(t *testing.T) {
	rc := RuleConfig{
		Name:    "compile",
		Stems:   map[string]StemConfig{"stem": {Regex: `[^/]+`}},
		JobName: "compile {stem}",
		Matches: []MatchConfig{
			{Tag: "target", Pattern: "{stem}.o"},
		},
		StaticDeps: []DepConfig{
			{Name: "src", Path: "{stem}.c"},
		},
		Cmd: AttrConfig{Static: "cc -c {stem}.c -o {stem}.o"},
	}
	r, err := rc.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if r.Name != "compile" {
		t.Fatalf("r.Name = %q, want compile", r.Name)
	}
	if len(r.StaticTargets()) != 1 {
		t.Fatalf("len(StaticTargets()) = %d, want 1", len(r.StaticTargets()))
	}
}

func TestCompileAllStopsAtFirstError(t *testing.T) {
	rules := []RuleConfig{
		{Name: "ok", JobName: "x", Matches: []MatchConfig{{Tag: "target", Pattern: "out"}}},
		{Name: "bad", Matches: []MatchConfig{{Tag: "not_a_real_tag", Pattern: "out"}}},
	}
	if _, err := CompileAll(rules); err == nil {
		t.Fatal("expected CompileAll to fail on the unknown match tag")
	}
}
