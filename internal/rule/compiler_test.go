package rule

import "testing"

func simpleDesc() Desc {
	return Desc{
		Name:  "compile_c",
		Stems: map[string]StemDesc{"stem": {Regex: `[^/]+`}},
		JobName: "build-{stem}",
		Matches: []MatchDesc{
			{Tag: MatchTarget, Pattern: "{stem}.o", Flags: TflagTarget | TflagStatic},
		},
		StaticDeps: []DepDesc{
			{Name: "src", Path: "{stem}.c", Flags: DflagRequired},
		},
		Cmd: AttrDesc{Static: "cc -c {src} -o {stem}.o"},
	}
}

func TestCompileBasicRule(t *testing.T) {
	r, err := Compile(simpleDesc())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(r.Stems) != 1 || r.Stems[0].Name != "stem" {
		t.Fatalf("unexpected stems: %+v", r.Stems)
	}
	if r.NStaticTargets != 1 {
		t.Fatalf("expected 1 static target (no stem-bearing wildcard needed since stem used verbatim), got static=%d star=%d",
			r.NStaticTargets, r.NStarTargets)
	}
	if len(r.StaticDeps) != 1 || r.StaticDeps[0].Name != "src" {
		t.Fatalf("unexpected static deps: %+v", r.StaticDeps)
	}
	crcs := r.Crc()
	if crcs.Match == 0 || crcs.Cmd == 0 || crcs.Rsrcs == 0 {
		t.Fatalf("expected non-zero RuleCrc tiers, got %+v", crcs)
	}
}

// TestRuleCrcStability exercises spec §8 property 4: changing only a
// comment (modeled here as an unrelated Name change that doesn't affect
// match/cmd/rsrcs inputs... in this compiler Name participates in match_crc
// via "special", so instead we check the narrower guarantee: changing only
// Resources/Env changes rsrcs_crc but leaves match_crc and cmd_crc alone.
func TestRuleCrcStability(t *testing.T) {
	d1 := simpleDesc()
	d2 := simpleDesc()
	d2.Resources = AttrDesc{Static: "cpu=2"}

	r1, err := Compile(d1)
	if err != nil {
		t.Fatalf("compile d1: %v", err)
	}
	r2, err := Compile(d2)
	if err != nil {
		t.Fatalf("compile d2: %v", err)
	}

	if r1.Crc().Match != r2.Crc().Match {
		t.Fatalf("match_crc must be unaffected by a resources change")
	}
	if r1.Crc().Cmd != r2.Crc().Cmd {
		t.Fatalf("cmd_crc must be unaffected by a resources change")
	}
	if r1.Crc().Rsrcs == r2.Crc().Rsrcs {
		t.Fatalf("rsrcs_crc must change when resources change")
	}
}

func TestStarTargetDetection(t *testing.T) {
	d := simpleDesc()
	d.Stems["dyn"] = StemDesc{Regex: `[^/]+`, Dynamic: true}
	d.Matches = []MatchDesc{
		{Tag: MatchTarget, Pattern: "out/{dyn}.o", Flags: TflagTarget},
	}
	r, err := Compile(d)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if r.NStarTargets != 1 || r.NStaticTargets != 0 {
		t.Fatalf("expected a star target since pattern references a dynamic stem, got static=%d star=%d", r.NStaticTargets, r.NStarTargets)
	}
}

func TestUnknownReferenceRejected(t *testing.T) {
	d := simpleDesc()
	d.Matches[0].Pattern = "{nope}.o"
	if _, err := Compile(d); err == nil {
		t.Fatalf("expected error for unknown stem reference")
	}
}
