package jobenv

import (
	"reflect"
	"testing"

	"lmake/internal/rule"
)

func TestAutodepEnvRoundTrip(t *testing.T) {
	e := AutodepEnv{
		Service:        "unix:/tmp/lmake.sock",
		FastMail:       "/tmp/fast_mail",
		FastReportPipe: "/tmp/fast_report",
		Options: Options{
			AutoMkdir: true,
			Link:      rule.LinkFile,
			Sync:      SyncData,
		},
		FQDN:      "host.example.com",
		TmpDirS:   "/tmp/",
		RepoRootS: "/repo/",
		SubRepoS:  "",
		SrcDirsS:  []string{"src", "vendor"},
		Codecs:    []string{"ctx1"},
		ViewsS:    nil,
	}
	encoded := e.Encode()
	got, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", encoded, err)
	}
	if !reflect.DeepEqual(got, e) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, e)
	}
}

func TestParseRejectsWrongFieldCount(t *testing.T) {
	if _, err := Parse("a:b:c"); err == nil {
		t.Fatal("expected error for too few fields")
	}
}

func TestParseRejectsUnknownOptionLetter(t *testing.T) {
	bad := "svc:::zlnsn:fqdn:tmp:repo:sub:::"
	if _, err := Parse(bad); err == nil {
		t.Fatal("expected error for unknown option letter 'z'")
	}
}

func TestEscapedColonSurvivesRoundTrip(t *testing.T) {
	e := AutodepEnv{
		Service: "unix:/weird:path",
		Options: Options{Link: rule.LinkNone, Sync: SyncNone},
	}
	got, err := Parse(e.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got.Service != e.Service {
		t.Fatalf("Service = %q, want %q", got.Service, e.Service)
	}
}
