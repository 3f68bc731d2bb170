package audit

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteReadFramedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := Message{Kind: KindStdout, Line: "hello"}
	if err := WriteFramed(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFramed(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestChannelDeferredAnnouncementSkippedWhenUnremarkable(t *testing.T) {
	root := t.TempDir()
	var client bytes.Buffer
	ch, err := NewChannel(&client, root, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	ch.Report("job1", Message{Kind: KindStdout, Line: "output"})
	ch.Unremarkable("job1")

	if client.Len() != 0 {
		t.Fatalf("expected no client announcement, got %d bytes", client.Len())
	}

	// the durable log must still have received the entry regardless.
	entries, err := os.ReadFile(filepath.Join(root, "last_output", "audit.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("expected durable log entry even for an unremarkable job")
	}
}

func TestChannelImmediateReportWithZeroDelay(t *testing.T) {
	root := t.TempDir()
	var client bytes.Buffer
	ch, err := NewChannel(&client, root, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	ch.Report("job2", Message{Kind: KindStatus, Ok: true})
	if client.Len() == 0 {
		t.Fatal("expected immediate client write with zero start_delay")
	}
}

func TestChannelToleratesBrokenClient(t *testing.T) {
	root := t.TempDir()
	ch, err := NewChannel(&brokenWriter{}, root, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	// must not panic even though every client write fails.
	ch.Report("job3", Message{Kind: KindStderr, Line: "boom"})
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) { return 0, os.ErrClosed }
