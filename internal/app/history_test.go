package app

import (
	"strings"
	"testing"
)

func TestHistoryListPages(t *testing.T) {
	fb := &fakeBackend{}
	statePath := setupCLI(t, fb)
	signIn(t, statePath, testClient)

	for _, msg := range []string{"uno", "due", "tre"} {
		if _, _, err := runCLI(t, "", "chat", "send", "--to", "7", msg); err != nil {
			t.Fatalf("send %q: %v", msg, err)
		}
	}

	out, _, err := runCLI(t, "", "history", "list", "--limit", "2", "--json")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	env := decodeEnvelope(t, out)
	if env.Meta["has_more"] != true || env.Meta["next_offset"] != float64(2) {
		t.Fatalf("unexpected meta %v", env.Meta)
	}
	if items := env.Data.([]any); len(items) != 2 {
		t.Fatalf("expected two entries, got %v", items)
	}

	out, _, err = runCLI(t, "", "history", "list", "--limit", "2", "--offset", "2", "--plain")
	if err != nil {
		t.Fatalf("history page 2 failed: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 1 || !strings.Contains(lines[0], "message.sent") {
		t.Fatalf("unexpected second page %q", out)
	}
	if fb.called("ListDocuments") != 0 {
		t.Fatalf("history must stay local")
	}
}

func TestHistoryListRejectsBadPaging(t *testing.T) {
	setupCLI(t, &fakeBackend{})
	_, _, err := runCLI(t, "", "history", "list", "--limit", "0")
	if code := ExitCode(err); code != exitUsage {
		t.Fatalf("exit code mismatch: got=%d want=%d", code, exitUsage)
	}
}
