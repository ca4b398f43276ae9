package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

func TestParseSelectSeparators(t *testing.T) {
	for _, in := range []string{"2024-06-04|09:00", "2024-06-04 09:00", "2024-06-04T09:00"} {
		op, err := parseSelect(in)
		if err != nil {
			t.Fatalf("parseSelect(%q): %v", in, err)
		}
		if op.Op != opSelect || op.Date != "2024-06-04" || op.Time != "09:00" {
			t.Fatalf("parseSelect(%q) = %+v", in, op)
		}
	}
	if _, err := parseSelect("2024-06-04"); err == nil {
		t.Fatalf("expected error without a time")
	}
}

func TestEditOpResolve(t *testing.T) {
	cases := []struct {
		op      editOp
		wantErr bool
	}{
		{op: editOp{Op: "select", Date: "tomorrow", Time: "09:30"}},
		{op: editOp{Op: "SELECT", Date: "2024-06-04", Time: "09:15"}, wantErr: true},
		{op: editOp{Op: "select", Date: "2024-06-04", Time: "23:00"}, wantErr: true},
		{op: editOp{Op: "copy"}, wantErr: true},
		{op: editOp{Op: "paste", Date: "+1w"}},
		{op: editOp{Op: "cancel_copy"}},
		{op: editOp{Op: "repeat", Weeks: 4}},
		{op: editOp{Op: "repeat", Weeks: 0}, wantErr: true},
		{op: editOp{Op: "repeat", Weeks: 99}, wantErr: true},
		{op: editOp{Op: "publish"}, wantErr: true},
	}
	for _, tc := range cases {
		op := tc.op
		err := op.resolve(testNow, time.UTC)
		if tc.wantErr != (err != nil) {
			t.Fatalf("resolve(%+v): wantErr=%t got %v", tc.op, tc.wantErr, err)
		}
	}

	op := editOp{Op: "select", Date: "tomorrow", Time: "09:30"}
	if err := op.resolve(testNow, time.UTC); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if op.Date != "2024-06-04" || !op.day.Equal(time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected resolved op %+v", op)
	}
}

func TestReadEditScriptSkipsCommentsAndBlankLines(t *testing.T) {
	f := filepath.Join(t.TempDir(), "ops.jsonl")
	content := "# monday template\n" +
		"{\"op\":\"select\",\"date\":\"2024-06-03\",\"time\":\"09:00\"}\n\n" +
		"{\"op\":\"repeat\",\"weeks\":2}\n"
	if err := os.WriteFile(f, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	ops, err := readEditScript(nil, f)
	if err != nil {
		t.Fatalf("readEditScript: %v", err)
	}
	if len(ops) != 2 || ops[0].line != 2 || ops[1].Weeks != 2 {
		t.Fatalf("unexpected ops %+v", ops)
	}

	if _, err := readEditScript(strings.NewReader("{not json}\n"), "-"); err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("expected line number in error, got %v", err)
	}
}

func TestFlagEditOpsCopiesBeforeEachPaste(t *testing.T) {
	ops, err := flagEditOps([]string{"2024-06-03|09:00"}, "2024-06-03", []string{"2024-06-04", "2024-06-05"}, 2)
	if err != nil {
		t.Fatalf("flagEditOps: %v", err)
	}
	var got []string
	for _, op := range ops {
		got = append(got, op.Op)
	}
	want := "select,copy,paste,copy,paste,repeat"
	if strings.Join(got, ",") != want {
		t.Fatalf("ops = %v, want %s", got, want)
	}
	if _, err := flagEditOps(nil, "", []string{"2024-06-04"}, 0); err == nil {
		t.Fatalf("expected --paste without --copy to fail")
	}
}

func TestAvailabilityEditPublishesPending(t *testing.T) {
	fb := &fakeBackend{}
	statePath := setupCLI(t, fb)
	signIn(t, statePath, testTrainer)

	out, errOut, err := runCLI(t, "",
		"availability", "edit",
		"--select", "2024-06-04|09:00",
		"--select", "2024-06-04|09:30",
		"--repeat", "2",
		"--json")
	if err != nil {
		t.Fatalf("edit failed: %v stderr=%q", err, errOut)
	}
	if len(fb.created) != 4 {
		t.Fatalf("expected 2 slots over 2 weeks, got %d", len(fb.created))
	}
	first := fb.created[0]
	if !first.Start.Equal(time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC)) || first.End.Sub(first.Start) != 30*time.Minute || !first.Available {
		t.Fatalf("unexpected first slot %+v", first)
	}
	env := decodeEnvelope(t, out)
	data := env.Data.(map[string]any)
	if data["published"] != float64(4) {
		t.Fatalf("unexpected data %v", data)
	}
}

func TestAvailabilityEditDryRunPublishesNothing(t *testing.T) {
	fb := &fakeBackend{}
	statePath := setupCLI(t, fb)
	signIn(t, statePath, testTrainer)

	f := filepath.Join(t.TempDir(), "ops.jsonl")
	content := "{\"op\":\"select\",\"date\":\"2024-06-03\",\"time\":\"10:00\"}\n" +
		"{\"op\":\"copy\",\"date\":\"2024-06-03\"}\n" +
		"{\"op\":\"paste\",\"date\":\"2024-06-05\"}\n"
	if err := os.WriteFile(f, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	out, _, err := runCLI(t, "", "availability", "edit", "--file", f, "--dry-run", "--json")
	if code := ExitCode(err); code != 0 {
		t.Fatalf("expected exit code 0, got %d err=%v", code, err)
	}
	if fb.called("CreateSlots") != 0 {
		t.Fatalf("dry run must not publish")
	}
	pending := decodeEnvelope(t, out).Data.(map[string]any)["pending"].([]any)
	if len(pending) != 2 {
		t.Fatalf("expected two pending slots, got %v", pending)
	}
}

func TestAvailabilityEditRemovingOpenSlotNeedsConfirmation(t *testing.T) {
	start := time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC)
	fb := &fakeBackend{slots: []contract.Slot{{ID: 40, Start: start, End: start.Add(30 * time.Minute), Available: true}}}
	statePath := setupCLI(t, fb)
	signIn(t, statePath, testTrainer)

	_, _, err := runCLI(t, "", "availability", "edit", "--select", "2024-06-04|09:00", "--json")
	if code := ExitCode(err); code != exitGeneric {
		t.Fatalf("expected failed op to exit %d, got %d (%v)", exitGeneric, code, err)
	}
	if len(fb.deleted) != 0 {
		t.Fatalf("slot deleted without confirmation")
	}

	if _, errOut, err := runCLI(t, "", "availability", "delete", "40", "--yes"); err != nil {
		t.Fatalf("delete failed: %v %q", err, errOut)
	}
	if len(fb.deleted) != 1 || fb.deleted[0] != 40 {
		t.Fatalf("expected slot 40 deleted, got %v", fb.deleted)
	}
}

func TestAvailabilityDeleteBookedSlotIsLocked(t *testing.T) {
	start := time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC)
	fb := &fakeBackend{slots: []contract.Slot{{ID: 41, Start: start, End: start.Add(30 * time.Minute), Available: false}}}
	statePath := setupCLI(t, fb)
	signIn(t, statePath, testTrainer)

	_, _, err := runCLI(t, "", "availability", "delete", "2024-06-04|09:00", "--yes")
	if code := ExitCode(err); code != exitConflict {
		t.Fatalf("exit code mismatch: got=%d want=%d", code, exitConflict)
	}
	if fb.called("DeleteSlot") != 0 {
		t.Fatalf("booked slot must not be deleted")
	}
}

func TestAvailabilityRequiresProfessional(t *testing.T) {
	fb := &fakeBackend{}
	statePath := setupCLI(t, fb)
	signIn(t, statePath, testClient)

	_, _, err := runCLI(t, "", "availability", "show")
	if code := ExitCode(err); code != exitUsage {
		t.Fatalf("exit code mismatch: got=%d want=%d", code, exitUsage)
	}
	if fb.called("ListSlots") != 0 {
		t.Fatalf("clients must not load availability")
	}
}
