package app

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

func TestVersionCommand(t *testing.T) {
	SetBuildInfo("v9.9.9", "abc", "2026-02-17T00:00:00Z")
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "fitctl v9.9.9 (abc) 2026-02-17T00:00:00Z") {
		t.Fatalf("unexpected version output: %q", got)
	}
}

func TestCompletionInvalidShellExitCode(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"completion", "tcsh"})
	err := cmd.Execute()
	if err == nil {
		t.Fatalf("expected error")
	}
	if code := ExitCode(err); code != 2 {
		t.Fatalf("exit code mismatch: got=%d want=2", code)
	}
}

func TestDoctorReportsLocalChecks(t *testing.T) {
	fb := &fakeBackend{checks: []contract.DoctorCheck{
		{Name: "base_url", Status: "ok", Message: "http://localhost:8080"},
		{Name: "api_reachable", Status: "ok"},
	}}
	statePath := setupCLI(t, fb)
	signIn(t, statePath, testClient)

	out, _, err := runCLI(t, "", "doctor", "--json")
	if err != nil {
		t.Fatalf("doctor failed: %v", err)
	}
	env := decodeEnvelope(t, out)
	if env.Command != "doctor" || env.Meta["ready"] != true || env.Meta["count"] != float64(4) {
		t.Fatalf("unexpected doctor envelope: %+v", env)
	}
	if !strings.Contains(out, "signed in as giulia@example.com") {
		t.Fatalf("expected session check in %q", out)
	}
}

func TestDoctorFailureProducesSinglePayload(t *testing.T) {
	fb := &fakeBackend{
		checks:    []contract.DoctorCheck{{Name: "api_reachable", Status: "fail"}},
		doctorErr: errors.New("connection refused"),
	}
	setupCLI(t, fb)

	out, errOut, err := runCLI(t, "", "doctor", "--json")
	if err == nil {
		t.Fatalf("expected doctor error")
	}
	if code := ExitCode(err); code != 6 {
		t.Fatalf("exit code mismatch: got=%d want=6", code)
	}
	if errOut != "" {
		t.Fatalf("expected no stderr payload, got: %q", errOut)
	}
	if !strings.Contains(out, "\"warnings\": [") {
		t.Fatalf("expected warnings in doctor payload: %q", out)
	}
}

func TestStatusCommand(t *testing.T) {
	fb := &fakeBackend{checks: []contract.DoctorCheck{
		{Name: "base_url", Status: "ok"},
		{Name: "api_reachable", Status: "ok"},
	}}
	statePath := setupCLI(t, fb)
	signIn(t, statePath, testTrainer)

	out, _, err := runCLI(t, "", "status", "--plain", "--profile", "default")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	for _, want := range []string{"ready=true", "profile=default", "tz=UTC", "state=" + statePath, "role=PERSONAL_TRAINER"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q: %q", want, out)
		}
	}
}
