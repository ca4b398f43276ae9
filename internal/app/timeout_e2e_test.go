package app

import (
	"context"
	"strings"
	"testing"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

type blockingBackend struct {
	fakeBackend
}

func (b *blockingBackend) ListPlans(ctx context.Context) ([]contract.Plan, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingBackend) ListProfessionals(ctx context.Context, _ contract.Role) ([]contract.Professional, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPlansTimeoutIncludesBackendPhase(t *testing.T) {
	setupCLI(t, &blockingBackend{})

	out, errOut, err := runCLI(t, "", "plans", "--timeout", "20ms", "--json")
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if code := ExitCode(err); code != exitBackend {
		t.Fatalf("exit code mismatch: got=%d want=%d", code, exitBackend)
	}
	got := out + errOut
	if !strings.Contains(got, "backend.list_plans timed out") {
		t.Fatalf("expected backend phase timeout in output, got: %q", got)
	}
	if !strings.Contains(errOut, "\"phase\": \"backend.list_plans\"") {
		t.Fatalf("expected phase in error meta, got: %q", errOut)
	}
}

func TestProfessionalsTimeoutPlain(t *testing.T) {
	setupCLI(t, &blockingBackend{})

	_, errOut, err := runCLI(t, "", "professionals", "--timeout", "20ms", "--plain")
	if code := ExitCode(err); code != exitBackend {
		t.Fatalf("exit code mismatch: got=%d want=%d err=%v", code, exitBackend, err)
	}
	if !strings.Contains(errOut, "error: backend.list_professionals timed out") {
		t.Fatalf("unexpected stderr %q", errOut)
	}
}
