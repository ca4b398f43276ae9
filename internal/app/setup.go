package app

import (
	"context"
	"errors"
	"strings"

	"github.com/SkyAle-bit/Progetto-FE/internal/backend"
	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
	"github.com/SkyAle-bit/Progetto-FE/internal/store"
)

type setupResult struct {
	Ready     bool                   `json:"ready"`
	Degraded  bool                   `json:"degraded"`
	Checks    []contract.DoctorCheck `json:"checks"`
	NextSteps []string               `json:"next_steps,omitempty"`
	Notes     []string               `json:"notes,omitempty"`
	BaseURL   string                 `json:"base_url"`
}

// runChecks asks the backend for its checks and appends the local ones:
// the state store and the stored session.
func runChecks(ctx context.Context, be backend.Backend, ro *globalOptions) ([]contract.DoctorCheck, *contract.Session, error) {
	checks, derr := callBackend(ctx, "backend.doctor", func() ([]contract.DoctorCheck, error) {
		return be.Doctor(ctx)
	})
	st, err := store.Open(ctx, ro.StatePath)
	if err != nil {
		checks = append(checks, contract.DoctorCheck{Name: "state_store", Status: "fail", Message: err.Error()})
		return checks, nil, derr
	}
	defer st.Close()
	checks = append(checks, contract.DoctorCheck{Name: "state_store", Status: "ok", Message: st.Path()})

	sess, err := st.LoadSession(ctx)
	switch {
	case err == nil:
		checks = append(checks, contract.DoctorCheck{Name: "session", Status: "ok", Message: "signed in as " + sess.User.Email})
		return checks, &sess, derr
	case errors.Is(err, store.ErrNoSession):
		checks = append(checks, contract.DoctorCheck{Name: "session", Status: "warn", Message: "not signed in"})
	case errors.Is(err, store.ErrSessionExpired):
		checks = append(checks, contract.DoctorCheck{Name: "session", Status: "warn", Message: "session expired"})
	default:
		checks = append(checks, contract.DoctorCheck{Name: "session", Status: "fail", Message: err.Error()})
	}
	return checks, nil, derr
}

func buildSetupResult(checks []contract.DoctorCheck, derr error, baseURL string) setupResult {
	res := setupResult{
		Ready:   true,
		Checks:  checks,
		BaseURL: strings.TrimSpace(baseURL),
	}

	has := func(name string) (string, bool) {
		for _, c := range checks {
			if strings.EqualFold(strings.TrimSpace(c.Name), name) {
				return strings.ToLower(strings.TrimSpace(c.Status)), true
			}
		}
		return "", false
	}

	apiStatus, hasAPI := has("api_reachable")
	stateStatus, hasState := has("state_store")
	sessionStatus, hasSession := has("session")

	if res.BaseURL == "" {
		res.Ready = false
		res.NextSteps = append(res.NextSteps, "Set base_url in config.toml or pass --base-url.")
	}
	if !hasAPI || apiStatus != "ok" {
		res.Ready = false
		res.NextSteps = append(res.NextSteps, "Start the API or point --base-url at a reachable server.")
	}
	if !hasState || stateStatus != "ok" {
		res.Ready = false
		res.NextSteps = append(res.NextSteps, "Make the state path writable or pass --state.")
	}
	if hasSession && sessionStatus != "ok" {
		res.Degraded = true
		res.Notes = append(res.Notes, "No usable session; commands that need a user will fail.")
		res.NextSteps = append(res.NextSteps, "Sign in with: `fitctl login --email you@example.com`")
	}

	if res.Ready && !res.Degraded {
		res.NextSteps = append(res.NextSteps, "Verify with: `fitctl dashboard --json`")
	}
	if derr != nil && !res.Ready {
		res.Notes = append(res.Notes, derr.Error())
	}
	return res
}
