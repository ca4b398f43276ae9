package app

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
	"github.com/SkyAle-bit/Progetto-FE/internal/output"
)

type statusResult struct {
	Ready         bool                   `json:"ready"`
	Degraded      bool                   `json:"degraded"`
	BaseURL       string                 `json:"base_url"`
	Profile       string                 `json:"profile"`
	TZ            string                 `json:"tz,omitempty"`
	StatePath     string                 `json:"state_path"`
	OutputMode    string                 `json:"output_mode"`
	SchemaVersion string                 `json:"schema_version"`
	User          *contract.User         `json:"user,omitempty"`
	Checks        []contract.DoctorCheck `json:"checks"`
	NextSteps     []string               `json:"next_steps,omitempty"`
	ReasonCodes   []string               `json:"degraded_reason_codes,omitempty"`
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, BuildVersionString())
		},
	}
}

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the API, local state and session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "doctor")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			checks, _, derr := runChecks(ctx, be, ro)
			setup := buildSetupResult(checks, derr, ro.BaseURL)
			reasonCodes := deriveDegradedReasonCodes(checks, derr)
			meta := map[string]any{
				"count":                 len(checks),
				"ready":                 setup.Ready,
				"degraded":              setup.Degraded,
				"degraded_reason_codes": reasonCodes,
			}
			if p.EffectiveSuccessMode() == output.ModePlain {
				_ = printDoctorPlain(cmd.OutOrStdout(), checks, setup, reasonCodes)
			} else {
				_ = successWithMeta(ctx, p, ro, checks, meta, setup.Notes)
			}
			if !setup.Ready && derr != nil {
				return WrapPrinted(exitBackend, derr)
			}
			if !setup.Ready {
				return WrapPrinted(exitBackend, fmt.Errorf("doctor checks not ready"))
			}
			return nil
		},
	}
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show API health and the active configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "status")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			checks, sess, derr := runChecks(ctx, be, ro)
			setup := buildSetupResult(checks, derr, ro.BaseURL)
			reasonCodes := deriveDegradedReasonCodes(checks, derr)
			res := statusResult{
				Ready:         setup.Ready,
				Degraded:      setup.Degraded,
				BaseURL:       ro.BaseURL,
				Profile:       ro.Profile,
				TZ:            ro.loc.String(),
				StatePath:     ro.StatePath,
				OutputMode:    string(p.EffectiveSuccessMode()),
				SchemaVersion: ro.SchemaVersion,
				Checks:        checks,
				NextSteps:     setup.NextSteps,
				ReasonCodes:   reasonCodes,
			}
			if sess != nil {
				u := sess.User
				res.User = &u
			}
			meta := map[string]any{
				"ready":                 res.Ready,
				"degraded":              res.Degraded,
				"checks":                len(res.Checks),
				"degraded_reason_codes": reasonCodes,
			}
			if p.EffectiveSuccessMode() == output.ModePlain {
				_ = printStatusPlain(cmd.OutOrStdout(), res)
			} else {
				_ = successWithMeta(ctx, p, ro, res, meta, nil)
			}
			if !setup.Ready {
				if derr == nil {
					derr = fmt.Errorf("status not ready")
				}
				_ = p.Error(contract.ErrBackendUnavailable, derr.Error(), "Run `fitctl doctor` for remediation")
				return WrapPrinted(exitBackend, derr)
			}
			return nil
		},
	}
}

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion <bash|zsh|fish|powershell>",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell := strings.ToLower(args[0])
			switch shell {
			case "bash":
				return root.GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return root.GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return root.GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return root.GenPowerShellCompletion(cmd.OutOrStdout())
			default:
				return Wrap(exitUsage, fmt.Errorf("unsupported shell: %s", shell))
			}
		},
	}
}

func deriveDegradedReasonCodes(checks []contract.DoctorCheck, derr error) []string {
	codeSet := map[string]struct{}{}
	for _, c := range checks {
		status := strings.ToLower(strings.TrimSpace(c.Status))
		if status == "" || status == "ok" || status == "pass" {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(c.Name))
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, "-", "_")
		if name == "" {
			name = "unknown_check"
		}
		codeSet[name+"_"+status] = struct{}{}
	}
	if derr != nil {
		codeSet["doctor_error"] = struct{}{}
	}
	if len(codeSet) == 0 {
		return nil
	}
	out := make([]string, 0, len(codeSet))
	for code := range codeSet {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func printDoctorPlain(out io.Writer, checks []contract.DoctorCheck, setup setupResult, reasonCodes []string) error {
	_, _ = fmt.Fprintf(out, "ready=%t degraded=%t checks=%d\n", setup.Ready, setup.Degraded, len(checks))
	if len(reasonCodes) > 0 {
		_, _ = fmt.Fprintf(out, "reasons=%s\n", strings.Join(reasonCodes, ","))
	}
	for _, c := range checks {
		_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", c.Status, c.Name, c.Message)
	}
	for _, step := range setup.NextSteps {
		_, _ = fmt.Fprintf(out, "next: %s\n", step)
	}
	return nil
}

func printStatusPlain(out io.Writer, res statusResult) error {
	_, _ = fmt.Fprintf(out, "ready=%t degraded=%t base_url=%s profile=%s tz=%s\n", res.Ready, res.Degraded, res.BaseURL, res.Profile, res.TZ)
	_, _ = fmt.Fprintf(out, "state=%s output_mode=%s\n", res.StatePath, res.OutputMode)
	if res.User != nil {
		_, _ = fmt.Fprintf(out, "user=%s <%s> role=%s\n", res.User.FullName(), res.User.Email, res.User.Role)
	}
	if len(res.ReasonCodes) > 0 {
		_, _ = fmt.Fprintf(out, "reasons=%s\n", strings.Join(res.ReasonCodes, ","))
	}
	for _, c := range res.Checks {
		_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", c.Status, c.Name, c.Message)
	}
	return nil
}
