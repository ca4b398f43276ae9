package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SkyAle-bit/Progetto-FE/internal/backend"
	"github.com/SkyAle-bit/Progetto-FE/internal/chat"
	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
	"github.com/SkyAle-bit/Progetto-FE/internal/logging"
	"github.com/SkyAle-bit/Progetto-FE/internal/output"
)

var (
	backendFactory = newHTTPBackend
	clock          = time.Now
)

type globalOptions struct {
	JSON          bool
	JSONL         bool
	Plain         bool
	Fields        string
	Quiet         bool
	Verbose       bool
	NoColor       bool
	NoInput       bool
	Profile       string
	Config        string
	BaseURL       string
	TZ            string
	Timeout       time.Duration
	ViewportWidth int
	PollInterval  time.Duration
	StatePath     string
	SchemaVersion string

	log *zap.Logger
	loc *time.Location
}

func Execute() int {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err != nil {
		renderTopLevelError(cmd, err)
	}
	return ExitCode(err)
}

func NewRootCommand() *cobra.Command {
	opts := &globalOptions{
		Profile:       "default",
		BaseURL:       backend.DefaultBaseURL,
		Timeout:       15 * time.Second,
		ViewportWidth: 1440,
		PollInterval:  chat.DefaultInterval,
		SchemaVersion: contract.SchemaVersion,
	}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Book sessions, publish availability and chat with your coach from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       BuildVersionString(),
	}
	root.SetVersionTemplate("fitctl {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.BoolVar(&opts.JSON, "json", false, "Output structured JSON")
	pf.BoolVar(&opts.JSONL, "jsonl", false, "Output newline-delimited JSON")
	pf.BoolVar(&opts.Plain, "plain", false, "Output stable plain text")
	pf.StringVar(&opts.Fields, "fields", "", "Projected fields, comma-separated")
	pf.BoolVarP(&opts.Quiet, "quiet", "q", false, "Reduce success output")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose diagnostics")
	pf.BoolVar(&opts.NoColor, "no-color", false, "Disable color output")
	pf.BoolVar(&opts.NoInput, "no-input", false, "Disable prompts")
	pf.StringVar(&opts.Profile, "profile", "default", "Config profile")
	pf.StringVar(&opts.Config, "config", "", "Config file path")
	pf.StringVar(&opts.BaseURL, "base-url", backend.DefaultBaseURL, "REST API base URL")
	pf.StringVar(&opts.TZ, "tz", "", "IANA timezone for dates and times")
	pf.DurationVar(&opts.Timeout, "timeout", 15*time.Second, "Backend call timeout (e.g. 10s, 1m, 0 to disable)")
	pf.IntVar(&opts.ViewportWidth, "width", 1440, "Viewport width in pixels, decides how many days are shown")
	pf.DurationVar(&opts.PollInterval, "poll-interval", chat.DefaultInterval, "Chat polling interval")
	pf.StringVar(&opts.StatePath, "state", "", "Local state database path")
	pf.StringVar(&opts.SchemaVersion, "schema-version", contract.SchemaVersion, "Output schema version")

	root.AddCommand(newLoginCmd(opts))
	root.AddCommand(newLogoutCmd(opts))
	root.AddCommand(newRegisterCmd(opts))
	root.AddCommand(newWhoamiCmd(opts))
	root.AddCommand(newPlansCmd(opts))
	root.AddCommand(newProfessionalsCmd(opts))
	root.AddCommand(newClientsCmd(opts))
	root.AddCommand(newDashboardCmd(opts))
	root.AddCommand(newCalendarCmd(opts))
	root.AddCommand(newAvailabilityCmd(opts))
	root.AddCommand(newBookCmd(opts))
	root.AddCommand(newChatCmd(opts))
	root.AddCommand(newDocumentsCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newDoctorCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newVersionCmd())
	root.AddCommand(newCompletionCmd(root))

	return root
}

func buildContext(cmd *cobra.Command, opts *globalOptions, command string) (output.Printer, backend.Backend, *globalOptions, error) {
	resolved, err := resolveGlobalOptions(cmd, opts)
	if err != nil {
		printer := output.Printer{Mode: output.ModePlain, Err: cmd.ErrOrStderr()}
		return printer, nil, nil, failUsage(printer, err, "Check your config file and FITCTL_* variables")
	}
	mode := output.ModeAuto
	if resolved.JSON {
		mode = output.ModeJSON
	} else if resolved.JSONL {
		mode = output.ModeJSONL
	} else if resolved.Plain {
		mode = output.ModePlain
	}

	printer := output.Printer{
		Mode:          mode,
		Command:       command,
		Fields:        splitCSV(resolved.Fields),
		Quiet:         resolved.Quiet,
		NoColor:       resolved.NoColor,
		SchemaVersion: resolved.SchemaVersion,
		Out:           cmd.OutOrStdout(),
		Err:           cmd.ErrOrStderr(),
	}
	if conflictCount(resolved.JSON, resolved.JSONL, resolved.Plain) > 1 {
		return printer, nil, nil, failUsage(printer, errors.New("--json, --jsonl, and --plain are mutually exclusive"), "")
	}

	loc, err := loadLocation(resolved.TZ)
	if err != nil {
		return printer, nil, nil, failUsage(printer, err, "Use an IANA name such as Europe/Rome")
	}
	resolved.loc = loc
	resolved.log = logging.NewWithWriter(cmd.ErrOrStderr(), resolved.Verbose, resolved.NoColor)

	be, err := backendFactory(resolved)
	if err != nil {
		return printer, nil, nil, failUsage(printer, err, "Use --base-url http://host:port")
	}
	resolved.log.Debug("command context",
		zap.String("command", command),
		zap.String("base_url", resolved.BaseURL),
		zap.String("mode", string(mode)),
		zap.String("tz", loc.String()),
		zap.String("profile", resolved.Profile),
		zap.Duration("timeout", resolved.Timeout),
	)
	return printer, be, resolved, nil
}

func newHTTPBackend(ro *globalOptions) (backend.Backend, error) {
	be, err := backend.NewHTTPBackend(backend.Config{
		BaseURL:  ro.BaseURL,
		Timeout:  ro.Timeout,
		Location: ro.loc,
		Logger:   ro.log,
	})
	if err != nil {
		return nil, err
	}
	return be, nil
}

func commandContext(ro *globalOptions) (context.Context, context.CancelFunc) {
	timing := &timingRecorder{calls: map[string]time.Duration{}}
	base := context.WithValue(context.Background(), timingContextKey{}, timing)
	if ro == nil || ro.Timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, ro.Timeout)
}

type timeoutResult[T any] struct {
	val T
	err error
}

type timingContextKey struct{}

type timingRecorder struct {
	mu    sync.Mutex
	calls map[string]time.Duration
}

func (r *timingRecorder) add(name string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[name] += d
}

func backendTimings(ctx context.Context) map[string]string {
	rec, _ := ctx.Value(timingContextKey{}).(*timingRecorder)
	if rec == nil {
		return nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.calls) == 0 {
		return nil
	}
	keys := make([]string, 0, len(rec.calls))
	for k := range rec.calls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = rec.calls[k].String()
	}
	return out
}

func withTimeout[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	ch := make(chan timeoutResult[T], 1)
	go func() {
		v, err := fn()
		ch <- timeoutResult[T]{val: v, err: err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		return res.val, res.err
	}
}

// callBackend runs one remote call under the command deadline, annotating
// timeouts with the phase name and recording its duration.
func callBackend[T any](ctx context.Context, phase string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := withTimeout(ctx, fn)
	err = annotateBackendError(ctx, phase, err)
	recordTiming(ctx, phase, time.Since(start))
	return v, err
}

func callBackendErr(ctx context.Context, phase string, fn func() error) error {
	_, err := callBackend(ctx, phase, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func recordTiming(ctx context.Context, name string, d time.Duration) {
	rec, _ := ctx.Value(timingContextKey{}).(*timingRecorder)
	if rec == nil {
		return
	}
	rec.add(name, d)
}

func successWithMeta(ctx context.Context, p output.Printer, ro *globalOptions, data any, meta map[string]any, warnings []string) error {
	if ro != nil && ro.Verbose {
		timings := backendTimings(ctx)
		if len(timings) > 0 {
			if meta == nil {
				meta = map[string]any{}
			}
			meta["timings"] = timings
			if ro.log != nil {
				ro.log.Debug("backend timings", zap.Any("timings", timings))
			}
		}
	}
	return p.Success(data, meta, warnings)
}

func renderTopLevelError(cmd *cobra.Command, err error) {
	var appErr AppError
	if errors.As(err, &appErr) && appErr.Printed {
		return
	}
	if wantsStructuredErrorOutput(os.Args[1:]) {
		printer := output.Printer{
			Mode:          output.ModeJSON,
			SchemaVersion: contract.SchemaVersion,
			Err:           cmd.ErrOrStderr(),
		}
		_ = printer.Error(errorCodeForExit(ExitCode(err)), err.Error(), "")
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", err.Error())
}

func wantsStructuredErrorOutput(args []string) bool {
	for _, arg := range args {
		switch {
		case arg == "--":
			return false
		case arg == "--json", arg == "--jsonl":
			return true
		case strings.HasPrefix(arg, "--json="), strings.HasPrefix(arg, "--jsonl="):
			return true
		}
	}
	return false
}

func loadLocation(tz string) (*time.Location, error) {
	if strings.TrimSpace(tz) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(strings.TrimSpace(tz))
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

func conflictCount(vals ...bool) int {
	total := 0
	for _, v := range vals {
		if v {
			total++
		}
	}
	return total
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
