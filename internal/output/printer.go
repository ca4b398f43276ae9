package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeJSON  Mode = "json"
	ModeJSONL Mode = "jsonl"
	ModePlain Mode = "plain"
)

func ParseMode(v string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(v))); m {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeJSON, ModeJSONL, ModePlain:
		return m, nil
	default:
		return "", fmt.Errorf("invalid output mode %q: want auto|json|jsonl|plain", v)
	}
}

// Liner is implemented by values with their own plain text rendering.
type Liner interface {
	PlainLines() []string
}

type Printer struct {
	Mode          Mode
	Command       string
	Fields        []string
	Quiet         bool
	NoColor       bool
	SchemaVersion string
	Out           io.Writer
	Err           io.Writer
	Now           func() time.Time
}

func (p Printer) stdout() io.Writer {
	if p.Out != nil {
		return p.Out
	}
	return os.Stdout
}

func (p Printer) stderr() io.Writer {
	if p.Err != nil {
		return p.Err
	}
	return os.Stderr
}

func (p Printer) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p Printer) Success(data any, meta map[string]any, warnings []string) error {
	switch p.Mode {
	case ModeJSON:
		if meta == nil {
			meta = map[string]any{}
		}
		if warnings == nil {
			warnings = []string{}
		}
		env := contract.SuccessEnvelope{
			SchemaVersion: p.schemaVersion(),
			Command:       p.Command,
			GeneratedAt:   p.now().UTC(),
			Data:          data,
			Meta:          meta,
			Warnings:      warnings,
		}
		enc := json.NewEncoder(p.stdout())
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	case ModeJSONL:
		enc := json.NewEncoder(p.stdout())
		v := reflect.ValueOf(data)
		if v.IsValid() && v.Kind() == reflect.Slice {
			for i := 0; i < v.Len(); i++ {
				if err := enc.Encode(v.Index(i).Interface()); err != nil {
					return err
				}
			}
			return nil
		}
		return enc.Encode(data)
	default:
		if err := p.printPlain(data); err != nil {
			return err
		}
		if !p.Quiet {
			for _, w := range warnings {
				_, _ = fmt.Fprintf(p.stderr(), "warning: %s\n", w)
			}
		}
		return nil
	}
}

func (p Printer) Error(code contract.ErrorCode, message, hint string) error {
	return p.ErrorWithMeta(code, message, hint, nil)
}

// ErrorWithMeta is Error with extra envelope metadata. Plain output ignores meta.
func (p Printer) ErrorWithMeta(code contract.ErrorCode, message, hint string, meta map[string]any) error {
	if p.Mode == ModeJSON || p.Mode == ModeJSONL {
		env := contract.ErrorEnvelope{
			SchemaVersion: p.schemaVersion(),
			Error:         contract.ErrorBody{Code: code, Message: message, Hint: hint},
			Meta:          meta,
		}
		enc := json.NewEncoder(p.stderr())
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
	if hint != "" {
		_, _ = fmt.Fprintf(p.stderr(), "error: %s\nhint: %s\n", message, hint)
		return nil
	}
	_, _ = fmt.Fprintf(p.stderr(), "error: %s\n", message)
	return nil
}

// EffectiveSuccessMode is the mode success output is rendered in.
func (p Printer) EffectiveSuccessMode() Mode {
	switch p.Mode {
	case ModeJSON, ModeJSONL:
		return p.Mode
	default:
		return ModePlain
	}
}

func (p Printer) schemaVersion() string {
	if p.SchemaVersion == "" {
		return contract.SchemaVersion
	}
	return p.SchemaVersion
}

func (p Printer) printPlain(data any) error {
	out := p.stdout()
	if l, ok := data.(Liner); ok && len(p.Fields) == 0 {
		for _, line := range l.PlainLines() {
			if _, err := fmt.Fprintln(out, line); err != nil {
				return err
			}
		}
		return nil
	}
	v := reflect.ValueOf(data)
	if !v.IsValid() || (v.Kind() == reflect.Slice && v.Len() == 0) {
		if !p.Quiet {
			_, _ = fmt.Fprintln(out, "no results")
		}
		return nil
	}
	if v.Kind() == reflect.Slice {
		for i := 0; i < v.Len(); i++ {
			if _, err := fmt.Fprintln(out, flatten(v.Index(i).Interface(), p.Fields)); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := fmt.Fprintln(out, flatten(data, p.Fields))
	return err
}

func flatten(v any, fields []string) string {
	if len(fields) == 0 {
		if l, ok := v.(Liner); ok {
			return strings.Join(l.PlainLines(), "\n")
		}
		b, _ := json.Marshal(v)
		return string(b)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		b, _ := json.Marshal(v)
		return string(b)
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		fv := rv.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, strings.ReplaceAll(f, "_", "")) || strings.EqualFold(name, f)
		})
		if !fv.IsValid() {
			parts = append(parts, "")
			continue
		}
		parts = append(parts, FormatValue(fv.Interface()))
	}
	return strings.Join(parts, "\t")
}

// FormatValue renders a field for plain output.
func FormatValue(v any) string {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format("2006-01-02 15:04")
	case *time.Time:
		if x == nil {
			return ""
		}
		return FormatValue(*x)
	default:
		return fmt.Sprint(v)
	}
}

// Size renders a byte count for people.
func Size(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

// Ago renders t relative to now, such as "3 minutes ago".
func Ago(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
