package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a console logger on stderr. Verbose lowers the level to debug;
// otherwise only warnings and errors are written so command output stays clean.
func New(verbose bool, noColor bool) *zap.Logger {
	return NewWithWriter(os.Stderr, verbose, noColor)
}

func NewWithWriter(w io.Writer, verbose bool, noColor bool) *zap.Logger {
	level := zap.WarnLevel
	if verbose {
		level = zap.DebugLevel
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if noColor {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	if !verbose {
		cfg.TimeKey = ""
		cfg.CallerKey = ""
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
	return zap.New(core).Named("fitctl")
}
