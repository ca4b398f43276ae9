package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/SkyAle-bit/Progetto-FE/internal/availability"
)

var errConfirmationRequired = errors.New("confirmation required: pass --yes or run in a terminal")

var stdinInteractive = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newConfirmer picks how destructive changes get approved: --yes approves
// everything, a terminal gets a y/N prompt, and anything else refuses.
func newConfirmer(ro *globalOptions, assumeYes bool, in io.Reader, out io.Writer) availability.Confirmer {
	if assumeYes {
		return availability.AlwaysConfirm
	}
	if ro.NoInput || !stdinInteractive() {
		return availability.ConfirmFunc(func(context.Context, string) (bool, error) {
			return false, errConfirmationRequired
		})
	}
	reader := bufio.NewReader(in)
	return availability.ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		return promptYesNo(reader, out, prompt)
	})
}

func promptYesNo(in *bufio.Reader, out io.Writer, prompt string) (bool, error) {
	if _, err := fmt.Fprintf(out, "%s [y/N]: ", prompt); err != nil {
		return false, err
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func readSecret(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
