package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"custodia/internal/passcode"
)

var (
	stdinOnce   sync.Once
	stdinReader *bufio.Reader
)

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readSecret reads one line without echo on a terminal, or a plain line
// from piped input. An empty read at end of input is io.EOF.
func readSecret(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	if stdinIsTerminal() {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	stdinOnce.Do(func() { stdinReader = bufio.NewReader(os.Stdin) })
	line, err := stdinReader.ReadString('\n')
	if errors.Is(err, io.EOF) && line != "" {
		err = nil
	}
	fmt.Fprintln(os.Stderr)
	return strings.TrimRight(line, "\r\n"), err
}

var _ passcode.PromptFunc = promptPasscode

func promptPasscode(ctx context.Context, reason string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return readSecret(fmt.Sprintf("%s (enter passcode, empty to cancel, %q for fallback): ", reason, passcode.FallbackInput))
}

func readNewPasscode() (string, error) {
	first, err := readSecret("New passcode: ")
	if err != nil {
		return "", err
	}
	second, err := readSecret("New passcode (confirm): ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passcodes do not match")
	}
	return first, nil
}
