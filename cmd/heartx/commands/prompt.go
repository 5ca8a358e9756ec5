package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"heartx/internal/app"
)

// readPassword returns -p when given, otherwise prompts without echo.
func readPassword(prompt string) (string, error) {
	if password != "" {
		return password, nil
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", errors.Wrap(err, "read password")
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("password required (-p or stdin)")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// withSession unlocks the identity, runs fn and drops the key afterwards.
func withSession(ctx context.Context, fn func(ctx context.Context, s *app.Session) error) error {
	pw, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	s, err := wire.Login(ctx, pw)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}
