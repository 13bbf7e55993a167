package secret

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

type EnvProvider struct {
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

func (p *EnvProvider) Resolve(ctx context.Context, ref Ref) (string, error) {
	lookup := p.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, ok := lookup(ref.Value)
	if !ok {
		return "", ErrNotFound
	}
	if value == "" {
		return "", ErrEmpty
	}
	return value, nil
}

// FileProvider reads the whole file and trims one trailing newline.
type FileProvider struct{}

func (p *FileProvider) Resolve(ctx context.Context, ref Ref) (string, error) {
	data, err := os.ReadFile(ExpandHome(ref.Value))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read secret file: %w", err)
	}

	value := strings.TrimSuffix(string(data), "\n")
	value = strings.TrimSuffix(value, "\r")
	if value == "" {
		return "", ErrEmpty
	}
	return value, nil
}

// PromptProvider asks for the secret on the terminal without echo. The
// reference value, if any, is used as the prompt label.
type PromptProvider struct {
	In  *os.File
	Out io.Writer
}

func (p *PromptProvider) Resolve(ctx context.Context, ref Ref) (string, error) {
	in := p.In
	if in == nil {
		in = os.Stdin
	}
	out := p.Out
	if out == nil {
		out = os.Stderr
	}

	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("prompt requires an interactive terminal")
	}

	label := ref.Value
	if label == "" {
		label = "Password"
	}
	fmt.Fprintf(out, "%s: ", label)
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	return string(data), nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
