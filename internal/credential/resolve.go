package credential

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Source describes where a password may come from, in order of
// preference: a command, the keyring, then a plain value.
type Source struct {
	Command string
	Key     string
	Plain   string
}

// Resolve returns the first password the source yields. ring may be nil.
// A failing command is an error; a missing keyring entry is not.
func Resolve(ctx context.Context, src Source, ring Getter) (string, error) {
	if src.Command != "" {
		return runPasswordCommand(ctx, src.Command)
	}
	if ring != nil && src.Key != "" {
		pw, err := ring.Get(src.Key)
		if err == nil {
			return pw, nil
		}
		if !IsNotFound(err) {
			return "", err
		}
	}
	if src.Plain != "" {
		return src.Plain, nil
	}
	return "", fmt.Errorf("no password configured for %q", src.Key)
}

func runPasswordCommand(ctx context.Context, command string) (string, error) {
	out, err := exec.CommandContext(ctx, "sh", "-c", command).Output()
	if err != nil {
		return "", fmt.Errorf("running password command: %w", err)
	}
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	if !sc.Scan() || sc.Text() == "" {
		return "", fmt.Errorf("password command printed nothing")
	}
	return sc.Text(), nil
}
