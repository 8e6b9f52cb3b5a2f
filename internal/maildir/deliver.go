// Package maildir writes messages into Maildir folders.
package maildir

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Ensure creates cur, new and tmp below dir.
func Ensure(dir string) error {
	for _, sub := range []string{"cur", "new", "tmp"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o700); err != nil {
			return fmt.Errorf("creating maildir %s: %w", dir, err)
		}
	}
	return nil
}

// Deliver writes data into dir through tmp/ and returns the final path.
// With an empty info string the message lands in new/; otherwise in cur/
// with ":2,<info>" appended, e.g. info "S" for a seen message.
func Deliver(dir string, data []byte, info string) (string, error) {
	if err := Ensure(dir); err != nil {
		return "", err
	}
	name := uniqueName()
	tmp := filepath.Join(dir, "tmp", name)
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", fmt.Errorf("writing %s: %w", tmp, err)
	}

	final := filepath.Join(dir, "new", name)
	if info != "" {
		final = filepath.Join(dir, "cur", name+":2,"+info)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("delivering to %s: %w", dir, err)
	}
	return final, nil
}

// Folder joins an account root and a folder path such as "/Sent".
func Folder(root, folder string) string {
	return filepath.Join(root, filepath.FromSlash(folder))
}

func uniqueName() string {
	host, _ := os.Hostname()
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%d.%s.%s", time.Now().Unix(), uuid.NewString(), host)
}
