package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "mumail"

// ErrNotFound is returned when no credential is stored under a key.
var ErrNotFound = keyring.ErrKeyNotFound

// Getter looks up stored secrets.
type Getter interface {
	Get(key string) (string, error)
}

// Ring is a secret store backed by the OS keyring.
type Ring struct {
	ring keyring.Keyring
}

// Open returns the system keyring.
func Open() (*Ring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mumail/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mumail-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Ring{ring: ring}, nil
}

// NewRing wraps an existing keyring, e.g. keyring.NewArrayKeyring in tests.
func NewRing(ring keyring.Keyring) *Ring {
	return &Ring{ring: ring}
}

// Get retrieves a credential value by key.
func (r *Ring) Get(key string) (string, error) {
	item, err := r.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key.
func (r *Ring) Set(key string, value string) error {
	err := r.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "mumail " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key.
func (r *Ring) Delete(key string) error {
	if err := r.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// IsNotFound reports whether err means the key is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, keyring.ErrKeyNotFound)
}

// SMTPKey is the keyring key for an account's SMTP password.
func SMTPKey(account string) string { return "smtp-" + account }

// IMAPKey is the keyring key for an account's IMAP password.
func IMAPKey(account string) string { return "imap-" + account }
