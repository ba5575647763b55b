package credentials

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keyring service name secrets are filed under.
const DefaultService = "linkedinpy"

var ErrNoStoredCredential = errors.New("no stored credential, store a password for this user first")

// Source looks up the secret for a username. Get returns
// ErrNoStoredCredential when nothing is stored.
type Source interface {
	Get(username string) (string, error)
	Set(username, secret string) error
}

// Keyring keeps secrets in the operating system keychain.
type Keyring struct {
	Service string
}

func NewKeyring(service string) Keyring {
	if service == "" {
		service = DefaultService
	}
	return Keyring{Service: service}
}

func (k Keyring) Get(username string) (string, error) {
	secret, err := keyring.Get(k.Service, username)
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && secret == "") {
		return "", fmt.Errorf("%w: %s", ErrNoStoredCredential, username)
	}
	if err != nil {
		return "", fmt.Errorf("read keyring for %s: %w", username, err)
	}
	return secret, nil
}

func (k Keyring) Set(username, secret string) error {
	if err := keyring.Set(k.Service, username, secret); err != nil {
		return fmt.Errorf("write keyring for %s: %w", username, err)
	}
	return nil
}

// Delete removes the stored secret. Deleting a missing secret is not an
// error.
func (k Keyring) Delete(username string) error {
	err := keyring.Delete(k.Service, username)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete keyring entry for %s: %w", username, err)
	}
	return nil
}
