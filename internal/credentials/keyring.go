package credentials

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name for all taskmirror keyring entries
const keyringService = "taskmirror"

// SetToken stores an account's API token in the OS keyring
func SetToken(accountName, token string) error {
	if accountName == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}
	if err := keyring.Set(keyringService, accountName, token); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}
	return nil
}

// GetKeyringToken retrieves an account's API token from the OS keyring
func GetKeyringToken(accountName string) (string, error) {
	if accountName == "" {
		return "", fmt.Errorf("account name cannot be empty")
	}
	token, err := keyring.Get(keyringService, accountName)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", fmt.Errorf("no token found in keyring for account %q", accountName)
		}
		return "", fmt.Errorf("failed to read token from keyring: %w", err)
	}
	return token, nil
}

// DeleteToken removes an account's API token from the OS keyring
func DeleteToken(accountName string) error {
	if accountName == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	if err := keyring.Delete(keyringService, accountName); err != nil {
		if err == keyring.ErrNotFound {
			return fmt.Errorf("no token found in keyring for account %q", accountName)
		}
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}

// keyringAvailable checks if the OS keyring is accessible
func keyringAvailable() bool {
	_, err := keyring.Get("taskmirror-keyring-test", "probe")
	return err == nil || err == keyring.ErrNotFound
}
