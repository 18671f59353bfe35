package credentials

import (
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// loadDotenv loads a .env file from the working directory once, if present.
// Missing files are fine; explicit environment always wins.
func loadDotenv() {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
}

// normalizeAccountName converts an account name to environment-variable form.
// Example: "personal-work" becomes "PERSONAL_WORK".
func normalizeAccountName(accountName string) string {
	normalized := strings.ToUpper(accountName)
	return strings.ReplaceAll(normalized, "-", "_")
}

// getEnvVarName returns the environment variable name for an account field
func getEnvVarName(accountName, field string) string {
	return "TASKMIRROR_" + normalizeAccountName(accountName) + "_" + strings.ToUpper(field)
}

// EnvTokenVar returns the environment variable name holding the account's
// API token, for user-facing hints.
func EnvTokenVar(accountName string) string {
	return getEnvVarName(accountName, "TOKEN")
}

// GetToken retrieves the API token from environment variables.
// Looks for: TASKMIRROR_{ACCOUNT_NAME}_TOKEN
func GetToken(accountName string) string {
	if accountName == "" {
		return ""
	}
	loadDotenv()
	return os.Getenv(getEnvVarName(accountName, "TOKEN"))
}

// GetBaseURL retrieves a remote API base URL override from the environment.
// Looks for: TASKMIRROR_{ACCOUNT_NAME}_BASE_URL
func GetBaseURL(accountName string) string {
	if accountName == "" {
		return ""
	}
	loadDotenv()
	return os.Getenv(getEnvVarName(accountName, "BASE_URL"))
}
