// Package utils holds small helpers shared by the binaries.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretsDir is where Docker mounts secrets.
var SecretsDir = "/run/secrets"

// ReadSecret reads the named secret file from SecretsDir.
func ReadSecret(secretName string) (string, error) {
	filePath := filepath.Join(SecretsDir, secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}

// SecretOrEnv prefers the secret file and falls back to the environment
// variable envName.
func SecretOrEnv(secretName, envName string) string {
	if v, err := ReadSecret(secretName); err == nil {
		return v
	}
	return strings.TrimSpace(os.Getenv(envName))
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	switch {
	case secret == "":
		return "[NOT SET]"
	case len(secret) <= 4:
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// MaskDSN replaces the password of a URL-style DSN.
func MaskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	userInfo := dsn[scheme+3 : at]
	colon := strings.Index(userInfo, ":")
	if colon < 0 {
		return dsn
	}
	return dsn[:scheme+3] + userInfo[:colon] + ":********" + dsn[at:]
}
