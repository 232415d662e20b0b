package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// Service name for OS credential store
	credentialService = "refsync"
	// Prefix of keyring keys; the host name is appended
	tokenKeyPrefix = "token:"
)

// ErrNoToken is returned by GetToken when no token is stored for a host.
var ErrNoToken = errors.New("no token stored")

// CredentialManager handles secure storage and retrieval of HTTPS access
// tokens, one per remote host.
type CredentialManager struct {
	service string
}

// NewCredentialManager creates a new credential manager instance
func NewCredentialManager() *CredentialManager {
	return &CredentialManager{
		service: credentialService,
	}
}

func tokenKey(host string) string {
	return tokenKeyPrefix + strings.ToLower(strings.TrimSpace(host))
}

// StoreToken securely stores an access token for host in the OS credential
// store. Tokens for github.com are checked against the GitHub token format.
//
// Parameters:
//   - host: Remote host name, e.g. "github.com"
//   - token: Access token to store
//
// Returns:
//   - error: Storage errors or validation failures
func (cm *CredentialManager) StoreToken(host, token string) error {
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("token cannot be empty")
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return fmt.Errorf("token must not contain whitespace")
	}

	if strings.EqualFold(strings.TrimSpace(host), "github.com") {
		if err := validateGitHubTokenFormat(token); err != nil {
			return fmt.Errorf("invalid token format: %w", err)
		}
	}

	if err := keyring.Set(cm.service, tokenKey(host), token); err != nil {
		return fmt.Errorf("failed to store token in credential store: %w", err)
	}

	return nil
}

// GetToken retrieves the stored token for host.
//
// Returns:
//   - string: The stored token
//   - error: ErrNoToken if none is stored, or credential store errors
func (cm *CredentialManager) GetToken(host string) (string, error) {
	token, err := keyring.Get(cm.service, tokenKey(host))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w for %s - run 'refsync token set %s'", ErrNoToken, host, host)
		}
		return "", fmt.Errorf("failed to retrieve token from credential store: %w", err)
	}

	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w for %s (stored token is empty)", ErrNoToken, host)
	}

	return token, nil
}

// DeleteToken removes the stored token for host. Deleting a token that does
// not exist is not an error.
func (cm *CredentialManager) DeleteToken(host string) error {
	err := keyring.Delete(cm.service, tokenKey(host))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token from credential store: %w", err)
	}
	return nil
}

// HasToken checks if a token is stored for host without returning it.
func (cm *CredentialManager) HasToken(host string) bool {
	_, err := keyring.Get(cm.service, tokenKey(host))
	return err == nil
}

// TokenForURL returns the token stored for the host of remoteURL. Local paths
// and hosts without a stored token yield an empty token and no error.
func (cm *CredentialManager) TokenForURL(remoteURL string) (string, error) {
	info, err := ParseGitURL(remoteURL)
	if err != nil || info.Host == "" {
		return "", nil
	}
	if info.Scheme != "https" && info.Scheme != "http" {
		return "", nil
	}

	token, err := cm.GetToken(info.Host)
	if errors.Is(err, ErrNoToken) {
		return "", nil
	}
	return token, err
}

// validateGitHubTokenFormat validates that the token matches GitHub token
// format expectations:
//   - Classic PATs: ghp_*
//   - Fine-grained PATs: github_pat_*
//   - OAuth tokens: gho_*
//   - User-to-server tokens: ghu_*
//   - Server-to-server tokens: ghs_*
func validateGitHubTokenFormat(token string) error {
	token = strings.TrimSpace(token)

	if len(token) < 20 {
		return fmt.Errorf("token too short (minimum 20 characters)")
	}

	validPrefixes := []string{
		"ghp_",
		"github_pat_",
		"gho_",
		"ghu_",
		"ghs_",
	}

	for _, prefix := range validPrefixes {
		if strings.HasPrefix(token, prefix) {
			return nil
		}
	}

	return fmt.Errorf("token does not match expected GitHub token format (should start with ghp_ or github_pat_)")
}
