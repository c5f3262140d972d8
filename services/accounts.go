package services

import (
	"context"
	"fmt"
)

// CredentialVerifier is the credential store as seen by Accounts.
type CredentialVerifier interface {
	Register(ctx context.Context, identity, secret string) error
	Verify(ctx context.Context, identity, secret string) (string, error)
}

// TokenSigner issues session tokens.
type TokenSigner interface {
	Issue(identity string) (string, error)
}

// Accounts registers and logs in users, answering with a session token.
type Accounts struct {
	credentials CredentialVerifier
	tokens      TokenSigner
}

func NewAccounts(credentials CredentialVerifier, tokens TokenSigner) *Accounts {
	return &Accounts{credentials: credentials, tokens: tokens}
}

func (a *Accounts) Register(ctx context.Context, email, password string) (string, error) {
	if err := a.credentials.Register(ctx, email, password); err != nil {
		return "", err
	}
	return a.issue(email)
}

func (a *Accounts) Login(ctx context.Context, email, password string) (string, error) {
	identity, err := a.credentials.Verify(ctx, email, password)
	if err != nil {
		return "", err
	}
	return a.issue(identity)
}

func (a *Accounts) issue(identity string) (string, error) {
	token, err := a.tokens.Issue(identity)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}
