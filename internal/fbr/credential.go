package fbr

import (
	"context"
	"strings"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
)

// Environment names the authority environment a credential belongs to.
type Environment string

const (
	EnvProduction Environment = "production"
	EnvSandbox    Environment = "sandbox"
)

// Account holds a business's authority tokens. Production becomes usable once
// the authority has approved the account for live filing.
type Account struct {
	ProductionToken   string
	SandboxToken      string
	ProductionEnabled bool
}

// Credential is the token chosen for a call.
type Credential struct {
	Token       string
	Environment Environment
}

// SelectCredential prefers the production token of an approved account and
// falls back to the sandbox token.
func SelectCredential(acc Account) (Credential, error) {
	if acc.ProductionEnabled {
		if tok := strings.TrimSpace(acc.ProductionToken); tok != "" {
			return Credential{Token: tok, Environment: EnvProduction}, nil
		}
	}
	if tok := strings.TrimSpace(acc.SandboxToken); tok != "" {
		return Credential{Token: tok, Environment: EnvSandbox}, nil
	}
	return Credential{}, httpx.NewError(httpx.ErrAuthentication, 0, "FBR credential is not configured", nil)
}

// AccountSource resolves the account whose credential a request should use.
type AccountSource interface {
	Account(ctx context.Context) (Account, error)
}

// StaticAccount is an AccountSource with a fixed account.
type StaticAccount Account

// Account implements AccountSource.
func (s StaticAccount) Account(context.Context) (Account, error) {
	return Account(s), nil
}

// ResolveCredential looks up the account and selects its credential.
func ResolveCredential(ctx context.Context, src AccountSource) (Credential, error) {
	acc, err := src.Account(ctx)
	if err != nil {
		return Credential{}, err
	}
	return SelectCredential(acc)
}
