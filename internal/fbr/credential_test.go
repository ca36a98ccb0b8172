package fbr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
)

func TestSelectCredential(t *testing.T) {
	tests := []struct {
		name    string
		account Account
		want    Credential
		wantErr bool
	}{
		{
			name:    "approved account uses production",
			account: Account{ProductionToken: "prod", SandboxToken: "sbx", ProductionEnabled: true},
			want:    Credential{Token: "prod", Environment: EnvProduction},
		},
		{
			name:    "unapproved account uses sandbox",
			account: Account{ProductionToken: "prod", SandboxToken: "sbx"},
			want:    Credential{Token: "sbx", Environment: EnvSandbox},
		},
		{
			name:    "approved without production token falls back",
			account: Account{SandboxToken: "sbx", ProductionEnabled: true},
			want:    Credential{Token: "sbx", Environment: EnvSandbox},
		},
		{
			name:    "no tokens",
			account: Account{ProductionToken: " ", ProductionEnabled: true},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SelectCredential(tc.account)
			if tc.wantErr {
				require.ErrorIs(t, err, httpx.ErrAuthentication)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveCredentialFromStaticAccount(t *testing.T) {
	cred, err := ResolveCredential(context.Background(), StaticAccount{SandboxToken: "sbx"})
	require.NoError(t, err)
	assert.Equal(t, EnvSandbox, cred.Environment)
}
