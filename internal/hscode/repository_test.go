package hscode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/shared"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "0101", want: "0101"},
		{in: "100%", want: `100\%`},
		{in: "a_b", want: `a\_b`},
		{in: `c:\tmp`, want: `c:\\tmp`},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, escapeLike(tc.in), tc.in)
	}
}

func TestMemoryRepositoryMatchesWildcardsLiterally(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, in := range []CreateInput{
		{Code: "0101.2100", Description: "Horses"},
		{Code: "0102.2100", Description: "Cattle 100% pure bred"},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	codes, _, err := svc.List(ctx, ListParams{Search: "%"})
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "0102.2100", codes[0].Code)

	codes, _, err = svc.List(ctx, ListParams{Search: "_"})
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestServiceListHugePage(t *testing.T) {
	svc, _ := newTestService(t)
	codes, pagination, err := svc.List(context.Background(), ListParams{Page: int(^uint(0) >> 1), Limit: 100})
	require.NoError(t, err)
	assert.Empty(t, codes)
	assert.Equal(t, shared.MaxPage, pagination.Page)
}
