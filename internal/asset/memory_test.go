package asset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

func TestMemoryTokenTransfers(t *testing.T) {
	ctx := context.Background()
	dai := NewMemoryToken("dai")
	require.Equal(t, "DAI", dai.Symbol())
	require.NoError(t, dai.Mint(ctx, "alice", vault.NewAmount(100)))

	require.NoError(t, dai.Transfer(ctx, "alice", "bob", vault.NewAmount(40)))
	err := dai.Transfer(ctx, "alice", "bob", vault.NewAmount(61))
	assert.True(t, errors.Is(err, ErrInsufficientBalance), "got %v", err)

	alice, _ := dai.BalanceOf(ctx, "alice")
	bob, _ := dai.BalanceOf(ctx, "bob")
	assert.True(t, alice.Equal(vault.NewAmount(60)), "alice=%s", alice)
	assert.True(t, bob.Equal(vault.NewAmount(40)), "bob=%s", bob)

	assert.True(t, errors.Is(dai.Transfer(ctx, "alice", "bob", vault.NewAmount(-1)), ErrInvalidAmount))
}

func TestMemoryTokenAllowance(t *testing.T) {
	ctx := context.Background()
	dai := NewMemoryToken("DAI")
	require.NoError(t, dai.Mint(ctx, "alice", vault.NewAmount(100)))

	err := dai.TransferFrom(ctx, "vault", "alice", "vault", vault.NewAmount(10))
	require.True(t, errors.Is(err, ErrInsufficientAllowance), "got %v", err)

	require.NoError(t, dai.Approve(ctx, "alice", "vault", vault.NewAmount(30)))
	require.NoError(t, dai.TransferFrom(ctx, "vault", "alice", "vault", vault.NewAmount(10)))

	left, err := dai.Allowance(ctx, "alice", "vault")
	require.NoError(t, err)
	assert.True(t, left.Equal(vault.NewAmount(20)), "allowance=%s", left)

	held, _ := dai.BalanceOf(ctx, "vault")
	assert.True(t, held.Equal(vault.NewAmount(10)), "vault=%s", held)
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry(NewMemoryToken("DAI"), NewMemoryToken("WETH"))
	tok, err := reg.Lookup("weth")
	require.NoError(t, err)
	assert.Equal(t, "WETH", tok.Symbol())
	_, err = reg.Lookup("USDC")
	assert.True(t, errors.Is(err, ErrUnknownAsset))
	assert.Equal(t, []string{"DAI", "WETH"}, reg.Symbols())
}
