package walletloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balance_engine/internal/domain/entity"
)

func TestAccountDirectory_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
accounts:
  - id: 1-mainnet
    type: view
    chains: [ton]
  - id: 0-testnet
    network: testnet
    type: mnemonic
    chains: [ton, tron]
  - type: hardware
`), 0o600))

	var logged []string
	d := NewAccountDirectory(path)
	require.NoError(t, d.Load(func(msg string, _ ...any) { logged = append(logged, msg) }))

	assert.Equal(t, []entity.AccountID{"0-testnet", "1-mainnet"}, d.IDs())
	a, ok := d.Account("1-mainnet")
	require.True(t, ok)
	assert.Equal(t, entity.NetworkMainnet, a.Network)
	assert.True(t, a.Supports("ton"))
	assert.False(t, a.Supports("tron"))
	assert.Contains(t, logged, "Skipping account without id")

	d.Remove("1-mainnet")
	_, ok = d.Account("1-mainnet")
	assert.False(t, ok)
}

func TestAccountDirectory_MissingFile(t *testing.T) {
	d := NewAccountDirectory(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, d.Load(nil))
	assert.Empty(t, d.Accounts())
}
