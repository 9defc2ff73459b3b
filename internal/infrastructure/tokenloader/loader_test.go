package tokenloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balance_engine/internal/domain/entity"
	"balance_engine/internal/pkg/logger"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_SingleFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tokens.json", `[
		{"slug":"toncoin","symbol":"TON","chain":"ton","decimals":9,"isNative":true,"priceUsd":2.5,"priceUsd24h":2.4},
		{"slug":"ton-nft","symbol":"NFT","chain":"ton","decimals":0,"isPriceless":true},
		{"symbol":"NOSLUG","chain":"ton"}
	]`)

	res, err := NewTokenLoader(path, logger.NewNop()).Load()
	require.NoError(t, err)
	require.Len(t, res.Tokens, 2)
	assert.Equal(t, entity.TokenSlug("toncoin"), res.Tokens[0].Slug)
	assert.Equal(t, uint8(9), res.Tokens[0].Decimals)
	assert.True(t, res.Tokens[1].IsPriceless)
	assert.Equal(t, []entity.TokenQuote{{Slug: "toncoin", PriceUSD: 2.5, PriceUSD24h: 2.4}}, res.Quotes)
}

func TestLoad_DirectoryInfersChain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tron.json", `[{"slug":"trx","symbol":"TRX","decimals":6,"priceUsd":0.1}]`)
	writeFile(t, dir, "broken.json", `{not json`)
	writeFile(t, dir, "notes.txt", `ignored`)

	res, err := NewTokenLoader(dir, logger.NewNop()).Load()
	require.NoError(t, err)
	require.Len(t, res.Tokens, 1)
	assert.Equal(t, "tron", res.Tokens[0].Chain)
	require.Len(t, res.Quotes, 1)
	assert.Equal(t, 0.1, res.Quotes[0].PriceUSD24h)
}

func TestLoad_MissingPath(t *testing.T) {
	_, err := NewTokenLoader(filepath.Join(t.TempDir(), "nope"), logger.NewNop()).Load()
	assert.Error(t, err)
}
