package tokenloader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"balance_engine/internal/app/port"
	"balance_engine/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TokenRecord is one entry of a token file. Prices are optional USD quotes.
type TokenRecord struct {
	entity.TokenMetadata
	PriceUSD    *float64 `json:"priceUsd,omitempty"`
	PriceUSD24h *float64 `json:"priceUsd24h,omitempty"`
}

// Result is what a load produced.
type Result struct {
	Tokens []entity.TokenMetadata
	Quotes []entity.TokenQuote
}

// TokenFileLoader reads token metadata from a JSON file, or from every *.json
// file of a directory (one file per chain).
type TokenFileLoader struct {
	path   string
	logger port.Logger
}

func NewTokenLoader(path string, l port.Logger) *TokenFileLoader {
	return &TokenFileLoader{path: path, logger: l}
}

// Load reads every token file. Broken files are skipped with a warning; an unreadable
// path is an error.
func (l *TokenFileLoader) Load() (Result, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat token path %s: %w", l.path, err)
	}

	files := []string{l.path}
	if info.IsDir() {
		entries, err := os.ReadDir(l.path)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read token directory %s: %w", l.path, err)
		}
		files = files[:0]
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
				continue
			}
			files = append(files, filepath.Join(l.path, e.Name()))
		}
		sort.Strings(files)
		if len(files) == 0 {
			l.logger.Info("No JSON files found in token directory.", "token_directory", l.path)
		}
	}

	var res Result
	seen := make(map[entity.TokenSlug]string)
	for _, file := range files {
		records, err := readFile(file)
		if err != nil {
			l.logger.Warn("Failed to load token file, skipping file.", "path", file, "error", err)
			continue
		}
		chainFromFile := ""
		if info.IsDir() {
			chainFromFile = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}
		loaded := 0
		for _, r := range records {
			if r.Slug == "" {
				l.logger.Warn("Token without slug, skipping token.", "file", file, "symbol", r.Symbol)
				continue
			}
			if r.Chain == "" {
				r.Chain = chainFromFile
			}
			if prev, dup := seen[r.Slug]; dup {
				l.logger.Warn("Duplicate token slug, later entry wins.", "slug", r.Slug, "file", file, "previous_file", prev)
			}
			seen[r.Slug] = file
			res.Tokens = append(res.Tokens, r.TokenMetadata)
			if r.PriceUSD != nil {
				q := entity.TokenQuote{Slug: r.Slug, PriceUSD: *r.PriceUSD, PriceUSD24h: *r.PriceUSD}
				if r.PriceUSD24h != nil {
					q.PriceUSD24h = *r.PriceUSD24h
				}
				res.Quotes = append(res.Quotes, q)
			}
			loaded++
		}
		l.logger.Info("Successfully loaded tokens from file", "file", file, "count", loaded)
	}
	return res, nil
}

func readFile(path string) ([]TokenRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []TokenRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return records, nil
}
