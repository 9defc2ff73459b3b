package port

import "balance_engine/internal/domain/entity"

// TokenMetadataProvider resolves token metadata and prices in the current base currency.
type TokenMetadataProvider interface {
	// Token returns the metadata of slug, with prices converted to BaseCurrency.
	Token(slug entity.TokenSlug) (entity.TokenMetadata, bool)
	BaseCurrency() string
}
