package entity

// AssetPolicy holds per-account token visibility preferences.
// HideNoCostTokens mirrors the global toggle and is never read from the wire.
type AssetPolicy struct {
	AlwaysShown      []TokenSlug `json:"alwaysShownSlugs" yaml:"alwaysShownSlugs"`
	AlwaysHidden     []TokenSlug `json:"alwaysHiddenSlugs" yaml:"alwaysHiddenSlugs"`
	Imported         []TokenSlug `json:"importedSlugs" yaml:"importedSlugs"`
	Deleted          []TokenSlug `json:"deletedSlugs" yaml:"deletedSlugs"`
	HideNoCostTokens bool        `json:"-" yaml:"-"`
}

// Hides reports whether slug is explicitly hidden or deleted.
func (p AssetPolicy) Hides(slug TokenSlug) bool {
	return containsSlug(p.AlwaysHidden, slug) || containsSlug(p.Deleted, slug)
}

func containsSlug(slugs []TokenSlug, slug TokenSlug) bool {
	for _, s := range slugs {
		if s == slug {
			return true
		}
	}
	return false
}
