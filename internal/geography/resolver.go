// Package geography maps a citizen's geo anchor to the region slug that
// keys signature pools.
package geography

import (
	"context"
	"strings"

	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
)

// Anchor is the location input to region resolution.
type Anchor struct {
	Country  string
	Locality string
}

// Resolver resolves an anchor to a region slug.
type Resolver interface {
	ResolveRegion(ctx context.Context, anchor Anchor) (domain.RegionSlug, error)
}

// defaultCountryCodes folds common country spellings into ISO 3166 alpha-2
// codes so "Portugal" and "PT" land in the same region.
var defaultCountryCodes = map[string]string{
	"argentina":      "ar",
	"brasil":         "br",
	"brazil":         "br",
	"chile":          "cl",
	"colombia":       "co",
	"espana":         "es",
	"france":         "fr",
	"germany":        "de",
	"deutschland":    "de",
	"mexico":         "mx",
	"portugal":       "pt",
	"spain":          "es",
	"united-kingdom": "gb",
	"united-states":  "us",
	"usa":            "us",
}

// StaticResolver derives the slug from the anchor text alone:
// "<country-code>-<locality>".
type StaticResolver struct {
	countries map[string]string
}

// NewStaticResolver builds a resolver over the default country table plus
// extra entries. Keys are matched after slugification.
func NewStaticResolver(extra map[string]string) *StaticResolver {
	countries := make(map[string]string, len(defaultCountryCodes)+len(extra))
	for k, v := range defaultCountryCodes {
		countries[k] = v
	}
	for k, v := range extra {
		countries[string(domain.Slugify(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	return &StaticResolver{countries: countries}
}

func (r *StaticResolver) ResolveRegion(_ context.Context, anchor Anchor) (domain.RegionSlug, error) {
	country := string(domain.Slugify(anchor.Country))
	if code, ok := r.countries[country]; ok {
		country = code
	}
	slug := domain.Slugify(country, anchor.Locality)
	if slug == "" {
		return "", dErrors.New(dErrors.CodeValidation, "geo anchor does not resolve to a region").
			WithRemediation("register a country or locality for the citizen, or pass a region hint")
	}
	return domain.ParseRegionSlug(string(slug))
}
