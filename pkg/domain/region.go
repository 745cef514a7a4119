package domain

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	dErrors "civictrust/pkg/domain-errors"
)

// RegionSlug names the geographic region a pool belongs to, e.g.
// "pt-lisboa" or "br-sp-campinas". Lowercase ASCII, digits and single
// hyphens, at most 64 characters.
type RegionSlug string

var regionSlugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ParseRegionSlug validates a region slug from external input.
func ParseRegionSlug(s string) (RegionSlug, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "region_slug is required")
	}
	if len(s) > 64 {
		return "", dErrors.New(dErrors.CodeValidation, "region_slug must be at most 64 characters")
	}
	if !regionSlugPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeValidation, "region_slug must be lowercase alphanumerics separated by single hyphens")
	}
	return RegionSlug(s), nil
}

// ParseRegionSlugs parses a repeated region filter. Values are lowercased
// and blanks skipped; each region appears once, in first-seen order.
func ParseRegionSlugs(values []string) ([]RegionSlug, error) {
	var out []RegionSlug
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		slug, err := ParseRegionSlug(v)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, slug) {
			out = append(out, slug)
		}
	}
	return out, nil
}

// Slugify folds free text (a locality name) into a region slug. Diacritics
// are stripped, then characters outside [a-z0-9] collapse into single
// hyphens. Returns "" when nothing usable remains.
func Slugify(parts ...string) RegionSlug {
	var b strings.Builder
	lastHyphen := true
	for _, part := range parts {
		folded, _, err := transform.String(stripMarks(), part)
		if err != nil {
			folded = part
		}
		for _, r := range strings.ToLower(folded) {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
				b.WriteRune(r)
				lastHyphen = false
			default:
				if !lastHyphen {
					b.WriteByte('-')
					lastHyphen = true
				}
			}
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if len(out) > 64 {
		out = strings.TrimSuffix(out[:64], "-")
	}
	return RegionSlug(out)
}

func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

func (r RegionSlug) String() string {
	return string(r)
}
