package audit

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders human-readable audit messages. Output affects log text
// only.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter builds a formatter for the given BCP 47 tag. Unknown or empty
// tags fall back to English.
func NewFormatter(tag string) *Formatter {
	lang, err := language.Parse(tag)
	if err != nil || tag == "" {
		lang = language.English
	}
	return &Formatter{printer: message.NewPrinter(lang)}
}

// Sprintf formats with locale-aware number grouping.
func (f *Formatter) Sprintf(format string, args ...any) string {
	if f == nil || f.printer == nil {
		return message.NewPrinter(language.English).Sprintf(format, args...)
	}
	return f.printer.Sprintf(format, args...)
}

// SignatureIngested describes a signature accepted into a pool.
func (f *Formatter) SignatureIngested(region string, weight, total, count int) string {
	return f.Sprintf("signature accepted in %s with weight %d; pool now holds %d signatures totalling %d", region, weight, count, total)
}

// PoolSealed describes a sealed pool.
func (f *Formatter) PoolSealed(region, root string, leafCount, totalWeight int) string {
	return f.Sprintf("pool in %s sealed over %d signatures (weight %d) with root %s", region, leafCount, totalWeight, root)
}

// ImpactApplied describes a standing change.
func (f *Formatter) ImpactApplied(impactType string, previous, next int) string {
	return f.Sprintf("%s moved standing from %d to %d", impactType, previous, next)
}

// DegradedPrivilege describes a sanction override.
func (f *Formatter) DegradedPrivilege(role string, score int) string {
	return f.Sprintf("role %s operating in degraded privilege mode at standing %d", role, score)
}
