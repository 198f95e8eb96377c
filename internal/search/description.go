package search

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/tbourn/joingroups-backend/internal/domain"
)

// PickDescription chooses the description text shown for locale, trying in
// order: the locale's base language slot, the full locale tag, Spanish, the
// legacy single-string description, and finally any populated slot.
func PickDescription(l *domain.Listing, locale string) string {
	slots := map[string]string{
		domain.LangES: l.DescriptionES,
		domain.LangEN: l.DescriptionEN,
	}

	var chain []string
	if tag, err := language.Parse(strings.TrimSpace(locale)); err == nil {
		base, _ := tag.Base()
		chain = append(chain, base.String(), strings.ToLower(tag.String()))
	} else if locale != "" {
		chain = append(chain, strings.ToLower(locale))
	}
	chain = append(chain, domain.LangES)

	for _, k := range chain {
		if v := strings.TrimSpace(slots[k]); v != "" {
			return v
		}
	}
	if v := strings.TrimSpace(l.LegacyDescription); v != "" {
		return v
	}
	return strings.TrimSpace(l.DescriptionEN)
}

// BaseLanguage returns the two-letter base of locale ("en-US" -> "en"),
// defaulting to Spanish when locale cannot be parsed.
func BaseLanguage(locale string) string {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return domain.LangES
	}
	base, _ := tag.Base()
	return base.String()
}
