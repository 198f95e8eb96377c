package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Description length bounds, in characters after trimming.
const (
	DescriptionMin = 20
	DescriptionMax = 320
	MaxCategories  = 3
)

// LinkShape names the invitation form a link matched.
type LinkShape string

const (
	ShapeTelegramPublic  LinkShape = "telegram_public"
	ShapeTelegramInvite  LinkShape = "telegram_invite"
	ShapeTelegramMessage LinkShape = "telegram_message"
	ShapeWhatsAppGroup   LinkShape = "whatsapp_group"
	ShapeWhatsAppChannel LinkShape = "whatsapp_channel"
	ShapeClanInvite      LinkShape = "clan_invite"
)

// ErrUnknownNetwork is returned when a link is validated against a network
// outside the catalog.
var ErrUnknownNetwork = errors.New("unknown network")

// LinkError reports a link that matched none of the shapes accepted for its
// network. Expected lists those shapes in human-readable form.
type LinkError struct {
	Network  Network
	Expected []string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("invalid %s link, expected %s", e.Network, strings.Join(e.Expected, " or "))
}

type linkPattern struct {
	shape   LinkShape
	re      *regexp.Regexp
	example string
}

var linkPatterns = map[Network][]linkPattern{
	NetworkTelegram: {
		{ShapeTelegramPublic, regexp.MustCompile(`^https://t\.me/[a-zA-Z0-9_]{5,}$`), "https://t.me/<handle>"},
		{ShapeTelegramInvite, regexp.MustCompile(`^https://t\.me/\+[a-zA-Z0-9_-]{10,}$`), "https://t.me/+<invite>"},
		{ShapeTelegramMessage, regexp.MustCompile(`^https://t\.me/c/\d+/\d+$`), "https://t.me/c/<id>/<msg>"},
	},
	NetworkWhatsApp: {
		{ShapeWhatsAppGroup, regexp.MustCompile(`^https://chat\.whatsapp\.com/[A-Za-z0-9]{22}$`), "https://chat.whatsapp.com/<code>"},
		{ShapeWhatsAppChannel, regexp.MustCompile(`^https://(wa\.me|whatsapp\.com)/channel/[a-zA-Z0-9_]{8,}$`), "https://whatsapp.com/channel/<id>"},
	},
	NetworkClashRoyale: {
		{ShapeClanInvite, regexp.MustCompile(`^https://link\.clashroyale\.com/\S+$`), "https://link.clashroyale.com/..."},
	},
	NetworkClashOfClans: {
		{ShapeClanInvite, regexp.MustCompile(`^https://link\.clashofclans\.com/\S+$`), "https://link.clashofclans.com/..."},
	},
}

var (
	emailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	alnumRe = regexp.MustCompile(`[a-zA-Z0-9]`)
)

// NormalizeLink trims blanks and strips a single trailing slash. Case and
// scheme are kept as typed.
func NormalizeLink(link string) string {
	link = strings.TrimSpace(link)
	return strings.TrimSuffix(link, "/")
}

// ValidateLink checks a normalized link against the shapes accepted for
// network and returns the matched shape.
func ValidateLink(network Network, link string) (LinkShape, error) {
	patterns, ok := linkPatterns[network]
	if !ok {
		return "", ErrUnknownNetwork
	}
	link = strings.TrimSpace(link)
	expected := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p.re.MatchString(link) {
			return p.shape, nil
		}
		expected = append(expected, p.example)
	}
	return "", &LinkError{Network: network, Expected: expected}
}

var expectedPrefix = map[Network]string{
	NetworkTelegram: "https://t.me/",
}

// AutocorrectPrefix snaps a partially typed or mistyped scheme/host prefix
// back to the one expected for network. "https://t.m" under telegram becomes
// "https://t.me/". Input for networks without a fixed prefix is returned as is.
func AutocorrectPrefix(network Network, typed string) string {
	prefix, ok := expectedPrefix[network]
	if !ok {
		return typed
	}
	n := len(prefix)
	if len(typed) < n {
		n = len(typed)
	}
	head, rest := typed[:n], typed[n:]
	lowHead, lowPrefix := strings.ToLower(head), strings.ToLower(prefix)
	if lowHead != lowPrefix && strings.HasPrefix(lowPrefix, lowHead) {
		return prefix + rest
	}
	return typed
}

func descriptionLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

// DescriptionValid reports whether a single slot satisfies the length bounds.
func DescriptionValid(s string) bool {
	n := descriptionLen(s)
	return n >= DescriptionMin && n <= DescriptionMax
}

// ValidateDescription checks the two language slots. At least one slot must
// be valid and any non-empty slot must be valid on its own. The returned map
// is keyed by form field and empty when the pair is acceptable.
func ValidateDescription(es, en string) map[string]string {
	errs := map[string]string{}
	check := func(field, v string) {
		n := descriptionLen(v)
		switch {
		case n == 0:
		case n < DescriptionMin:
			errs[field] = fmt.Sprintf("must be at least %d characters", DescriptionMin)
		case n > DescriptionMax:
			errs[field] = fmt.Sprintf("must be at most %d characters", DescriptionMax)
		}
	}
	check("description_es", es)
	check("description_en", en)

	if descriptionLen(es) == 0 && descriptionLen(en) == 0 {
		msg := "a description in Spanish or English is required"
		errs["description_es"] = msg
		errs["description_en"] = msg
	}
	return errs
}

// ValidateName returns a message when name is blank or has no letter or digit.
func ValidateName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "is required"
	}
	if !alnumRe.MatchString(name) {
		return "must contain at least one letter or number"
	}
	if utf8.RuneCountInString(name) > 255 {
		return "is too long"
	}
	return ""
}

// ValidateCategories checks the selection size and maps every tag onto the
// catalog. It returns the canonical tags, or a message on failure.
func ValidateCategories(tags []string) ([]string, string) {
	if len(tags) < 1 {
		return nil, "select at least one category"
	}
	if len(tags) > MaxCategories {
		return nil, fmt.Sprintf("select at most %d categories", MaxCategories)
	}
	out := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, t := range tags {
		c, ok := MigrateCategory(t)
		if !ok {
			return nil, fmt.Sprintf("unknown category %q", strings.TrimSpace(t))
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, ""
}

// ValidateEmail checks the address shape and that the confirmation matches.
func ValidateEmail(email, repeat string) map[string]string {
	errs := map[string]string{}
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		errs["email"] = "is required"
	case !emailRe.MatchString(email):
		errs["email"] = "is not a valid address"
	}
	if strings.TrimSpace(repeat) != email {
		errs["email_repeat"] = "does not match"
	}
	return errs
}

// ValidContentFlag reports whether v is a known content flag value.
func ValidContentFlag(v string) bool {
	return v == ContentYes || v == ContentNo
}
