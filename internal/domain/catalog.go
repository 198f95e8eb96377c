package domain

import "strings"

// CatalogVersion identifies the current revision of the network, category and
// country enumerations. It is stored on each seeded CategoryTag so a later
// migration can tell which rows predate a catalog change.
const CatalogVersion = 3

// Network is the social network or game a listing belongs to.
type Network string

const (
	NetworkTelegram     Network = "telegram"
	NetworkWhatsApp     Network = "whatsapp"
	NetworkClashRoyale  Network = "clash-royale"
	NetworkClashOfClans Network = "clash-of-clans"
)

// Kind returns the collection a network's listings live in.
func (n Network) Kind() Kind {
	switch n {
	case NetworkClashRoyale, NetworkClashOfClans:
		return KindClan
	default:
		return KindGroup
	}
}

// Valid reports whether n is a known network.
func (n Network) Valid() bool {
	for _, v := range Networks {
		if v == n {
			return true
		}
	}
	return false
}

// PublicPath is the site path of a listing's detail page.
func PublicPath(n Network, slug string) string {
	if n.Kind() == KindClan {
		return "/clanes/clanes-de-" + string(n) + "/" + slug
	}
	return "/comunidades/grupos-de-" + string(n) + "/" + slug
}

// PublicURL prefixes path with the listing's city subdomain, or www.
func PublicURL(siteDomain, city, path string) string {
	sub := strings.ToLower(strings.TrimSpace(city))
	if sub == "" {
		sub = "www"
	}
	return "https://" + sub + "." + siteDomain + path
}

// ParseNetwork maps user input (any case, surrounding blanks) onto a Network.
func ParseNetwork(s string) (Network, bool) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	return n, n.Valid()
}

// Networks lists every supported network in display order.
var Networks = []Network{
	NetworkTelegram,
	NetworkWhatsApp,
	NetworkClashRoyale,
	NetworkClashOfClans,
}

// Categories is the canonical tag catalog offered to submitters.
var Categories = []string{
	"Hot",
	"NSFW",
	"Anime y Manga",
	"Películas y Series",
	"Porno",
	"Criptomonedas",
	"Xxx",
	"Hacking",
	"Memes y Humor",
	"18+",
	"Fútbol",
	"Tecnología",
	"Programación",
	"Gaming",
	"Cursos y Tutoriales",
	"Música y Podcasts",
	"Arte y Diseño",
	"Ciencia y Educación",
	"Negocios y Finanzas",
	"Packs",
	"Trading",
	"Ofertas y Descuentos",
	"Emprendimiento",
	"Relaciones y Citas",
	"Telegram Bots",
	"Stickers",
}

// Countries is the optional city/country code catalog.
var Countries = []string{
	"mx", "us", "ar", "co", "es", "pe", "cl", "ve", "br", "ec", "gt", "bo",
	"do", "hn", "py", "sv", "ni", "cr", "pa", "uy", "pr", "ca", "de", "fr",
	"it", "gb", "nl", "pt", "jp", "kr", "cn", "in", "ru", "au",
}

// categoryAliases maps historical tag spellings (translated UI labels and
// accent-less variants) onto the canonical catalog entry. Keys are lower-case.
var categoryAliases = map[string]string{
	"movies and series":        "Películas y Series",
	"peliculas y series":       "Películas y Series",
	"porn":                     "Porno",
	"cryptocurrencies":         "Criptomonedas",
	"crypto":                   "Criptomonedas",
	"memes and humor":          "Memes y Humor",
	"football":                 "Fútbol",
	"soccer":                   "Fútbol",
	"futbol":                   "Fútbol",
	"technology":               "Tecnología",
	"tecnologia":               "Tecnología",
	"programming":              "Programación",
	"programacion":             "Programación",
	"courses and tutorials":    "Cursos y Tutoriales",
	"music and podcasts":       "Música y Podcasts",
	"musica y podcasts":        "Música y Podcasts",
	"art and design":           "Arte y Diseño",
	"arte y diseno":            "Arte y Diseño",
	"science and education":    "Ciencia y Educación",
	"ciencia y educacion":      "Ciencia y Educación",
	"business and finance":     "Negocios y Finanzas",
	"offers and discounts":     "Ofertas y Descuentos",
	"deals and discounts":      "Ofertas y Descuentos",
	"entrepreneurship":         "Emprendimiento",
	"relationships and dating": "Relaciones y Citas",
	"anime and manga":          "Anime y Manga",
	"bots":                     "Telegram Bots",
}

var canonicalByLower = func() map[string]string {
	m := make(map[string]string, len(Categories))
	for _, c := range Categories {
		m[strings.ToLower(c)] = c
	}
	return m
}()

// MigrateCategory returns the canonical catalog entry for a stored or
// submitted tag. The second result is false when the tag is unknown, in which
// case the trimmed input is returned unchanged.
func MigrateCategory(tag string) (string, bool) {
	t := strings.TrimSpace(tag)
	low := strings.ToLower(t)
	if c, ok := canonicalByLower[low]; ok {
		return c, true
	}
	if c, ok := categoryAliases[low]; ok {
		return c, true
	}
	return t, false
}

// ValidCountry reports whether code is in the country catalog.
func ValidCountry(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, c := range Countries {
		if c == code {
			return true
		}
	}
	return false
}
