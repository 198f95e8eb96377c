package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeLink(t *testing.T) {
	cases := map[string]string{
		"  https://t.me/testgroup123/ ": "https://t.me/testgroup123",
		"https://t.me/testgroup123":     "https://t.me/testgroup123",
		"https://t.me/Foo//":            "https://t.me/Foo/",
		"HTTPS://T.ME/Foo":              "HTTPS://T.ME/Foo",
	}
	for in, want := range cases {
		if got := NormalizeLink(in); got != want {
			t.Fatalf("NormalizeLink(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestValidateLink_Shapes(t *testing.T) {
	ok := []struct {
		network Network
		link    string
		shape   LinkShape
	}{
		{NetworkTelegram, "https://t.me/testgroup123", ShapeTelegramPublic},
		{NetworkTelegram, "https://t.me/+AbCdEfGh_-Ij", ShapeTelegramInvite},
		{NetworkTelegram, "https://t.me/c/123456/789", ShapeTelegramMessage},
		{NetworkWhatsApp, "https://chat.whatsapp.com/ABCDEFGHIJKLMNOPQRSTUV", ShapeWhatsAppGroup},
		{NetworkWhatsApp, "https://whatsapp.com/channel/0029Vabcdefg", ShapeWhatsAppChannel},
		{NetworkWhatsApp, "https://wa.me/channel/abcdefgh", ShapeWhatsAppChannel},
		{NetworkClashRoyale, "https://link.clashroyale.com/invite/clan/es?tag=2PQ", ShapeClanInvite},
		{NetworkClashOfClans, "https://link.clashofclans.com/es?action=OpenClanProfile&tag=2Y", ShapeClanInvite},
	}
	for _, tc := range ok {
		got, err := ValidateLink(tc.network, tc.link)
		if err != nil {
			t.Fatalf("ValidateLink(%s, %q) unexpected error: %v", tc.network, tc.link, err)
		}
		if got != tc.shape {
			t.Fatalf("ValidateLink(%s, %q) = %q; want %q", tc.network, tc.link, got, tc.shape)
		}
	}

	bad := []struct {
		network Network
		link    string
	}{
		{NetworkTelegram, "https://t.me/abc"},
		{NetworkTelegram, "http://t.me/testgroup123"},
		{NetworkTelegram, "https://t.me/+short"},
		{NetworkTelegram, "https://t.me/c/abc/1"},
		{NetworkWhatsApp, "https://chat.whatsapp.com/ABCDEFGHIJKLMNOPQRSTU"},
		{NetworkWhatsApp, "https://chat.whatsapp.com/ABCDEFGHIJKLMNOPQRSTUVW"},
		{NetworkWhatsApp, "https://wa.me/channel/short"},
		{NetworkWhatsApp, "https://t.me/testgroup123"},
		{NetworkClashRoyale, "https://link.clashofclans.com/x"},
	}
	for _, tc := range bad {
		_, err := ValidateLink(tc.network, tc.link)
		var le *LinkError
		if !errors.As(err, &le) {
			t.Fatalf("ValidateLink(%s, %q) error = %v; want *LinkError", tc.network, tc.link, err)
		}
		if le.Network != tc.network || len(le.Expected) == 0 {
			t.Fatalf("LinkError fields: %+v", le)
		}
	}
}

func TestValidateLink_ErrorNamesExpectedShape(t *testing.T) {
	_, err := ValidateLink(NetworkWhatsApp, "https://example.com")
	if err == nil || !strings.Contains(err.Error(), "https://chat.whatsapp.com/") {
		t.Fatalf("expected shape in message, got %v", err)
	}
	if _, err := ValidateLink(Network("myspace"), "https://x"); !errors.Is(err, ErrUnknownNetwork) {
		t.Fatalf("expected ErrUnknownNetwork, got %v", err)
	}
}

func TestAutocorrectPrefix(t *testing.T) {
	cases := []struct {
		network Network
		in      string
		want    string
	}{
		{NetworkTelegram, "https://t.m", "https://t.me/"},
		{NetworkTelegram, "h", "https://t.me/"},
		{NetworkTelegram, "https://t.me/foo", "https://t.me/foo"},
		{NetworkTelegram, "HTTPS://T.ME/foo", "HTTPS://T.ME/foo"},
		{NetworkTelegram, "http://t.me/foo", "http://t.me/foo"},
		{NetworkWhatsApp, "https://chat", "https://chat"},
	}
	for _, tc := range cases {
		if got := AutocorrectPrefix(tc.network, tc.in); got != tc.want {
			t.Fatalf("AutocorrectPrefix(%s, %q) = %q; want %q", tc.network, tc.in, got, tc.want)
		}
	}
}

func TestValidateDescription(t *testing.T) {
	long := strings.Repeat("a", 25)
	tooLong := strings.Repeat("b", DescriptionMax+1)

	if errs := ValidateDescription(long, ""); len(errs) != 0 {
		t.Fatalf("one valid slot should pass, got %v", errs)
	}
	if errs := ValidateDescription("", long); len(errs) != 0 {
		t.Fatalf("one valid EN slot should pass, got %v", errs)
	}
	if errs := ValidateDescription(long, long); len(errs) != 0 {
		t.Fatalf("both valid should pass, got %v", errs)
	}
	if errs := ValidateDescription("", ""); len(errs) != 2 {
		t.Fatalf("both empty should fail on both fields, got %v", errs)
	}
	if errs := ValidateDescription("short", "tiny"); len(errs) != 2 {
		t.Fatalf("both short should fail, got %v", errs)
	}
	if errs := ValidateDescription(long, "short"); errs["description_en"] == "" || len(errs) != 1 {
		t.Fatalf("non-empty short slot must fail on its own, got %v", errs)
	}
	if errs := ValidateDescription(tooLong, ""); errs["description_es"] == "" {
		t.Fatalf("over-long slot must fail, got %v", errs)
	}
	// trimming applies; 20 accented runes are 20 characters
	if errs := ValidateDescription("   "+strings.Repeat("é", 20)+"   ", ""); len(errs) != 0 {
		t.Fatalf("20 runes after trim should pass, got %v", errs)
	}
}

func TestValidateName(t *testing.T) {
	if ValidateName("Test Group") != "" {
		t.Fatalf("valid name rejected")
	}
	for _, bad := range []string{"", "   ", "!!!", "¿¡?"} {
		if ValidateName(bad) == "" {
			t.Fatalf("ValidateName(%q) should fail", bad)
		}
	}
}

func TestValidateCategories(t *testing.T) {
	got, msg := ValidateCategories([]string{"tecnología", "Movies and Series", "Tecnologia"})
	if msg != "" {
		t.Fatalf("unexpected message %q", msg)
	}
	if len(got) != 2 || got[0] != "Tecnología" || got[1] != "Películas y Series" {
		t.Fatalf("canonical tags = %v", got)
	}
	if _, msg := ValidateCategories(nil); msg == "" {
		t.Fatalf("empty selection should fail")
	}
	if _, msg := ValidateCategories([]string{"Hot", "NSFW", "Xxx", "Packs"}); msg == "" {
		t.Fatalf("four tags should fail")
	}
	if _, msg := ValidateCategories([]string{"Knitting"}); msg == "" {
		t.Fatalf("unknown tag should fail")
	}
}

func TestValidateEmail(t *testing.T) {
	if errs := ValidateEmail("a@b.co", "a@b.co"); len(errs) != 0 {
		t.Fatalf("valid email rejected: %v", errs)
	}
	if errs := ValidateEmail("nope", "nope"); errs["email"] == "" {
		t.Fatalf("bad shape should fail")
	}
	if errs := ValidateEmail("a@b.co", "c@d.co"); errs["email_repeat"] == "" {
		t.Fatalf("mismatch should fail")
	}
}

func TestCatalogHelpers(t *testing.T) {
	if n, ok := ParseNetwork(" Telegram "); !ok || n != NetworkTelegram {
		t.Fatalf("ParseNetwork = %q, %v", n, ok)
	}
	if _, ok := ParseNetwork("myspace"); ok {
		t.Fatalf("unknown network accepted")
	}
	if NetworkClashRoyale.Kind() != KindClan || NetworkWhatsApp.Kind() != KindGroup {
		t.Fatalf("Kind mapping wrong")
	}
	if !ValidCountry("MX") || ValidCountry("zz") {
		t.Fatalf("ValidCountry mismatch")
	}
	if c, ok := MigrateCategory("football"); !ok || c != "Fútbol" {
		t.Fatalf("MigrateCategory(football) = %q, %v", c, ok)
	}
	if !ValidContentFlag(ContentYes) || ValidContentFlag("maybe") {
		t.Fatalf("ValidContentFlag mismatch")
	}
}

func TestPublicPathAndURL(t *testing.T) {
	cases := []struct {
		n    Network
		want string
	}{
		{NetworkTelegram, "/comunidades/grupos-de-telegram/test-group"},
		{NetworkWhatsApp, "/comunidades/grupos-de-whatsapp/test-group"},
		{NetworkClashRoyale, "/clanes/clanes-de-clash-royale/test-group"},
		{NetworkClashOfClans, "/clanes/clanes-de-clash-of-clans/test-group"},
	}
	for _, tc := range cases {
		if got := PublicPath(tc.n, "test-group"); got != tc.want {
			t.Fatalf("PublicPath(%s) = %q, want %q", tc.n, got, tc.want)
		}
	}
	if got := PublicURL("joingroups.pro", "", "/x"); got != "https://www.joingroups.pro/x" {
		t.Fatalf("PublicURL without city = %q", got)
	}
	if got := PublicURL("joingroups.pro", " MX ", "/x"); got != "https://mx.joingroups.pro/x" {
		t.Fatalf("PublicURL with city = %q", got)
	}
}
