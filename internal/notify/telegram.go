// Package notify sends operator alerts (broken links, abuse reports) to a
// Telegram chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

// ErrDisabled is returned by a notifier that has no bot token or chat.
var ErrDisabled = errors.New("alerts disabled")

// ReportKind is the reason a visitor flagged a listing.
type ReportKind string

const (
	ReportBrokenLink ReportKind = "broken_link"
	ReportAbuse      ReportKind = "report"
)

// Label is the operator-facing wording.
func (k ReportKind) Label() string {
	switch k {
	case ReportBrokenLink:
		return "Enlace roto"
	case ReportAbuse:
		return "Reporte"
	}
	return string(k)
}

// Valid reports whether k is a known kind.
func (k ReportKind) Valid() bool {
	return k == ReportBrokenLink || k == ReportAbuse
}

// Alert is one flagged listing.
type Alert struct {
	Kind ReportKind
	Name string // listing name
	URL  string // public page of the listing
}

// Text renders the alert as a MarkdownV2 message. Listing names are user
// input and routinely contain '_' or '*', so every interpolated value is
// escaped.
func (a Alert) Text() string {
	return fmt.Sprintf("🚨 *Nuevo: %s*\nGrupo: %s\nURL: %s",
		escapeMarkdown(a.Kind.Label()), escapeMarkdown(a.Name), escapeMarkdown(a.URL))
}

// escapeMarkdown also escapes the backslash, which tgbot.EscapeMarkdown
// leaves alone.
func escapeMarkdown(s string) string {
	return tgbot.EscapeMarkdown(strings.ReplaceAll(s, `\`, `\\`))
}

// Notifier delivers alerts.
type Notifier interface {
	Enabled() bool
	Notify(ctx context.Context, a Alert) error
}

// Telegram posts alerts to a single chat through the Bot API.
type Telegram struct {
	bot    *tgbot.Bot
	chatID int64
}

// NewTelegram builds the notifier. An empty token or zero chat id yields a
// disabled notifier, not an error. Extra options are passed to the bot client
// (tests point it at a fake server).
func NewTelegram(token string, chatID int64, opts ...tgbot.Option) (Notifier, error) {
	if token == "" || chatID == 0 {
		log.Info().Msg("telegram alerts disabled")
		return Disabled{}, nil
	}
	opts = append([]tgbot.Option{tgbot.WithSkipGetMe()}, opts...)
	b, err := tgbot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Enabled() bool { return true }

// Notify sends a. Delivery errors are returned to the caller.
func (t *Telegram) Notify(ctx context.Context, a Alert) error {
	_, err := t.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    t.chatID,
		Text:      a.Text(),
		ParseMode: models.ParseModeMarkdown,
	})
	if err != nil {
		log.Error().Err(err).Str("kind", string(a.Kind)).Msg("send telegram alert")
		return fmt.Errorf("send telegram alert: %w", err)
	}
	log.Info().Str("kind", string(a.Kind)).Str("url", a.URL).Msg("telegram alert sent")
	return nil
}

// Disabled drops every alert.
type Disabled struct{}

func (Disabled) Enabled() bool                       { return false }
func (Disabled) Notify(context.Context, Alert) error { return ErrDisabled }
