package notify

import (
	"context"
	"fmt"
	"strings"

	"sportify/worker/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// BotAPI is the part of the Telegram client used for sending
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts match results to a Telegram chat
type TelegramSender struct {
	bot    BotAPI
	chatID int64
}

// NewTelegramSender connects to the Bot API with token
func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false

	log.Info().
		Str("bot", bot.Self.UserName).
		Int64("chat_id", chatID).
		Msg("Telegram notifier initialized")

	return NewTelegramSenderWithBot(bot, chatID), nil
}

// NewTelegramSenderWithBot wraps an existing bot client
func NewTelegramSenderWithBot(bot BotAPI, chatID int64) *TelegramSender {
	return &TelegramSender{bot: bot, chatID: chatID}
}

// Send posts the final score of match
func (s *TelegramSender) Send(ctx context.Context, match *models.MatchDetails) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(s.chatID, FormatResult(match))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send for match %d: %w", match.ID, err)
	}
	return nil
}

// FormatResult renders the announcement of a finished match
func FormatResult(m *models.MatchDetails) string {
	var b strings.Builder

	if m.TournamentName != "" {
		fmt.Fprintf(&b, "🏆 <b>%s</b>\n", escapeHTML(m.TournamentName))
	}
	fmt.Fprintf(&b, "%s <b>%d - %d</b> %s\n",
		escapeHTML(m.HomeTeamName), m.HomeGoals.Int32, m.AwayGoals.Int32, escapeHTML(m.AwayTeamName))
	fmt.Fprintf(&b, "Full time, %s UTC", m.Datetime.UTC().Format("02 Jan 15:04"))

	return b.String()
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
