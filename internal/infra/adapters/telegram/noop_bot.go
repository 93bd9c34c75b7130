package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-sms-relay/internal/domain/ports/adapter"
)

var (
	_ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)
	_ adapter.MembershipChecker  = (*NoopBotAdapter)(nil)
	_ adapter.AdminNotifier      = (*NoopBotAdapter)(nil)
)

// NoopBotAdapter implements the bot ports for local development. It logs
// outgoing traffic instead of talking to Telegram and reports every user
// as a channel member.
type NoopBotAdapter struct {
	log *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	return &NoopBotAdapter{log: logger}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	b.log.Info().Int64("to", tgID).Str("text", text).Msg("noop send")
	return nil
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, tgID int64, text string, rows [][]adapter.InlineButton) error {
	b.log.Info().Int64("to", tgID).Str("text", text).Interface("buttons", rows).Msg("noop send buttons")
	return nil
}

func (b *NoopBotAdapter) EditMessage(ctx context.Context, tgID int64, messageID int, text string, rows [][]adapter.InlineButton) error {
	b.log.Info().Int64("to", tgID).Int("message_id", messageID).Str("text", text).Msg("noop edit")
	return nil
}

func (b *NoopBotAdapter) SendDocument(ctx context.Context, tgID int64, name string, payload []byte) error {
	b.log.Info().Int64("to", tgID).Str("name", name).Int("bytes", len(payload)).Msg("noop document")
	return nil
}

func (b *NoopBotAdapter) MemberStatus(ctx context.Context, channel string, userID int64) (string, error) {
	return "member", nil
}

func (b *NoopBotAdapter) NotifyAdmins(ctx context.Context, text string) {
	b.log.Info().Str("alert", text).Msg("noop admin alert")
}
