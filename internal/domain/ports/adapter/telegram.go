package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, telegramID int64, text string) error
	SendButtons(ctx context.Context, telegramID int64, text string, rows [][]InlineButton) error
	EditMessage(ctx context.Context, telegramID int64, messageID int, text string, rows [][]InlineButton) error
	// SendDocument uploads a file (used by the backup export).
	SendDocument(ctx context.Context, telegramID int64, name string, payload []byte) error
}

// MembershipChecker queries the chat transport for a user's status in the
// required channel. The returned status is the raw transport value
// ("member", "administrator", "creator", "left", ...).
type MembershipChecker interface {
	MemberStatus(ctx context.Context, channel string, userID int64) (string, error)
}

// AdminNotifier forwards operational alerts (relay failures) to the
// configured admin identities.
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, text string)
}
