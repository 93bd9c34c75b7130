package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telegram-sms-relay/internal/admincmd"
	"telegram-sms-relay/internal/domain"
	"telegram-sms-relay/internal/domain/model"
	"telegram-sms-relay/internal/domain/ports/adapter"
	"telegram-sms-relay/internal/usecase"
)

// BotFacade composes usecases into high-level bot commands.
// Keep the facade methods returning strings so the Telegram adapter just
// forwards them to the chat.
type BotFacade struct {
	SendUC     usecase.SendUseCase
	FlowUC     usecase.ConversationUseCase
	ReferralUC usecase.ReferralUseCase
	HistoryUC  usecase.HistoryUseCase
	StatsUC    usecase.StatsUseCase
	AdminUC    usecase.AdminUseCase
	Gate       *usecase.MembershipGate

	botUsername string
	limits      usecase.Limits

	notifier adapter.AdminNotifier
}

func NewBotFacade(
	sendUC usecase.SendUseCase,
	flowUC usecase.ConversationUseCase,
	referralUC usecase.ReferralUseCase,
	historyUC usecase.HistoryUseCase,
	statsUC usecase.StatsUseCase,
	adminUC usecase.AdminUseCase,
	gate *usecase.MembershipGate,
	botUsername string,
	limits usecase.Limits,
) *BotFacade {
	return &BotFacade{
		SendUC:      sendUC,
		FlowUC:      flowUC,
		ReferralUC:  referralUC,
		HistoryUC:   historyUC,
		StatsUC:     statsUC,
		AdminUC:     adminUC,
		Gate:        gate,
		botUsername: botUsername,
		limits:      limits,
	}
}

// SetNotifier wires the admin alert sink. The facade tolerates a nil
// notifier; alerts are then dropped.
func (b *BotFacade) SetNotifier(n adapter.AdminNotifier) { b.notifier = n }

func (b *BotFacade) alert(ctx context.Context, text string) {
	if b.notifier != nil && text != "" {
		b.notifier.NotifyAdmins(ctx, text)
	}
}

// HandleStart credits a referral when the deep-link payload names a
// referrer, then enters the send flow. The returned slice is the ordered
// messages to deliver to the chat.
func (b *BotFacade) HandleStart(ctx context.Context, tgID int64, payload string) ([]string, error) {
	var out []string

	if referrerID := parseReferralPayload(payload); referrerID > 0 && referrerID != tgID {
		credited, err := b.ReferralUC.CreditOnFirstStart(ctx, tgID, referrerID)
		if err != nil {
			return nil, fmt.Errorf("credit referral: %w", err)
		}
		if credited {
			b.alert(ctx, fmt.Sprintf("New referral: user %d joined via user %d's link.", tgID, referrerID))
		}
	}

	prompt, err := b.FlowUC.Begin(ctx, tgID)
	if err != nil {
		return nil, fmt.Errorf("begin flow: %w", err)
	}
	out = append(out, "👋 Welcome! This bot relays SMS messages for you.", prompt)
	return out, nil
}

// HandleText routes a non-command message. An admin with a pending panel
// action gets that action completed first; everyone else advances the
// conversational send flow.
func (b *BotFacade) HandleText(ctx context.Context, tgID int64, text string) ([]string, error) {
	if b.AdminUC.IsAdmin(tgID) {
		action, err := b.AdminUC.TakePendingAction(ctx, tgID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if action != "" {
			msg, err := b.completePendingAction(ctx, action, text)
			if err != nil {
				return nil, err
			}
			return []string{msg}, nil
		}
	}

	reply, err := b.FlowUC.Advance(ctx, tgID, text)
	if err != nil {
		return nil, err
	}
	b.alert(ctx, reply.Alert)
	return reply.Messages, nil
}

// HandleDirectSend is the one-shot path: "/send <number> <text>" skips the
// conversation and runs the pipeline directly.
func (b *BotFacade) HandleDirectSend(ctx context.Context, tgID int64, args string) (string, error) {
	if !b.Gate.Authorized(ctx, tgID) {
		return joinChannelMessage(b.Gate.Channel()), nil
	}

	fields := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(fields) < 2 || !model.ValidDestinationNumber(fields[0]) || strings.TrimSpace(fields[1]) == "" {
		return "Usage: /send <number> <text>", nil
	}
	destination, message := fields[0], strings.TrimSpace(fields[1])

	err := b.SendUC.Send(ctx, tgID, destination, message)
	switch {
	case err == nil:
		return "✅ SMS sent!", nil
	case errors.Is(err, domain.ErrPerNumberLimit):
		return fmt.Sprintf("⚠️ You already sent %d SMS to this number today.", b.limits.PerNumberCap), nil
	case errors.Is(err, domain.ErrDailyLimit):
		return "🚫 Your SMS limit for today is used up.", nil
	case errors.Is(err, domain.ErrSendInProgress):
		return "⏳ Your previous send is still being processed. Try again in a moment.", nil
	case errors.Is(err, domain.ErrMalformedInput):
		return "Usage: /send <number> <text>", nil
	case errors.Is(err, domain.ErrRelayFailure):
		b.alert(ctx, fmt.Sprintf("Relay failure for user %d: %v", tgID, err))
		return "❌ Could not send the SMS. Please try again later.", nil
	default:
		return "", err
	}
}

// HandleProfile shows the user's quota standing for today.
func (b *BotFacade) HandleProfile(ctx context.Context, tgID int64) (string, error) {
	u, err := b.SendUC.Snapshot(ctx, tgID)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}
	sb := strings.Builder{}
	sb.WriteString("👤 Your profile\n")
	sb.WriteString(fmt.Sprintf("Sent today: %d\n", u.DailySent))
	sb.WriteString(fmt.Sprintf("Remaining today: %d\n", u.RemainingToday(b.limits.DailyCap)))
	sb.WriteString(fmt.Sprintf("Bonus allowance: %d\n", u.BonusAllowance))
	sb.WriteString(fmt.Sprintf("Referrals: %d", u.Referrals))
	return sb.String(), nil
}

// HandleReferralLink returns the user's personal deep link.
func (b *BotFacade) HandleReferralLink(tgID int64) string {
	link := b.ReferralUC.Link(b.botUsername, tgID)
	return "🎁 Invite friends and earn extra daily SMS!\nYour link:\n" + link
}

// HandleHistory formats one page of the user's dispatch log.
func (b *BotFacade) HandleHistory(ctx context.Context, tgID int64, page int) (string, *usecase.HistoryPage, error) {
	hp, err := b.HistoryUC.Page(ctx, tgID, page)
	if err != nil {
		return "", nil, fmt.Errorf("load history: %w", err)
	}
	if hp.TotalCount == 0 {
		return "You haven't sent any SMS yet.", hp, nil
	}
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("📜 Your SMS log (page %d/%d)\n\n", hp.Page+1, hp.TotalPages))
	for _, e := range hp.Entries {
		sb.WriteString(fmt.Sprintf("%s → %s\n%s\n\n", e.SentAt.Format("2006-01-02"), e.Destination, truncate(e.Message, 60)))
	}
	return strings.TrimRight(sb.String(), "\n"), hp, nil
}

// HandleStats formats the aggregate counters for an admin.
func (b *BotFacade) HandleStats(ctx context.Context, tgID int64) (string, error) {
	if !b.AdminUC.IsAdmin(tgID) {
		return "", domain.ErrUnauthorized
	}
	st, err := b.StatsUC.Totals(ctx)
	if err != nil {
		return "", fmt.Errorf("load stats: %w", err)
	}
	return fmt.Sprintf("📊 Stats\nUsers: %d\nSMS total: %d\nSMS today: %d",
		st.Users, st.TotalDispatches, st.TodayDispatches), nil
}

// HandleAdminCommand parses and runs a slash-verb admin command. The
// document return is non-nil only for /backup.
func (b *BotFacade) HandleAdminCommand(ctx context.Context, tgID int64, text string) (msg string, document []byte, err error) {
	if !b.AdminUC.IsAdmin(tgID) {
		return "", nil, domain.ErrUnauthorized
	}
	cmd, err := admincmd.Parse(text)
	if err != nil {
		var pe *admincmd.ParseError
		if errors.As(err, &pe) {
			return pe.Error(), nil, nil
		}
		return "", nil, err
	}
	if cmd == nil {
		return "", nil, domain.ErrMalformedInput
	}
	return b.runAdminCommand(ctx, tgID, cmd)
}

func (b *BotFacade) runAdminCommand(ctx context.Context, tgID int64, cmd admincmd.Command) (string, []byte, error) {
	switch c := cmd.(type) {
	case admincmd.Panel:
		return adminPanelText, nil, nil
	case admincmd.Stats:
		msg, err := b.HandleStats(ctx, tgID)
		return msg, nil, err
	case admincmd.Grant:
		if err := b.AdminUC.GrantBonus(ctx, c.UserID, c.Delta); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Sprintf("User %d has no record yet.", c.UserID), nil, nil
			}
			if errors.Is(err, domain.ErrInvalidArgument) {
				return "Delta must be a non-zero integer.", nil, nil
			}
			return "", nil, err
		}
		return fmt.Sprintf("✅ Granted %+d bonus SMS to user %d.", c.Delta, c.UserID), nil, nil
	case admincmd.UserLog:
		entries, err := b.AdminUC.UserLog(ctx, c.UserID, 10)
		if err != nil {
			return "", nil, err
		}
		if len(entries) == 0 {
			return fmt.Sprintf("User %d has no dispatches.", c.UserID), nil, nil
		}
		sb := strings.Builder{}
		sb.WriteString(fmt.Sprintf("Last %d dispatches of user %d:\n\n", len(entries), c.UserID))
		for _, e := range entries {
			sb.WriteString(fmt.Sprintf("%s → %s\n%s\n\n", e.SentAt.Format("2006-01-02"), e.Destination, truncate(e.Message, 60)))
		}
		return strings.TrimRight(sb.String(), "\n"), nil, nil
	case admincmd.Backup:
		payload, err := b.AdminUC.Backup(ctx)
		if err != nil {
			return "", nil, err
		}
		return "📦 Backup attached.", payload, nil
	default:
		return "", nil, domain.ErrMalformedInput
	}
}

// SetAdminPending stores a panel-button verb; the admin's next message
// carries the arguments.
func (b *BotFacade) SetAdminPending(ctx context.Context, tgID int64, action string) (string, error) {
	if !b.AdminUC.IsAdmin(tgID) {
		return "", domain.ErrUnauthorized
	}
	if err := b.AdminUC.SetPendingAction(ctx, tgID, action); err != nil {
		return "", err
	}
	switch action {
	case "grant_bonus":
		return "Send: <user_id> <delta>", nil
	case "user_log":
		return "Send: <user_id>", nil
	}
	return "", domain.ErrInvalidArgument
}

func (b *BotFacade) completePendingAction(ctx context.Context, action, text string) (string, error) {
	cmd, err := admincmd.ParseArgs(action, strings.TrimSpace(text))
	if err != nil {
		var pe *admincmd.ParseError
		if errors.As(err, &pe) {
			return pe.Error(), nil
		}
		return "", err
	}
	msg, _, err := b.runAdminCommand(ctx, 0, cmd)
	return msg, err
}

const adminPanelText = "🔧 Admin panel\n\n" +
	"/stats  aggregate counters\n" +
	"/grant <user_id> <delta>  adjust a bonus allowance\n" +
	"/usersms <user_id>  a user's recent dispatches\n" +
	"/backup  export everything as JSON"

// BackupFileName names the exported artifact with the export date.
func BackupFileName(t time.Time) string {
	return fmt.Sprintf("sms-relay-backup-%s.json", t.Format("2006-01-02"))
}

func joinChannelMessage(channel string) string {
	return "❗️ You need to join our channel first:\n👉 " + channel
}

// parseReferralPayload reads the numeric referrer identity from a /start
// deep-link payload. Anything non-numeric yields zero.
func parseReferralPayload(payload string) int64 {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return 0
	}
	var id int64
	for _, r := range payload {
		if r < '0' || r > '9' {
			return 0
		}
		id = id*10 + int64(r-'0')
		if id < 0 {
			return 0
		}
	}
	return id
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
