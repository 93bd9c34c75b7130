package telegram

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-sms-relay/internal/application"
	"telegram-sms-relay/internal/config"
	"telegram-sms-relay/internal/domain"
	"telegram-sms-relay/internal/domain/ports/adapter"
	"telegram-sms-relay/internal/infra/logging"
	"telegram-sms-relay/internal/infra/metrics"
	red "telegram-sms-relay/internal/infra/redis"
	"telegram-sms-relay/internal/infra/worker"
)

var (
	_ adapter.TelegramBotAdapter = (*RealBotAdapter)(nil)
	_ adapter.MembershipChecker  = (*RealBotAdapter)(nil)
	_ adapter.AdminNotifier      = (*RealBotAdapter)(nil)
)

// RealBotAdapter polls Telegram with tgbotapi and delegates to BotFacade.
// Updates are dispatched onto a worker pool so one slow relay call does
// not stall the polling loop.
type RealBotAdapter struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.BotConfig
	facade      *application.BotFacade
	rateLimiter *red.RateLimiter
	pool        *worker.Pool

	log           *zerolog.Logger
	entropy       *ulid.MonotonicEntropy
	cancelPolling context.CancelFunc
}

func NewRealBotAdapter(
	cfg *config.BotConfig,
	facade *application.BotFacade,
	rateLimiter *red.RateLimiter,
	logger *zerolog.Logger,
) (*RealBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	return &RealBotAdapter{
		bot:         bot,
		cfg:         cfg,
		facade:      facade,
		rateLimiter: rateLimiter,
		pool:        worker.NewPool(cfg.Workers, logger),
		log:         logger,
		entropy:     ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

func (r *RealBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	r.pool.Start(ctx)
	defer r.pool.Stop()

	r.log.Info().Str("bot", r.bot.Self.UserName).Msg("polling started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up := <-updates:
			update := up
			if err := r.pool.Submit(updateIdentity(update), func(ctx context.Context) error {
				return r.handleUpdate(ctx, update)
			}); err != nil {
				r.log.Warn().Err(err).Msg("update dropped")
			}
		}
	}
}

func (r *RealBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// ---- adapter ports ----

func (r *RealBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	msg := tgbotapi.NewMessage(tgID, text)
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealBotAdapter) SendButtons(ctx context.Context, tgID int64, text string, rows [][]adapter.InlineButton) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := tgbotapi.NewMessage(tgID, text)
	msg.ReplyMarkup = buildMarkup(rows)
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealBotAdapter) EditMessage(ctx context.Context, tgID int64, messageID int, text string, rows [][]adapter.InlineButton) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(tgID, messageID, text, buildMarkup(rows))
	_, err := r.bot.Send(edit)
	return err
}

func (r *RealBotAdapter) SendDocument(ctx context.Context, tgID int64, name string, payload []byte) error {
	doc := tgbotapi.NewDocument(tgID, tgbotapi.FileBytes{Name: name, Bytes: payload})
	_, err := r.bot.Send(doc)
	return err
}

// MemberStatus implements the membership check against the required channel.
func (r *RealBotAdapter) MemberStatus(ctx context.Context, channel string, userID int64) (string, error) {
	member, err := r.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return "", err
	}
	return member.Status, nil
}

// NotifyAdmins fans an alert out to every configured admin identity.
// Delivery failures are logged and otherwise ignored.
func (r *RealBotAdapter) NotifyAdmins(ctx context.Context, text string) {
	for _, id := range r.cfg.AdminIDs {
		if err := r.SendMessage(ctx, id, "🔔 "+text); err != nil {
			r.log.Warn().Err(err).Int64("admin", id).Msg("admin notify failed")
		}
	}
}

// ---- update handling ----

// updateIdentity keys pool dispatch by the originating user, so a message
// and a callback from the same person never run concurrently and arrive
// in order. Updates without a user fall back to their update ID.
func updateIdentity(up tgbotapi.Update) int64 {
	if up.CallbackQuery != nil && up.CallbackQuery.From != nil {
		return up.CallbackQuery.From.ID
	}
	if up.Message != nil && up.Message.From != nil {
		return up.Message.From.ID
	}
	return int64(up.UpdateID)
}

func (r *RealBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	ctx = logging.WithTraceID(ctx, ulid.MustNew(ulid.Timestamp(time.Now()), r.entropy).String())

	if update.CallbackQuery != nil {
		metrics.IncUpdate("callback")
		return r.handleQuery(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}
	metrics.IncUpdate("message")

	tgID := update.Message.From.ID
	ctx = logging.WithTgID(ctx, tgID)
	log := logging.With(ctx, r.log)

	command := "message"
	if update.Message.IsCommand() {
		command = "/" + update.Message.Command()
	}
	if r.rateLimiter != nil {
		allowed, err := r.rateLimiter.Allow(ctx, red.ThrottleKey(tgID, command), 20, time.Minute)
		if err != nil {
			log.Warn().Err(err).Msg("rate limit check failed")
		} else if !allowed {
			return r.SendMessage(ctx, tgID, "Rate limit exceeded. Please try again later.")
		}
	}

	switch command {
	case "/start":
		msgs, err := r.facade.HandleStart(ctx, tgID, update.Message.CommandArguments())
		if err != nil {
			log.Error().Err(err).Msg("start failed")
			return r.SendMessage(ctx, tgID, "Something went wrong. Please try again.")
		}
		return r.sendAll(ctx, tgID, msgs)

	case "/send":
		text, err := r.facade.HandleDirectSend(ctx, tgID, update.Message.CommandArguments())
		if err != nil {
			log.Error().Err(err).Msg("direct send failed")
			return r.SendMessage(ctx, tgID, "Something went wrong. Please try again.")
		}
		return r.SendMessage(ctx, tgID, text)

	case "/history":
		return r.sendHistoryPage(ctx, tgID, 0, 0)

	case "/referral":
		return r.SendMessage(ctx, tgID, r.facade.HandleReferralLink(tgID))

	case "/profile":
		text, err := r.facade.HandleProfile(ctx, tgID)
		if err != nil {
			log.Error().Err(err).Msg("profile failed")
			return r.SendMessage(ctx, tgID, "Something went wrong. Please try again.")
		}
		return r.SendMessage(ctx, tgID, text)

	case "/help":
		return r.SendMessage(ctx, tgID, helpText)

	case "/admin", "/stats", "/grant", "/setlimit", "/usersms", "/backup":
		return r.handleAdminCommand(ctx, tgID, update.Message.Text)

	case "message":
		msgs, err := r.facade.HandleText(ctx, tgID, update.Message.Text)
		if err != nil {
			log.Error().Err(err).Msg("text handling failed")
			return r.SendMessage(ctx, tgID, "Something went wrong. Please try again.")
		}
		return r.sendAll(ctx, tgID, msgs)

	default:
		return r.SendMessage(ctx, tgID, "Unknown command. "+helpText)
	}
}

func (r *RealBotAdapter) handleAdminCommand(ctx context.Context, tgID int64, text string) error {
	command := strings.Fields(text)[0]
	if command == "/admin" {
		// Panel gets buttons instead of the plain text reply.
		msg, _, err := r.facade.HandleAdminCommand(ctx, tgID, text)
		if errors.Is(err, domain.ErrUnauthorized) {
			return r.SendMessage(ctx, tgID, "Unknown command. "+helpText)
		}
		if err != nil {
			return err
		}
		return r.SendButtons(ctx, tgID, msg, adminPanelButtons())
	}

	msg, document, err := r.facade.HandleAdminCommand(ctx, tgID, text)
	if errors.Is(err, domain.ErrUnauthorized) {
		return r.SendMessage(ctx, tgID, "Unknown command. "+helpText)
	}
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Str("command", command).Msg("admin command failed")
		return r.SendMessage(ctx, tgID, "Something went wrong. Please try again.")
	}
	if document != nil {
		name := application.BackupFileName(time.Now())
		if err := r.SendDocument(ctx, tgID, name, document); err != nil {
			return err
		}
	}
	return r.SendMessage(ctx, tgID, msg)
}

func (r *RealBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query.From == nil {
		return errors.New("invalid callback query")
	}
	defer func() { _, _ = r.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	tgID := query.From.ID
	ctx = logging.WithTgID(ctx, tgID)
	data := strings.TrimSpace(query.Data)

	if r.rateLimiter != nil {
		if allowed, err := r.rateLimiter.Allow(ctx, red.ThrottleKey(tgID, "cb"), 30, time.Minute); err == nil && !allowed {
			return nil
		}
	}

	messageID := 0
	if query.Message != nil {
		messageID = query.Message.MessageID
	}

	switch {
	case strings.HasPrefix(data, "history_"):
		page, err := strconv.Atoi(strings.TrimPrefix(data, "history_"))
		if err != nil {
			return nil
		}
		return r.sendHistoryPage(ctx, tgID, page, messageID)

	case data == "refresh_history":
		return r.sendHistoryPage(ctx, tgID, 0, messageID)

	case data == "show_stats":
		text, err := r.facade.HandleStats(ctx, tgID)
		if errors.Is(err, domain.ErrUnauthorized) {
			return nil
		}
		if err != nil {
			return err
		}
		return r.SendMessage(ctx, tgID, text)

	case data == "admin_grant":
		return r.sendPendingPrompt(ctx, tgID, "grant_bonus")

	case data == "admin_userlog":
		return r.sendPendingPrompt(ctx, tgID, "user_log")

	default:
		logging.With(ctx, r.log).Debug().Str("data", data).Msg("unknown callback")
		return nil
	}
}

func (r *RealBotAdapter) sendPendingPrompt(ctx context.Context, tgID int64, action string) error {
	prompt, err := r.facade.SetAdminPending(ctx, tgID, action)
	if errors.Is(err, domain.ErrUnauthorized) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.SendMessage(ctx, tgID, prompt)
}

// sendHistoryPage renders one page of the dispatch log with paging buttons.
// A non-zero messageID edits the existing message instead of sending a new one.
func (r *RealBotAdapter) sendHistoryPage(ctx context.Context, tgID int64, page, messageID int) error {
	text, hp, err := r.facade.HandleHistory(ctx, tgID, page)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("history failed")
		return r.SendMessage(ctx, tgID, "Something went wrong. Please try again.")
	}

	var nav []adapter.InlineButton
	if hp.Page > 0 {
		nav = append(nav, adapter.InlineButton{Text: "◀️ Prev", Data: fmt.Sprintf("history_%d", hp.Page-1)})
	}
	if hp.Page < hp.TotalPages-1 {
		nav = append(nav, adapter.InlineButton{Text: "Next ▶️", Data: fmt.Sprintf("history_%d", hp.Page+1)})
	}
	rows := [][]adapter.InlineButton{}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []adapter.InlineButton{{Text: "🔄 Refresh", Data: "refresh_history"}})

	if messageID != 0 {
		return r.EditMessage(ctx, tgID, messageID, text, rows)
	}
	return r.SendButtons(ctx, tgID, text, rows)
}

func (r *RealBotAdapter) sendAll(ctx context.Context, tgID int64, msgs []string) error {
	for _, m := range msgs {
		if err := r.SendMessage(ctx, tgID, m); err != nil {
			return err
		}
	}
	return nil
}

func adminPanelButtons() [][]adapter.InlineButton {
	return [][]adapter.InlineButton{
		{{Text: "📊 Stats", Data: "show_stats"}},
		{{Text: "🎁 Grant bonus", Data: "admin_grant"}},
		{{Text: "📜 User log", Data: "admin_userlog"}},
	}
}

func buildMarkup(rows [][]adapter.InlineButton) tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kb := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				kb = append(kb, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				kb = append(kb, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				kb = append(kb, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, kb)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...)
}

const helpText = "Commands:\n" +
	"/start - begin sending an SMS\n" +
	"/send <number> <text> - one-shot send\n" +
	"/history - your sent SMS\n" +
	"/referral - your invite link\n" +
	"/profile - your quota standing"
