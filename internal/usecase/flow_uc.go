package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-sms-relay/internal/domain"
	"telegram-sms-relay/internal/domain/model"
	"telegram-sms-relay/internal/domain/ports/repository"
	"telegram-sms-relay/internal/infra/logging"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// FlowReply is what a conversation step sends back to the user. Alert, when
// set, is forwarded to the admin identities (relay failure details).
type FlowReply struct {
	Messages []string
	Alert    string
}

// Compile-time check
var _ ConversationUseCase = (*flowUC)(nil)

// ConversationUseCase drives the multi-turn send flow:
// idle -> awaiting_number -> awaiting_message -> (send) -> awaiting_number.
// State is persisted on the user row so restarts keep mid-flow users.
type ConversationUseCase interface {
	// Begin enters number entry (the /start trigger) and returns the prompt.
	Begin(ctx context.Context, userID int64) (string, error)
	// Advance interprets a free-text event against the current phase.
	Advance(ctx context.Context, userID int64, text string) (*FlowReply, error)
}

type flowUC struct {
	quotas repository.QuotaRepository
	tm     repository.TransactionManager
	gate   *MembershipGate
	send   SendUseCase
	limits Limits

	log *zerolog.Logger
	now func() time.Time
}

func NewConversationUseCase(
	quotas repository.QuotaRepository,
	tm repository.TransactionManager,
	gate *MembershipGate,
	send SendUseCase,
	limits Limits,
	logger *zerolog.Logger,
) *flowUC {
	if limits.PerNumberCap <= 0 {
		limits.PerNumberCap = 4
	}
	return &flowUC{quotas: quotas, tm: tm, gate: gate, send: send, limits: limits, log: logger, now: time.Now}
}

const (
	msgPromptNumber  = "📲 Send the destination number (ex: 016XXXXXXX):"
	msgPromptMessage = "✏️ Now send the SMS text:"
	msgPromptAgain   = "📲 Send a new number:"
	msgInvalidNumber = "⚠️ That doesn't look like a phone number. Digits only, at least 10 of them (ex: 016XXXXXXX):"
	msgSent          = "✅ SMS sent!"
	msgRelayFailed   = "❌ Could not send the SMS. Please try again later."
	msgSendBusy      = "⏳ Your previous send is still being processed. Try again in a moment."
	msgEmptyMessage  = "⚠️ The message text can't be empty. Send the SMS text:"
)

func msgJoinChannel(channel string) string {
	return "❗️ You need to join our channel first:\n👉 " + channel
}

func msgPerNumberLimit(cap int) string {
	return fmt.Sprintf("⚠️ You already sent %d SMS to this number today.", cap)
}

const msgDailyLimit = "🚫 Your SMS limit for today is used up."

func (f *flowUC) Begin(ctx context.Context, userID int64) (string, error) {
	defer logging.TraceDuration(f.log, "FlowUC.Begin")()

	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := f.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		u, err := f.quotas.Find(ctx, tx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			u, err = model.NewUser(userID, f.now())
		}
		if err != nil {
			return err
		}
		u.Rollover(f.now())
		u.BeginSendFlow()
		return f.quotas.Save(ctx, tx, u)
	})
	if err != nil {
		return "", fmt.Errorf("begin flow: %w", err)
	}
	return msgPromptNumber, nil
}

func (f *flowUC) Advance(ctx context.Context, userID int64, text string) (*FlowReply, error) {
	defer logging.TraceDuration(f.log, "FlowUC.Advance")()

	// The whole conversational send flow is quota-consuming, so every step
	// of it sits behind the membership gate. Denial mutates nothing.
	if !f.gate.Authorized(ctx, userID) {
		return &FlowReply{Messages: []string{msgJoinChannel(f.gate.Channel())}}, nil
	}

	u, err := f.quotas.Find(ctx, repository.NoTX, userID)
	if errors.Is(err, domain.ErrNotFound) {
		prompt, err := f.Begin(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &FlowReply{Messages: []string{prompt}}, nil
	}
	if err != nil {
		return nil, err
	}

	switch u.Phase {
	case model.PhaseIdle:
		// Any text while idle acts as the begin-send trigger.
		u.BeginSendFlow()
		if err := f.quotas.Save(ctx, repository.NoTX, u); err != nil {
			return nil, err
		}
		return &FlowReply{Messages: []string{msgPromptNumber}}, nil

	case model.PhaseAwaitingNumber:
		if !model.ValidDestinationNumber(text) {
			// Re-prompt without a state change.
			return &FlowReply{Messages: []string{msgInvalidNumber}}, nil
		}
		u.CaptureNumber(text)
		if err := f.quotas.Save(ctx, repository.NoTX, u); err != nil {
			return nil, err
		}
		return &FlowReply{Messages: []string{msgPromptMessage}}, nil

	case model.PhaseAwaitingMessage:
		return f.dispatch(ctx, u, text)

	default:
		// Unknown stored phase: recover by restarting the flow.
		u.BeginSendFlow()
		if err := f.quotas.Save(ctx, repository.NoTX, u); err != nil {
			return nil, err
		}
		return &FlowReply{Messages: []string{msgPromptNumber}}, nil
	}
}

// dispatch runs the completed (number, text) pair through the send pipeline
// and re-enters number entry regardless of the outcome.
func (f *flowUC) dispatch(ctx context.Context, u *model.User, text string) (*FlowReply, error) {
	destination := u.PendingNumber

	reply := &FlowReply{}
	err := f.send.Send(ctx, u.UserID, destination, text)
	switch {
	case err == nil:
		reply.Messages = append(reply.Messages, msgSent)
	case errors.Is(err, domain.ErrMalformedInput):
		// Blank body. The number was validated at capture, so stay in
		// message entry and let the user retry the text.
		return &FlowReply{Messages: []string{msgEmptyMessage}}, nil
	case errors.Is(err, domain.ErrPerNumberLimit):
		reply.Messages = append(reply.Messages, msgPerNumberLimit(f.limits.PerNumberCap))
	case errors.Is(err, domain.ErrDailyLimit):
		reply.Messages = append(reply.Messages, msgDailyLimit)
	case errors.Is(err, domain.ErrRelayFailure):
		reply.Messages = append(reply.Messages, msgRelayFailed)
		reply.Alert = fmt.Sprintf("Relay failure for user %d: %v", u.UserID, err)
	case errors.Is(err, domain.ErrSendInProgress):
		reply.Messages = append(reply.Messages, msgSendBusy)
	default:
		// Genuine persistence/connectivity fault: abort this request and
		// leave the stored state untouched.
		return nil, err
	}

	// Unconditional reset to number entry; a failed send does not drop the
	// user back to idle. Reload first so the pipeline's counter update on
	// this row is not overwritten with stale values.
	fresh, err := f.quotas.Find(ctx, repository.NoTX, u.UserID)
	if err != nil {
		return nil, err
	}
	fresh.CompleteAttempt()
	if err := f.quotas.Save(ctx, repository.NoTX, fresh); err != nil {
		return nil, err
	}
	reply.Messages = append(reply.Messages, msgPromptAgain)
	return reply, nil
}
