//go:build !integration

package application_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"telegram-sms-relay/internal/application"
	"telegram-sms-relay/internal/domain"
	"telegram-sms-relay/internal/domain/model"
	"telegram-sms-relay/internal/usecase"

	"github.com/rs/zerolog"
)

// ---- lightweight mocks for the facade's usecase surface ----

type mockSendUC struct {
	sendErr  error
	sent     []string // "userID dest message"
	snapshot *model.User
}

func (m *mockSendUC) Send(ctx context.Context, userID int64, destination, message string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, destination+" "+message)
	return nil
}

func (m *mockSendUC) Snapshot(ctx context.Context, userID int64) (*model.User, error) {
	if m.snapshot == nil {
		return nil, domain.ErrNotFound
	}
	cp := *m.snapshot
	return &cp, nil
}

type mockFlowUC struct {
	beginErr error
	reply    *usecase.FlowReply
	advanced []string
}

func (m *mockFlowUC) Begin(ctx context.Context, userID int64) (string, error) {
	if m.beginErr != nil {
		return "", m.beginErr
	}
	return "send the number", nil
}

func (m *mockFlowUC) Advance(ctx context.Context, userID int64, text string) (*usecase.FlowReply, error) {
	m.advanced = append(m.advanced, text)
	if m.reply != nil {
		return m.reply, nil
	}
	return &usecase.FlowReply{Messages: []string{"ok"}}, nil
}

type mockReferralUC struct {
	credited  bool
	creditErr error
	calls     [][2]int64
}

func (m *mockReferralUC) CreditOnFirstStart(ctx context.Context, refereeID, referrerID int64) (bool, error) {
	m.calls = append(m.calls, [2]int64{refereeID, referrerID})
	return m.credited, m.creditErr
}

func (m *mockReferralUC) Link(botUsername string, userID int64) string {
	return "https://t.me/" + botUsername + "?start=42"
}

type mockHistoryUC struct {
	page *usecase.HistoryPage
}

func (m *mockHistoryUC) Page(ctx context.Context, userID int64, page int) (*usecase.HistoryPage, error) {
	if m.page == nil {
		return &usecase.HistoryPage{}, nil
	}
	return m.page, nil
}

type mockStatsUC struct{ stats usecase.Stats }

func (m *mockStatsUC) Totals(ctx context.Context) (*usecase.Stats, error) {
	cp := m.stats
	return &cp, nil
}

type mockAdminUC struct {
	admins   map[int64]bool
	pending  map[int64]string
	grants   map[int64]int
	grantErr error
	entries  []*model.DispatchEntry
	payload  []byte
}

func (m *mockAdminUC) IsAdmin(userID int64) bool { return m.admins[userID] }

func (m *mockAdminUC) GrantBonus(ctx context.Context, target int64, delta int) error {
	if m.grantErr != nil {
		return m.grantErr
	}
	if m.grants == nil {
		m.grants = map[int64]int{}
	}
	m.grants[target] += delta
	return nil
}

func (m *mockAdminUC) UserLog(ctx context.Context, target int64, limit int) ([]*model.DispatchEntry, error) {
	return m.entries, nil
}

func (m *mockAdminUC) Backup(ctx context.Context) ([]byte, error) { return m.payload, nil }

func (m *mockAdminUC) SetPendingAction(ctx context.Context, adminID int64, action string) error {
	if m.pending == nil {
		m.pending = map[int64]string{}
	}
	m.pending[adminID] = action
	return nil
}

func (m *mockAdminUC) TakePendingAction(ctx context.Context, adminID int64) (string, error) {
	a := m.pending[adminID]
	delete(m.pending, adminID)
	return a, nil
}

type mockChecker struct{ status string }

func (m *mockChecker) MemberStatus(ctx context.Context, channel string, userID int64) (string, error) {
	return m.status, nil
}

type mockNotifier struct{ alerts []string }

func (m *mockNotifier) NotifyAdmins(ctx context.Context, text string) {
	m.alerts = append(m.alerts, text)
}

func newFacade(send *mockSendUC, flow *mockFlowUC, ref *mockReferralUC, admin *mockAdminUC, status string) *application.BotFacade {
	nop := zerolog.Nop()
	gate := usecase.NewMembershipGate(&mockChecker{status: status}, "@relaychannel", &nop)
	if admin == nil {
		admin = &mockAdminUC{}
	}
	return application.NewBotFacade(
		send, flow, ref,
		&mockHistoryUC{}, &mockStatsUC{stats: usecase.Stats{Users: 3, TotalDispatches: 7, TodayDispatches: 2}},
		admin, gate, "relay_bot",
		usecase.Limits{DailyCap: 10, PerNumberCap: 4},
	)
}

func TestHandleStart(t *testing.T) {
	ctx := context.Background()

	t.Run("credits referral from payload then begins flow", func(t *testing.T) {
		ref := &mockReferralUC{credited: true}
		f := newFacade(&mockSendUC{}, &mockFlowUC{}, ref, nil, "member")
		n := &mockNotifier{}
		f.SetNotifier(n)

		msgs, err := f.HandleStart(ctx, 200, "100")
		if err != nil {
			t.Fatal(err)
		}
		if len(ref.calls) != 1 || ref.calls[0] != [2]int64{200, 100} {
			t.Fatalf("referral calls: %v", ref.calls)
		}
		if len(msgs) != 2 || msgs[1] != "send the number" {
			t.Fatalf("messages: %v", msgs)
		}
		if len(n.alerts) != 1 {
			t.Fatalf("expected one admin alert, got %v", n.alerts)
		}
	})

	t.Run("self-referral payload is ignored", func(t *testing.T) {
		ref := &mockReferralUC{}
		f := newFacade(&mockSendUC{}, &mockFlowUC{}, ref, nil, "member")
		if _, err := f.HandleStart(ctx, 100, "100"); err != nil {
			t.Fatal(err)
		}
		if len(ref.calls) != 0 {
			t.Fatalf("expected no referral calls, got %v", ref.calls)
		}
	})

	t.Run("garbage payload is ignored", func(t *testing.T) {
		ref := &mockReferralUC{}
		f := newFacade(&mockSendUC{}, &mockFlowUC{}, ref, nil, "member")
		if _, err := f.HandleStart(ctx, 100, "join-us"); err != nil {
			t.Fatal(err)
		}
		if len(ref.calls) != 0 {
			t.Fatalf("expected no referral calls, got %v", ref.calls)
		}
	})
}

func TestHandleText(t *testing.T) {
	ctx := context.Background()

	t.Run("forwards to the flow and relays alerts", func(t *testing.T) {
		flow := &mockFlowUC{reply: &usecase.FlowReply{Messages: []string{"failed"}, Alert: "relay down"}}
		f := newFacade(&mockSendUC{}, flow, &mockReferralUC{}, nil, "member")
		n := &mockNotifier{}
		f.SetNotifier(n)

		msgs, err := f.HandleText(ctx, 7, "0161234567")
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) != 1 || msgs[0] != "failed" {
			t.Fatalf("messages: %v", msgs)
		}
		if len(n.alerts) != 1 || n.alerts[0] != "relay down" {
			t.Fatalf("alerts: %v", n.alerts)
		}
	})

	t.Run("admin pending action consumes the next message", func(t *testing.T) {
		admin := &mockAdminUC{admins: map[int64]bool{9: true}, pending: map[int64]string{9: "grant_bonus"}}
		flow := &mockFlowUC{}
		f := newFacade(&mockSendUC{}, flow, &mockReferralUC{}, admin, "member")

		msgs, err := f.HandleText(ctx, 9, "55 3")
		if err != nil {
			t.Fatal(err)
		}
		if admin.grants[55] != 3 {
			t.Fatalf("grants: %v", admin.grants)
		}
		if len(flow.advanced) != 0 {
			t.Fatalf("flow should not advance, got %v", flow.advanced)
		}
		if len(msgs) != 1 || !strings.Contains(msgs[0], "Granted") {
			t.Fatalf("messages: %v", msgs)
		}
	})
}

func TestHandleDirectSend(t *testing.T) {
	ctx := context.Background()

	t.Run("gated for non-members", func(t *testing.T) {
		send := &mockSendUC{}
		f := newFacade(send, &mockFlowUC{}, &mockReferralUC{}, nil, "left")
		msg, err := f.HandleDirectSend(ctx, 7, "0161234567 hello")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(msg, "@relaychannel") {
			t.Fatalf("expected join prompt, got %q", msg)
		}
		if len(send.sent) != 0 {
			t.Fatalf("pipeline must not run, got %v", send.sent)
		}
	})

	t.Run("sends and confirms", func(t *testing.T) {
		send := &mockSendUC{}
		f := newFacade(send, &mockFlowUC{}, &mockReferralUC{}, nil, "member")
		msg, err := f.HandleDirectSend(ctx, 7, "0161234567 hello there")
		if err != nil {
			t.Fatal(err)
		}
		if len(send.sent) != 1 || send.sent[0] != "0161234567 hello there" {
			t.Fatalf("sent: %v", send.sent)
		}
		if !strings.Contains(msg, "sent") {
			t.Fatalf("got %q", msg)
		}
	})

	t.Run("maps quota denials to user messages", func(t *testing.T) {
		for errSentinel, want := range map[error]string{
			domain.ErrPerNumberLimit: "this number",
			domain.ErrDailyLimit:     "limit for today",
		} {
			f := newFacade(&mockSendUC{sendErr: errSentinel}, &mockFlowUC{}, &mockReferralUC{}, nil, "member")
			msg, err := f.HandleDirectSend(ctx, 7, "0161234567 hi")
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(msg, want) {
				t.Fatalf("for %v got %q", errSentinel, msg)
			}
		}
	})

	t.Run("usage on malformed args", func(t *testing.T) {
		f := newFacade(&mockSendUC{}, &mockFlowUC{}, &mockReferralUC{}, nil, "member")
		for _, args := range []string{"", "0161234567", "abc hello", "016 hi"} {
			msg, err := f.HandleDirectSend(ctx, 7, args)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(msg, "Usage") {
				t.Fatalf("args %q: got %q", args, msg)
			}
		}
	})
}

func TestHandleProfile(t *testing.T) {
	send := &mockSendUC{snapshot: &model.User{
		UserID: 7, DailySent: 4, BonusAllowance: 3, Referrals: 1,
		LastResetDate: model.Day(time.Now()),
	}}
	f := newFacade(send, &mockFlowUC{}, &mockReferralUC{}, nil, "member")

	msg, err := f.HandleProfile(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Sent today: 4", "Remaining today: 9", "Bonus allowance: 3", "Referrals: 1"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing %q in\n%s", want, msg)
		}
	}
}

func TestHandleAdminCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-admins", func(t *testing.T) {
		f := newFacade(&mockSendUC{}, &mockFlowUC{}, &mockReferralUC{}, &mockAdminUC{}, "member")
		if _, _, err := f.HandleAdminCommand(ctx, 7, "/stats"); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("stats", func(t *testing.T) {
		admin := &mockAdminUC{admins: map[int64]bool{9: true}}
		f := newFacade(&mockSendUC{}, &mockFlowUC{}, &mockReferralUC{}, admin, "member")
		msg, doc, err := f.HandleAdminCommand(ctx, 9, "/stats")
		if err != nil {
			t.Fatal(err)
		}
		if doc != nil {
			t.Fatal("stats must not attach a document")
		}
		for _, want := range []string{"Users: 3", "SMS total: 7", "SMS today: 2"} {
			if !strings.Contains(msg, want) {
				t.Fatalf("missing %q in %q", want, msg)
			}
		}
	})

	t.Run("grant reports missing target", func(t *testing.T) {
		admin := &mockAdminUC{admins: map[int64]bool{9: true}, grantErr: domain.ErrNotFound}
		f := newFacade(&mockSendUC{}, &mockFlowUC{}, &mockReferralUC{}, admin, "member")
		msg, _, err := f.HandleAdminCommand(ctx, 9, "/grant 55 3")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(msg, "no record") {
			t.Fatalf("got %q", msg)
		}
	})

	t.Run("parse errors become usage replies", func(t *testing.T) {
		admin := &mockAdminUC{admins: map[int64]bool{9: true}}
		f := newFacade(&mockSendUC{}, &mockFlowUC{}, &mockReferralUC{}, admin, "member")
		msg, _, err := f.HandleAdminCommand(ctx, 9, "/grant oops")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(msg, "usage:") {
			t.Fatalf("got %q", msg)
		}
	})

	t.Run("backup attaches the artifact", func(t *testing.T) {
		admin := &mockAdminUC{admins: map[int64]bool{9: true}, payload: []byte(`{"users":[]}`)}
		f := newFacade(&mockSendUC{}, &mockFlowUC{}, &mockReferralUC{}, admin, "member")
		_, doc, err := f.HandleAdminCommand(ctx, 9, "/backup")
		if err != nil {
			t.Fatal(err)
		}
		if string(doc) != `{"users":[]}` {
			t.Fatalf("payload: %s", doc)
		}
	})
}
