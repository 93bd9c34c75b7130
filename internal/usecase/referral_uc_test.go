//go:build !integration

package usecase

import (
	"context"
	"testing"
	"time"

	"telegram-sms-relay/internal/domain/model"
)

func TestCreditOnFirstStart(t *testing.T) {
	ctx := context.Background()

	newFixture := func() (*referralUC, *memQuotaRepo) {
		quotas := newMemQuotaRepo()
		referrer, _ := model.NewUser(100, time.Now())
		_ = quotas.Save(ctx, nil, referrer)
		uc := NewReferralUseCase(quotas, newMemReferralRepo(), &mockTxManager{}, 3, newLogger())
		return uc, quotas
	}

	t.Run("first start credits the referrer once", func(t *testing.T) {
		uc, quotas := newFixture()

		credited, err := uc.CreditOnFirstStart(ctx, 200, 100)
		if err != nil {
			t.Fatal(err)
		}
		if !credited {
			t.Fatal("expected credit")
		}
		ref, _ := quotas.Find(ctx, nil, 100)
		if ref.BonusAllowance != 3 || ref.Referrals != 1 {
			t.Fatalf("referrer: %+v", ref)
		}
		// the referee record exists now
		if _, err := quotas.Find(ctx, nil, 200); err != nil {
			t.Fatalf("referee missing: %v", err)
		}
	})

	t.Run("second start credits nothing", func(t *testing.T) {
		uc, quotas := newFixture()

		if _, err := uc.CreditOnFirstStart(ctx, 200, 100); err != nil {
			t.Fatal(err)
		}
		credited, err := uc.CreditOnFirstStart(ctx, 200, 100)
		if err != nil {
			t.Fatal(err)
		}
		if credited {
			t.Fatal("repeat start must not credit")
		}
		ref, _ := quotas.Find(ctx, nil, 100)
		if ref.BonusAllowance != 3 {
			t.Fatalf("allowance: %d", ref.BonusAllowance)
		}
	})

	t.Run("existing user via a new link credits nothing", func(t *testing.T) {
		uc, quotas := newFixture()
		old, _ := model.NewUser(300, time.Now())
		_ = quotas.Save(ctx, nil, old)

		credited, err := uc.CreditOnFirstStart(ctx, 300, 100)
		if err != nil {
			t.Fatal(err)
		}
		if credited {
			t.Fatal("existing referee must not credit")
		}
	})

	t.Run("unknown referrer reports no credit", func(t *testing.T) {
		uc, quotas := newFixture()

		credited, err := uc.CreditOnFirstStart(ctx, 400, 999)
		if err != nil {
			t.Fatal(err)
		}
		if credited {
			t.Fatal("a referrer without a record must not be reported as credited")
		}
		// the referee still gets a normal record
		if _, err := quotas.Find(ctx, nil, 400); err != nil {
			t.Fatalf("referee missing: %v", err)
		}
		// and no phantom referrer row appears
		if _, err := quotas.Find(ctx, nil, 999); err == nil {
			t.Fatal("crediting must not create the referrer")
		}
	})

	t.Run("self referral is ignored", func(t *testing.T) {
		uc, quotas := newFixture()
		credited, err := uc.CreditOnFirstStart(ctx, 100, 100)
		if err != nil {
			t.Fatal(err)
		}
		if credited {
			t.Fatal("self referral must not credit")
		}
		ref, _ := quotas.Find(ctx, nil, 100)
		if ref.BonusAllowance != 0 {
			t.Fatalf("allowance: %d", ref.BonusAllowance)
		}
	})
}

func TestLink(t *testing.T) {
	uc := NewReferralUseCase(newMemQuotaRepo(), newMemReferralRepo(), &mockTxManager{}, 3, newLogger())
	if got := uc.Link("relay_bot", 42); got != "https://t.me/relay_bot?start=42" {
		t.Fatalf("link: %q", got)
	}
}
