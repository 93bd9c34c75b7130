//go:build !integration

package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"telegram-sms-relay/internal/domain/model"
)

func TestHistoryPage(t *testing.T) {
	ctx := context.Background()
	const user = int64(7)

	seed := func(n int) *historyUC {
		dispatches := newMemDispatchRepo()
		for i := 0; i < n; i++ {
			e, _ := model.NewDispatchEntry(user, "0161234567", fmt.Sprintf("msg %d", i+1), time.Now())
			_ = dispatches.Append(ctx, nil, e)
		}
		return NewHistoryUseCase(dispatches, newLogger())
	}

	t.Run("empty log yields an empty page", func(t *testing.T) {
		hp, err := seed(0).Page(ctx, user, 0)
		if err != nil {
			t.Fatal(err)
		}
		if hp.TotalCount != 0 || hp.TotalPages != 0 || len(hp.Entries) != 0 {
			t.Fatalf("page: %+v", hp)
		}
	})

	t.Run("pages are most-recent-first", func(t *testing.T) {
		uc := seed(12)

		hp, err := uc.Page(ctx, user, 0)
		if err != nil {
			t.Fatal(err)
		}
		if hp.TotalCount != 12 || hp.TotalPages != 3 || len(hp.Entries) != 5 {
			t.Fatalf("page: %+v", hp)
		}
		if hp.Entries[0].Message != "msg 12" {
			t.Fatalf("first entry: %q", hp.Entries[0].Message)
		}

		hp, err = uc.Page(ctx, user, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(hp.Entries) != 2 || hp.Entries[1].Message != "msg 1" {
			t.Fatalf("last page: %+v", hp)
		}
	})

	t.Run("out-of-range pages clamp", func(t *testing.T) {
		uc := seed(7)

		hp, _ := uc.Page(ctx, user, -3)
		if hp.Page != 0 {
			t.Fatalf("page: %d", hp.Page)
		}
		hp, _ = uc.Page(ctx, user, 99)
		if hp.Page != 1 || len(hp.Entries) != 2 {
			t.Fatalf("page: %+v", hp)
		}
	})
}
