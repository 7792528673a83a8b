//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/EXON826/iglive-tgms-worker/internal/domain"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
)

func TestManagedGroupRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewManagedGroupRepo(testPool)

	t.Run("should list active groups ordered by id", func(t *testing.T) {
		cleanup(t)
		seedGroup(t, -3, 0)
		seedGroup(t, -1, 0)
		seedGroup(t, -2, 0)
		if err := repo.Deactivate(ctx, nil, -2, "test"); err != nil {
			t.Fatal(err)
		}

		groups, err := repo.ListActive(ctx, nil)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(groups) != 2 || groups[0].GroupID != -3 || groups[1].GroupID != -1 {
			t.Errorf("unexpected active groups %+v", groups)
		}
	})

	t.Run("should count failures and reset them", func(t *testing.T) {
		cleanup(t)
		seedGroup(t, -10, 6)

		n, err := repo.IncrementFailures(ctx, nil, -10)
		if err != nil || n != 7 {
			t.Fatalf("expected 7, got %d (err %v)", n, err)
		}
		if err := repo.ResetFailures(ctx, nil, -10); err != nil {
			t.Fatal(err)
		}
		g, err := repo.FindByID(ctx, nil, -10)
		if err != nil {
			t.Fatal(err)
		}
		if g.FailureCount != 0 {
			t.Errorf("expected reset counter, got %d", g.FailureCount)
		}
	})

	t.Run("upsert should reactivate a deactivated group", func(t *testing.T) {
		cleanup(t)
		seedGroup(t, -20, 3)
		if err := repo.Deactivate(ctx, nil, -20, "Bot kicked"); err != nil {
			t.Fatal(err)
		}
		g, _ := repo.FindByID(ctx, nil, -20)
		if g.IsActive || g.DeactivationReason != "Bot kicked" {
			t.Fatalf("expected deactivated group with reason, got %+v", g)
		}

		admin := int64(77)
		if err := repo.Upsert(ctx, nil, &model.ManagedGroup{GroupID: -20, AdminUserID: &admin, FinalMessageAllowed: true}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		g, _ = repo.FindByID(ctx, nil, -20)
		if !g.IsActive || g.FailureCount != 0 || g.Title != "seeded" {
			t.Errorf("expected reactivated group keeping its title, got %+v", g)
		}
		if g.AdminUserID == nil || *g.AdminUserID != 77 {
			t.Errorf("expected admin to be set, got %v", g.AdminUserID)
		}
	})

	t.Run("should report unknown groups", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.FindByID(ctx, nil, -999); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Deactivate(ctx, nil, -999, "x"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
