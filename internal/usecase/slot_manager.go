package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/metrics"
)

// SlotManager guards the one-message-per-recipient-per-group rule. A claim is
// the debounce lock, and the stored message id is what the next notice replaces.
type SlotManager interface {
	Claim(ctx context.Context, groupID int64, recipient string) (model.SlotClaim, error)
	Record(ctx context.Context, groupID int64, recipient string, messageID int) error
}

type slotManager struct {
	slots  repository.NotificationSlotRepository
	window time.Duration
	log    *zerolog.Logger
}

func NewSlotManager(slots repository.NotificationSlotRepository, window time.Duration, logger *zerolog.Logger) SlotManager {
	if window <= 0 {
		window = model.DefaultDebounceWindow
	}
	return &slotManager{slots: slots, window: window, log: logger}
}

func (m *slotManager) Claim(ctx context.Context, groupID int64, recipient string) (model.SlotClaim, error) {
	claim, err := m.slots.Claim(ctx, repository.NoTX, groupID, recipient, m.window)
	switch {
	case err != nil:
		metrics.IncSlotClaim("error")
		return model.SlotClaim{}, err
	case !claim.Claimed:
		metrics.IncSlotClaim("busy")
		m.log.Debug().Int64("group_id", groupID).Str("recipient", recipient).
			Dur("window", m.window).Msg("notification slot busy")
	default:
		metrics.IncSlotClaim("claimed")
	}
	return claim, nil
}

func (m *slotManager) Record(ctx context.Context, groupID int64, recipient string, messageID int) error {
	return m.slots.Save(ctx, repository.NoTX, groupID, recipient, messageID)
}
