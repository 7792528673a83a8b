package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/adapter"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/logging"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/metrics"
)

const (
	DeactivationReasonKicked = "Bot kicked"

	debugTagPrefix = "DBG:"
)

// BroadcastRequest is one message fanned out to every active group. With a
// Recipient set, each group's notification slot debounces and replaces the
// previous notice for that recipient.
type BroadcastRequest struct {
	Text      string
	PhotoURL  string
	ParseMode string
	Button    *adapter.InlineButton
	Recipient string
}

// BroadcastResult counts deliveries. Total is the number of active groups
// considered; Errors holds the send failure per group.
type BroadcastResult struct {
	Sent   int
	Total  int
	Errors map[int64]error
}

type BroadcastUseCase interface {
	Broadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error)
}

type BroadcastOptions struct {
	// InterGroupDelay is slept after each send attempt unless it was the last group.
	InterGroupDelay  time.Duration
	FailureThreshold int

	// Sleep defaults to a context-aware timer; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

type broadcastUC struct {
	groups   repository.ManagedGroupRepository
	slots    SlotManager
	platform adapter.PlatformClient
	limiter  *rate.Limiter
	opts     BroadcastOptions
	log      *zerolog.Logger
}

// NewBroadcastUseCase wires the engine. limiter bounds the rate of platform
// calls across all groups; a nil limiter means unlimited.
func NewBroadcastUseCase(
	groups repository.ManagedGroupRepository,
	slots SlotManager,
	platform adapter.PlatformClient,
	limiter *rate.Limiter,
	opts BroadcastOptions,
	logger *zerolog.Logger,
) BroadcastUseCase {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = model.DefaultFailureThreshold
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	return &broadcastUC{
		groups:   groups,
		slots:    slots,
		platform: platform,
		limiter:  limiter,
		opts:     opts,
		log:      logger,
	}
}

func (uc *broadcastUC) Broadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error) {
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "BroadcastUseCase.Broadcast")()

	groups, err := uc.groups.ListActive(ctx, repository.NoTX)
	if err != nil {
		return nil, fmt.Errorf("list active groups: %w", err)
	}

	res := &BroadcastResult{Total: len(groups), Errors: make(map[int64]error)}
	log.Info().Int("groups", len(groups)).Str("recipient", req.Recipient).Msg("broadcast started")

	for i, g := range groups {
		if !g.CanReceiveBroadcast() {
			metrics.IncBroadcastSend("skipped_disabled")
			continue
		}
		if !uc.sendOne(logging.WithGroupID(ctx, g.GroupID), g, req, res) {
			continue
		}
		if i < len(groups)-1 && uc.opts.InterGroupDelay > 0 {
			if err := uc.opts.Sleep(ctx, uc.opts.InterGroupDelay); err != nil {
				return res, err
			}
		}
	}

	log.Info().Int("sent", res.Sent).Int("total", res.Total).Int("failed", len(res.Errors)).Msg("broadcast finished")
	return res, nil
}

// sendOne delivers to a single group and reports whether a send was attempted.
func (uc *broadcastUC) sendOne(ctx context.Context, g *model.ManagedGroup, req BroadcastRequest, res *BroadcastResult) bool {
	log := logging.With(ctx, uc.log)
	tag := newDebugTag()

	if req.Recipient != "" {
		claim, err := uc.slots.Claim(ctx, g.GroupID, req.Recipient)
		if err != nil {
			log.Error().Err(err).Msg("claim notification slot")
			res.Errors[g.GroupID] = err
			return false
		}
		if !claim.Claimed {
			metrics.IncBroadcastSend("skipped_slot")
			return false
		}
		if claim.HasPrevious() {
			if err := uc.limiter.Wait(ctx); err != nil {
				res.Errors[g.GroupID] = err
				return false
			}
			if err := uc.platform.DeleteMessage(ctx, g.GroupID, claim.PreviousMessageID); err != nil {
				log.Warn().Err(err).Int("message_id", claim.PreviousMessageID).Msg("delete previous notice")
			}
		}
	}

	if err := uc.limiter.Wait(ctx); err != nil {
		res.Errors[g.GroupID] = err
		return false
	}
	msgID, err := uc.platform.Send(ctx, adapter.OutboundMessage{
		ChatID:    g.GroupID,
		Text:      withDebugTag(req.Text, tag),
		PhotoURL:  req.PhotoURL,
		ParseMode: req.ParseMode,
		Button:    req.Button,
	})
	if err != nil {
		metrics.IncBroadcastSend("failed")
		res.Errors[g.GroupID] = err
		log.Warn().Err(err).Str("debug_tag", tag).Msg("broadcast send failed")
		uc.recordFailure(ctx, g, err)
		return true
	}

	metrics.IncBroadcastSend("sent")
	res.Sent++
	log.Debug().Int("message_id", msgID).Str("debug_tag", tag).Msg("broadcast sent")

	if req.Recipient != "" {
		if err := uc.slots.Record(ctx, g.GroupID, req.Recipient, msgID); err != nil {
			log.Error().Err(err).Int("message_id", msgID).Msg("record notification slot")
		}
	}
	if g.FailureCount > 0 {
		if err := uc.groups.ResetFailures(ctx, repository.NoTX, g.GroupID); err != nil {
			log.Error().Err(err).Msg("reset failure count")
		}
	}
	return true
}

// recordFailure applies the failure policy: a permanent error deactivates the
// group at once, anything else counts toward the threshold.
func (uc *broadcastUC) recordFailure(ctx context.Context, g *model.ManagedGroup, sendErr error) {
	log := logging.With(ctx, uc.log)

	if adapter.IsPermanent(sendErr) {
		if err := uc.groups.Deactivate(ctx, repository.NoTX, g.GroupID, DeactivationReasonKicked); err != nil {
			log.Error().Err(err).Msg("deactivate kicked group")
			return
		}
		metrics.IncGroupDeactivated("forbidden")
		log.Warn().Err(sendErr).Msg("group deactivated, bot removed")
		return
	}

	n, err := uc.groups.IncrementFailures(ctx, repository.NoTX, g.GroupID)
	if err != nil {
		log.Error().Err(err).Msg("increment failure count")
		return
	}
	if n < uc.opts.FailureThreshold {
		return
	}
	reason := fmt.Sprintf("%d consecutive send failures: %v", n, sendErr)
	if err := uc.groups.Deactivate(ctx, repository.NoTX, g.GroupID, reason); err != nil {
		log.Error().Err(err).Msg("deactivate failing group")
		return
	}
	metrics.IncGroupDeactivated("failure_threshold")
	log.Warn().Int("failure_count", n).Msg("group deactivated after repeated failures")
}

func newDebugTag() string {
	return debugTagPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func withDebugTag(text, tag string) string {
	if text == "" {
		return tag
	}
	return text + "\n\n" + tag
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// errorsOf joins per-group failures for logging.
func errorsOf(res *BroadcastResult) error {
	if res == nil || len(res.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(res.Errors))
	for gid, err := range res.Errors {
		errs = append(errs, fmt.Errorf("group %d: %w", gid, err))
	}
	return errors.Join(errs...)
}
