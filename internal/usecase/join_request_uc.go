package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/EXON826/iglive-tgms-worker/internal/domain"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/adapter"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/logging"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/metrics"
)

// JoinRequest is a user asking to join a chat.
type JoinRequest struct {
	ChatID    int64
	ChatTitle string
	User      model.TeleUser
}

// JoinRequestUseCase admits each user into at most one managed group.
type JoinRequestUseCase interface {
	Handle(ctx context.Context, req JoinRequest) (model.JoinRequestStatus, error)
}

type joinRequestUC struct {
	groups   repository.ManagedGroupRepository
	requests repository.JoinRequestRepository
	users    repository.TeleUserRepository
	platform adapter.PlatformClient
	log      *zerolog.Logger
}

func NewJoinRequestUseCase(
	groups repository.ManagedGroupRepository,
	requests repository.JoinRequestRepository,
	users repository.TeleUserRepository,
	platform adapter.PlatformClient,
	logger *zerolog.Logger,
) JoinRequestUseCase {
	return &joinRequestUC{groups: groups, requests: requests, users: users, platform: platform, log: logger}
}

// Handle returns the final status of the request. Store failures are returned
// as is so the job is retried; a rejected approval is wrapped in
// domain.ErrNonRetryable.
func (uc *joinRequestUC) Handle(ctx context.Context, req JoinRequest) (model.JoinRequestStatus, error) {
	log := logging.With(logging.WithGroupID(ctx, req.ChatID), uc.log).With().Int64("user_id", req.User.ID).Logger()

	g, err := uc.groups.FindByID(ctx, repository.NoTX, req.ChatID)
	if errors.Is(err, domain.ErrNotFound) {
		return model.JoinRequestPending, fmt.Errorf("join request for chat %d: %w", req.ChatID, domain.ErrGroupNotManaged)
	}
	if err != nil {
		return model.JoinRequestPending, fmt.Errorf("load group %d: %w", req.ChatID, err)
	}
	if !g.IsActive {
		return model.JoinRequestPending, fmt.Errorf("join request for chat %d: %w", req.ChatID, domain.ErrGroupInactive)
	}

	member, err := uc.users.IsInManagedGroup(ctx, repository.NoTX, req.User.ID)
	if err != nil {
		return model.JoinRequestPending, fmt.Errorf("check membership of user %d: %w", req.User.ID, err)
	}

	if err := uc.requests.Insert(ctx, repository.NoTX, req.User.ID, req.ChatID); err != nil {
		return model.JoinRequestPending, err
	}

	if member {
		uc.setStatus(ctx, &log, req, model.JoinRequestRejectedAlreadyMember)
		log.Info().Msg("join request rejected, user already in a managed group")
		return model.JoinRequestRejectedAlreadyMember, nil
	}

	if err := uc.platform.ApproveJoinRequest(ctx, req.ChatID, req.User.ID); err != nil {
		uc.setStatus(ctx, &log, req, model.JoinRequestFailed)
		log.Warn().Err(err).Msg("join request approval failed")
		return model.JoinRequestFailed, fmt.Errorf("%w: approve user %d in chat %d: %v", domain.ErrNonRetryable, req.User.ID, req.ChatID, err)
	}

	// The approval already happened, so a failed bookkeeping write is logged
	// rather than retried.
	user := req.User
	if err := uc.users.SetGroup(ctx, repository.NoTX, &user, req.ChatID); err != nil {
		log.Error().Err(err).Msg("record group membership")
	}
	uc.setStatus(ctx, &log, req, model.JoinRequestApproved)
	log.Info().Msg("join request approved")
	return model.JoinRequestApproved, nil
}

// setStatus moves the pending row. A row that already carries the status
// (a redelivered job) or a missing pending row is not an error.
func (uc *joinRequestUC) setStatus(ctx context.Context, log *zerolog.Logger, req JoinRequest, status model.JoinRequestStatus) {
	metrics.IncJoinRequest(string(status))
	err := uc.requests.UpdateStatus(ctx, repository.NoTX, req.User.ID, req.ChatID, status)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrNotFound):
		log.Debug().Err(err).Str("status", string(status)).Msg("join request status already recorded")
	default:
		log.Error().Err(err).Str("status", string(status)).Msg("update join request status")
	}
}
