package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/EXON826/iglive-tgms-worker/internal/domain"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/adapter"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/logging"
)

// GroupRegistration is the bot's membership change in a chat.
type GroupRegistration struct {
	ChatID    int64
	Title     string
	BotStatus string
	Admin     *model.TeleUser
}

type GroupUseCase interface {
	// Register upserts the chat as a managed group when the bot is an admin.
	// It reports false, without error, when the bot is not.
	Register(ctx context.Context, reg GroupRegistration) (bool, error)
	// EnsureManaged registers an unknown chat if the bot turns out to be an
	// admin there. Known chats, active or not, are left untouched.
	EnsureManaged(ctx context.Context, chatID int64, title string, inviter *model.TeleUser) error
	// RefreshMemberCounts updates the member count of every active group and
	// returns how many were updated.
	RefreshMemberCounts(ctx context.Context) (int, error)
}

type GroupOptions struct {
	MemberCountDelay time.Duration
	Sleep            func(ctx context.Context, d time.Duration) error
}

type groupUC struct {
	groups   repository.ManagedGroupRepository
	users    repository.TeleUserRepository
	platform adapter.PlatformClient
	opts     GroupOptions
	log      *zerolog.Logger
}

func NewGroupUseCase(
	groups repository.ManagedGroupRepository,
	users repository.TeleUserRepository,
	platform adapter.PlatformClient,
	opts GroupOptions,
	logger *zerolog.Logger,
) GroupUseCase {
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	return &groupUC{groups: groups, users: users, platform: platform, opts: opts, log: logger}
}

func (uc *groupUC) Register(ctx context.Context, reg GroupRegistration) (bool, error) {
	log := logging.With(logging.WithGroupID(ctx, reg.ChatID), uc.log)

	if !model.IsAdminStatus(reg.BotStatus) {
		log.Info().Str("status", reg.BotStatus).Msg("group registration skipped, bot is not an admin")
		return false, nil
	}
	if reg.ChatID == 0 {
		return false, fmt.Errorf("%w: register group without chat id", domain.ErrInvalidArgument)
	}

	g := &model.ManagedGroup{
		GroupID:             reg.ChatID,
		Title:               reg.Title,
		Phase:               model.GroupPhaseGrowth,
		IsActive:            true,
		FinalMessageAllowed: true,
	}
	if reg.Admin != nil && reg.Admin.ID != 0 {
		if err := uc.users.EnsureExists(ctx, repository.NoTX, reg.Admin); err != nil {
			return false, err
		}
		adminID := reg.Admin.ID
		g.AdminUserID = &adminID
	}
	if err := uc.groups.Upsert(ctx, repository.NoTX, g); err != nil {
		return false, fmt.Errorf("upsert group %d: %w", reg.ChatID, err)
	}

	count, err := uc.platform.GetChatMemberCount(ctx, reg.ChatID)
	if err != nil {
		log.Warn().Err(err).Msg("member count unavailable after registration")
		return true, nil
	}
	if err := uc.groups.UpdateMemberCount(ctx, repository.NoTX, reg.ChatID, count); err != nil {
		log.Warn().Err(err).Msg("store member count")
	}
	log.Info().Str("title", reg.Title).Int("members", count).Msg("group registered")
	return true, nil
}

func (uc *groupUC) EnsureManaged(ctx context.Context, chatID int64, title string, inviter *model.TeleUser) error {
	_, err := uc.groups.FindByID(ctx, repository.NoTX, chatID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	self, err := uc.platform.GetSelf(ctx)
	if err != nil {
		return err
	}
	status, err := uc.platform.GetChatMemberStatus(ctx, chatID, self.ID)
	if err != nil {
		return err
	}
	if !model.IsAdminStatus(status) {
		return nil
	}

	logging.With(logging.WithGroupID(ctx, chatID), uc.log).Info().Msg("bot is admin, auto-registering group")
	_, err = uc.Register(ctx, GroupRegistration{ChatID: chatID, Title: title, BotStatus: status, Admin: inviter})
	return err
}

func (uc *groupUC) RefreshMemberCounts(ctx context.Context) (int, error) {
	log := logging.With(ctx, uc.log)

	groups, err := uc.groups.ListActive(ctx, repository.NoTX)
	if err != nil {
		return 0, fmt.Errorf("list active groups: %w", err)
	}
	log.Info().Int("groups", len(groups)).Msg("updating member counts")

	updated := 0
	for i, g := range groups {
		count, err := uc.platform.GetChatMemberCount(ctx, g.GroupID)
		if err == nil {
			err = uc.groups.UpdateMemberCount(ctx, repository.NoTX, g.GroupID, count)
		}
		if err != nil {
			log.Error().Err(err).Int64("group_id", g.GroupID).Msg("update member count")
		} else {
			updated++
		}
		if i < len(groups)-1 && uc.opts.MemberCountDelay > 0 {
			if err := uc.opts.Sleep(ctx, uc.opts.MemberCountDelay); err != nil {
				return updated, err
			}
		}
	}
	return updated, nil
}
