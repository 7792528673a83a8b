package application

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/EXON826/iglive-tgms-worker/internal/domain"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	ucport "github.com/EXON826/iglive-tgms-worker/internal/domain/ports/usecase"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/logging"
	"github.com/EXON826/iglive-tgms-worker/internal/usecase"
)

var _ ucport.JobDispatcher = (*JobDispatcher)(nil)

// JobDispatcher routes each job type to the usecase that handles it. Any of
// the usecases may be nil; jobs that need a missing one fail permanently.
type JobDispatcher struct {
	JoinUC   usecase.JoinRequestUseCase
	GroupUC  usecase.GroupUseCase
	NoticeUC usecase.LiveNoticeUseCase

	log *zerolog.Logger
}

func NewJobDispatcher(
	joinUC usecase.JoinRequestUseCase,
	groupUC usecase.GroupUseCase,
	noticeUC usecase.LiveNoticeUseCase,
	logger *zerolog.Logger,
) *JobDispatcher {
	return &JobDispatcher{JoinUC: joinUC, GroupUC: groupUC, NoticeUC: noticeUC, log: logger}
}

func (d *JobDispatcher) Dispatch(ctx context.Context, job *model.Job, payload model.JobPayload) error {
	log := logging.With(ctx, d.log)

	switch p := payload.(type) {
	case *model.JoinRequestPayload:
		return d.joinRequest(ctx, p)
	case *model.RegisterGroupPayload:
		return d.registerGroup(ctx, p)
	case *model.SendToGroupsPayload:
		if d.NoticeUC == nil {
			return unavailable("live notice")
		}
		_, err := d.NoticeUC.Publish(ctx, p)
		return err
	case *model.MaintenancePayload:
		switch p.Kind {
		case model.JobTypeUpdateMemberCounts:
			if d.GroupUC == nil {
				return unavailable("group")
			}
			n, err := d.GroupUC.RefreshMemberCounts(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("updated", n).Msg("member counts refreshed")
			return nil
		case model.JobTypeKickInactiveMembers, model.JobTypeProcessUpdate:
			log.Info().Str("job_type", string(p.Kind)).Msg("job type has no handler yet, completing")
			return nil
		}
	}
	return fmt.Errorf("%w: %q for job %d", domain.ErrUnknownJobType, job.Type, job.ID)
}

func (d *JobDispatcher) joinRequest(ctx context.Context, p *model.JoinRequestPayload) error {
	if d.JoinUC == nil {
		return unavailable("join request")
	}
	r := p.ChatJoinRequest
	req := usecase.JoinRequest{ChatID: r.Chat.ID, ChatTitle: r.Chat.Title, User: teleUser(&r.From)}

	if d.GroupUC != nil {
		inviter := req.User
		if err := d.GroupUC.EnsureManaged(ctx, req.ChatID, req.ChatTitle, &inviter); err != nil {
			logging.With(logging.WithGroupID(ctx, req.ChatID), d.log).Error().Err(err).Msg("auto-register group before join handling")
		}
	}

	_, err := d.JoinUC.Handle(ctx, req)
	return err
}

func (d *JobDispatcher) registerGroup(ctx context.Context, p *model.RegisterGroupPayload) error {
	if d.GroupUC == nil {
		return unavailable("group")
	}
	m := p.MyChatMember
	reg := usecase.GroupRegistration{
		ChatID:    m.Chat.ID,
		Title:     m.Chat.Title,
		BotStatus: m.NewChatMember.Status,
	}
	if m.From.ID != 0 {
		admin := teleUser(&m.From)
		reg.Admin = &admin
	}
	_, err := d.GroupUC.Register(ctx, reg)
	return err
}

func teleUser(u *tgbotapi.User) model.TeleUser {
	return model.TeleUser{ID: u.ID, Username: u.UserName, FirstName: u.FirstName, LastName: u.LastName}
}

func unavailable(name string) error {
	return fmt.Errorf("%w: %s usecase not available", domain.ErrNonRetryable, name)
}
