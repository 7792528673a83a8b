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
)

const (
	DefaultJoinButtonCaption = "🚀 JOIN LIVE"

	liveBanner = "═══════════════════\n🚨 LIVE NOW! 🚨\n═══════════════════"
)

// LiveNoticeUseCase turns a "going live" notice into a broadcast: it picks the
// next watch link and image for the recipient and replaces the notice text
// with the banner.
type LiveNoticeUseCase interface {
	Publish(ctx context.Context, p *model.SendToGroupsPayload) (*BroadcastResult, error)
}

type liveNoticeUC struct {
	links         repository.RecipientLinkRepository
	broadcast     BroadcastUseCase
	buttonCaption string
	log           *zerolog.Logger
}

func NewLiveNoticeUseCase(
	links repository.RecipientLinkRepository,
	broadcast BroadcastUseCase,
	buttonCaption string,
	logger *zerolog.Logger,
) LiveNoticeUseCase {
	if buttonCaption == "" {
		buttonCaption = DefaultJoinButtonCaption
	}
	return &liveNoticeUC{links: links, broadcast: broadcast, buttonCaption: buttonCaption, log: logger}
}

func (uc *liveNoticeUC) Publish(ctx context.Context, p *model.SendToGroupsPayload) (*BroadcastResult, error) {
	log := logging.With(ctx, uc.log)
	recipient := p.Recipient()

	req, err := uc.prepare(ctx, p, recipient)
	if err != nil {
		return nil, err
	}

	res, err := uc.broadcast.Broadcast(ctx, req)
	if err != nil {
		return res, err
	}
	if res.Sent == 0 {
		return res, fmt.Errorf("%w: recipient %q, %d groups: %v", domain.ErrNothingDelivered, recipient, res.Total, errorsOf(res))
	}
	if len(res.Errors) > 0 {
		log.Warn().Err(errorsOf(res)).Int("sent", res.Sent).Msg("live notice partially delivered")
	}
	return res, nil
}

func (uc *liveNoticeUC) prepare(ctx context.Context, p *model.SendToGroupsPayload, recipient string) (BroadcastRequest, error) {
	log := logging.With(ctx, uc.log)

	text := p.Text
	if p.PhotoURL != "" && p.Caption != "" {
		text = p.Caption
	}
	req := BroadcastRequest{
		Text:      text,
		PhotoURL:  p.PhotoURL,
		ParseMode: adapter.ParseModeMarkdownV2,
		Recipient: recipient,
	}

	rec, err := uc.links.FindLatestByUsername(ctx, repository.NoTX, recipient)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn().Str("recipient", recipient).Msg("no link record, sending notice as is")
		req.Text = adapter.EscapeMarkdownV2(req.Text)
		return req, nil
	}
	if err != nil {
		return req, fmt.Errorf("find link record for %q: %w", recipient, err)
	}

	link, err := uc.pickLink(ctx, rec)
	if err != nil {
		return req, err
	}
	image, err := uc.pickImage(ctx, rec)
	if err != nil {
		return req, err
	}
	if image != "" {
		req.PhotoURL = image
	}

	req.Text = adapter.EscapeMarkdownV2(liveBanner)
	if link != "" {
		req.Button = &adapter.InlineButton{Text: uc.buttonCaption, URL: link}
	}
	return req, nil
}

func (uc *liveNoticeUC) pickLink(ctx context.Context, rec *model.RecipientLink) (string, error) {
	links := rec.Links()
	if len(links) == 0 {
		return rec.FallbackLink(), nil
	}
	idx, err := uc.links.AdvanceLinkIndex(ctx, repository.NoTX, rec.ID, len(links))
	if err != nil {
		return "", fmt.Errorf("advance link index: %w", err)
	}
	return links[model.RotationIndex(idx, len(links))], nil
}

func (uc *liveNoticeUC) pickImage(ctx context.Context, rec *model.RecipientLink) (string, error) {
	images := rec.Images()
	if len(images) == 0 {
		return "", nil
	}
	idx, err := uc.links.AdvanceImageIndex(ctx, repository.NoTX, rec.ID, len(images))
	if err != nil {
		return "", fmt.Errorf("advance image index: %w", err)
	}
	return images[model.RotationIndex(idx, len(images))], nil
}
