package telegram

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/adapter"
)

var _ adapter.PlatformClient = (*NoopClient)(nil)

// NoopClient logs calls instead of hitting the platform (dry-run mode). Sends
// succeed with increasing message ids and the bot always reports itself as admin.
type NoopClient struct {
	log    zerolog.Logger
	nextID int64
}

func NewNoopClient(logger *zerolog.Logger) *NoopClient {
	return &NoopClient{log: logger.With().Str("component", "telegram_noop").Logger()}
}

func (n *NoopClient) Send(_ context.Context, msg adapter.OutboundMessage) (int, error) {
	id := int(atomic.AddInt64(&n.nextID, 1))
	n.log.Info().Int64("chat_id", msg.ChatID).Bool("photo", msg.PhotoURL != "").Int("message_id", id).Msg("dry-run send")
	return id, nil
}

func (n *NoopClient) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	n.log.Info().Int64("chat_id", chatID).Int("message_id", messageID).Msg("dry-run delete")
	return nil
}

func (n *NoopClient) ApproveJoinRequest(_ context.Context, chatID, userID int64) error {
	n.log.Info().Int64("chat_id", chatID).Int64("user_id", userID).Msg("dry-run approve")
	return nil
}

func (n *NoopClient) GetChatMemberCount(context.Context, int64) (int, error) { return 0, nil }

func (n *NoopClient) GetChatMemberStatus(context.Context, int64, int64) (string, error) {
	return model.MemberStatusAdministrator, nil
}

func (n *NoopClient) GetSelf(context.Context) (adapter.BotIdentity, error) {
	return adapter.BotIdentity{ID: 1, Username: "dry_run_bot"}, nil
}
