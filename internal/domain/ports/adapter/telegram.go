// File: internal/domain/ports/adapter/telegram.go
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const ParseModeMarkdownV2 = tgbotapi.ModeMarkdownV2

// EscapeMarkdownV2 escapes text for parse mode MarkdownV2.
func EscapeMarkdownV2(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

type InlineButton struct {
	Text string
	URL  string
}

// OutboundMessage is a photo-or-text send. When PhotoURL is set the text is
// used as caption.
type OutboundMessage struct {
	ChatID    int64
	Text      string
	PhotoURL  string
	ParseMode string
	Button    *InlineButton
}

type BotIdentity struct {
	ID       int64
	Username string
}

// PlatformClient is the request/response contract with the messaging platform.
// Implementations report every failure, transport errors included, as *PlatformError.
type PlatformClient interface {
	Send(ctx context.Context, msg OutboundMessage) (messageID int, err error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
	GetChatMemberCount(ctx context.Context, chatID int64) (int, error)
	GetChatMemberStatus(ctx context.Context, chatID, userID int64) (string, error)
	GetSelf(ctx context.Context) (BotIdentity, error)
}

// PlatformError is the uniform failure shape of a platform call. Code is the
// platform error code, zero for transport failures.
type PlatformError struct {
	Method      string
	Code        int
	Description string
}

func (e *PlatformError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("%s: %s", e.Method, e.Description)
	}
	return fmt.Sprintf("%s: %d %s", e.Method, e.Code, e.Description)
}

// Permanent reports the forbidden/kicked class: the bot was removed from the
// chat and retrying will not help.
func (e *PlatformError) Permanent() bool {
	if e.Code == 403 {
		return true
	}
	d := strings.ToLower(e.Description)
	return strings.Contains(d, "forbidden") || strings.Contains(d, "kicked")
}

// IsPermanent reports whether err carries a permanent PlatformError.
func IsPermanent(err error) bool {
	var pe *PlatformError
	return errors.As(err, &pe) && pe.Permanent()
}
