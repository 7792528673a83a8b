package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/EXON826/iglive-tgms-worker/internal/config"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/adapter"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/metrics"
)

var _ adapter.PlatformClient = (*Client)(nil)

// Client implements adapter.PlatformClient on tgbotapi. Every failure is
// returned as *adapter.PlatformError.
type Client struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

// NewClient builds the bot API (one getMe round-trip) with a bounded HTTP timeout.
func NewClient(cfg *config.BotConfig, logger *zerolog.Logger) (*Client, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("bot token is required")
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, httpClient)
	if err != nil {
		return nil, wrapError("getMe", err)
	}
	return &Client{
		bot: bot,
		log: logger.With().Str("component", "telegram").Logger(),
	}, nil
}

func (c *Client) Send(ctx context.Context, msg adapter.OutboundMessage) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, wrapError("send", err)
	}

	var markup interface{}
	if msg.Button != nil && msg.Button.URL != "" {
		markup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(msg.Button.Text, msg.Button.URL)),
		)
	}

	var (
		chattable tgbotapi.Chattable
		method    string
	)
	if msg.PhotoURL != "" {
		p := tgbotapi.NewPhoto(msg.ChatID, tgbotapi.FileURL(msg.PhotoURL))
		p.Caption = msg.Text
		p.ParseMode = msg.ParseMode
		p.ReplyMarkup = markup
		chattable, method = p, "sendPhoto"
	} else {
		m := tgbotapi.NewMessage(msg.ChatID, msg.Text)
		m.ParseMode = msg.ParseMode
		m.DisableWebPagePreview = true
		m.ReplyMarkup = markup
		chattable, method = m, "sendMessage"
	}

	sent, err := c.bot.Send(chattable)
	if err != nil {
		return 0, c.fail(method, err)
	}
	metrics.IncPlatformCall(method, "ok")
	return sent.MessageID, nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return c.request(ctx, "deleteMessage", tgbotapi.NewDeleteMessage(chatID, messageID))
}

func (c *Client) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error {
	return c.request(ctx, "approveChatJoinRequest", tgbotapi.ApproveChatJoinRequestConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
		UserID:     userID,
	})
}

func (c *Client) GetChatMemberCount(ctx context.Context, chatID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, wrapError("getChatMemberCount", err)
	}
	n, err := c.bot.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return 0, c.fail("getChatMemberCount", err)
	}
	metrics.IncPlatformCall("getChatMemberCount", "ok")
	return n, nil
}

func (c *Client) GetChatMemberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrapError("getChatMember", err)
	}
	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return "", c.fail("getChatMember", err)
	}
	metrics.IncPlatformCall("getChatMember", "ok")
	return member.Status, nil
}

// GetSelf returns the identity resolved at construction time.
func (c *Client) GetSelf(_ context.Context) (adapter.BotIdentity, error) {
	return adapter.BotIdentity{ID: c.bot.Self.ID, Username: c.bot.Self.UserName}, nil
}

func (c *Client) request(ctx context.Context, method string, cfg tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return wrapError(method, err)
	}
	if _, err := c.bot.Request(cfg); err != nil {
		return c.fail(method, err)
	}
	metrics.IncPlatformCall(method, "ok")
	return nil
}

func (c *Client) fail(method string, err error) error {
	pe := wrapError(method, err)
	result := "error"
	if pe.Permanent() {
		result = "forbidden"
	}
	metrics.IncPlatformCall(method, result)
	c.log.Debug().Err(pe).Str("method", method).Msg("platform call failed")
	return pe
}

// wrapError folds tgbotapi and transport errors into the uniform shape.
func wrapError(method string, err error) *adapter.PlatformError {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &adapter.PlatformError{Method: method, Code: apiErr.Code, Description: apiErr.Message}
	}
	return &adapter.PlatformError{Method: method, Description: fmt.Sprintf("transport: %v", err)}
}
