package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/EXON826/iglive-tgms-worker/internal/domain"
)

// JobPayload is the tagged variant carried by a Job. Each job type has its own
// concrete payload and validation.
type JobPayload interface {
	Type() JobType
	Validate() error
}

// JoinRequestPayload wraps the platform's chat_join_request update.
type JoinRequestPayload struct {
	ChatJoinRequest tgbotapi.ChatJoinRequest `json:"chat_join_request"`
}

func (p *JoinRequestPayload) Type() JobType { return JobTypeProcessJoinRequest }

func (p *JoinRequestPayload) Validate() error {
	if p.ChatJoinRequest.Chat.ID == 0 || p.ChatJoinRequest.From.ID == 0 {
		return fmt.Errorf("%w: join request without chat or user id", domain.ErrMalformedPayload)
	}
	return nil
}

// RegisterGroupPayload wraps the platform's my_chat_member update.
type RegisterGroupPayload struct {
	MyChatMember tgbotapi.ChatMemberUpdated `json:"my_chat_member"`
}

func (p *RegisterGroupPayload) Type() JobType { return JobTypeRegisterGroup }

func (p *RegisterGroupPayload) Validate() error {
	if p.MyChatMember.Chat.ID == 0 {
		return fmt.Errorf("%w: my_chat_member without chat id", domain.ErrMalformedPayload)
	}
	return nil
}

// SendToGroupsPayload is the "going live" notice produced upstream.
type SendToGroupsPayload struct {
	Text     string `json:"text"`
	PhotoURL string `json:"photo_url,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

func (p *SendToGroupsPayload) Type() JobType { return JobTypeSendToGroups }

func (p *SendToGroupsPayload) Validate() error {
	if p.Recipient() == "" {
		return fmt.Errorf("%w: no recipient in notice text %q", domain.ErrMalformedPayload, p.Text)
	}
	return nil
}

var liveNoticePattern = regexp.MustCompile(`🔴 (.*?) is LIVE now!`)

// Recipient extracts the live account name from the notice text.
func (p *SendToGroupsPayload) Recipient() string {
	m := liveNoticePattern.FindStringSubmatch(p.Text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// MaintenancePayload covers job types that carry no data.
type MaintenancePayload struct {
	Kind JobType `json:"-"`
}

func (p *MaintenancePayload) Type() JobType   { return p.Kind }
func (p *MaintenancePayload) Validate() error { return nil }

// ParsePayload decodes raw into the payload variant for jobType. An unknown
// type yields domain.ErrUnknownJobType; undecodable or invalid data yields
// domain.ErrMalformedPayload.
func ParsePayload(jobType JobType, raw []byte) (JobPayload, error) {
	var p JobPayload
	switch jobType {
	case JobTypeProcessJoinRequest:
		p = &JoinRequestPayload{}
	case JobTypeRegisterGroup:
		p = &RegisterGroupPayload{}
	case JobTypeSendToGroups:
		p = &SendToGroupsPayload{}
	case JobTypeUpdateMemberCounts, JobTypeKickInactiveMembers, JobTypeProcessUpdate:
		return &MaintenancePayload{Kind: jobType}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownJobType, jobType)
	}

	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
