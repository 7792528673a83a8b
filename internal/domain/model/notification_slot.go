package model

import "time"

// DefaultDebounceWindow suppresses a second notification for the same
// (group, recipient) pair.
const DefaultDebounceWindow = 15 * time.Second

// NotificationSlot is the combined debounce lock and last-message cache for one
// recipient in one group.
type NotificationSlot struct {
	GroupID   int64
	Recipient string
	MessageID int
	ClaimedAt time.Time
}

// SlotClaim is the result of a claim attempt. PreviousMessageID is the message
// stored before this claim, zero when there is none.
type SlotClaim struct {
	Claimed           bool
	PreviousMessageID int
}

func (c SlotClaim) HasPrevious() bool { return c.Claimed && c.PreviousMessageID > 0 }
