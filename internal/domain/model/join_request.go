package model

import "time"

type JoinRequestStatus string

const (
	JoinRequestPending               JoinRequestStatus = "pending"
	JoinRequestApproved              JoinRequestStatus = "approved"
	JoinRequestRejectedAlreadyMember JoinRequestStatus = "rejected_already_member"
	JoinRequestFailed                JoinRequestStatus = "failed"
)

// JoinRequest is the audit record of one join attempt. (UserID, ChatID, Status)
// is unique.
type JoinRequest struct {
	UserID    int64
	ChatID    int64
	Status    JoinRequestStatus
	CreatedAt time.Time
}

// TeleUser is a platform user known to the system. GroupID is set once the
// user was admitted to a managed group.
type TeleUser struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	GroupID   *int64
	UpdatedAt time.Time
	LastSeen  time.Time
}
