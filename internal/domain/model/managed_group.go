package model

import "time"

const (
	GroupPhaseGrowth = "growth"

	// DefaultFailureThreshold is the number of consecutive failed sends after
	// which a group is deactivated.
	DefaultFailureThreshold = 7
)

// ManagedGroup is a platform group administered by the bot. IsActive=false is
// terminal until the group is upserted again.
type ManagedGroup struct {
	GroupID             int64
	Title               string
	AdminUserID         *int64
	Phase               string
	IsActive            bool
	FailureCount        int
	MemberCount         int
	FinalMessageAllowed bool
	DeactivationReason  string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CanReceiveBroadcast reports whether the broadcast engine may send to the group.
func (g *ManagedGroup) CanReceiveBroadcast() bool {
	return g != nil && g.IsActive && g.FinalMessageAllowed
}

// Member statuses returned by the platform.
const (
	MemberStatusCreator       = "creator"
	MemberStatusAdministrator = "administrator"
)

func IsAdminStatus(status string) bool {
	return status == MemberStatusAdministrator || status == MemberStatusCreator
}
