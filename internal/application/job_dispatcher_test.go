//go:build !integration

package application_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EXON826/iglive-tgms-worker/internal/application"
	"github.com/EXON826/iglive-tgms-worker/internal/domain"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/usecase"
)

type mockJoinUC struct {
	got    []usecase.JoinRequest
	status model.JoinRequestStatus
	err    error
}

func (m *mockJoinUC) Handle(ctx context.Context, req usecase.JoinRequest) (model.JoinRequestStatus, error) {
	m.got = append(m.got, req)
	return m.status, m.err
}

type mockGroupUC struct {
	registered []usecase.GroupRegistration
	ensured    []int64
	ensureErr  error
	refreshed  int
}

func (m *mockGroupUC) Register(ctx context.Context, reg usecase.GroupRegistration) (bool, error) {
	m.registered = append(m.registered, reg)
	return model.IsAdminStatus(reg.BotStatus), nil
}

func (m *mockGroupUC) EnsureManaged(ctx context.Context, chatID int64, title string, inviter *model.TeleUser) error {
	m.ensured = append(m.ensured, chatID)
	return m.ensureErr
}

func (m *mockGroupUC) RefreshMemberCounts(ctx context.Context) (int, error) {
	m.refreshed++
	return 3, nil
}

type mockNoticeUC struct {
	published []*model.SendToGroupsPayload
	err       error
}

func (m *mockNoticeUC) Publish(ctx context.Context, p *model.SendToGroupsPayload) (*usecase.BroadcastResult, error) {
	m.published = append(m.published, p)
	return &usecase.BroadcastResult{Sent: 1, Total: 1}, m.err
}

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func parse(t *testing.T, jobType, raw string) (*model.Job, model.JobPayload) {
	t.Helper()
	job := &model.Job{ID: 1, Type: jobType, Payload: []byte(raw)}
	p, err := model.ParsePayload(job.JobType(), job.Payload)
	require.NoError(t, err)
	return job, p
}

func TestDispatch_JoinRequestEnsuresGroupFirst(t *testing.T) {
	join, group := &mockJoinUC{status: model.JoinRequestApproved}, &mockGroupUC{ensureErr: errors.New("getChatMember failed")}
	d := application.NewJobDispatcher(join, group, nil, newTestLogger())

	job, p := parse(t, "tgms_process_join_request",
		`{"chat_join_request":{"chat":{"id":-100,"title":"Fans"},"from":{"id":7,"username":"neo","first_name":"Thomas"}}}`)
	require.NoError(t, d.Dispatch(context.Background(), job, p), "auto-register failure does not stop the join")

	assert.Equal(t, []int64{-100}, group.ensured)
	require.Len(t, join.got, 1)
	assert.Equal(t, int64(-100), join.got[0].ChatID)
	assert.Equal(t, model.TeleUser{ID: 7, Username: "neo", FirstName: "Thomas"}, join.got[0].User)
}

func TestDispatch_RegisterGroup(t *testing.T) {
	group := &mockGroupUC{}
	d := application.NewJobDispatcher(nil, group, nil, newTestLogger())

	job, p := parse(t, "register_group",
		`{"my_chat_member":{"chat":{"id":-100,"title":"Fans"},"from":{"id":5,"username":"owner"},"new_chat_member":{"status":"administrator","user":{"id":999}}}}`)
	require.NoError(t, d.Dispatch(context.Background(), job, p))

	require.Len(t, group.registered, 1)
	reg := group.registered[0]
	assert.Equal(t, "administrator", reg.BotStatus)
	require.NotNil(t, reg.Admin)
	assert.Equal(t, int64(5), reg.Admin.ID)
}

func TestDispatch_SendToGroupsPropagatesError(t *testing.T) {
	notice := &mockNoticeUC{err: domain.ErrNothingDelivered}
	d := application.NewJobDispatcher(nil, nil, notice, newTestLogger())

	job, p := parse(t, "send_to_groups", `{"text":"🔴 alice is LIVE now!"}`)
	err := d.Dispatch(context.Background(), job, p)
	require.ErrorIs(t, err, domain.ErrNothingDelivered)
	assert.Len(t, notice.published, 1)
}

func TestDispatch_MaintenanceJobs(t *testing.T) {
	group := &mockGroupUC{}
	d := application.NewJobDispatcher(nil, group, nil, newTestLogger())

	for _, typ := range []string{"update_member_counts", "tgms_kick_inactive_members", "process_update"} {
		job, p := parse(t, typ, `{}`)
		require.NoError(t, d.Dispatch(context.Background(), job, p), typ)
	}
	assert.Equal(t, 1, group.refreshed)
}

func TestDispatch_MissingUseCaseIsNonRetryable(t *testing.T) {
	d := application.NewJobDispatcher(nil, nil, nil, newTestLogger())

	job, p := parse(t, "process_join_request", `{"chat_join_request":{"chat":{"id":-1},"from":{"id":2}}}`)
	require.ErrorIs(t, d.Dispatch(context.Background(), job, p), domain.ErrNonRetryable)
}

func TestDispatch_UnknownPayloadType(t *testing.T) {
	d := application.NewJobDispatcher(nil, nil, nil, newTestLogger())
	job := &model.Job{ID: 9, Type: "mystery"}
	err := d.Dispatch(context.Background(), job, &model.MaintenancePayload{Kind: "mystery"})
	require.ErrorIs(t, err, domain.ErrUnknownJobType)
}
