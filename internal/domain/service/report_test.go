package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/database/memory"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/common/errorz"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/service"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger"
)

type sentPush struct {
	Token, Title, Body string
}

type fakeGateway struct {
	mu   sync.Mutex
	sent []sentPush
	err  error
}

func (g *fakeGateway) Send(_ context.Context, token, title, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, sentPush{token, title, body})
	return nil
}

type failingGuard struct{}

func (failingGuard) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func report(status, reply string) entity.Report {
	return entity.Report{ID: "r1", UserID: testUser, Status: status, AdminReply: reply}
}

func reportEdited(status, reply string, at time.Time) entity.Report {
	r := report(status, reply)
	r.UpdatedAt = at
	return r
}

func newNotifier(t *testing.T, token string, gateway *fakeGateway) *service.ReportNotifier {
	t.Helper()
	users := memory.NewUserStorage()
	_, err := users.Upsert(context.Background(), &entity.User{ID: testUser, DeviceToken: token})
	require.NoError(t, err)
	return service.NewReportNotifier(logger.Nop(), users, memory.NewDeliveryStorage(), gateway, 0)
}

func TestBuildReportMessage(t *testing.T) {
	tests := []struct {
		name   string
		before entity.Report
		after  entity.Report
		ok     bool
		kind   service.PushKind
		body   string
	}{
		{
			name:   "status change",
			before: report("open", ""),
			after:  report("in_progress", ""),
			ok:     true,
			kind:   service.PushKindStatus,
			body:   "Your report status has been updated to: in_progress",
		},
		{
			name:   "new admin reply",
			before: report("open", ""),
			after:  report("open", "We are on it"),
			ok:     true,
			kind:   service.PushKindReply,
			body:   "The admin has replied to your report: We are on it",
		},
		{
			name:   "reply wins over status",
			before: report("open", ""),
			after:  report("closed", "fixed"),
			ok:     true,
			kind:   service.PushKindReply,
			body:   "The admin has replied to your report: fixed",
		},
		{
			name:   "reply cleared",
			before: report("open", "old"),
			after:  report("open", ""),
		},
		{
			name:   "nothing relevant changed",
			before: report("open", "same"),
			after:  entity.Report{ID: "r1", UserID: testUser, Status: "open", AdminReply: "same", Description: "edited"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := service.BuildReportMessage(tt.before, tt.after)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.kind, msg.Kind)
				assert.Equal(t, tt.body, msg.Body)
			}
		})
	}
}

func TestNotify_SendsOneMessage(t *testing.T) {
	gateway := &fakeGateway{}
	n := newNotifier(t, "chat-1", gateway)

	sent, err := n.Notify(context.Background(), report("open", ""), report("closed", "fixed"))
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, gateway.sent, 1)
	assert.Equal(t, sentPush{"chat-1", "Admin Reply", "The admin has replied to your report: fixed"}, gateway.sent[0])
}

func TestNotify_RedeliveredChangeSentOnce(t *testing.T) {
	gateway := &fakeGateway{}
	n := newNotifier(t, "chat-1", gateway)
	before, after := report("open", ""), report("in_progress", "")

	for i := 0; i < 3; i++ {
		_, err := n.Notify(context.Background(), before, after)
		require.NoError(t, err)
	}
	assert.Len(t, gateway.sent, 1)

	// A different transition of the same report is a new delivery.
	sent, err := n.Notify(context.Background(), after, report("closed", ""))
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Len(t, gateway.sent, 2)
}

func TestNotify_SameTransitionAgainIsNewDelivery(t *testing.T) {
	gateway := &fakeGateway{}
	n := newNotifier(t, "chat-1", gateway)
	ctx := context.Background()

	open := reportEdited("open", "", testNow)
	closed := reportEdited("closed", "", testNow.Add(time.Minute))
	reopened := reportEdited("open", "", testNow.Add(2*time.Minute))
	closedAgain := reportEdited("closed", "", testNow.Add(3*time.Minute))

	steps := []struct{ before, after entity.Report }{
		{open, closed},
		{closed, reopened},
		{reopened, closedAgain},
	}
	for i, step := range steps {
		sent, err := n.Notify(ctx, step.before, step.after)
		require.NoError(t, err)
		assert.True(t, sent, "transition %d", i)
	}
	require.Len(t, gateway.sent, 3)
	assert.Equal(t, "Your report status has been updated to: closed", gateway.sent[2].Body)

	// Redelivery of the last edit is still filtered.
	sent, err := n.Notify(ctx, reopened, closedAgain)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Len(t, gateway.sent, 3)
}

func TestNotify_Skips(t *testing.T) {
	t.Run("no device token", func(t *testing.T) {
		gateway := &fakeGateway{}
		n := newNotifier(t, "", gateway)
		sent, err := n.Notify(context.Background(), report("open", ""), report("closed", ""))
		require.NoError(t, err)
		assert.False(t, sent)
		assert.Empty(t, gateway.sent)
	})

	t.Run("owner not found", func(t *testing.T) {
		gateway := &fakeGateway{}
		n := service.NewReportNotifier(logger.Nop(), memory.NewUserStorage(), nil, gateway, time.Hour)
		sent, err := n.Notify(context.Background(), report("open", ""), report("closed", ""))
		require.NoError(t, err)
		assert.False(t, sent)
		assert.Empty(t, gateway.sent)
	})

	t.Run("nothing to send", func(t *testing.T) {
		gateway := &fakeGateway{}
		n := newNotifier(t, "chat-1", gateway)
		sent, err := n.Notify(context.Background(), report("open", ""), report("open", ""))
		require.NoError(t, err)
		assert.False(t, sent)
		assert.Empty(t, gateway.sent)
	})
}

func TestNotify_GatewayFailure(t *testing.T) {
	gateway := &fakeGateway{err: errors.New("bot was blocked by the user")}
	n := newNotifier(t, "chat-1", gateway)

	sent, err := n.Notify(context.Background(), report("open", ""), report("closed", ""))
	assert.False(t, sent)
	assert.ErrorIs(t, err, errorz.ErrDeliveryFailed)
}

func TestNotify_GuardUnavailableSendsNothing(t *testing.T) {
	gateway := &fakeGateway{}
	users := memory.NewUserStorage()
	_, err := users.Upsert(context.Background(), &entity.User{ID: testUser, DeviceToken: "chat-1"})
	require.NoError(t, err)
	n := service.NewReportNotifier(logger.Nop(), users, failingGuard{}, gateway, time.Hour)

	sent, err := n.Notify(context.Background(), report("open", ""), report("closed", ""))
	assert.False(t, sent)
	assert.ErrorIs(t, err, errorz.ErrStoreUnavailable)
	assert.Empty(t, gateway.sent)
}

func TestDeliveryKey(t *testing.T) {
	a := service.DeliveryKey(report("open", ""), report("closed", ""))
	b := service.DeliveryKey(report("open", ""), report("closed", ""))
	c := service.DeliveryKey(report("open", ""), report("closed", "x"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^report:r1:[0-9a-f]{16}$`, a)

	first := service.DeliveryKey(report("open", ""), reportEdited("closed", "", testNow))
	again := service.DeliveryKey(report("open", ""), reportEdited("closed", "", testNow.Add(time.Hour)))
	sameEdit := service.DeliveryKey(report("open", ""), reportEdited("closed", "", testNow.In(time.FixedZone("UTC+3", 3*3600))))
	assert.NotEqual(t, first, again)
	assert.Equal(t, first, sameEdit)
}
