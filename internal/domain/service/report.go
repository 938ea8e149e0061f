package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/common/errorz"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

// DefaultDeliveryTTL is how long a report change is remembered as delivered.
const DefaultDeliveryTTL = 24 * time.Hour

type PushKind string

const (
	PushKindStatus PushKind = "status"
	PushKindReply  PushKind = "admin_reply"
)

// PushMessage is a single push notification.
type PushMessage struct {
	Kind  PushKind
	Title string
	Body  string
}

// BuildReportMessage picks the message for a report transition.
// An admin reply wins over a status change made in the same update.
func BuildReportMessage(before, after entity.Report) (PushMessage, bool) {
	var (
		msg PushMessage
		ok  bool
	)
	if after.Status != before.Status {
		msg = PushMessage{
			Kind:  PushKindStatus,
			Title: "Report Status Updated",
			Body:  fmt.Sprintf("Your report status has been updated to: %s", after.Status),
		}
		ok = true
	}
	if after.AdminReply != "" && after.AdminReply != before.AdminReply {
		msg = PushMessage{
			Kind:  PushKindReply,
			Title: "Admin Reply",
			Body:  fmt.Sprintf("The admin has replied to your report: %s", after.AdminReply),
		}
		ok = true
	}
	return msg, ok
}

// DeliveryKey identifies one report edit, so only a redelivered change maps to the same key.
// The edit is told apart by after.UpdatedAt; a later edit back to the same values gets a new key.
func DeliveryKey(before, after entity.Report) string {
	var edited string
	if !after.UpdatedAt.IsZero() {
		edited = after.UpdatedAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
	}
	h := sha256.New()
	for _, part := range []string{before.Status, before.AdminReply, after.Status, after.AdminReply, edited} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("report:%s:%s", after.ID, hex.EncodeToString(h.Sum(nil))[:16])
}

type reportUserStorage interface {
	Get(ctx context.Context, id int64) (*entity.User, error)
}

type deliveryGuard interface {
	// Claim returns true the first time a key is claimed within ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type pushGateway interface {
	Send(ctx context.Context, deviceToken, title, body string) error
}

// ReportNotifier pushes at most one message to the report owner per report transition.
type ReportNotifier struct {
	userStorage reportUserStorage
	guard       deliveryGuard
	gateway     pushGateway
	logger      *types.Logger

	deliveryTTL time.Duration
}

// NewReportNotifier creates a ReportNotifier. guard may be nil, then redelivered changes are not filtered.
func NewReportNotifier(logger *types.Logger, userStorage reportUserStorage, guard deliveryGuard, gateway pushGateway, deliveryTTL time.Duration) *ReportNotifier {
	if deliveryTTL <= 0 {
		deliveryTTL = DefaultDeliveryTTL
	}
	return &ReportNotifier{
		userStorage: userStorage,
		guard:       guard,
		gateway:     gateway,
		logger:      logger,
		deliveryTTL: deliveryTTL,
	}
}

// Notify sends the push for a report update. sent is false when nothing had to be sent
// or the owner has no registered device.
func (s *ReportNotifier) Notify(ctx context.Context, before, after entity.Report) (sent bool, err error) {
	msg, ok := BuildReportMessage(before, after)
	if !ok {
		return false, nil
	}

	user, err := s.userStorage.Get(ctx, after.UserID)
	if err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			s.logger.Infof("Report owner not found, skipping (user_id=%d, report_id=%s)", after.UserID, after.ID)
			return false, nil
		}
		return false, fmt.Errorf("%w: get user %d: %w", errorz.ErrStoreUnavailable, after.UserID, err)
	}
	if user.DeviceToken == "" {
		s.logger.Infof("No device token, skipping (user_id=%d, report_id=%s)", after.UserID, after.ID)
		return false, nil
	}

	if s.guard != nil {
		claimed, errClaim := s.guard.Claim(ctx, DeliveryKey(before, after), s.deliveryTTL)
		if errClaim != nil {
			return false, fmt.Errorf("%w: claim delivery (report_id=%s): %w", errorz.ErrStoreUnavailable, after.ID, errClaim)
		}
		if !claimed {
			s.logger.Debugf("Report change already delivered (user_id=%d, report_id=%s)", after.UserID, after.ID)
			return false, nil
		}
	}

	if err = s.gateway.Send(ctx, user.DeviceToken, msg.Title, msg.Body); err != nil {
		return false, fmt.Errorf("%w: %s message (user_id=%d, report_id=%s): %w", errorz.ErrDeliveryFailed, msg.Kind, after.UserID, after.ID, err)
	}

	s.logger.Infof("Sent %s notification (user_id=%d, report_id=%s)", msg.Kind, after.UserID, after.ID)
	return true, nil
}
