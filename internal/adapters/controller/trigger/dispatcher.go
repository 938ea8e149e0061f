package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/common/errorz"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/service"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

const (
	CollectionEvents  = "events"
	CollectionReports = "reports"
)

// Message is a document change as published by the change feeds and the webhook.
type Message struct {
	Collection string          `json:"collection"`
	Op         string          `json:"op"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

type reminderService interface {
	Reconcile(ctx context.Context, userID int64, eventID string, prior, current *entity.Event) (service.ReminderPlan, error)
}

type eventService interface {
	Get(ctx context.Context, userID int64, id string) (*entity.Event, error)
}

type reportNotifier interface {
	Notify(ctx context.Context, before, after entity.Report) (bool, error)
}

// Dispatcher turns document changes into reminder reconciliations and report pushes.
// It is the error boundary of every trigger-driven invocation.
type Dispatcher struct {
	reminders reminderService
	events    eventService
	reports   reportNotifier
	logger    *types.Logger
}

func NewDispatcher(logger *types.Logger, reminders reminderService, events eventService, reports reportNotifier) *Dispatcher {
	return &Dispatcher{
		reminders: reminders,
		events:    events,
		reports:   reports,
		logger:    logger,
	}
}

// HandlePayload decodes a raw change message and handles it. Failures are logged, never returned.
func (d *Dispatcher) HandlePayload(ctx context.Context, payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		d.logger.Errorf("Dropping undecodable change message: %v", err)
		return
	}
	_ = d.Handle(ctx, msg)
}

// Handle dispatches one change message. The returned error has already been logged.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) error {
	op, err := entity.ParseChangeOp(msg.Op)
	if err != nil {
		err = fmt.Errorf("%w: %w", errorz.ErrInvalidChange, err)
		d.logger.Errorf("Dropping change message (collection=%s): %v", msg.Collection, err)
		return err
	}

	switch msg.Collection {
	case CollectionEvents:
		change, errDecode := decodeEventChange(op, msg)
		if errDecode != nil {
			d.logger.Errorf("Dropping event change (op=%s): %v", op, errDecode)
			return errDecode
		}
		return d.handleEvent(ctx, change)
	case CollectionReports:
		change, errDecode := decodeReportChange(op, msg)
		if errDecode != nil {
			d.logger.Errorf("Dropping report change (op=%s): %v", op, errDecode)
			return errDecode
		}
		return d.handleReport(ctx, change)
	default:
		err = fmt.Errorf("%w: unknown collection %q", errorz.ErrInvalidChange, msg.Collection)
		d.logger.Errorf("Dropping change message: %v", err)
		return err
	}
}

func (d *Dispatcher) handleEvent(ctx context.Context, change entity.EventChange) error {
	userID, eventID := change.Subject()
	if eventID == "" {
		err := fmt.Errorf("%w: event change without snapshot", errorz.ErrInvalidChange)
		d.logger.Errorf("Dropping event change (op=%s): %v", change.Op, err)
		return err
	}

	prior, current := change.Before, change.After
	switch change.Op {
	case entity.ChangeCreate:
		prior = nil
	case entity.ChangeDelete:
		current = nil
	}

	// Messages may arrive out of order, so the stored row decides. A missing row
	// means the event was deleted after this change was published.
	if change.Op != entity.ChangeDelete {
		event, err := d.events.Get(ctx, userID, eventID)
		switch {
		case errors.Is(err, errorz.ErrNotFound):
			d.logger.Debugf("Event gone before reconciliation (op=%s, user_id=%d, event_id=%s)", change.Op, userID, eventID)
			current = nil
		case err != nil:
			err = fmt.Errorf("%w: get event: %w", errorz.ErrStoreUnavailable, err)
			d.logger.Errorf("Reminder reconciliation failed (op=%s, user_id=%d, event_id=%s): %v", change.Op, userID, eventID, err)
			return err
		default:
			current = event
		}
	}

	plan, err := d.reminders.Reconcile(ctx, userID, eventID, prior, current)
	if err != nil {
		d.logger.Errorf("Reminder reconciliation failed (op=%s, user_id=%d, event_id=%s): %v", change.Op, userID, eventID, err)
		return err
	}
	d.logger.Debugf("Reminder reconciled (op=%s, user_id=%d, event_id=%s, action=%s)", change.Op, userID, eventID, plan.Action)
	return nil
}

func (d *Dispatcher) handleReport(ctx context.Context, change entity.ReportChange) error {
	if change.Op != entity.ChangeUpdate {
		return nil
	}
	if change.Before == nil || change.After == nil {
		err := fmt.Errorf("%w: report update needs both snapshots", errorz.ErrInvalidChange)
		d.logger.Errorf("Dropping report change: %v", err)
		return err
	}

	sent, err := d.reports.Notify(ctx, *change.Before, *change.After)
	if err != nil {
		d.logger.Errorf("Report notification failed (user_id=%d, report_id=%s): %v", change.After.UserID, change.After.ID, err)
		return err
	}
	if sent {
		d.logger.Debugf("Report notification delivered (user_id=%d, report_id=%s)", change.After.UserID, change.After.ID)
	}
	return nil
}

func decodeEventChange(op entity.ChangeOp, msg Message) (entity.EventChange, error) {
	change := entity.EventChange{Op: op}
	var err error
	if change.Before, err = decodeSnapshot[entity.Event](msg.Before); err != nil {
		return change, err
	}
	if change.After, err = decodeSnapshot[entity.Event](msg.After); err != nil {
		return change, err
	}
	return change, nil
}

func decodeReportChange(op entity.ChangeOp, msg Message) (entity.ReportChange, error) {
	change := entity.ReportChange{Op: op}
	var err error
	if change.Before, err = decodeSnapshot[entity.Report](msg.Before); err != nil {
		return change, err
	}
	if change.After, err = decodeSnapshot[entity.Report](msg.After); err != nil {
		return change, err
	}
	return change, nil
}

func decodeSnapshot[T any](raw json.RawMessage) (*T, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", errorz.ErrInvalidChange, err)
	}
	return &v, nil
}
