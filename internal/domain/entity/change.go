package entity

import (
	"fmt"
	"strings"
)

// ChangeOp is the kind of document mutation that fired a trigger.
type ChangeOp string

const (
	ChangeCreate ChangeOp = "create"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
)

// ParseChangeOp accepts both document-store names (create/update/delete)
// and SQL trigger names (INSERT/UPDATE/DELETE).
func ParseChangeOp(s string) (ChangeOp, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create", "insert":
		return ChangeCreate, nil
	case "update":
		return ChangeUpdate, nil
	case "delete":
		return ChangeDelete, nil
	default:
		return "", fmt.Errorf("unknown change op %q", s)
	}
}

// EventChange carries the before/after snapshots of an event mutation.
// Before is nil on create, After is nil on delete.
type EventChange struct {
	Op     ChangeOp
	Before *Event
	After  *Event
}

// Subject returns the owner and id of the changed event, taken from whichever snapshot exists.
func (c EventChange) Subject() (userID int64, eventID string) {
	switch {
	case c.After != nil:
		return c.After.UserID, c.After.ID
	case c.Before != nil:
		return c.Before.UserID, c.Before.ID
	default:
		return 0, ""
	}
}

// ReportChange carries the before/after snapshots of a report mutation.
type ReportChange struct {
	Op     ChangeOp
	Before *Report
	After  *Report
}
