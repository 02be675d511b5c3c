package taskapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const displayDateLayout = "2006-01-02 15:04"

// EpochTime is a timestamp carried as integer Unix seconds on the wire.
// Zero means the backend reported no timestamp.
type EpochTime struct {
	time.Time
}

// NewEpochTime wraps a moment for an outgoing payload.
func NewEpochTime(moment time.Time) EpochTime {
	return EpochTime{Time: moment.UTC()}
}

func (epochTime EpochTime) MarshalJSON() ([]byte, error) {
	if epochTime.IsZero() {
		return []byte("0"), nil
	}
	return []byte(strconv.FormatInt(epochTime.Unix(), 10)), nil
}

func (epochTime *EpochTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		epochTime.Time = time.Time{}
		return nil
	}
	seconds, parseErr := strconv.ParseInt(raw, 10, 64)
	if parseErr != nil {
		return fmt.Errorf("taskapi.epoch_seconds: %w", parseErr)
	}
	if seconds == 0 {
		epochTime.Time = time.Time{}
		return nil
	}
	epochTime.Time = time.Unix(seconds, 0).UTC()
	return nil
}

// FormatDate renders a timestamp in UTC as "YYYY-MM-DD HH:mm".
func FormatDate(moment time.Time) string {
	return moment.UTC().Format(displayDateLayout)
}

// IsOverdue reports whether a task missed its due date. A finished task is
// overdue when it was completed after the deadline; an unfinished one when
// the deadline has passed.
func IsOverdue(task Task, now time.Time) bool {
	if task.DueDate.IsZero() {
		return false
	}
	if task.Status == StatusDone {
		if task.CompletedAt.IsZero() {
			return false
		}
		return task.CompletedAt.After(task.DueDate.Time)
	}
	return now.After(task.DueDate.Time)
}
