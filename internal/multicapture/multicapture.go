// Package multicapture aggregates the partial captures of one attempt.
package multicapture

import (
	"errors"
	"sort"

	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/enums"
)

var ErrNoCaptures = errors.New("multiple capture data requires at least one capture")

// Data owns every capture of an attempt. Totals are always recomputed from the set.
type Data struct {
	captures map[string]models.Capture
	latestID string
}

func New(captures []models.Capture) (*Data, error) {
	if len(captures) == 0 {
		return nil, ErrNoCaptures
	}
	d := &Data{captures: make(map[string]models.Capture, len(captures))}
	for _, c := range captures {
		d.captures[c.CaptureID] = c
		d.track(c)
	}
	return d, nil
}

func (d *Data) track(c models.Capture) {
	if d.latestID == "" {
		d.latestID = c.CaptureID
		return
	}
	cur := d.captures[d.latestID]
	if c.CaptureSequence > cur.CaptureSequence ||
		(c.CaptureSequence == cur.CaptureSequence && c.CreatedAt.After(cur.CreatedAt)) {
		d.latestID = c.CaptureID
	}
}

// Update replaces a capture with the same id or adds a new one.
func (d *Data) Update(c models.Capture) {
	d.captures[c.CaptureID] = c
	d.track(c)
}

func (d *Data) Latest() models.Capture {
	return d.captures[d.latestID]
}

func (d *Data) Len() int {
	return len(d.captures)
}

// All returns the captures ordered by sequence.
func (d *Data) All() []models.Capture {
	out := make([]models.Capture, 0, len(d.captures))
	for _, c := range d.captures {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CaptureSequence < out[j].CaptureSequence })
	return out
}

func (d *Data) sum(statuses ...enums.CaptureStatus) int64 {
	var total int64
	for _, c := range d.captures {
		for _, s := range statuses {
			if c.Status == s {
				total += c.Amount
				break
			}
		}
	}
	return total
}

func (d *Data) TotalChargedAmount() int64 {
	return d.sum(enums.CaptureStatusCharged)
}

// TotalBlockedAmount counts captures that are charged or still in flight.
func (d *Data) TotalBlockedAmount() int64 {
	return d.sum(enums.CaptureStatusCharged, enums.CaptureStatusPending)
}

func (d *Data) PendingCaptures() []models.Capture {
	var out []models.Capture
	for _, c := range d.All() {
		if c.Status == enums.CaptureStatusPending {
			out = append(out, c)
		}
	}
	return out
}

// CaptureByConnectorID finds the capture the connector knows as id.
func (d *Data) CaptureByConnectorID(id string) (models.Capture, bool) {
	for _, c := range d.captures {
		if c.ConnectorCaptureID != nil && *c.ConnectorCaptureID == id {
			return c, true
		}
	}
	return models.Capture{}, false
}

// AttemptStatus derives the attempt status from the capture set and the authorized amount.
func (d *Data) AttemptStatus(authorized int64) enums.AttemptStatus {
	charged := d.TotalChargedAmount()
	if charged == authorized {
		return enums.AttemptStatusCharged
	}
	for _, c := range d.captures {
		if c.Status == enums.CaptureStatusCharged {
			return enums.AttemptStatusPartialChargedAndChargeable
		}
	}
	return enums.AttemptStatusCaptureInitiated
}

// IntentStatus maps a multi-capture attempt status onto the intent.
func IntentStatus(status enums.AttemptStatus) enums.IntentStatus {
	switch status {
	case enums.AttemptStatusCharged:
		return enums.IntentStatusSucceeded
	case enums.AttemptStatusPartialChargedAndChargeable:
		return enums.IntentStatusPartiallyCapturedAndCapturable
	default:
		return enums.IntentStatusProcessing
	}
}
