package order

import (
	"errors"
	"fmt"
	"time"

	"CellarSociety/internal/records"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// DeliveryLeadTime is how far out the estimated delivery date is set when
// an order moves into Processing.
const DeliveryLeadTime = 4 * 24 * time.Hour

var allowed = map[records.Status][]records.Status{
	records.StatusPending:    {records.StatusProcessing, records.StatusCancelled},
	records.StatusProcessing: {records.StatusDelivered, records.StatusCancelled},
	records.StatusDelivered:  {records.StatusReceived},
}

func CanTransition(from, to records.Status) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// applyTransition moves o to the new status and sets the timestamps that
// transition carries. On an illegal transition o is left untouched.
func applyTransition(o *records.Order, to records.Status, now time.Time) (records.StatusStamps, error) {
	if !CanTransition(o.Status, to) {
		return records.StatusStamps{}, fmt.Errorf("%s -> %s: %w", o.Status, to, ErrInvalidTransition)
	}

	var stamps records.StatusStamps
	switch to {
	case records.StatusProcessing:
		d := now.Add(DeliveryLeadTime)
		stamps.DeliveryDate = &d
	case records.StatusDelivered:
		s := now
		stamps.ShippedAt = &s
	case records.StatusReceived:
		rc := now
		stamps.ReceivedAt = &rc
	}

	o.Status = to
	if stamps.DeliveryDate != nil {
		o.DeliveryDate = stamps.DeliveryDate
	}
	if stamps.ShippedAt != nil {
		o.ShippedAt = stamps.ShippedAt
	}
	if stamps.ReceivedAt != nil {
		o.ReceivedAt = stamps.ReceivedAt
	}
	return stamps, nil
}
