package sideshift

import (
	"io"

	"github.com/goccy/go-json"

	"shift_processor/internal/domain"
)

// ParseNotification decodes a shift status webhook body.
// Unknown statuses and a missing shift id are rejected.
func ParseNotification(body io.Reader) (domain.Notification, error) {
	const op = "sideshift.ParseNotification"

	var n domain.Notification
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(&n); err != nil {
		return domain.Notification{}, domain.Wrap(domain.KindValidation, op, err, "malformed notification")
	}
	if n.ID == "" {
		return domain.Notification{}, domain.Errorf(domain.KindValidation, op, "notification without shift id")
	}
	if !n.Status.IsKnown() {
		return domain.Notification{}, domain.Errorf(domain.KindValidation, op, "unknown status %q for shift %s", n.Status, n.ID)
	}
	return n, nil
}
