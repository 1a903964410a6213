package observability

import "github.com/google/uuid"

// NewRunID generates a unique identifier for a backtest (or sweep member)
// run, suitable for correlating log lines and a persistence row.
func NewRunID() string {
	return uuid.NewString()
}
