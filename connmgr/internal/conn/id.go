package conn

import uuid "github.com/satori/go.uuid"

// NewID mints a connection identifier used to correlate dial, reuse, and
// release log lines for a single upstream connection.
func NewID() string {
	return uuid.NewV4().String()
}
