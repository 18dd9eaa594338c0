package eventpub

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DefaultStatus is the status carried by an event when the caller does not pick one.
const DefaultStatus = 200

// Event is the message published to the collector queue.
// UniqueID doubles as the correlation and deduplication token.
type Event struct {
	Status   int    `json:"status"`
	UniqueID string `json:"uniqueID"`
}

// NewEvent returns an event with a freshly generated v4 UUID.
func NewEvent(status int) Event {
	return Event{
		Status:   status,
		UniqueID: uuid.NewString(),
	}
}

// Body returns the JSON message body.
func (e Event) Body() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(data), nil
}
