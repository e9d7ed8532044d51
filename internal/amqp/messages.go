package amqp

import (
	"encoding/json"
	"time"

	"dcledger/internal/core"
)

// MovementExportMessage asks the worker to project one journal row into
// its monthly archive. Only the identity travels; the worker loads the
// row from the journal so it always exports current data.
type MovementExportMessage struct {
	Direction core.Direction `json:"direction"`
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewMovementExportMessage(dir core.Direction, id int64) *MovementExportMessage {
	return &MovementExportMessage{
		Direction: dir,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *MovementExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MovementExportMessageFromJSON(data []byte) (*MovementExportMessage, error) {
	var msg MovementExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Direction.Valid() {
		return nil, core.ErrInvalidDirection
	}
	return &msg, nil
}
