// Package sdcp implements the slice of the printer's websocket control
// protocol needed to trigger a timelapse export and observe its completion.
package sdcp

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	// CmdExportTimelapse triggers an export when sent and confirms one when
	// received.
	CmdExportTimelapse = 323

	// PingInterval is how often the keepalive frame is sent.
	PingInterval = 20 * time.Second

	// ReceiveTimeout bounds one receive. Slightly above PingInterval, so an
	// idle-but-alive connection is distinguishable from a dead one.
	ReceiveTimeout = PingInterval + 10*time.Second
)

// Envelope is the wire shape of every control message, outbound and inbound.
type Envelope struct {
	ID   string  `json:"Id"`
	Data Command `json:"Data"`
}

type Command struct {
	Cmd         int     `json:"Cmd"`
	Data        Payload `json:"Data"`
	RequestID   string  `json:"RequestID"`
	MainboardID string  `json:"MainboardID"`
	TimeStamp   int64   `json:"TimeStamp"`
	From        int     `json:"From"`
}

type Payload struct {
	URL []string `json:"Url"`
}

// NewExportCommand builds the export trigger for one artifact path. RequestID
// is a fresh 32-char hex token; the printer echoes it back, but completion is
// matched by path alone.
func NewExportCommand(path string) Envelope {
	id := uuid.New()
	return Envelope{
		Data: Command{
			Cmd:       CmdExportTimelapse,
			Data:      Payload{URL: []string{path}},
			RequestID: hex.EncodeToString(id[:]),
			TimeStamp: time.Now().UnixMilli(),
			From:      1,
		},
	}
}

// Decode parses an inbound frame. Non-JSON frames and JSON of a different
// shape are a normal part of the stream; they yield ok=false, never an error.
func Decode(raw []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, false
	}
	if env.Data.Cmd == 0 {
		return Envelope{}, false
	}
	return env, true
}

// FirstURL returns the first carried path, "" when the list is empty.
func (e Envelope) FirstURL() string {
	if len(e.Data.Data.URL) == 0 {
		return ""
	}
	return e.Data.Data.URL[0]
}
