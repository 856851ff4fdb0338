package chat

import (
	"fmt"
	"math/rand"
	"time"
)

// NewMessageID synthesizes a 28-hex-character message identifier from the
// room id and the microsecond send timestamp, padded with a fixed zero
// tail. Identifiers sort lexically by room, then by time.
//
// When the timestamp carries no sub-millisecond resolution (common on
// clients that send whole-millisecond dates) a random microsecond jitter
// is added so two messages in the same room and millisecond do not
// collide. The possibly adjusted timestamp is returned so the stored
// date_sent matches the id.
func NewMessageID(roomID int64, dateSent time.Time) (string, time.Time) {
	micros := dateSent.UnixMicro()
	if micros%1000 == 0 {
		micros += rand.Int63n(1000)
		dateSent = time.UnixMicro(micros)
	}
	return fmt.Sprintf("%08X%016X0000", roomID, micros), dateSent
}
