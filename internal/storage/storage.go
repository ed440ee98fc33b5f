// Package storage persists recorded market data streams. A Drive keys data
// by security, data type, and UTC date; each bucket holds an ordered list of
// codec envelope frames that replay through the same decoder that produced
// them.
package storage

import (
	"time"

	"github.com/yanun0323/errors"

	"main/internal/codec"
	"main/internal/message"
	"main/internal/security"
)

var (
	ErrDateNotFound = errors.New("no data for date")
	ErrDriveClosed  = errors.New("drive closed")
)

// Drive is one storage backend for recorded frames.
type Drive interface {
	// Dates lists the UTC dates that hold data for the security and data
	// type, in ascending order.
	Dates(id security.ID, dt security.DataType) ([]time.Time, error)
	// Append stores one frame at the end of the bucket.
	Append(id security.ID, dt security.DataType, date time.Time, frame []byte) error
	// Load returns all frames of the bucket in append order.
	Load(id security.ID, dt security.DataType, date time.Time) ([][]byte, error)
	// Delete removes the bucket.
	Delete(id security.ID, dt security.DataType, date time.Time) error
	Close() error
}

// day truncates t to its UTC date.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const dateLayout = "2006-01-02"

// Replay decodes every frame stored for the given bucket back into messages.
func Replay(d Drive, id security.ID, dt security.DataType, date time.Time) ([]message.Message, error) {
	frames, err := d.Load(id, dt, date)
	if err != nil {
		return nil, err
	}
	msgs := make([]message.Message, 0, len(frames))
	for i, frame := range frames {
		m, err := codec.Decode(frame)
		if err != nil {
			return nil, errors.Wrap(err, "decode frame").With("index", i)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
