package storage

import (
	"context"
	"errors"
	"time"

	yerrors "github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/codec"
	"main/internal/connector"
	"main/internal/message"
	"main/internal/security"
)

// Recorder drains one subscription stream into a drive, one envelope frame
// per message, bucketed by the message's UTC server date.
type Recorder struct {
	drive Drive
	id    security.ID
	dt    security.DataType
}

func NewRecorder(drive Drive, id security.ID, dt security.DataType) *Recorder {
	return &Recorder{drive: drive, id: id, dt: dt}
}

// Run consumes the stream until it completes, fails, or the context is
// cancelled. A normally completed stream returns nil.
func (r *Recorder) Run(ctx context.Context, s *connector.Stream) error {
	for {
		m, err := s.Next(ctx)
		if err != nil {
			if errors.Is(err, connector.ErrCompleted) {
				return nil
			}
			return err
		}

		frame, err := codec.Encode(m)
		if err != nil {
			logs.Warnf("skip unencodable message: type=%s err=%v", m.MessageType(), err)
			continue
		}
		if err := r.drive.Append(r.id, r.dt, messageDate(m), frame); err != nil {
			return yerrors.Wrap(err, "append frame").With("security", r.id.String())
		}
	}
}

// messageDate picks the bucket date, preferring exchange time over receipt
// time so replays land on the trading date.
func messageDate(m message.Message) time.Time {
	switch v := m.(type) {
	case *message.Level1ChangeMessage:
		if !v.ServerTime.IsZero() {
			return v.ServerTime
		}
	case *message.QuoteChangeMessage:
		if !v.ServerTime.IsZero() {
			return v.ServerTime
		}
	case *message.PositionChangeMessage:
		if !v.ServerTime.IsZero() {
			return v.ServerTime
		}
	}
	return m.LocalTime()
}
