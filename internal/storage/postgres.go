package storage

import (
	"time"

	"github.com/yanun0323/errors"

	"main/internal/security"
	"main/pkg/conn"
)

// Frame is one stored envelope row.
type Frame struct {
	ID       uint64    `gorm:"primaryKey;autoIncrement"`
	Security string    `gorm:"index:idx_bucket;size:64"`
	DataType uint16    `gorm:"index:idx_bucket"`
	Date     time.Time `gorm:"index:idx_bucket"`
	Payload  []byte
}

func (Frame) TableName() string { return "market_data_frames" }

// PostgresDrive stores frames in a PostgreSQL table, one row per frame.
// Row ids preserve append order within a bucket.
type PostgresDrive struct {
	client *conn.Client
}

func NewPostgresDrive(opt conn.Option) (*PostgresDrive, error) {
	client, err := conn.New(opt)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := client.DB().AutoMigrate(&Frame{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate frames table")
	}
	return &PostgresDrive{client: client}, nil
}

func (d *PostgresDrive) Dates(id security.ID, dt security.DataType) ([]time.Time, error) {
	var dates []time.Time
	err := d.client.DB().
		Model(&Frame{}).
		Where("security = ? AND data_type = ?", id.String(), uint16(dt)).
		Distinct("date").
		Order("date").
		Pluck("date", &dates).Error
	if err != nil {
		return nil, errors.Wrap(err, "query dates")
	}
	for i := range dates {
		dates[i] = day(dates[i])
	}
	return dates, nil
}

func (d *PostgresDrive) Append(id security.ID, dt security.DataType, date time.Time, frame []byte) error {
	row := Frame{
		Security: id.String(),
		DataType: uint16(dt),
		Date:     day(date),
		Payload:  frame,
	}
	return errors.Wrap(d.client.DB().Create(&row).Error, "insert frame")
}

func (d *PostgresDrive) Load(id security.ID, dt security.DataType, date time.Time) ([][]byte, error) {
	var rows []Frame
	err := d.client.DB().
		Where("security = ? AND data_type = ? AND date = ?", id.String(), uint16(dt), day(date)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query frames")
	}
	if len(rows) == 0 {
		return nil, ErrDateNotFound
	}
	frames := make([][]byte, 0, len(rows))
	for _, row := range rows {
		frames = append(frames, row.Payload)
	}
	return frames, nil
}

func (d *PostgresDrive) Delete(id security.ID, dt security.DataType, date time.Time) error {
	err := d.client.DB().
		Where("security = ? AND data_type = ? AND date = ?", id.String(), uint16(dt), day(date)).
		Delete(&Frame{}).Error
	return errors.Wrap(err, "delete frames")
}

func (d *PostgresDrive) Close() error {
	return d.client.Close()
}
