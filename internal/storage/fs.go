package storage

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/security"
)

// FSDrive stores frames as newline-delimited files under
// root/{security}/{dataType}/{date}. JSON envelopes never contain raw
// newlines, so one line is one frame.
type FSDrive struct {
	root string
	mu   sync.Mutex
}

func NewFSDrive(root string) (*FSDrive, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "create storage root")
	}
	return &FSDrive{root: root}, nil
}

func (d *FSDrive) bucketDir(id security.ID, dt security.DataType) string {
	sec := strings.ReplaceAll(id.String(), string(os.PathSeparator), "_")
	return filepath.Join(d.root, sec, dt.String())
}

func (d *FSDrive) bucketPath(id security.ID, dt security.DataType, date time.Time) string {
	return filepath.Join(d.bucketDir(id, dt), day(date).Format(dateLayout)+".ndjson")
}

func (d *FSDrive) Dates(id security.ID, dt security.DataType) ([]time.Time, error) {
	entries, err := os.ReadDir(d.bucketDir(id, dt))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read bucket dir")
	}
	var dates []time.Time
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".ndjson")
		if !ok || e.IsDir() {
			continue
		}
		t, err := time.ParseInLocation(dateLayout, name, time.UTC)
		if err != nil {
			continue
		}
		dates = append(dates, t)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (d *FSDrive) Append(id security.ID, dt security.DataType, date time.Time, frame []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	path := d.bucketPath(id, dt, date)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create bucket dir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "open bucket file")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.Write(frame); err != nil {
		return errors.Wrap(err, "write frame")
	}
	if err := w.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return errors.Wrap(w.Flush(), "flush frame")
}

func (d *FSDrive) Load(id security.ID, dt security.DataType, date time.Time) ([][]byte, error) {
	data, err := os.ReadFile(d.bucketPath(id, dt, date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDateNotFound
		}
		return nil, errors.Wrap(err, "read bucket file")
	}
	var frames [][]byte
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		frames = append(frames, line)
	}
	return frames, nil
}

func (d *FSDrive) Delete(id security.ID, dt security.DataType, date time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := os.Remove(d.bucketPath(id, dt, date))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove bucket file")
	}
	return nil
}

func (d *FSDrive) Close() error { return nil }
