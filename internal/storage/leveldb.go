package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/yanun0323/errors"

	"main/internal/security"
)

// frame key: f!{security}!{dataType}!{date}!{seq}
// keys sort lexicographically, so iterating a bucket prefix yields frames in
// append order and dates in ascending order.

// LevelDBDrive stores frames in an embedded leveldb database.
type LevelDBDrive struct {
	db *leveldb.DB

	mu   sync.Mutex
	seqs map[string]uint64
}

func NewLevelDBDrive(path string) (*LevelDBDrive, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "open leveldb").With("path", path)
	}
	return &LevelDBDrive{db: db, seqs: make(map[string]uint64)}, nil
}

func bucketPrefix(id security.ID, dt security.DataType, date time.Time) string {
	return fmt.Sprintf("f!%s!%s!%s!", id.String(), dt.String(), day(date).Format(dateLayout))
}

func frameKey(prefix string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%012d", prefix, seq))
}

func (d *LevelDBDrive) Dates(id security.ID, dt security.DataType) ([]time.Time, error) {
	prefix := fmt.Sprintf("f!%s!%s!", id.String(), dt.String())
	iter := d.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	var dates []time.Time
	var last string
	for iter.Next() {
		rest := strings.TrimPrefix(string(iter.Key()), prefix)
		name, _, ok := strings.Cut(rest, "!")
		if !ok || name == last {
			continue
		}
		last = name
		t, err := time.ParseInLocation(dateLayout, name, time.UTC)
		if err != nil {
			continue
		}
		dates = append(dates, t)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "iterate dates")
	}
	return dates, nil
}

func (d *LevelDBDrive) Append(id security.ID, dt security.DataType, date time.Time, frame []byte) error {
	prefix := bucketPrefix(id, dt, date)

	d.mu.Lock()
	defer d.mu.Unlock()

	seq, ok := d.seqs[prefix]
	if !ok {
		n, err := d.countLocked(prefix)
		if err != nil {
			return err
		}
		seq = n
	}
	if err := d.db.Put(frameKey(prefix, seq), frame, nil); err != nil {
		return errors.Wrap(err, "put frame")
	}
	d.seqs[prefix] = seq + 1
	return nil
}

func (d *LevelDBDrive) countLocked(prefix string) (uint64, error) {
	iter := d.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	var n uint64
	for iter.Next() {
		n++
	}
	return n, errors.Wrap(iter.Error(), "count frames")
}

func (d *LevelDBDrive) Load(id security.ID, dt security.DataType, date time.Time) ([][]byte, error) {
	iter := d.db.NewIterator(util.BytesPrefix([]byte(bucketPrefix(id, dt, date))), nil)
	defer iter.Release()

	var frames [][]byte
	for iter.Next() {
		frame := make([]byte, len(iter.Value()))
		copy(frame, iter.Value())
		frames = append(frames, frame)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "iterate frames")
	}
	if len(frames) == 0 {
		return nil, ErrDateNotFound
	}
	return frames, nil
}

func (d *LevelDBDrive) Delete(id security.ID, dt security.DataType, date time.Time) error {
	prefix := bucketPrefix(id, dt, date)

	d.mu.Lock()
	defer d.mu.Unlock()

	iter := d.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	batch := new(leveldb.Batch)
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		batch.Delete(key)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return errors.Wrap(err, "iterate frames")
	}
	if err := d.db.Write(batch, nil); err != nil {
		return errors.Wrap(err, "delete frames")
	}
	delete(d.seqs, prefix)
	return nil
}

func (d *LevelDBDrive) Close() error {
	return d.db.Close()
}
