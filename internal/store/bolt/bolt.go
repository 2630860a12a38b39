// Package bolt keeps the export history in an embedded bbolt database.
package bolt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/printforge/timelapse-exporter/internal/model"
)

const bucketName = "ExportHistory"

// Store is the bbolt-backed history store.
type Store struct {
	path string
	conn *bbolt.DB
}

func New(path string) *Store {
	return &Store{path: path}
}

// Open opens the database file, creating it if needed. The open timeout keeps
// two concurrent invocations from deadlocking on the same file.
func (s *Store) Open() error {
	db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("opening history database %s: %w", s.path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("creating history bucket: %w", err)
	}
	s.conn = db
	return nil
}

func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Store) Insert(h *model.NewExportHistory) (uint64, error) {
	var id uint64
	err := s.conn.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = seq
		rec := model.ExportHistory{
			ID:        id,
			Host:      h.Host,
			Target:    h.Target,
			RequestID: h.RequestID,
			Status:    model.ExportStatusPending,
			StartedAt: h.StartedAt,
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key(id), data)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) UpdateStatus(id uint64, status model.ExportStatus, savedPath string) error {
	return s.conn.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		v := b.Get(key(id))
		if v == nil {
			return fmt.Errorf("history record %d not found", id)
		}
		var rec model.ExportHistory
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		rec.Status = status
		rec.FinishedAt = time.Now().UnixMilli()
		if savedPath != "" {
			rec.SavedPath = savedPath
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key(id), data)
	})
}

func (s *Store) List(limit int) ([]model.ExportHistory, error) {
	var out []model.ExportHistory
	err := s.conn.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var rec model.ExportHistory
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt history record %x: %w", k, err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// key encodes ids big-endian so key order matches insertion order.
func key(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}
