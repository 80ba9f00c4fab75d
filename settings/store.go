package settings

import (
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	bucketName = "settings"
	recordKey  = "current"
)

// Store is the contract the rest of the core depends on.
type Store interface {
	Init() (bool, error)
	Load() (Settings, error)
	Save(Settings) error
	ResetToDefaults() Settings
}

// BoltStore persists Settings in a single BoltDB bucket. The on-disk
// record is an explicit tagged envelope — a 4-byte version and a 4-byte
// payload length, followed by a msgpack-encoded payload — rather than a native-endian
// struct dump, so a version mismatch is detected before the payload is
// ever decoded.
type BoltStore struct {
	log *zap.Logger
	db  *bbolt.DB
}

// NewBoltStore opens (creating if necessary) the bucket used to hold the
// settings record.
func NewBoltStore(log *zap.Logger, db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("settings: create bucket: %w", err)
	}
	return &BoltStore{log: log.Named("settings"), db: db}, nil
}

// NewReadOnlyBoltStore wraps a *bbolt.DB opened with bbolt.Options{ReadOnly:
// true}. It skips the bucket-creation step NewBoltStore does, since a
// read-only-opened DB rejects writable transactions outright: callers are
// expected to only ever point this at a database srsd has already
// initialized. Save and ResetToDefaults still exist on the returned Store
// but will fail against the underlying read-only DB if called.
func NewReadOnlyBoltStore(log *zap.Logger, db *bbolt.DB) *BoltStore {
	return &BoltStore{log: log.Named("settings"), db: db}
}

// Init loads the persisted record; on a missing record or version
// mismatch it resets to factory defaults and persists them.
func (s *BoltStore) Init() (bool, error) {
	loaded, err := s.Load()
	if err == nil {
		return true, nil
	}
	s.log.Warn("settings load failed, resetting to factory defaults", zap.Error(err))
	loaded = s.ResetToDefaults()
	if err := s.Save(loaded); err != nil {
		return false, err
	}
	return false, nil
}

// Load decodes the persisted record, returning an error if it is absent
// or its version does not match the current Version.
func (s *BoltStore) Load() (Settings, error) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("settings: bucket missing")
		}
		v := b.Get([]byte(recordKey))
		if v == nil {
			return fmt.Errorf("settings: no record")
		}
		raw = append(raw, v...)
		return nil
	})
	if err != nil {
		return Settings{}, err
	}

	version, payload, err := decodeEnvelope(raw)
	if err != nil {
		return Settings{}, err
	}
	if version != Version {
		return Settings{}, fmt.Errorf("settings: version mismatch: got %d want %d", version, Version)
	}

	var out Settings
	if err := msgpack.Unmarshal(payload, &out); err != nil {
		return Settings{}, fmt.Errorf("settings: decode payload: %w", err)
	}
	return out, nil
}

// Save atomically replaces the persisted record. BoltDB's transaction
// guarantees that any concurrent reader either sees the old record or
// the new one, never a half-applied write.
func (s *BoltStore) Save(rec Settings) error {
	rec.Version = Version
	payload, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("settings: encode payload: %w", err)
	}
	envelope := encodeEnvelope(Version, payload)

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("settings: bucket missing")
		}
		return b.Put([]byte(recordKey), envelope)
	})
}

// ResetToDefaults returns the factory-default record without persisting
// it; callers that want it on disk must call Save themselves.
func (s *BoltStore) ResetToDefaults() Settings {
	return Defaults()
}

func encodeEnvelope(version uint32, payload []byte) []byte {
	out := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(out[:4], version)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(payload)))
	copy(out[8:], payload)
	return out
}

func decodeEnvelope(raw []byte) (uint32, []byte, error) {
	if len(raw) < 8 {
		return 0, nil, fmt.Errorf("settings: envelope too short")
	}
	version := binary.LittleEndian.Uint32(raw[:4])
	length := binary.LittleEndian.Uint32(raw[4:8])
	if uint64(length) != uint64(len(raw)-8) {
		return 0, nil, fmt.Errorf("settings: envelope length %d does not match payload size %d", length, len(raw)-8)
	}
	return version, raw[8:], nil
}
