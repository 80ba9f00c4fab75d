package settings

import (
	"testing"

	"go.etcd.io/bbolt"
)

// WriteRawEnvelopeForTest writes a raw version+payload envelope directly
// into the settings bucket, bypassing Save's own version stamping, so
// tests can exercise Load's version-mismatch path.
func WriteRawEnvelopeForTest(t *testing.T, db *bbolt.DB, version uint32, payload []byte) {
	t.Helper()
	envelope := encodeEnvelope(version, payload)
	err := db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put([]byte(recordKey), envelope)
	})
	if err != nil {
		t.Fatal(err)
	}
}
