package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"github.com/open-foundation-team/apple-music-remote/internal/config"
)

const (
	storeFile = "credentials.db"

	// tokenBytes is the entropy of a generated token; hex-encoded it
	// yields a 32 character secret.
	tokenBytes = 16
)

var (
	bucketCredentials = []byte("credentials")
	keyAccessToken    = []byte("access_token")
)

// Record is the persisted credential entry.
type Record struct {
	Token     string    `cbor:"1,keyasint"`
	CreatedAt time.Time `cbor:"2,keyasint"`
	RotatedAt time.Time `cbor:"3,keyasint,omitempty"`
}

// Store persists the access token in a small bolt database under the
// user's config directory. It implements TokenProvider.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (creating when absent) the credential store at path.
// An empty path resolves to credentials.db in the OS config directory.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		dir, err := config.Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, storeFile)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential store directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCredentials)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create credentials bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadOrCreateToken returns the stored token, generating and persisting a
// fresh one on first use. The read-or-create happens in one transaction so
// concurrent callers observe the same token.
func (s *Store) LoadOrCreateToken() (string, error) {
	var token string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		if data := b.Get(keyAccessToken); data != nil {
			var rec Record
			if err := cbor.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("failed to decode credential record: %w", err)
			}
			token = rec.Token
			return nil
		}

		generated, err := generateToken()
		if err != nil {
			return err
		}
		rec := Record{Token: generated, CreatedAt: time.Now().UTC()}
		data, err := cbor.Marshal(rec)
		if err != nil {
			return err
		}
		if err := b.Put(keyAccessToken, data); err != nil {
			return err
		}
		token = generated
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Rotate replaces the stored token with a freshly generated one and
// returns it. Existing connections keep working; new authentications must
// present the new token.
func (s *Store) Rotate() (string, error) {
	generated, err := generateToken()
	if err != nil {
		return "", err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCredentials)

		rec := Record{Token: generated, RotatedAt: time.Now().UTC()}
		if data := b.Get(keyAccessToken); data != nil {
			var prev Record
			if err := cbor.Unmarshal(data, &prev); err == nil {
				rec.CreatedAt = prev.CreatedAt
			}
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = rec.RotatedAt
		}

		data, err := cbor.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(keyAccessToken, data)
	})
	if err != nil {
		return "", err
	}
	return generated, nil
}

// Info returns the stored credential record without creating one.
func (s *Store) Info() (*Record, error) {
	var rec *Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		data := b.Get(keyAccessToken)
		if data == nil {
			return nil
		}
		var r Record
		if err := cbor.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("failed to decode credential record: %w", err)
		}
		rec = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
