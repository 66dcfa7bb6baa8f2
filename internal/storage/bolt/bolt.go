// Package bolt provides a BBolt-backed presence database.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-presence/internal/session"
	"github.com/pixil98/go-presence/internal/storage"
	"go.etcd.io/bbolt"
)

var (
	usersBucket    = []byte("users")
	sessionsBucket = []byte("sessions")
)

// Store implements storage.Database backed by a BBolt database. User
// documents live in one bucket, finished sessions in another keyed by
// length-prefixed user, start time and session id so a prefix scan returns
// exactly one user's sessions in order.
type Store struct {
	db *bbolt.DB
}

var _ storage.Database = (*Store)(nil)

// New returns a Store over an open BBolt database.
func New(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{usersBucket, sessionsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewFromFile opens a BBolt database at path and returns a Store over it.
func NewFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Execute(ctx context.Context, tx storage.Transaction) error {
	if st, ok := tx.(storage.StoreSession); ok {
		return s.storeSession(st)
	}

	id, err := storage.UserID(tx)
	if err != nil {
		return err
	}

	return s.db.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket(usersBucket)

		u := &storage.UserRecord{}
		if data := b.Get([]byte(id)); data != nil {
			if err := json.Unmarshal(data, u); err != nil {
				return fmt.Errorf("decoding user %s: %w", id, err)
			}
		}
		if err := u.Apply(tx); err != nil {
			return err
		}
		return putJSON(b, []byte(id), u)
	})
}

func (s *Store) storeSession(st storage.StoreSession) error {
	fs := st.Session
	if fs == nil {
		return fmt.Errorf("no session given")
	}

	return s.db.Update(func(btx *bbolt.Tx) error {
		if err := putJSON(btx.Bucket(sessionsBucket), sessionKey(fs), fs); err != nil {
			return err
		}

		// Keep last-seen current without copying sessions into the user document.
		b := btx.Bucket(usersBucket)
		u := &storage.UserRecord{}
		if data := b.Get([]byte(fs.UserID)); data != nil {
			if err := json.Unmarshal(data, u); err != nil {
				return fmt.Errorf("decoding user %s: %w", fs.UserID, err)
			}
		}
		if fs.End > u.LastSeen {
			u.LastSeen = fs.End
		}
		return putJSON(b, []byte(fs.UserID), u)
	})
}

func (s *Store) user(id string) (*storage.UserRecord, error) {
	var u *storage.UserRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(usersBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
		}
		u = &storage.UserRecord{}
		return json.Unmarshal(data, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) Nickname(ctx context.Context, userID string) (string, error) {
	u, err := s.user(userID)
	if err != nil {
		return "", err
	}
	if u.Nickname == "" {
		return "", fmt.Errorf("nickname of %s: %w", userID, storage.ErrNotFound)
	}
	return u.Nickname, nil
}

func (s *Store) JoinAddress(ctx context.Context, userID string) (string, error) {
	u, err := s.user(userID)
	if err != nil {
		return "", err
	}
	if u.JoinAddress == "" {
		return "", fmt.Errorf("join address of %s: %w", userID, storage.ErrNotFound)
	}
	return u.JoinAddress, nil
}

func (s *Store) Sessions(ctx context.Context, userID string) ([]*session.FinishedSession, error) {
	var out []*session.FinishedSession
	prefix := sessionPrefix(userID)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(sessionsBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			fs := &session.FinishedSession{}
			if err := json.Unmarshal(v, fs); err != nil {
				return fmt.Errorf("decoding session %s: %w", k, err)
			}
			out = append(out, fs)
		}
		return nil
	})
	return out, err
}

// sessionPrefix carries the id length so no user's prefix is a prefix of
// another user's keys.
func sessionPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("%08x%s:", len(userID), userID))
}

func sessionKey(fs *session.FinishedSession) []byte {
	// Zero padded so lexical order matches start order for non-negative times.
	return fmt.Appendf(sessionPrefix(fs.UserID), "%020d:%s", fs.Start, fs.ID)
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}
