package storage

import (
	"context"
	"fmt"

	"github.com/pixil98/go-presence/internal/session"
)

// FileDatabase is a Database keeping one JSON document per user on disk.
// It suits single-server deployments and tests.
type FileDatabase struct {
	users *FileStore[*UserRecord]
}

var _ Database = (*FileDatabase)(nil)

func NewFileDatabase(path string) (*FileDatabase, error) {
	users, err := NewFileStore[*UserRecord](path)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	return &FileDatabase{users: users}, nil
}

func (d *FileDatabase) Execute(ctx context.Context, tx Transaction) error {
	id, err := UserID(tx)
	if err != nil {
		return err
	}

	return d.users.Update(id, func(prev *UserRecord) (*UserRecord, error) {
		u := &UserRecord{}
		if prev != nil {
			u = prev.Clone()
		}
		if err := u.Apply(tx); err != nil {
			return nil, err
		}
		return u, nil
	})
}

func (d *FileDatabase) Nickname(ctx context.Context, userID string) (string, error) {
	u, ok := d.users.Get(userID)
	if !ok || u.Nickname == "" {
		return "", ErrNotFound
	}
	return u.Nickname, nil
}

func (d *FileDatabase) JoinAddress(ctx context.Context, userID string) (string, error) {
	u, ok := d.users.Get(userID)
	if !ok || u.JoinAddress == "" {
		return "", ErrNotFound
	}
	return u.JoinAddress, nil
}

func (d *FileDatabase) Sessions(ctx context.Context, userID string) ([]*session.FinishedSession, error) {
	u, ok := d.users.Get(userID)
	if !ok {
		return nil, nil
	}
	return u.Clone().Sessions, nil
}

// User returns the stored record of a user.
func (d *FileDatabase) User(userID string) (*UserRecord, bool) {
	u, ok := d.users.Get(userID)
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

func (d *FileDatabase) Close() error {
	return nil
}
