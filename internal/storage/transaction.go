package storage

import (
	"context"
	"errors"

	"github.com/pixil98/go-presence/internal/session"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrUnknownTransaction = errors.New("unknown transaction")
)

// Transaction is a single write handed to a Database.
type Transaction interface {
	Name() string
}

// Database is the durable store behind the presence caches.
type Database interface {
	Execute(ctx context.Context, tx Transaction) error

	// Nickname returns the last stored display name of a user, or ErrNotFound.
	Nickname(ctx context.Context, userID string) (string, error)
	// JoinAddress returns the last stored origin address of a user, or ErrNotFound.
	JoinAddress(ctx context.Context, userID string) (string, error)
	// Sessions returns every stored session of a user ordered by start.
	Sessions(ctx context.Context, userID string) ([]*session.FinishedSession, error)

	Close() error
}

// StoreSession persists a finished session.
type StoreSession struct {
	Session *session.FinishedSession
}

func (StoreSession) Name() string { return "store-session" }

// RegisterUser records a user the first time they are seen and refreshes
// their last-seen time afterwards.
type RegisterUser struct {
	UserID     string
	PlayerName string
	ServerID   string
	Registered int64
	LastSeen   int64
}

func (RegisterUser) Name() string { return "register-user" }

type StoreNickname struct {
	UserID   string
	Nickname string
	ServerID string
	LastSeen int64
}

func (StoreNickname) Name() string { return "store-nickname" }

type StoreJoinAddress struct {
	UserID   string
	Address  string
	LastSeen int64
}

func (StoreJoinAddress) Name() string { return "store-join-address" }

type StoreGeoInfo struct {
	UserID   string
	Country  string
	LastSeen int64
}

func (StoreGeoInfo) Name() string { return "store-geo-info" }

type StoreOperatorStatus struct {
	UserID   string
	ServerID string
	Operator bool
}

func (StoreOperatorStatus) Name() string { return "store-operator-status" }

type StoreBanStatus struct {
	UserID   string
	ServerID string
	Banned   bool
}

func (StoreBanStatus) Name() string { return "store-ban-status" }
