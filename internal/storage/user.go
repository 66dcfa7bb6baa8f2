package storage

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-presence/internal/session"
)

// UserRecord is the document form of everything persisted about a user.
// The file and bolt databases store one per user.
type UserRecord struct {
	Name        string          `json:"name"`
	Registered  int64           `json:"registered"`
	LastSeen    int64           `json:"last_seen"`
	Nickname    string          `json:"nickname,omitempty"`
	JoinAddress string          `json:"join_address,omitempty"`
	Country     string          `json:"country,omitempty"`
	Operator    map[string]bool `json:"operator,omitempty"`
	Banned      map[string]bool `json:"banned,omitempty"`

	Sessions []*session.FinishedSession `json:"sessions,omitempty"`
}

func (u *UserRecord) Validate() error {
	el := errors.NewErrorList()

	if u.Registered < 0 {
		el.Add(fmt.Errorf("registered must not be negative"))
	}
	for i, s := range u.Sessions {
		if s == nil {
			el.Add(fmt.Errorf("session %d is empty", i))
			continue
		}
		if s.End < s.Start {
			el.Add(fmt.Errorf("session %s ends before it starts", s.ID))
		}
	}

	return el.Err()
}

// Apply folds tx into the record.
func (u *UserRecord) Apply(tx Transaction) error {
	switch t := tx.(type) {
	case StoreSession:
		if t.Session == nil {
			return fmt.Errorf("no session given")
		}
		u.Sessions = append(u.Sessions, t.Session)
		slices.SortFunc(u.Sessions, func(a, b *session.FinishedSession) int {
			return cmp.Compare(a.Start, b.Start)
		})
		u.seen(t.Session.End)
	case RegisterUser:
		if u.Registered == 0 || (t.Registered > 0 && t.Registered < u.Registered) {
			u.Registered = t.Registered
		}
		if t.PlayerName != "" {
			u.Name = t.PlayerName
		}
		u.seen(t.LastSeen)
	case StoreNickname:
		u.Nickname = t.Nickname
		u.seen(t.LastSeen)
	case StoreJoinAddress:
		u.JoinAddress = t.Address
		u.seen(t.LastSeen)
	case StoreGeoInfo:
		u.Country = t.Country
		u.seen(t.LastSeen)
	case StoreOperatorStatus:
		if u.Operator == nil {
			u.Operator = map[string]bool{}
		}
		u.Operator[t.ServerID] = t.Operator
	case StoreBanStatus:
		if u.Banned == nil {
			u.Banned = map[string]bool{}
		}
		u.Banned[t.ServerID] = t.Banned
	default:
		return fmt.Errorf("%w: %T", ErrUnknownTransaction, tx)
	}
	return nil
}

// Clone returns a copy that can be modified without affecting u.
func (u *UserRecord) Clone() *UserRecord {
	c := *u
	c.Operator = maps.Clone(u.Operator)
	c.Banned = maps.Clone(u.Banned)
	c.Sessions = slices.Clone(u.Sessions)
	return &c
}

func (u *UserRecord) seen(at int64) {
	if at > u.LastSeen {
		u.LastSeen = at
	}
}

// UserID returns the user a transaction is about.
func UserID(tx Transaction) (string, error) {
	switch t := tx.(type) {
	case StoreSession:
		if t.Session == nil {
			return "", fmt.Errorf("no session given")
		}
		return t.Session.UserID, nil
	case RegisterUser:
		return t.UserID, nil
	case StoreNickname:
		return t.UserID, nil
	case StoreJoinAddress:
		return t.UserID, nil
	case StoreGeoInfo:
		return t.UserID, nil
	case StoreOperatorStatus:
		return t.UserID, nil
	case StoreBanStatus:
		return t.UserID, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownTransaction, tx)
	}
}
