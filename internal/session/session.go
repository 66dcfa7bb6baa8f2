package session

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/pixil98/go-presence/internal/playtime"
)

// Kill records a player killing another player during a session.
type Kill struct {
	VictimID   string `json:"victim_id"`
	VictimName string `json:"victim_name,omitempty"`
	Weapon     string `json:"weapon,omitempty"`
	Time       int64  `json:"time"`
}

// ActiveSession is an in-progress session. All methods are safe for
// concurrent use.
type ActiveSession struct {
	mu sync.Mutex

	userID   string
	serverID string
	start    int64
	times    *playtime.Times
	ended    bool

	nickname    string
	joinAddress string
	serverName  string
	kills       []Kill
	mobKills    int
	deaths      int
	ext         ExtensionState
}

type ActiveSessionOpt func(*ActiveSession)

func WithNickname(name string) ActiveSessionOpt {
	return func(s *ActiveSession) {
		s.nickname = name
	}
}

func WithJoinAddress(addr string) ActiveSessionOpt {
	return func(s *ActiveSession) {
		s.joinAddress = addr
	}
}

func WithServerName(name string) ActiveSessionOpt {
	return func(s *ActiveSession) {
		s.serverName = name
	}
}

// NewActiveSession starts a session at start with location/mode as the
// initial pair.
func NewActiveSession(userID, serverID string, start int64, location, mode string, opts ...ActiveSessionOpt) *ActiveSession {
	s := &ActiveSession{
		userID:   userID,
		serverID: serverID,
		start:    start,
		times:    playtime.New(location, mode, start),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ActiveSession) UserID() string {
	return s.userID
}

func (s *ActiveSession) ServerID() string {
	return s.serverID
}

func (s *ActiveSession) Start() int64 {
	return s.start
}

func (s *ActiveSession) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname
}

func (s *ActiveSession) JoinAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joinAddress
}

func (s *ActiveSession) ServerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverName
}

// Current returns the location and mode the player is in right now.
func (s *ActiveSession) Current() (location, mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.times.Current()
}

// ChangeState records a location/mode transition at the given time.
func (s *ActiveSession) ChangeState(location, mode string, at int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.times.Observe(location, mode, at)
}

// RenameLocation moves all time accrued under from to to.
func (s *ActiveSession) RenameLocation(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.times.RenameLocation(from, to)
}

// RenameMode moves all time accrued under mode from to mode to.
func (s *ActiveSession) RenameMode(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.times.RenameMode(from, to)
}

// Times returns a snapshot of the play time including the time accrued since
// the last transition. It does not modify the session.
func (s *ActiveSession) Times(now int64) *playtime.Times {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.times.Pending(now)
}

// Commit folds pending play time into the current location/mode.
func (s *ActiveSession) Commit(now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.times.Commit(now)
}

func (s *ActiveSession) AddKill(k Kill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.kills = append(s.kills, k)
}

func (s *ActiveSession) AddMobKill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.mobKills++
}

func (s *ActiveSession) AddDeath() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.deaths++
}

func (s *ActiveSession) Kills() []Kill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.kills)
}

func (s *ActiveSession) MobKills() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mobKills
}

func (s *ActiveSession) Deaths() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deaths
}

// SetExtension stores plugin data on the session.
func (s *ActiveSession) SetExtension(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ext.Set(key, v)
}

// GetExtension reads plugin data previously stored with SetExtension.
func (s *ActiveSession) GetExtension(key string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ext.Get(key, out)
}

// finish ends the session at end. It fails if end precedes the start or the
// session has already been finished.
func (s *ActiveSession) finish(end int64) (*FinishedSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended || end < s.start {
		return nil, false
	}
	s.ended = true
	s.times.Finalize(end)

	return &FinishedSession{
		ID:          uuid.New(),
		UserID:      s.userID,
		ServerID:    s.serverID,
		Start:       s.start,
		End:         end,
		Times:       s.times.Clone(),
		Nickname:    s.nickname,
		JoinAddress: s.joinAddress,
		ServerName:  s.serverName,
		Kills:       slices.Clone(s.kills),
		MobKills:    s.mobKills,
		Deaths:      s.deaths,
		Extensions:  s.ext.clone(),
	}, true
}

// FinishedSession is a completed session. It is produced once per
// ActiveSession and must be treated as read-only.
type FinishedSession struct {
	ID          uuid.UUID       `json:"id"`
	UserID      string          `json:"user_id"`
	ServerID    string          `json:"server_id"`
	Start       int64           `json:"start"`
	End         int64           `json:"end"`
	Times       *playtime.Times `json:"times"`
	Nickname    string          `json:"nickname,omitempty"`
	JoinAddress string          `json:"join_address,omitempty"`
	ServerName  string          `json:"server_name,omitempty"`
	Kills       []Kill          `json:"kills,omitempty"`
	MobKills    int             `json:"mob_kills"`
	Deaths      int             `json:"deaths"`
	Extensions  ExtensionState  `json:"ext,omitempty"`
}

// Duration returns End - Start in milliseconds.
func (f *FinishedSession) Duration() int64 {
	return f.End - f.Start
}
