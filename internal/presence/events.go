package presence

// Player describes the joining user as reported by the game server.
type Player struct {
	Name          string `json:"name"`
	Location      string `json:"location"`
	Mode          string `json:"mode"`
	OriginAddress string `json:"origin_address,omitempty"`
	RegisterDate  int64  `json:"register_date,omitempty"`
	IsOperator    bool   `json:"is_operator,omitempty"`
	IsBanned      bool   `json:"is_banned,omitempty"`
}

type JoinEvent struct {
	UserID     string `json:"user_id"`
	ServerID   string `json:"server_id"`
	ServerName string `json:"server_name,omitempty"`
	Time       int64  `json:"time"`
	Player     Player `json:"player"`
}

type LeaveEvent struct {
	UserID   string `json:"user_id"`
	ServerID string `json:"server_id"`
	Time     int64  `json:"time"`
	IsBanned bool   `json:"is_banned,omitempty"`
}

// StateChangeEvent moves a user to a new location and mode.
type StateChangeEvent struct {
	UserID   string `json:"user_id"`
	Location string `json:"location"`
	Mode     string `json:"mode"`
	Time     int64  `json:"time"`
}

// KillEvent records a kill by UserID. Mob kills carry no victim.
type KillEvent struct {
	UserID     string `json:"user_id"`
	Mob        bool   `json:"mob,omitempty"`
	VictimID   string `json:"victim_id,omitempty"`
	VictimName string `json:"victim_name,omitempty"`
	Weapon     string `json:"weapon,omitempty"`
	Time       int64  `json:"time"`
}

type DeathEvent struct {
	UserID string `json:"user_id"`
	Time   int64  `json:"time"`
}
