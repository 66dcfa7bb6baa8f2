// Package postgres provides PostgreSQL storage for presence data.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/pixil98/go-presence/internal/playtime"
	"github.com/pixil98/go-presence/internal/session"
	"github.com/pixil98/go-presence/internal/storage"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// sessionColumns lists columns returned by session SELECT queries.
var sessionColumns = []string{
	"id", "user_id", "server_id", "session_start", "session_end",
	"nickname", "join_address", "server_name", "mob_kills", "deaths",
	"times", "kills", "ext",
}

// Store implements storage.Database using PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.Database = (*Store)(nil)

// New creates a Store over an open connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn, applies pending migrations and returns a Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Execute(ctx context.Context, tx storage.Transaction) error {
	q, err := buildTransaction(tx)
	if err != nil {
		return err
	}

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building %s: %w", tx.Name(), err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", tx.Name(), err)
	}
	return nil
}

func buildTransaction(tx storage.Transaction) (sq.InsertBuilder, error) {
	switch t := tx.(type) {
	case storage.StoreSession:
		return insertSession(t.Session)
	case storage.RegisterUser:
		return psq.Insert("presence_users").
			Columns("user_id", "name", "registered", "last_seen").
			Values(t.UserID, t.PlayerName, t.Registered, t.LastSeen).
			Suffix(`ON CONFLICT (user_id) DO UPDATE SET
				name = COALESCE(NULLIF(EXCLUDED.name, ''), presence_users.name),
				registered = CASE WHEN presence_users.registered = 0 THEN EXCLUDED.registered
					ELSE LEAST(presence_users.registered, NULLIF(EXCLUDED.registered, 0)) END,
				last_seen = GREATEST(presence_users.last_seen, EXCLUDED.last_seen)`), nil
	case storage.StoreNickname:
		return psq.Insert("presence_nicknames").
			Columns("user_id", "nickname", "server_id", "last_seen").
			Values(t.UserID, t.Nickname, t.ServerID, t.LastSeen).
			Suffix(`ON CONFLICT (user_id) DO UPDATE SET
				nickname = EXCLUDED.nickname, server_id = EXCLUDED.server_id, last_seen = EXCLUDED.last_seen`), nil
	case storage.StoreJoinAddress:
		return psq.Insert("presence_join_addresses").
			Columns("user_id", "address", "last_seen").
			Values(t.UserID, t.Address, t.LastSeen).
			Suffix(`ON CONFLICT (user_id) DO UPDATE SET
				address = EXCLUDED.address, last_seen = EXCLUDED.last_seen`), nil
	case storage.StoreGeoInfo:
		return psq.Insert("presence_geolocations").
			Columns("user_id", "country", "last_seen").
			Values(t.UserID, t.Country, t.LastSeen).
			Suffix(`ON CONFLICT (user_id) DO UPDATE SET
				country = EXCLUDED.country, last_seen = EXCLUDED.last_seen`), nil
	case storage.StoreOperatorStatus:
		return psq.Insert("presence_user_servers").
			Columns("user_id", "server_id", "operator").
			Values(t.UserID, t.ServerID, t.Operator).
			Suffix(`ON CONFLICT (user_id, server_id) DO UPDATE SET operator = EXCLUDED.operator`), nil
	case storage.StoreBanStatus:
		return psq.Insert("presence_user_servers").
			Columns("user_id", "server_id", "banned").
			Values(t.UserID, t.ServerID, t.Banned).
			Suffix(`ON CONFLICT (user_id, server_id) DO UPDATE SET banned = EXCLUDED.banned`), nil
	default:
		return sq.InsertBuilder{}, fmt.Errorf("%w: %T", storage.ErrUnknownTransaction, tx)
	}
}

func insertSession(fs *session.FinishedSession) (sq.InsertBuilder, error) {
	if fs == nil {
		return sq.InsertBuilder{}, fmt.Errorf("no session given")
	}

	times, err := json.Marshal(fs.Times)
	if err != nil {
		return sq.InsertBuilder{}, fmt.Errorf("encoding play time: %w", err)
	}
	kills, err := json.Marshal(fs.Kills)
	if err != nil {
		return sq.InsertBuilder{}, fmt.Errorf("encoding kills: %w", err)
	}
	ext, err := json.Marshal(fs.Extensions)
	if err != nil {
		return sq.InsertBuilder{}, fmt.Errorf("encoding extensions: %w", err)
	}

	return psq.Insert("presence_sessions").
		Columns(sessionColumns...).
		Values(
			fs.ID, fs.UserID, fs.ServerID, fs.Start, fs.End,
			fs.Nickname, fs.JoinAddress, fs.ServerName, fs.MobKills, fs.Deaths,
			times, kills, ext,
		).
		Suffix("ON CONFLICT (id) DO NOTHING"), nil
}

func (s *Store) lookup(ctx context.Context, column, table, userID string) (string, error) {
	query, args, err := psq.Select(column).From(table).Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return "", fmt.Errorf("building query: %w", err)
	}

	var v string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s of %s: %w", column, userID, storage.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", table, err)
	}
	return v, nil
}

func (s *Store) Nickname(ctx context.Context, userID string) (string, error) {
	return s.lookup(ctx, "nickname", "presence_nicknames", userID)
}

func (s *Store) JoinAddress(ctx context.Context, userID string) (string, error) {
	return s.lookup(ctx, "address", "presence_join_addresses", userID)
}

func (s *Store) Sessions(ctx context.Context, userID string) ([]*session.FinishedSession, error) {
	query, args, err := psq.Select(sessionColumns...).
		From("presence_sessions").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("session_start ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*session.FinishedSession
	for rows.Next() {
		fs, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return out, nil
}

func scanSession(rows *sql.Rows) (*session.FinishedSession, error) {
	var (
		fs                session.FinishedSession
		times, kills, ext []byte
	)
	err := rows.Scan(
		&fs.ID, &fs.UserID, &fs.ServerID, &fs.Start, &fs.End,
		&fs.Nickname, &fs.JoinAddress, &fs.ServerName, &fs.MobKills, &fs.Deaths,
		&times, &kills, &ext,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	fs.Times = &playtime.Times{}
	if err := json.Unmarshal(times, fs.Times); err != nil {
		return nil, fmt.Errorf("decoding play time of %s: %w", fs.ID, err)
	}
	if err := json.Unmarshal(kills, &fs.Kills); err != nil {
		return nil, fmt.Errorf("decoding kills of %s: %w", fs.ID, err)
	}
	if err := json.Unmarshal(ext, &fs.Extensions); err != nil {
		return nil, fmt.Errorf("decoding extensions of %s: %w", fs.ID, err)
	}
	return &fs, nil
}
