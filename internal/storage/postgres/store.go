// Package postgres stores bot data in PostgreSQL through database/sql and the
// pgx driver. The schema is applied with goose from embedded migrations.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"mines-predictor-bot/internal/models"
	"mines-predictor-bot/internal/storage/postgres/migrations"
)

const historyLimit = 100

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn and brings the schema up to date.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// withTx commits when fn succeeds and rolls back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(tx)
}

func (s *Store) LoadState(ctx context.Context, userID int64) (models.ConversationState, error) {
	query := `SELECT state FROM user_states WHERE user_id = $1`

	var data []byte
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Idle{}, nil
	}
	if err != nil {
		return models.Idle{}, fmt.Errorf("db error: %w", err)
	}

	return models.DecodeState(data)
}

func (s *Store) SaveState(ctx context.Context, userID int64, state models.ConversationState) error {
	data, err := models.EncodeState(state)
	if err != nil {
		return err
	}

	query :=
		`INSERT INTO user_states (user_id, state, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, userID, data); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) CountKeys(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activation_keys`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (s *Store) PutKeys(ctx context.Context, keys []models.KeyRecord) error {
	query :=
		`INSERT INTO activation_keys (key_name, duration_days)
		 VALUES ($1, $2)
		 ON CONFLICT (key_name) DO UPDATE SET duration_days = EXCLUDED.duration_days`

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, query, k.Name, k.DurationDays); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) GetKey(ctx context.Context, name string) (models.KeyRecord, error) {
	query := `SELECT key_name, duration_days FROM activation_keys WHERE key_name = $1`

	var k models.KeyRecord
	err := s.db.QueryRowContext(ctx, query, name).Scan(&k.Name, &k.DurationDays)
	if errors.Is(err, sql.ErrNoRows) {
		return models.KeyRecord{}, models.ErrNotFound
	}
	if err != nil {
		return models.KeyRecord{}, fmt.Errorf("db error: %w", err)
	}
	return k, nil
}

func (s *Store) ListKeys(ctx context.Context) ([]models.KeyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key_name, duration_days FROM activation_keys ORDER BY key_name`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var keys []models.KeyRecord
	for rows.Next() {
		var k models.KeyRecord
		if err := rows.Scan(&k.Name, &k.DurationDays); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) GetActivation(ctx context.Context, userID int64) (models.Activation, error) {
	query := `SELECT user_id, key_name, activated_at FROM user_activations WHERE user_id = $1`

	var a models.Activation
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&a.UserID, &a.KeyName, &a.ActivatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Activation{}, models.ErrNotFound
	}
	if err != nil {
		return models.Activation{}, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (s *Store) PutActivation(ctx context.Context, a models.Activation) error {
	query :=
		`INSERT INTO user_activations (user_id, key_name, activated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET key_name = EXCLUDED.key_name, activated_at = EXCLUDED.activated_at`

	if _, err := s.db.ExecContext(ctx, query, a.UserID, a.KeyName, a.ActivatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM admin_users WHERE user_id = $1)`, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (s *Store) AddAdmin(ctx context.Context, userID int64) error {
	query := `INSERT INTO admin_users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RecordPrediction inserts p and trims the user's history to the newest entries.
func (s *Store) RecordPrediction(ctx context.Context, p *models.Prediction) error {
	safe, err := json.Marshal(p.SafeTiles)
	if err != nil {
		return fmt.Errorf("failed to marshal safe tiles: %w", err)
	}
	revealed, err := json.Marshal(p.Revealed)
	if err != nil {
		return fmt.Errorf("failed to marshal revealed tiles: %w", err)
	}

	insert :=
		`INSERT INTO predictions (id, user_id, mine_count, server_seed, client_seed, nonce,
		   digest, safe_tiles, revealed, bombs_placed, bet_amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	trim :=
		`DELETE FROM predictions
		 WHERE user_id = $1 AND id NOT IN (
		   SELECT id FROM predictions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
		 )`

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insert,
			p.ID, p.UserID, p.MineCount, p.ServerSeed, p.ClientSeed, p.Nonce,
			p.Digest, safe, revealed, p.BombsPlaced, p.BetAmount, p.CreatedAt); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if _, err := tx.ExecContext(ctx, trim, p.UserID, historyLimit); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (s *Store) RecentPredictions(ctx context.Context, userID int64, limit int64) ([]*models.Prediction, error) {
	if limit <= 0 || limit > historyLimit {
		limit = 50
	}

	query :=
		`SELECT id, user_id, mine_count, server_seed, client_seed, nonce,
		        digest, safe_tiles, revealed, bombs_placed, bet_amount, created_at
		 FROM predictions
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Prediction
	for rows.Next() {
		p := &models.Prediction{}
		var safe, revealed []byte
		if err := rows.Scan(&p.ID, &p.UserID, &p.MineCount, &p.ServerSeed, &p.ClientSeed, &p.Nonce,
			&p.Digest, &safe, &revealed, &p.BombsPlaced, &p.BetAmount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if err := json.Unmarshal(safe, &p.SafeTiles); err != nil {
			return nil, fmt.Errorf("failed to unmarshal safe tiles: %w", err)
		}
		if err := json.Unmarshal(revealed, &p.Revealed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal revealed tiles: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
