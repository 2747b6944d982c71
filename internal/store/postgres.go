// Package store provides storage backends for the Interlagos Conectado assistant.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/InterlagosConectado/Assistente/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetUserProfile(uid string) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.QueryRow(
		`SELECT uid, display_name, has_completed_onboarding, created_at, updated_at FROM user_profiles WHERE uid = $1`,
		uid,
	).Scan(&p.UID, &p.DisplayName, &p.HasCompletedOnboarding, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetUserProfile not found", "uid", uid)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserProfile failed", "error", err, "uid", uid)
		return nil, fmt.Errorf("failed to query profile for %s: %w", uid, err)
	}
	return &p, nil
}

func (s *PostgresStore) SaveUserProfile(p models.UserProfile) error {
	_, err := s.db.Exec(`
		INSERT INTO user_profiles (uid, display_name, has_completed_onboarding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (uid) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			has_completed_onboarding = EXCLUDED.has_completed_onboarding,
			updated_at = EXCLUDED.updated_at`,
		p.UID, p.DisplayName, p.HasCompletedOnboarding, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveUserProfile failed", "error", err, "uid", p.UID)
		return fmt.Errorf("failed to save profile for %s: %w", p.UID, err)
	}
	slog.Debug("PostgresStore SaveUserProfile succeeded", "uid", p.UID)
	return nil
}

// CompleteOnboarding is conditional on the stored flag still being false, so
// the false->true transition happens at most once.
func (s *PostgresStore) CompleteOnboarding(uid string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE user_profiles SET has_completed_onboarding = TRUE, updated_at = NOW()
		 WHERE uid = $1 AND has_completed_onboarding = FALSE`, uid)
	if err != nil {
		slog.Error("PostgresStore CompleteOnboarding failed", "error", err, "uid", uid)
		return false, fmt.Errorf("failed to complete onboarding for %s: %w", uid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	slog.Debug("PostgresStore CompleteOnboarding", "uid", uid, "transitioned", n > 0)
	return n > 0, nil
}

// AppendTurn computes the next per-user sequence number in the insert itself.
// The unique index on (user_id, seq) rejects the loser if two appends for one
// user land at the same instant.
func (s *PostgresStore) AppendTurn(turn models.ConversationTurn) (models.ConversationTurn, error) {
	err := s.db.QueryRow(
		`INSERT INTO conversation_turns (id, user_id, sender, message_content, chatbot_persona, seq, timestamp)
		 SELECT $1, $2, $3, $4, $5, COALESCE(MAX(seq), 0) + 1, $6
		 FROM conversation_turns WHERE user_id = $2
		 RETURNING seq`,
		turn.ID, turn.UserID, turn.Sender, turn.Message, string(turn.Persona), turn.Timestamp,
	).Scan(&turn.Seq)
	if err != nil {
		slog.Error("PostgresStore AppendTurn failed", "error", err, "uid", turn.UserID)
		return turn, fmt.Errorf("failed to insert conversation turn: %w", err)
	}
	slog.Debug("PostgresStore AppendTurn succeeded", "uid", turn.UserID, "sender", turn.Sender, "seq", turn.Seq)
	return turn, nil
}

func (s *PostgresStore) ListRecentTurns(uid string, limit int) ([]models.ConversationTurn, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, sender, message_content, chatbot_persona, seq, timestamp
		 FROM conversation_turns WHERE user_id = $1 ORDER BY seq DESC LIMIT $2`,
		uid, limit)
	if err != nil {
		slog.Error("PostgresStore ListRecentTurns query failed", "error", err, "uid", uid)
		return nil, fmt.Errorf("failed to query conversation turns: %w", err)
	}
	turns, err := collectTurns(rows)
	if err != nil {
		slog.Error("PostgresStore ListRecentTurns scan failed", "error", err, "uid", uid)
		return nil, err
	}
	reverseTurns(turns)
	slog.Debug("PostgresStore ListRecentTurns succeeded", "uid", uid, "count", len(turns))
	return turns, nil
}

func (s *PostgresStore) LastUserTurn(uid string) (*models.ConversationTurn, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, sender, message_content, chatbot_persona, seq, timestamp
		 FROM conversation_turns WHERE user_id = $1 AND sender = $2 ORDER BY seq DESC LIMIT 1`,
		uid, models.SenderUser)
	t, err := scanTurn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore LastUserTurn failed", "error", err, "uid", uid)
		return nil, fmt.Errorf("failed to query last user turn: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) ListActivePlans() ([]models.Plan, error) {
	rows, err := s.db.Query(
		`SELECT id, name, price, currency, description, features, is_active
		 FROM plans WHERE is_active = TRUE ORDER BY price ASC`)
	if err != nil {
		slog.Error("PostgresStore ListActivePlans query failed", "error", err)
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			slog.Error("PostgresStore ListActivePlans scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListActivePlans rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate plan rows: %w", err)
	}
	slog.Debug("PostgresStore ListActivePlans succeeded", "count", len(plans))
	return plans, nil
}

func (s *PostgresStore) SavePlan(p models.Plan) error {
	features, err := encodeFeatures(p.Features)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO plans (id, name, price, currency, description, features, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			description = EXCLUDED.description,
			features = EXCLUDED.features,
			is_active = EXCLUDED.is_active`,
		p.ID, p.Name, p.Price, p.Currency, p.Description, features, p.IsActive)
	if err != nil {
		slog.Error("PostgresStore SavePlan failed", "error", err, "planID", p.ID)
		return fmt.Errorf("failed to save plan %s: %w", p.ID, err)
	}
	slog.Debug("PostgresStore SavePlan succeeded", "planID", p.ID, "name", p.Name)
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
