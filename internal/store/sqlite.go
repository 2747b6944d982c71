// Package store provides storage backends for the Interlagos Conectado assistant.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/InterlagosConectado/Assistente/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetUserProfile(uid string) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.QueryRow(
		`SELECT uid, display_name, has_completed_onboarding, created_at, updated_at FROM user_profiles WHERE uid = ?`,
		uid,
	).Scan(&p.UID, &p.DisplayName, &p.HasCompletedOnboarding, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetUserProfile not found", "uid", uid)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserProfile failed", "error", err, "uid", uid)
		return nil, fmt.Errorf("failed to query profile for %s: %w", uid, err)
	}
	return &p, nil
}

func (s *SQLiteStore) SaveUserProfile(p models.UserProfile) error {
	_, err := s.db.Exec(`
		INSERT INTO user_profiles (uid, display_name, has_completed_onboarding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			display_name = excluded.display_name,
			has_completed_onboarding = excluded.has_completed_onboarding,
			updated_at = excluded.updated_at`,
		p.UID, p.DisplayName, p.HasCompletedOnboarding, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveUserProfile failed", "error", err, "uid", p.UID)
		return fmt.Errorf("failed to save profile for %s: %w", p.UID, err)
	}
	slog.Debug("SQLiteStore SaveUserProfile succeeded", "uid", p.UID)
	return nil
}

// CompleteOnboarding is conditional on the stored flag still being false, so
// the false->true transition happens at most once.
func (s *SQLiteStore) CompleteOnboarding(uid string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE user_profiles SET has_completed_onboarding = 1, updated_at = CURRENT_TIMESTAMP
		 WHERE uid = ? AND has_completed_onboarding = 0`, uid)
	if err != nil {
		slog.Error("SQLiteStore CompleteOnboarding failed", "error", err, "uid", uid)
		return false, fmt.Errorf("failed to complete onboarding for %s: %w", uid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	slog.Debug("SQLiteStore CompleteOnboarding", "uid", uid, "transitioned", n > 0)
	return n > 0, nil
}

// AppendTurn assigns the next per-user sequence number inside a transaction.
// SQLite serializes writers, so the MAX+1 read cannot interleave with another
// append for the same user.
func (s *SQLiteStore) AppendTurn(turn models.ConversationTurn) (models.ConversationTurn, error) {
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("SQLiteStore AppendTurn begin failed", "error", err, "uid", turn.UserID)
		return turn, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM conversation_turns WHERE user_id = ?`,
		turn.UserID,
	).Scan(&next); err != nil {
		slog.Error("SQLiteStore AppendTurn seq query failed", "error", err, "uid", turn.UserID)
		return turn, fmt.Errorf("failed to compute next sequence: %w", err)
	}
	turn.Seq = next

	_, err = tx.Exec(
		`INSERT INTO conversation_turns (id, user_id, sender, message_content, chatbot_persona, seq, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.UserID, turn.Sender, turn.Message, string(turn.Persona), turn.Seq, turn.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore AppendTurn insert failed", "error", err, "uid", turn.UserID)
		return turn, fmt.Errorf("failed to insert conversation turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		slog.Error("SQLiteStore AppendTurn commit failed", "error", err, "uid", turn.UserID)
		return turn, fmt.Errorf("failed to commit conversation turn: %w", err)
	}
	slog.Debug("SQLiteStore AppendTurn succeeded", "uid", turn.UserID, "sender", turn.Sender, "seq", turn.Seq)
	return turn, nil
}

func (s *SQLiteStore) ListRecentTurns(uid string, limit int) ([]models.ConversationTurn, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, sender, message_content, chatbot_persona, seq, timestamp
		 FROM conversation_turns WHERE user_id = ? ORDER BY seq DESC LIMIT ?`,
		uid, limit)
	if err != nil {
		slog.Error("SQLiteStore ListRecentTurns query failed", "error", err, "uid", uid)
		return nil, fmt.Errorf("failed to query conversation turns: %w", err)
	}
	turns, err := collectTurns(rows)
	if err != nil {
		slog.Error("SQLiteStore ListRecentTurns scan failed", "error", err, "uid", uid)
		return nil, err
	}
	reverseTurns(turns)
	slog.Debug("SQLiteStore ListRecentTurns succeeded", "uid", uid, "count", len(turns))
	return turns, nil
}

func (s *SQLiteStore) LastUserTurn(uid string) (*models.ConversationTurn, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, sender, message_content, chatbot_persona, seq, timestamp
		 FROM conversation_turns WHERE user_id = ? AND sender = ? ORDER BY seq DESC LIMIT 1`,
		uid, models.SenderUser)
	t, err := scanTurn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore LastUserTurn failed", "error", err, "uid", uid)
		return nil, fmt.Errorf("failed to query last user turn: %w", err)
	}
	return &t, nil
}

func (s *SQLiteStore) ListActivePlans() ([]models.Plan, error) {
	rows, err := s.db.Query(
		`SELECT id, name, price, currency, description, features, is_active
		 FROM plans WHERE is_active = 1 ORDER BY price ASC`)
	if err != nil {
		slog.Error("SQLiteStore ListActivePlans query failed", "error", err)
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			slog.Error("SQLiteStore ListActivePlans scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListActivePlans rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate plan rows: %w", err)
	}
	slog.Debug("SQLiteStore ListActivePlans succeeded", "count", len(plans))
	return plans, nil
}

func (s *SQLiteStore) SavePlan(p models.Plan) error {
	features, err := encodeFeatures(p.Features)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO plans (id, name, price, currency, description, features, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			currency = excluded.currency,
			description = excluded.description,
			features = excluded.features,
			is_active = excluded.is_active`,
		p.ID, p.Name, p.Price, p.Currency, p.Description, features, p.IsActive)
	if err != nil {
		slog.Error("SQLiteStore SavePlan failed", "error", err, "planID", p.ID)
		return fmt.Errorf("failed to save plan %s: %w", p.ID, err)
	}
	slog.Debug("SQLiteStore SavePlan succeeded", "planID", p.ID, "name", p.Name)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
