package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Challenge statuses. Only in-progress accounts are evaluated; whitelist
// and disabled rows are operator overrides.
const (
	StatusInProgress = "in-progress"
	StatusFailed     = "failed"
	StatusPassed     = "passed"
	StatusWhitelist  = "whitelist"
	StatusDisabled   = "disabled"
)

// Account types routed to the trackers.
const (
	AccountTypeOnePhase = "one-phase"
	AccountTypeTwoPhase = "two-phase"
	AccountTypeFunded   = "funded"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrIDRequired        = errors.New("challenge id is required")
)

// Challenge represents a challenge account row.
type Challenge struct {
	ID              string
	AccountID       string
	ChallengeType   string
	AccountType     string
	Status          string
	InitialBalance  float64
	StartingBalance float64
	LastChecked     time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const challengeColumns = `id, account_id, challenge_type, account_type, status,
	initial_balance, starting_balance, last_checked, created_at, updated_at`

func scanChallenge(row interface{ Scan(...any) error }) (Challenge, error) {
	var (
		c           Challenge
		accountID   sql.NullString
		lastChecked sql.NullTime
	)
	err := row.Scan(&c.ID, &accountID, &c.ChallengeType, &c.AccountType, &c.Status,
		&c.InitialBalance, &c.StartingBalance, &lastChecked, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Challenge{}, err
	}
	c.AccountID = accountID.String
	c.LastChecked = lastChecked.Time
	return c, nil
}

// InsertChallenge creates a new challenge row.
func (d *Database) InsertChallenge(ctx context.Context, c Challenge) error {
	if c.ID == "" {
		return ErrIDRequired
	}
	if c.Status == "" {
		c.Status = StatusInProgress
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO challenges (
			id, account_id, challenge_type, account_type, status,
			initial_balance, starting_balance, last_checked
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.AccountID, c.ChallengeType, c.AccountType, c.Status,
		c.InitialBalance, c.StartingBalance, nullTime(c.LastChecked),
	)
	return err
}

// ListInProgress returns in-progress challenges, optionally filtered by
// account type ("" returns all types).
func (d *Database) ListInProgress(ctx context.Context, accountType string) ([]Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE status = ?`
	args := []any{StatusInProgress}
	if accountType != "" {
		query += ` AND account_type = ?`
		args = append(args, accountType)
	}
	query += ` ORDER BY created_at`

	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list in-progress challenges: %w", err)
	}
	defer rows.Close()

	var out []Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListInProgressAccountIDs returns the broker account ids of all
// in-progress challenges, skipping rows with no broker account bound.
func (d *Database) ListInProgressAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT account_id FROM challenges
		WHERE status = ? AND account_id IS NOT NULL AND account_id != ''
		ORDER BY created_at`, StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("list in-progress account ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetByAccountID fetches the challenge bound to a broker account.
func (d *Database) GetByAccountID(ctx context.Context, accountID string) (Challenge, error) {
	if accountID == "" {
		return Challenge{}, ErrChallengeNotFound
	}
	row := d.DB.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE account_id = ?`, accountID)
	c, err := scanChallenge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Challenge{}, ErrChallengeNotFound
	}
	return c, err
}

// UpdateDailyBaseline persists a day rollover: the new starting balance and
// the instant it was rolled.
func (d *Database) UpdateDailyBaseline(ctx context.Context, id string, startingBalance float64, lastChecked time.Time) error {
	if id == "" {
		return ErrIDRequired
	}
	res, err := d.DB.ExecContext(ctx, `
		UPDATE challenges
		SET starting_balance = ?, last_checked = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, startingBalance, lastChecked, id)
	if err != nil {
		return fmt.Errorf("update daily baseline: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrChallengeNotFound
	}
	return nil
}

// SetStatus moves a challenge to a terminal or operator status.
func (d *Database) SetStatus(ctx context.Context, id, status string) error {
	if id == "" {
		return ErrIDRequired
	}
	res, err := d.DB.ExecContext(ctx, `
		UPDATE challenges SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, status, id)
	if err != nil {
		return fmt.Errorf("set challenge status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrChallengeNotFound
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
