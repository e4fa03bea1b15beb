package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/agencybot/internal/models"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUserNotFound        = errors.New("user not found")
	ErrAgencyNotFound      = errors.New("agency not found")
	ErrJobNotFound         = errors.New("submission job not found")
)

type Store struct{ db *sql.DB }

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Concurrent job callbacks write from separate goroutines; sqlite allows
	// one writer at a time.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Close() { _ = s.db.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	stmt := `
CREATE TABLE IF NOT EXISTS agencies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	website_url TEXT NOT NULL UNIQUE,
	application_url TEXT DEFAULT '',
	modeling_types TEXT DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	credits INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS submissions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	agency_id INTEGER NOT NULL,
	status TEXT NOT NULL,
	proof_screenshot_url TEXT DEFAULT '',
	error_message TEXT DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id),
	FOREIGN KEY(agency_id) REFERENCES agencies(id)
);
CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	amount INTEGER NOT NULL,
	type TEXT NOT NULL,
	description TEXT,
	created_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id)
);
`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// --- agencies ---

func (s *Store) UpsertAgency(ctx context.Context, a *models.AgencyTarget) (int64, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `INSERT INTO agencies (name, website_url, application_url, modeling_types, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(website_url) DO UPDATE SET
		name=excluded.name,
		modeling_types=excluded.modeling_types,
		status=excluded.status,
		updated_at=excluded.updated_at
	`, a.Name, a.WebsiteURL, a.ApplicationURL, strings.Join(a.ModelingTypes, ","), string(a.Status), now, now)
	if err != nil {
		return 0, err
	}
	// LastInsertId is stale on the conflict path, so look the row up by its key.
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM agencies WHERE website_url = ?`, a.WebsiteURL).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetAgency(ctx context.Context, id int64) (*models.AgencyTarget, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, website_url, application_url, modeling_types, status, created_at, updated_at
		FROM agencies WHERE id = ?`, id)
	return scanAgency(row)
}

func (s *Store) ListAgencies(ctx context.Context) ([]models.AgencyTarget, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, website_url, application_url, modeling_types, status, created_at, updated_at
		FROM agencies WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.AgencyTarget
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// SetApplicationURL caches a resolved application URL on the agency row so the
// next batch skips resolution.
func (s *Store) SetApplicationURL(ctx context.Context, id int64, url string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE agencies SET application_url = ?, updated_at = ? WHERE id = ?`, url, time.Now(), id)
	return err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanAgency(r rowScanner) (*models.AgencyTarget, error) {
	var a models.AgencyTarget
	var types, status string
	if err := r.Scan(&a.ID, &a.Name, &a.WebsiteURL, &a.ApplicationURL, &types, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAgencyNotFound
		}
		return nil, err
	}
	if types != "" {
		a.ModelingTypes = strings.Split(types, ",")
	}
	a.Status = models.AgencyStatus(status)
	return &a, nil
}

// --- users / credit ledger ---

func (s *Store) EnsureUser(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, credits, created_at) VALUES (?, 0, ?)
		ON CONFLICT(id) DO NOTHING`, id, time.Now())
	return err
}

func (s *Store) Credits(ctx context.Context, userID string) (int, error) {
	var c int
	err := s.db.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = ?`, userID).Scan(&c)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return c, err
}

// AddCredits appends a deposit or bonus to the ledger and bumps the balance.
func (s *Store) AddCredits(ctx context.Context, userID string, amount int, txType models.TransactionType, desc string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, `UPDATE users SET credits = credits + ? WHERE id = ?`, amount, userID)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrUserNotFound
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO transactions (user_id, amount, type, description, created_at)
		VALUES (?, ?, ?, ?, ?)`, userID, amount, string(txType), desc, time.Now()); err != nil {
		return 0, err
	}
	var balance int
	if err := tx.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = ?`, userID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, tx.Commit()
}

// DeductCredits reserves n credits for a batch. The balance check and the
// deduction are one conditional UPDATE, so two racing batches cannot both win
// the same credits. Returns the new balance.
func (s *Store) DeductCredits(ctx context.Context, userID string, n int, desc string) (int, error) {
	if _, err := s.Credits(ctx, userID); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, `UPDATE users SET credits = credits - ? WHERE id = ? AND credits >= ?`, n, userID, n)
	if err != nil {
		return 0, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return 0, ErrInsufficientCredits
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO transactions (user_id, amount, type, description, created_at)
		VALUES (?, ?, ?, ?, ?)`, userID, -n, string(models.TxSpend), desc, time.Now()); err != nil {
		return 0, err
	}
	var balance int
	if err := tx.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = ?`, userID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, tx.Commit()
}

// --- submissions ---

func (s *Store) CreateSubmission(ctx context.Context, j *models.SubmissionJob) error {
	now := time.Now()
	j.Status = models.JobPending
	j.CreatedAt = now
	j.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `INSERT INTO submissions (id, user_id, agency_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`, j.ID, j.UserID, j.AgencyID, string(j.Status), now, now)
	return err
}

func (s *Store) GetSubmission(ctx context.Context, id string) (*models.SubmissionJob, error) {
	var j models.SubmissionJob
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT id, user_id, agency_id, status, proof_screenshot_url, error_message, created_at, updated_at
		FROM submissions WHERE id = ?`, id).
		Scan(&j.ID, &j.UserID, &j.AgencyID, &status, &j.ProofScreenshotURL, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	j.Status = models.JobStatus(status)
	return &j, nil
}

// MarkProcessing transitions pending -> processing. The status guard keeps the
// state machine one-directional.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(models.JobProcessing), time.Now(), id, string(models.JobPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark processing %s: %w", id, ErrJobNotFound)
	}
	return nil
}

// MarkSuccess transitions processing -> success and records the proof
// screenshot. A job already terminal is left untouched.
func (s *Store) MarkSuccess(ctx context.Context, id, screenshotURL string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET status = ?, proof_screenshot_url = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(models.JobSuccess), screenshotURL, time.Now(), id, string(models.JobProcessing))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark success %s: %w", id, ErrJobNotFound)
	}
	return nil
}

// MarkFailedAndRefund transitions processing -> failed and, in the same
// transaction, credits one refund to the job's user with a ledger entry. The
// status guard makes the refund fire at most once per job no matter how many
// times the callback runs.
func (s *Store) MarkFailedAndRefund(ctx context.Context, id, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE submissions SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(models.JobFailed), reason, time.Now(), id, string(models.JobProcessing))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Already terminal (or unknown): no transition, no refund.
		return fmt.Errorf("mark failed %s: %w", id, ErrJobNotFound)
	}

	var userID string
	if err := tx.QueryRowContext(ctx, `SELECT user_id FROM submissions WHERE id = ?`, id).Scan(&userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET credits = credits + 1 WHERE id = ?`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO transactions (user_id, amount, type, description, created_at)
		VALUES (?, 1, ?, ?, ?)`, userID, string(models.TxRefund), "Refund for failed submission "+id, time.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListSubmissions(ctx context.Context, userID string) ([]models.SubmissionJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, agency_id, status, proof_screenshot_url, error_message, created_at, updated_at
		FROM submissions WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.SubmissionJob
	for rows.Next() {
		var j models.SubmissionJob
		var status string
		if err := rows.Scan(&j.ID, &j.UserID, &j.AgencyID, &status, &j.ProofScreenshotURL, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		j.Status = models.JobStatus(status)
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, amount, type, description, created_at
		FROM transactions WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var typ string
		var desc sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &typ, &desc, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = models.TransactionType(typ)
		t.Description = desc.String
		out = append(out, t)
	}
	return out, rows.Err()
}
