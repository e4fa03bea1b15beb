package models

import "time"

// AgencyTarget is one destination agency from the directory. Rows are seeded by
// maintenance tooling; the engine only reads them and caches resolved
// application URLs back onto them.
type AgencyTarget struct {
	ID             int64
	Name           string
	WebsiteURL     string
	ApplicationURL string // empty until resolved
	ModelingTypes  []string
	Status         AgencyStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type AgencyStatus string

const (
	AgencyActive   AgencyStatus = "active"
	AgencyInactive AgencyStatus = "inactive"
)

// ApplicantProfile is the data injected into a target form. Immutable for the
// duration of one submission batch.
type ApplicantProfile struct {
	Name       string   `yaml:"name"`
	Email      string   `yaml:"email"`
	Phone      string   `yaml:"phone"`
	Instagram  string   `yaml:"instagram"`
	HeightCM   int      `yaml:"height_cm"`
	PhotoPaths []string `yaml:"photos"`
}

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobSuccess    JobStatus = "success"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether a job can no longer change status.
func (s JobStatus) Terminal() bool { return s == JobSuccess || s == JobFailed }

// SubmissionJob is one attempt to apply a profile to one agency.
// Transitions are one-directional: pending -> processing -> success|failed.
type SubmissionJob struct {
	ID                 string
	UserID             string
	AgencyID           int64
	Status             JobStatus
	ProofScreenshotURL string // set only on success
	ErrorMessage       string // set only on failed
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type TransactionType string

const (
	TxSpend   TransactionType = "spend"
	TxRefund  TransactionType = "refund"
	TxDeposit TransactionType = "deposit"
	TxBonus   TransactionType = "bonus"
)

// Transaction is an append-only credit ledger entry.
type Transaction struct {
	ID          int64
	UserID      string
	Amount      int
	Type        TransactionType
	Description string
	CreatedAt   time.Time
}

type User struct {
	ID        string
	Credits   int
	CreatedAt time.Time
}
