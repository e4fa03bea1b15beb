package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/agencybot/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedUser(t *testing.T, s *Store, id string, credits int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.EnsureUser(ctx, id))
	if credits > 0 {
		_, err := s.AddCredits(ctx, id, credits, models.TxDeposit, "test deposit")
		require.NoError(t, err)
	}
}

func seedAgency(t *testing.T, s *Store) int64 {
	t.Helper()
	id, err := s.UpsertAgency(context.Background(), &models.AgencyTarget{
		Name:       "Test Agency",
		WebsiteURL: "https://agency.example",
		Status:     models.AgencyActive,
	})
	require.NoError(t, err)
	return id
}

func TestDeductCredits(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", 5)

	balance, err := s.DeductCredits(ctx, "u1", 3, "batch of 3")
	require.NoError(t, err)
	assert.Equal(t, 2, balance)

	txs, err := s.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txs, 2) // deposit + spend
	assert.Equal(t, models.TxSpend, txs[1].Type)
	assert.Equal(t, -3, txs[1].Amount)
}

func TestDeductCreditsInsufficient(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", 2)

	_, err := s.DeductCredits(ctx, "u1", 3, "batch of 3")
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	// Balance untouched, no spend entry appended.
	balance, err := s.Credits(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, balance)
	txs, err := s.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestDeductCreditsUnknownUser(t *testing.T) {
	s := testStore(t)
	_, err := s.DeductCredits(context.Background(), "ghost", 1, "x")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSubmissionLifecycleSuccess(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", 1)
	agencyID := seedAgency(t, s)

	job := &models.SubmissionJob{ID: "job-1", UserID: "u1", AgencyID: agencyID}
	require.NoError(t, s.CreateSubmission(ctx, job))
	assert.Equal(t, models.JobPending, job.Status)

	require.NoError(t, s.MarkProcessing(ctx, "job-1"))
	require.NoError(t, s.MarkSuccess(ctx, "job-1", "screenshots/proof-job-1.png"))

	got, err := s.GetSubmission(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobSuccess, got.Status)
	assert.Equal(t, "screenshots/proof-job-1.png", got.ProofScreenshotURL)

	// Terminal state is final: no path back to processing or failed.
	assert.Error(t, s.MarkProcessing(ctx, "job-1"))
	assert.Error(t, s.MarkFailedAndRefund(ctx, "job-1", "late failure"))
}

func TestMarkFailedRefundsExactlyOnce(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", 3)
	agencyID := seedAgency(t, s)

	_, err := s.DeductCredits(ctx, "u1", 1, "batch of 1")
	require.NoError(t, err)

	job := &models.SubmissionJob{ID: "job-1", UserID: "u1", AgencyID: agencyID}
	require.NoError(t, s.CreateSubmission(ctx, job))
	require.NoError(t, s.MarkProcessing(ctx, "job-1"))

	require.NoError(t, s.MarkFailedAndRefund(ctx, "job-1", "navigation timed out"))

	balance, err := s.Credits(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, balance)

	// A second failure report must not refund again.
	assert.Error(t, s.MarkFailedAndRefund(ctx, "job-1", "duplicate callback"))
	balance, err = s.Credits(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, balance)

	var refunds int
	txs, err := s.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	for _, tx := range txs {
		if tx.Type == models.TxRefund {
			refunds++
			assert.Equal(t, 1, tx.Amount)
		}
	}
	assert.Equal(t, 1, refunds)

	got, err := s.GetSubmission(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, got.Status)
	assert.Equal(t, "navigation timed out", got.ErrorMessage)
}

func TestMarkProcessingRequiresPending(t *testing.T) {
	s := testStore(t)
	assert.ErrorIs(t, s.MarkProcessing(context.Background(), "missing"), ErrJobNotFound)
}

func TestAgencyApplicationURLCache(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	id := seedAgency(t, s)

	a, err := s.GetAgency(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, a.ApplicationURL)

	require.NoError(t, s.SetApplicationURL(ctx, id, "https://agency.example/apply"))
	a, err = s.GetAgency(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://agency.example/apply", a.ApplicationURL)
}

func TestUpsertAgencyKeepsIDOnConflict(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	id := seedAgency(t, s)

	again, err := s.UpsertAgency(ctx, &models.AgencyTarget{
		Name:          "Renamed Agency",
		WebsiteURL:    "https://agency.example",
		ModelingTypes: []string{"Fashion", "Commercial"},
		Status:        models.AgencyActive,
	})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	a, err := s.GetAgency(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Agency", a.Name)
	assert.Equal(t, []string{"Fashion", "Commercial"}, a.ModelingTypes)
}

func TestGetAgencyNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetAgency(context.Background(), 99)
	assert.ErrorIs(t, err, ErrAgencyNotFound)
}
