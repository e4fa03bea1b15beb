package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/example/agencybot/internal/driver"
	"github.com/example/agencybot/internal/logging"
	"github.com/example/agencybot/internal/models"
)

var ErrEmptyTargetList = errors.New("empty target list")

// Store is the narrow persistence surface the orchestrator needs. The sqlite
// store satisfies it in production; tests use a fake.
type Store interface {
	GetAgency(ctx context.Context, id int64) (*models.AgencyTarget, error)
	SetApplicationURL(ctx context.Context, id int64, url string) error
	DeductCredits(ctx context.Context, userID string, n int, desc string) (int, error)
	CreateSubmission(ctx context.Context, j *models.SubmissionJob) error
	MarkProcessing(ctx context.Context, id string) error
	MarkSuccess(ctx context.Context, id, screenshotURL string) error
	MarkFailedAndRefund(ctx context.Context, id, reason string) error
}

// Attempter runs one automation attempt. Satisfied by driver.Driver.
type Attempter interface {
	Run(ctx context.Context, jobID string, target models.AgencyTarget, profile models.ApplicantProfile) driver.Result
}

// Notifier delivers job events downstream; failures are logged, never fatal.
type Notifier interface {
	Notify(ctx context.Context, event string, payload map[string]any) error
}

// Orchestrator owns the SubmissionJob lifecycle: credits reserved up front,
// one goroutine per attempt, and the completion callback as the single writer
// of terminal state.
type Orchestrator struct {
	st       Store
	att      Attempter
	notifier Notifier
	log      *logging.Logger

	wg  sync.WaitGroup
	sem chan struct{}
}

func New(st Store, att Attempter, notifier Notifier, maxConcurrent int, log *logging.Logger) *Orchestrator {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Orchestrator{
		st:       st,
		att:      att,
		notifier: notifier,
		log:      log.With("module", "orchestrator"),
		sem:      make(chan struct{}, maxConcurrent),
	}
}

type BatchResult struct {
	JobIDs     []string
	NewBalance int
}

// SubmitBatch reserves one credit per target, creates the jobs and dispatches
// the attempts, returning as soon as all jobs are processing. Any validation
// or credit failure happens before the first job row exists, so a rejected
// batch leaves no partial state.
func (o *Orchestrator) SubmitBatch(ctx context.Context, userID string, agencyIDs []int64, profile models.ApplicantProfile) (*BatchResult, error) {
	if len(agencyIDs) == 0 {
		return nil, ErrEmptyTargetList
	}

	targets := make([]models.AgencyTarget, 0, len(agencyIDs))
	for _, id := range agencyIDs {
		a, err := o.st.GetAgency(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("agency %d: %w", id, err)
		}
		targets = append(targets, *a)
	}

	balance, err := o.st.DeductCredits(ctx, userID, len(targets),
		fmt.Sprintf("Batch application to %d agencies", len(targets)))
	if err != nil {
		return nil, err
	}
	o.log.Info("credits reserved", "user", userID, "cost", len(targets), "balance", balance)

	result := &BatchResult{NewBalance: balance}
	for _, target := range targets {
		job := &models.SubmissionJob{ID: uuid.NewString(), UserID: userID, AgencyID: target.ID}
		if err := o.st.CreateSubmission(ctx, job); err != nil {
			return nil, fmt.Errorf("create submission: %w", err)
		}
		if err := o.st.MarkProcessing(ctx, job.ID); err != nil {
			return nil, fmt.Errorf("dispatch submission: %w", err)
		}
		result.JobIDs = append(result.JobIDs, job.ID)
		o.dispatch(ctx, job.ID, target, profile)
	}
	return result, nil
}

// dispatch hands the attempt to a background goroutine. The attempt outlives
// the batch request, so it detaches from the request's cancellation while
// keeping its values.
func (o *Orchestrator) dispatch(ctx context.Context, jobID string, target models.AgencyTarget, profile models.ApplicantProfile) {
	bg := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.sem <- struct{}{}
		defer func() { <-o.sem }()

		o.log.Info("attempt started", "job", jobID, "agency", target.WebsiteURL)
		res := o.att.Run(bg, jobID, target, profile)
		o.complete(bg, jobID, target, res)
	}()
}

// complete is the only writer of terminal job state.
func (o *Orchestrator) complete(ctx context.Context, jobID string, target models.AgencyTarget, res driver.Result) {
	if res.ResolvedURL != "" && target.ApplicationURL == "" && res.ResolvedURL != target.WebsiteURL {
		if err := o.st.SetApplicationURL(ctx, target.ID, res.ResolvedURL); err != nil {
			o.log.Warn("caching resolved url failed", "agency", target.ID, "err", err)
		}
	}

	var status models.JobStatus
	if res.Applied {
		status = models.JobSuccess
		if err := o.st.MarkSuccess(ctx, jobID, res.ScreenshotPath); err != nil {
			o.log.Error("marking success failed", "job", jobID, "err", err)
			return
		}
		o.log.Info("attempt succeeded", "job", jobID, "screenshot", res.ScreenshotPath)
	} else {
		status = models.JobFailed
		if err := o.st.MarkFailedAndRefund(ctx, jobID, res.Reason); err != nil {
			o.log.Error("marking failure failed", "job", jobID, "err", err)
			return
		}
		o.log.Warn("attempt failed, credit refunded", "job", jobID, "reason", res.Reason)
	}

	if o.notifier != nil {
		if err := o.notifier.Notify(ctx, "submission.completed", map[string]any{
			"job_id":     jobID,
			"agency_id":  target.ID,
			"status":     string(status),
			"screenshot": res.ScreenshotPath,
			"reason":     res.Reason,
		}); err != nil {
			o.log.Warn("notify failed", "job", jobID, "err", err)
		}
	}
}

// Wait blocks until every dispatched attempt has completed. Used by the CLI
// and tests; callers observing job rows do not need it.
func (o *Orchestrator) Wait() { o.wg.Wait() }
