// Package reminders is the time-based escalation pass: it scans transactions
// by elapsed time in a state and nudges the party the workflow is waiting on.
package reminders

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/atelierhub/backend/internal/models"
	"github.com/atelierhub/backend/internal/notify"
)

// Escalation windows: how long a transaction may sit in a state before the
// waiting party is reminded. Each window doubles as the dedup lookback.
const (
	QuoteReminderAfter    = 3 * 24 * time.Hour
	ProgressReminderAfter = 7 * 24 * time.Hour
	DeliveryReminderAfter = 5 * 24 * time.Hour
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TransactionScans is the repository surface for the three reminder scans.
type TransactionScans interface {
	ListQuoteReminderCandidates(ctx context.Context, cutoff, windowStart time.Time) ([]*models.Transaction, error)
	ListProgressReminderCandidates(ctx context.Context, cutoff, windowStart time.Time) ([]*models.Transaction, error)
	ListDeliveryReminderCandidates(ctx context.Context, cutoff, windowStart time.Time) ([]*models.Transaction, error)
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Transaction, error)
}

// NotificationStore is the dedup log surface. Both methods run inside the
// per-candidate transaction that holds the transaction row lock, making the
// check-then-send-then-log unit atomic against overlapping scheduler runs.
type NotificationStore interface {
	SentWithinTx(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID, eventType string, windowStart time.Time) (bool, error)
	CreateTx(ctx context.Context, tx pgx.Tx, n *models.NotificationLog) error
}

// AccountStore resolves reminder recipient addresses.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// Notifier sends the reminder. A failed send rolls back the candidate's
// transaction, so no log entry is written and the next run retries.
type Notifier interface {
	Dispatch(ctx context.Context, n notify.Notification) error
}

// Scheduler runs the reminder batch pass.
type Scheduler struct {
	pool          TxBeginner
	transactions  TransactionScans
	notifications NotificationStore
	accounts      AccountStore
	notifier      Notifier
	logger        *slog.Logger
	now           func() time.Time
}

func NewScheduler(
	pool TxBeginner,
	transactions TransactionScans,
	notifications NotificationStore,
	accounts AccountStore,
	notifier Notifier,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		pool:          pool,
		transactions:  transactions,
		notifications: notifications,
		accounts:      accounts,
		notifier:      notifier,
		logger:        logger,
		now:           time.Now,
	}
}

// scan ties one reminder event to its candidate query, its stalled-status
// set and the party to nudge.
type scan struct {
	event      string
	window     time.Duration
	recipient  string
	candidates func(ctx context.Context, cutoff, windowStart time.Time) ([]*models.Transaction, error)
	// statuses in which the reminder is still warranted at send time; the
	// row may have advanced between the candidate query and the row lock.
	eligible map[string]bool
}

// Run performs the three scans. Best effort throughout: one candidate failing
// never aborts the rest of the batch.
func (s *Scheduler) Run(ctx context.Context) error {
	scans := []scan{
		{
			event:      models.EventQuoteReminder,
			window:     QuoteReminderAfter,
			recipient:  models.RoleCustomer,
			candidates: s.transactions.ListQuoteReminderCandidates,
			eligible:   map[string]bool{models.StatusQuoteSent: true},
		},
		{
			event:      models.EventProgressReminder,
			window:     ProgressReminderAfter,
			recipient:  models.RoleCreator,
			candidates: s.transactions.ListProgressReminderCandidates,
			eligible:   map[string]bool{models.StatusPaid: true, models.StatusInProgress: true},
		},
		{
			event:      models.EventDeliveryReminder,
			window:     DeliveryReminderAfter,
			recipient:  models.RoleCustomer,
			candidates: s.transactions.ListDeliveryReminderCandidates,
			eligible:   map[string]bool{models.StatusDelivered: true},
		},
	}

	for _, sc := range scans {
		now := s.now().UTC()
		list, err := sc.candidates(ctx, now.Add(-sc.window), now.Add(-sc.window))
		if err != nil {
			s.logger.Error("reminder candidate scan failed", "event", sc.event, "error", err)
			continue
		}
		for _, tr := range list {
			if err := s.remind(ctx, tr.ID, sc); err != nil {
				s.logger.Warn("reminder skipped", "event", sc.event, "transaction", tr.Code, "error", err)
			}
		}
	}
	return nil
}

// remind processes one candidate in its own database transaction: lock the
// transaction row, re-check eligibility and the dedup window, send, log,
// commit. The row lock serializes concurrent scheduler runs per transaction;
// a send failure rolls back so nothing is logged and the next run retries.
func (s *Scheduler) remind(ctx context.Context, id uuid.UUID, sc scan) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tr, err := s.transactions.LockForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}
	if !sc.eligible[tr.Status] {
		return nil
	}
	windowStart := s.now().UTC().Add(-sc.window)
	sent, err := s.notifications.SentWithinTx(ctx, tx, tr.ID, sc.event, windowStart)
	if err != nil {
		return err
	}
	if sent {
		return nil
	}

	addr, err := s.recipientAddr(ctx, tr, sc.recipient)
	if err != nil {
		return err
	}
	if err := s.notifier.Dispatch(ctx, notify.Notification{
		TransactionID:   tr.ID,
		TransactionCode: tr.Code,
		EventType:       sc.event,
		RecipientRole:   sc.recipient,
		RecipientAddr:   addr,
	}); err != nil {
		return err
	}
	if err := s.notifications.CreateTx(ctx, tx, &models.NotificationLog{
		ID:            uuid.New(),
		TransactionID: tr.ID,
		EventType:     sc.event,
		RecipientRole: sc.recipient,
		RecipientAddr: addr,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Scheduler) recipientAddr(ctx context.Context, tr *models.Transaction, role string) (string, error) {
	if role == models.RoleCreator {
		acc, err := s.accounts.GetByID(ctx, tr.CreatorID)
		if err != nil {
			return "", err
		}
		return acc.Email, nil
	}
	if tr.GuestEmail != nil {
		return *tr.GuestEmail, nil
	}
	acc, err := s.accounts.GetByID(ctx, *tr.CustomerID)
	if err != nil {
		return "", err
	}
	return acc.Email, nil
}

// --- river wiring ---

// ScanArgs is the periodic reminder job. Unique-by-period inserts keep
// overlapping schedules from enqueuing duplicate passes.
type ScanArgs struct{}

func (ScanArgs) Kind() string { return "reminder_scan" }

func (ScanArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		UniqueOpts: river.UniqueOpts{ByPeriod: time.Hour},
	}
}

// Worker runs the scheduler when the periodic job fires.
type Worker struct {
	river.WorkerDefaults[ScanArgs]
	scheduler *Scheduler
}

func NewWorker(s *Scheduler) *Worker {
	return &Worker{scheduler: s}
}

func (w *Worker) Work(ctx context.Context, _ *river.Job[ScanArgs]) error {
	return w.scheduler.Run(ctx)
}
