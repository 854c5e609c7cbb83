package commission

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atelierhub/backend/internal/models"
	"github.com/atelierhub/backend/internal/notify"
	"github.com/atelierhub/backend/internal/payments"
	"github.com/atelierhub/backend/internal/repository"
	"github.com/atelierhub/backend/internal/testutil"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type memTransactions struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Transaction
}

func newMemTransactions() *memTransactions {
	return &memTransactions{byID: map[uuid.UUID]*models.Transaction{}}
}

func (m *memTransactions) CreateTx(_ context.Context, _ pgx.Tx, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memTransactions) GetByID(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTransactions) GetByCode(_ context.Context, code string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		if t.Code == code {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memTransactions) Transition(_ context.Context, _ pgx.Tx, id uuid.UUID, from []string, upd repository.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok || !slices.Contains(from, t.Status) {
		return repository.ErrStatusConflict
	}
	t.Status = upd.To
	if upd.FinalPrice != nil {
		t.FinalPrice = upd.FinalPrice
	}
	if upd.TaxAmount != nil {
		t.TaxAmount = upd.TaxAmount
	}
	if upd.TotalAmount != nil {
		t.TotalAmount = upd.TotalAmount
	}
	if upd.PaymentRef != nil {
		t.PaymentRef = upd.PaymentRef
	}
	if upd.PaidAt != nil {
		t.PaidAt = upd.PaidAt
	}
	if upd.StartedAt != nil {
		t.StartedAt = upd.StartedAt
	}
	if upd.DeliveredAt != nil {
		t.DeliveredAt = upd.DeliveredAt
	}
	if upd.CompletedAt != nil {
		t.CompletedAt = upd.CompletedAt
	}
	return nil
}

func (m *memTransactions) TransitionClearAmounts(_ context.Context, _ pgx.Tx, id uuid.UUID, from []string, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok || !slices.Contains(from, t.Status) {
		return repository.ErrStatusConflict
	}
	t.Status = to
	t.FinalPrice, t.TaxAmount, t.TotalAmount = nil, nil, nil
	t.PaymentRef = nil
	return nil
}

type memQuotes struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Quote
}

func newMemQuotes() *memQuotes {
	return &memQuotes{byID: map[uuid.UUID]*models.Quote{}}
}

func (m *memQuotes) CreateTx(_ context.Context, _ pgx.Tx, q *models.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, other := range m.byID {
		if other.TransactionID == q.TransactionID && other.Version > max {
			max = other.Version
		}
	}
	q.Version = max + 1
	cp := *q
	m.byID[q.ID] = &cp
	return nil
}

func (m *memQuotes) GetByID(_ context.Context, id uuid.UUID) (*models.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrQuoteNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *memQuotes) AcceptTx(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.byID[id]
	if !ok || q.Status != models.QuoteStatusSent {
		return repository.ErrQuoteNotSent
	}
	q.Status = models.QuoteStatusAccepted
	return nil
}

func (m *memQuotes) SupersedeOthersTx(_ context.Context, _ pgx.Tx, transactionID, keepID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.byID {
		if q.TransactionID == transactionID && q.ID != keepID && q.Status != models.QuoteStatusSuperseded {
			q.Status = models.QuoteStatusSuperseded
		}
	}
	return nil
}

func (m *memQuotes) ListByTransaction(_ context.Context, transactionID uuid.UUID) ([]*models.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*models.Quote
	for _, q := range m.byID {
		if q.TransactionID == transactionID {
			cp := *q
			list = append(list, &cp)
		}
	}
	slices.SortFunc(list, func(a, b *models.Quote) int { return a.Version - b.Version })
	return list, nil
}

type memMessages struct {
	mu   sync.Mutex
	msgs []*models.Message
}

func (m *memMessages) CreateTx(_ context.Context, _ pgx.Tx, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.msgs = append(m.msgs, &cp)
	return nil
}

func (m *memMessages) bodies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.msgs))
	for i, msg := range m.msgs {
		out[i] = msg.Body
	}
	return out
}

type stubServices struct {
	svc *models.Service
}

func (s *stubServices) GetByID(_ context.Context, id uuid.UUID) (*models.Service, error) {
	if s.svc == nil || s.svc.ID != id {
		return nil, repository.ErrNotFound
	}
	return s.svc, nil
}

type stubAccounts struct {
	byID map[uuid.UUID]*models.Account
}

func (s *stubAccounts) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	acc, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return acc, nil
}

type stubGuests struct {
	token string
	err   error
}

func (s *stubGuests) IssueTx(_ context.Context, _ pgx.Tx, _ uuid.UUID) (string, error) {
	return s.token, s.err
}

type stubGateway struct {
	mu       sync.Mutex
	requests []payments.ChargeRequest
	result   payments.ChargeResult
	err      error
}

func (g *stubGateway) Charge(_ context.Context, req payments.ChargeRequest) (payments.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return payments.ChargeResult{}, g.err
	}
	return g.result, nil
}

type recNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recNotifier) Dispatch(_ context.Context, notif notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notif.EventType)
	return nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	svc          *Service
	transactions *memTransactions
	quotes       *memQuotes
	messages     *memMessages
	gateway      *stubGateway
	notifier     *recNotifier

	creator  models.Caller
	admin    models.Caller
	service  *models.Service
	creatorA *models.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	creatorID := uuid.New()
	listing := &models.Service{
		ID:             uuid.New(),
		CreatorID:      creatorID,
		Title:          "Character illustration",
		BasePriceCents: 8000,
		Active:         true,
	}
	creatorAcc := &models.Account{ID: creatorID, Email: "creator@example.com", DisplayName: "Mika", Role: models.RoleCreator}

	f := &fixture{
		transactions: newMemTransactions(),
		quotes:       newMemQuotes(),
		messages:     &memMessages{},
		gateway:      &stubGateway{result: payments.ChargeResult{Reference: "ch_test_1"}},
		notifier:     &recNotifier{},
		creator:      models.Caller{Role: models.RoleCreator, AccountID: creatorID, DisplayName: "Mika"},
		admin:        models.Caller{Role: models.RoleAdmin, AccountID: uuid.New(), DisplayName: "ops"},
		service:      listing,
		creatorA:     creatorAcc,
	}
	f.svc = NewService(
		&testutil.Beginner{},
		f.transactions,
		f.quotes,
		f.messages,
		&stubServices{svc: listing},
		&stubAccounts{byID: map[uuid.UUID]*models.Account{creatorID: creatorAcc}},
		&stubGuests{token: "guest-token-1"},
		f.gateway,
		f.notifier,
		slog.New(slog.DiscardHandler),
	)
	return f
}

func (f *fixture) guestInquiry(t *testing.T) (*models.Transaction, models.Caller) {
	t.Helper()
	email, name := "pat@example.com", "Pat"
	tr, token, err := f.svc.CreateInquiry(context.Background(), CreateInquiryInput{
		ServiceID:  f.service.ID,
		GuestEmail: &email,
		GuestName:  &name,
		Body:       "I'd love a portrait of my dog",
	})
	if err != nil {
		t.Fatalf("CreateInquiry: %v", err)
	}
	if token != "guest-token-1" {
		t.Fatalf("expected guest token, got %q", token)
	}
	return tr, models.Caller{GuestTransactionID: tr.ID, DisplayName: name}
}

func (f *fixture) current(t *testing.T, id uuid.UUID) *models.Transaction {
	t.Helper()
	tr, err := f.transactions.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return tr
}

// checkAmounts enforces that amounts are set exactly in the post-acceptance
// states, on every observation of the transaction.
func checkAmounts(t *testing.T, tr *models.Transaction) {
	t.Helper()
	set := tr.FinalPrice != nil && tr.TaxAmount != nil && tr.TotalAmount != nil
	if models.AmountsRequired(tr.Status) && !set {
		t.Fatalf("status %s requires amounts, got %+v", tr.Status, tr)
	}
	if !models.AmountsRequired(tr.Status) && set {
		t.Fatalf("status %s must not carry amounts", tr.Status)
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestLifecycleHappyPathGuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, guestCaller := f.guestInquiry(t)
	code := tr.Code
	checkAmounts(t, f.current(t, tr.ID))

	if err := f.svc.Acknowledge(ctx, f.creator, code); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if got := f.current(t, tr.ID).Status; got != models.StatusQuotePending {
		t.Fatalf("status = %s, want quote_pending", got)
	}

	q, err := f.svc.SendQuote(ctx, f.creator, code, QuoteInput{
		Items:      []models.QuoteItem{{Name: "Portrait", PriceCents: 8000}},
		TaxRatePct: 10,
	})
	if err != nil {
		t.Fatalf("SendQuote: %v", err)
	}
	if q.Version != 1 || q.SubtotalCents != 8000 || q.TaxCents != 800 || q.TotalCents != 8800 {
		t.Fatalf("unexpected quote totals: %+v", q)
	}
	checkAmounts(t, f.current(t, tr.ID))

	if _, err := f.svc.AcceptQuote(ctx, guestCaller, code, q.ID); err != nil {
		t.Fatalf("AcceptQuote: %v", err)
	}
	cur := f.current(t, tr.ID)
	if cur.Status != models.StatusPaymentPending {
		t.Fatalf("status = %s, want payment_pending", cur.Status)
	}
	checkAmounts(t, cur)
	if *cur.TotalAmount != 8800 {
		t.Fatalf("total_amount = %d, want 8800", *cur.TotalAmount)
	}

	if _, err := f.svc.Pay(ctx, guestCaller, code, 8800, "pm_card"); err != nil {
		t.Fatalf("Pay: %v", err)
	}
	cur = f.current(t, tr.ID)
	if cur.Status != models.StatusPaid || cur.PaymentRef == nil || cur.PaidAt == nil {
		t.Fatalf("after pay: %+v", cur)
	}
	checkAmounts(t, cur)
	if len(f.gateway.requests) != 1 || f.gateway.requests[0].IdempotencyKey != code {
		t.Fatalf("gateway must be charged once with the transaction code as idempotency key")
	}

	if err := f.svc.StartProgress(ctx, f.creator, code); err != nil {
		t.Fatalf("StartProgress: %v", err)
	}
	if _, err := f.svc.Deliver(ctx, f.creator, code, "Final files attached"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	cur = f.current(t, tr.ID)
	if cur.Status != models.StatusDelivered || cur.DeliveredAt == nil {
		t.Fatalf("after deliver: %+v", cur)
	}
	checkAmounts(t, cur)

	if err := f.svc.Approve(ctx, guestCaller, code); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	cur = f.current(t, tr.ID)
	if cur.Status != models.StatusCompleted || cur.CompletedAt == nil {
		t.Fatalf("after approve: %+v", cur)
	}
	checkAmounts(t, cur)

	want := []string{
		models.EventNewInquiry, models.EventQuoteSent, models.EventQuoteAccepted,
		models.EventPaymentReceived, models.EventDelivered, models.EventCompleted,
	}
	if !slices.Equal(f.notifier.events, want) {
		t.Fatalf("notifications = %v, want %v", f.notifier.events, want)
	}
}

func TestCreateInquiryIdentityValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	email, name := "pat@example.com", "Pat"
	customerID := uuid.New()

	_, _, err := f.svc.CreateInquiry(ctx, CreateInquiryInput{
		ServiceID:  f.service.ID,
		CustomerID: &customerID,
		GuestEmail: &email,
		GuestName:  &name,
	})
	if !errors.Is(err, ErrCustomerIdentity) {
		t.Fatalf("both identities: err = %v, want ErrCustomerIdentity", err)
	}

	_, _, err = f.svc.CreateInquiry(ctx, CreateInquiryInput{ServiceID: f.service.ID})
	if !errors.Is(err, ErrCustomerIdentity) {
		t.Fatalf("no identity: err = %v, want ErrCustomerIdentity", err)
	}
}

func TestSendQuoteValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, _ := f.guestInquiry(t)

	if _, err := f.svc.SendQuote(ctx, f.creator, tr.Code, QuoteInput{}); !errors.Is(err, ErrEmptyQuote) {
		t.Fatalf("empty items: err = %v, want ErrEmptyQuote", err)
	}
	_, err := f.svc.SendQuote(ctx, f.creator, tr.Code, QuoteInput{
		Items: []models.QuoteItem{{Name: "", PriceCents: 100}},
	})
	if err == nil {
		t.Fatal("unnamed item must be rejected")
	}
	stranger := models.Caller{Role: models.RoleCreator, AccountID: uuid.New()}
	_, err = f.svc.SendQuote(ctx, stranger, tr.Code, QuoteInput{
		Items: []models.QuoteItem{{Name: "Portrait", PriceCents: 100}},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign creator: err = %v, want ErrForbidden", err)
	}
}

func TestQuoteHistorySupersededNotDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, guestCaller := f.guestInquiry(t)

	q1, err := f.svc.SendQuote(ctx, f.creator, tr.Code, QuoteInput{
		Items: []models.QuoteItem{{Name: "Portrait", PriceCents: 8000}},
	})
	if err != nil {
		t.Fatalf("SendQuote v1: %v", err)
	}
	if err := f.svc.RequestQuoteRevision(ctx, guestCaller, tr.Code, "add a background"); err != nil {
		t.Fatalf("RequestQuoteRevision: %v", err)
	}
	q2, err := f.svc.SendQuote(ctx, f.creator, tr.Code, QuoteInput{
		Items: []models.QuoteItem{{Name: "Portrait", PriceCents: 8000}, {Name: "Background", PriceCents: 2000}},
	})
	if err != nil {
		t.Fatalf("SendQuote v2: %v", err)
	}
	if q2.Version != 2 {
		t.Fatalf("second quote version = %d, want 2", q2.Version)
	}

	history, err := f.svc.ListQuotes(ctx, guestCaller, tr.Code)
	if err != nil {
		t.Fatalf("ListQuotes: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2 (supersede must not delete)", len(history))
	}
	if history[0].ID != q1.ID || history[0].Status != models.QuoteStatusSuperseded {
		t.Fatalf("v1 should be superseded, got %+v", history[0])
	}
	if history[1].ID != q2.ID || history[1].Status != models.QuoteStatusSent {
		t.Fatalf("v2 should be sent, got %+v", history[1])
	}
}

func TestAcceptQuoteConcurrentExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, guestCaller := f.guestInquiry(t)
	q, err := f.svc.SendQuote(ctx, f.creator, tr.Code, QuoteInput{
		Items: []models.QuoteItem{{Name: "Portrait", PriceCents: 8000}},
	})
	if err != nil {
		t.Fatalf("SendQuote: %v", err)
	}

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.AcceptQuote(ctx, guestCaller, tr.Code, q.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("%d accepts succeeded, want exactly 1 (errs: %v)", wins, errs)
	}
	if got := f.current(t, tr.ID).Status; got != models.StatusPaymentPending {
		t.Fatalf("status = %s, want payment_pending", got)
	}
}

func TestPayAmountMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, guestCaller := f.guestInquiry(t)
	q, _ := f.svc.SendQuote(ctx, f.creator, tr.Code, QuoteInput{
		Items: []models.QuoteItem{{Name: "Portrait", PriceCents: 8000}}, TaxRatePct: 10,
	})
	if _, err := f.svc.AcceptQuote(ctx, guestCaller, tr.Code, q.ID); err != nil {
		t.Fatalf("AcceptQuote: %v", err)
	}

	if _, err := f.svc.Pay(ctx, guestCaller, tr.Code, 8000, "pm_card"); !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("err = %v, want ErrAmountMismatch", err)
	}
	if len(f.gateway.requests) != 0 {
		t.Fatal("gateway must not be charged on amount mismatch")
	}
	if got := f.current(t, tr.ID).Status; got != models.StatusPaymentPending {
		t.Fatalf("status = %s, want payment_pending", got)
	}
}

func TestPayGatewayDeclineLeavesStateRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, guestCaller := f.guestInquiry(t)
	q, _ := f.svc.SendQuote(ctx, f.creator, tr.Code, QuoteInput{
		Items: []models.QuoteItem{{Name: "Portrait", PriceCents: 8800}},
	})
	if _, err := f.svc.AcceptQuote(ctx, guestCaller, tr.Code, q.ID); err != nil {
		t.Fatalf("AcceptQuote: %v", err)
	}

	f.gateway.err = &payments.DeclinedError{Reason: "insufficient_funds"}
	if _, err := f.svc.Pay(ctx, guestCaller, tr.Code, 8800, "pm_card"); !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("err = %v, want ErrPaymentFailed", err)
	}
	cur := f.current(t, tr.ID)
	if cur.Status != models.StatusPaymentPending || cur.PaymentRef != nil {
		t.Fatalf("declined charge must leave payment_pending untouched, got %+v", cur)
	}

	f.gateway.err = nil
	if _, err := f.svc.Pay(ctx, guestCaller, tr.Code, 8800, "pm_card"); err != nil {
		t.Fatalf("retry after decline: %v", err)
	}
	if got := f.current(t, tr.ID).Status; got != models.StatusPaid {
		t.Fatalf("status = %s, want paid", got)
	}
}

func TestSecondPayHitsPrecondition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, guestCaller := f.guestInquiry(t)
	q, _ := f.svc.SendQuote(ctx, f.creator, tr.Code, QuoteInput{
		Items: []models.QuoteItem{{Name: "Portrait", PriceCents: 8800}},
	})
	if _, err := f.svc.AcceptQuote(ctx, guestCaller, tr.Code, q.ID); err != nil {
		t.Fatalf("AcceptQuote: %v", err)
	}
	if _, err := f.svc.Pay(ctx, guestCaller, tr.Code, 8800, "pm_card"); err != nil {
		t.Fatalf("first Pay: %v", err)
	}

	var te *TransitionError
	_, err := f.svc.Pay(ctx, guestCaller, tr.Code, 8800, "pm_card")
	if !errors.As(err, &te) {
		t.Fatalf("second pay: err = %v, want TransitionError", err)
	}
	if len(f.gateway.requests) != 1 {
		t.Fatalf("gateway charged %d times, want 1", len(f.gateway.requests))
	}
}

func TestRequestRevisionRequiresDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, guestCaller := f.guestInquiry(t)
	q, _ := f.svc.SendQuote(ctx, f.creator, tr.Code, QuoteInput{
		Items: []models.QuoteItem{{Name: "Portrait", PriceCents: 8800}},
	})
	if _, err := f.svc.AcceptQuote(ctx, guestCaller, tr.Code, q.ID); err != nil {
		t.Fatalf("AcceptQuote: %v", err)
	}
	if _, err := f.svc.Pay(ctx, guestCaller, tr.Code, 8800, "pm_card"); err != nil {
		t.Fatalf("Pay: %v", err)
	}

	err := f.svc.RequestRevision(ctx, guestCaller, tr.Code, "please adjust colors")
	if !errors.Is(err, ErrDeliveryRequired) {
		t.Fatalf("revision before delivery: err = %v, want ErrDeliveryRequired", err)
	}

	if _, err := f.svc.Deliver(ctx, f.creator, tr.Code, ""); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if err := f.svc.RequestRevision(ctx, guestCaller, tr.Code, "please adjust colors"); err != nil {
		t.Fatalf("revision after delivery: %v", err)
	}
	if got := f.current(t, tr.ID).Status; got != models.StatusRevisionRequested {
		t.Fatalf("status = %s, want revision_requested", got)
	}
	// Redelivery after rework.
	if _, err := f.svc.Deliver(ctx, f.creator, tr.Code, "updated colors"); err != nil {
		t.Fatalf("redeliver: %v", err)
	}
}

func TestCancelIsAdminOnlyAndClearsAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, guestCaller := f.guestInquiry(t)
	q, _ := f.svc.SendQuote(ctx, f.creator, tr.Code, QuoteInput{
		Items: []models.QuoteItem{{Name: "Portrait", PriceCents: 8800}},
	})
	if _, err := f.svc.AcceptQuote(ctx, guestCaller, tr.Code, q.ID); err != nil {
		t.Fatalf("AcceptQuote: %v", err)
	}

	if err := f.svc.Cancel(ctx, f.creator, tr.Code, "changed my mind"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("creator cancel: err = %v, want ErrForbidden", err)
	}
	if err := f.svc.Cancel(ctx, f.admin, tr.Code, "customer request"); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	cur := f.current(t, tr.ID)
	if cur.Status != models.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cur.Status)
	}
	checkAmounts(t, cur)
}

func TestRefundClearsAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, guestCaller := f.guestInquiry(t)
	q, _ := f.svc.SendQuote(ctx, f.creator, tr.Code, QuoteInput{
		Items: []models.QuoteItem{{Name: "Portrait", PriceCents: 8800}},
	})
	if _, err := f.svc.AcceptQuote(ctx, guestCaller, tr.Code, q.ID); err != nil {
		t.Fatalf("AcceptQuote: %v", err)
	}
	if _, err := f.svc.Pay(ctx, guestCaller, tr.Code, 8800, "pm_card"); err != nil {
		t.Fatalf("Pay: %v", err)
	}

	if err := f.svc.Refund(ctx, f.admin, tr.Code, "quality dispute"); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	cur := f.current(t, tr.ID)
	if cur.Status != models.StatusRefunded {
		t.Fatalf("status = %s, want refunded", cur.Status)
	}
	checkAmounts(t, cur)
}

func TestIllegalTransitionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, guestCaller := f.guestInquiry(t)
	if _, err := f.svc.SendQuote(ctx, f.creator, tr.Code, QuoteInput{
		Items: []models.QuoteItem{{Name: "Portrait", PriceCents: 8800}},
	}); err != nil {
		t.Fatalf("SendQuote: %v", err)
	}

	var te *TransitionError
	if err := f.svc.Acknowledge(ctx, f.creator, tr.Code); !errors.As(err, &te) {
		t.Fatalf("acknowledge from quote_sent: err = %v, want TransitionError", err)
	}
	if err := f.svc.Approve(ctx, guestCaller, tr.Code); !errors.As(err, &te) {
		t.Fatalf("approve from quote_sent: err = %v, want TransitionError", err)
	}
}

func TestAcceptQuoteRejectsForeignQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr, guestCaller := f.guestInquiry(t)
	otherTr, _ := f.guestInquiry(t)
	foreign, err := f.svc.SendQuote(ctx, f.creator, otherTr.Code, QuoteInput{
		Items: []models.QuoteItem{{Name: "Portrait", PriceCents: 100}},
	})
	if err != nil {
		t.Fatalf("SendQuote: %v", err)
	}
	if _, err := f.svc.SendQuote(ctx, f.creator, tr.Code, QuoteInput{
		Items: []models.QuoteItem{{Name: "Portrait", PriceCents: 8800}},
	}); err != nil {
		t.Fatalf("SendQuote: %v", err)
	}

	if _, err := f.svc.AcceptQuote(ctx, guestCaller, tr.Code, foreign.ID); !errors.Is(err, ErrQuoteMismatch) {
		t.Fatalf("err = %v, want ErrQuoteMismatch", err)
	}
}
