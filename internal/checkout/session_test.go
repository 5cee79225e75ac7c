package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arthurstore/storefront/internal/gateway"
	"github.com/arthurstore/storefront/internal/live"
	"github.com/arthurstore/storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCatalogGateway struct {
	m     sync.Mutex
	items []models.Item
	err   error
}

func (m *mockCatalogGateway) FetchCatalog(context.Context) ([]models.Item, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

type mockTransactionGateway struct {
	m       sync.Mutex
	outcome *models.TransactionOutcome
	err     error
	lastReq models.PaymentRequest
	calls   int

	// When set, Submit blocks until the channel is closed, signalling
	// started first.
	block   chan struct{}
	started chan struct{}
}

func (m *mockTransactionGateway) Submit(_ context.Context, req models.PaymentRequest) (*models.TransactionOutcome, error) {
	m.m.Lock()
	m.lastReq = req
	m.calls++
	block, started := m.block, m.started
	m.m.Unlock()

	if block != nil {
		started <- struct{}{}
		<-block
	}

	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.outcome, nil
}

func (m *mockTransactionGateway) callCount() int {
	m.m.Lock()
	defer m.m.Unlock()
	return m.calls
}

type fakeSource struct {
	events chan live.StatusEvent
	closed bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan live.StatusEvent)}
}

func (f *fakeSource) Subscribe(context.Context) (<-chan live.StatusEvent, error) {
	return f.events, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	close(f.events)
	return nil
}

var testCatalog = []models.Item{
	{ID: 1, Name: "Laptop", Stock: 10, Price: 100},
	{ID: 2, Name: "Mouse", Stock: 5, Price: 200},
}

func newTestSession(t *testing.T, txGW TransactionGateway) *Session {
	t.Helper()
	s := NewSession(&mockCatalogGateway{items: testCatalog}, txGW, nil)
	require.NoError(t, s.LoadCatalog(context.Background()))
	return s
}

func validPayment() models.PaymentDetails {
	return models.PaymentDetails{
		CardNumber:      "4111111111111111",
		CVC:             "123",
		ExpirationMonth: "09",
		ExpirationYear:  "28",
		CardHolder:      "Ada Lovelace",
		UserEmail:       "ada@example.com",
		Installments:    1,
	}
}

func validDelivery() models.DeliveryDetails {
	return models.DeliveryDetails{Address: "12 Main St", City: "Bogota", CustomerName: "Ada Lovelace"}
}

func selectLaptop(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.SetQuantity(1, 2))
	require.NoError(t, s.SelectItem(1))
}

func TestSubmitWithoutSelection(t *testing.T) {
	gw := &mockTransactionGateway{}
	s := newTestSession(t, gw)

	record, err := s.Submit(context.Background(), validPayment(), validDelivery())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, models.StatusIdle, record.Status)
	assert.Zero(t, gw.callCount(), "guard failure must not call the gateway")
}

func TestSubmitGuardRejectsBadCardAndEmail(t *testing.T) {
	gw := &mockTransactionGateway{}
	s := newTestSession(t, gw)
	selectLaptop(t, s)

	payment := validPayment()
	payment.CardNumber = "123"
	_, err := s.Submit(context.Background(), payment, validDelivery())
	assert.ErrorIs(t, err, ErrValidation)

	payment = validPayment()
	payment.UserEmail = "not-an-email"
	_, err = s.Submit(context.Background(), payment, validDelivery())
	assert.ErrorIs(t, err, ErrValidation)

	payment = validPayment()
	payment.CVC = "12"
	_, err = s.Submit(context.Background(), payment, validDelivery())
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, models.StatusIdle, s.Record().Status)
	assert.Zero(t, gw.callCount())
}

func TestSubmitAppliesGatewayStatus(t *testing.T) {
	gw := &mockTransactionGateway{
		outcome: &models.TransactionOutcome{Message: "processing", Status: models.StatusPending},
	}
	s := newTestSession(t, gw)
	selectLaptop(t, s)

	record, err := s.Submit(context.Background(), validPayment(), validDelivery())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, record.Status)
	assert.Equal(t, "processing", record.Message)
	assert.Equal(t, 1, gw.callCount())

	// The payload carries the active selection and a minted transaction id.
	assert.Equal(t, 1, gw.lastReq.Payment.ProductID)
	assert.Equal(t, 2, gw.lastReq.Payment.ProductQuantity)
	assert.Equal(t, 1, gw.lastReq.Delivery.ProductID)
	assert.NotEmpty(t, gw.lastReq.TransactionID)
}

func TestSubmitGatewayFailureLandsInDenied(t *testing.T) {
	gw := &mockTransactionGateway{
		err: fmt.Errorf("%w: connection refused", gateway.ErrRequestFailed),
	}
	s := newTestSession(t, gw)
	selectLaptop(t, s)

	record, err := s.Submit(context.Background(), validPayment(), validDelivery())

	// The failure is recorded, not escaped.
	require.NoError(t, err)
	assert.Equal(t, models.StatusDenied, record.Status)
	assert.Contains(t, record.Message, "connection refused")
}

func TestLiveStatusResolvesPending(t *testing.T) {
	gw := &mockTransactionGateway{
		outcome: &models.TransactionOutcome{Status: models.StatusPending},
	}
	s := newTestSession(t, gw)
	selectLaptop(t, s)

	_, err := s.Submit(context.Background(), validPayment(), validDelivery())
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, s.Record().Status)

	// Push events arrive upper-cased on the wire.
	s.ApplyLiveStatus(live.StatusEvent{Status: "APPROVED"})
	assert.Equal(t, models.StatusApproved, s.Record().Status)

	// A stale second event after resolution is ignored.
	s.ApplyLiveStatus(live.StatusEvent{Status: "denied"})
	assert.Equal(t, models.StatusApproved, s.Record().Status)
}

func TestLiveStatusIgnoredOutsidePending(t *testing.T) {
	s := newTestSession(t, &mockTransactionGateway{})

	s.ApplyLiveStatus(live.StatusEvent{Status: "approved"})
	assert.Equal(t, models.StatusIdle, s.Record().Status)
}

func TestLiveStatusIgnoresNonTerminalAndForeignEvents(t *testing.T) {
	gw := &mockTransactionGateway{
		outcome: &models.TransactionOutcome{Status: models.StatusPending},
	}
	s := newTestSession(t, gw)
	selectLaptop(t, s)
	_, err := s.Submit(context.Background(), validPayment(), validDelivery())
	require.NoError(t, err)

	// Non-terminal statuses never apply.
	s.ApplyLiveStatus(live.StatusEvent{Status: "pending"})
	s.ApplyLiveStatus(live.StatusEvent{Status: "garbage"})
	assert.Equal(t, models.StatusPending, s.Record().Status)

	// Another transaction's event never applies.
	s.ApplyLiveStatus(live.StatusEvent{TransactionID: "someone-else", Status: "approved"})
	assert.Equal(t, models.StatusPending, s.Record().Status)

	// The active transaction's event does.
	s.ApplyLiveStatus(live.StatusEvent{TransactionID: gw.lastReq.TransactionID, Status: "approved"})
	assert.Equal(t, models.StatusApproved, s.Record().Status)
}

func TestRepeatSubmitWhileOutstanding(t *testing.T) {
	gw := &mockTransactionGateway{
		outcome: &models.TransactionOutcome{Status: models.StatusApproved},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s := newTestSession(t, gw)
	selectLaptop(t, s)

	done := make(chan models.TransactionRecord, 1)
	go func() {
		record, _ := s.Submit(context.Background(), validPayment(), validDelivery())
		done <- record
	}()
	<-gw.started

	// The submitting state itself rejects a second submission.
	_, err := s.Submit(context.Background(), validPayment(), validDelivery())
	assert.ErrorIs(t, err, ErrIllegalTransition)

	close(gw.block)
	record := <-done
	assert.Equal(t, models.StatusApproved, record.Status)
	assert.Equal(t, 1, gw.callCount())
}

func TestLateResponseAfterCloseIsDiscarded(t *testing.T) {
	gw := &mockTransactionGateway{
		outcome: &models.TransactionOutcome{Status: models.StatusApproved},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s := newTestSession(t, gw)
	selectLaptop(t, s)

	done := make(chan models.TransactionRecord, 1)
	go func() {
		record, _ := s.Submit(context.Background(), validPayment(), validDelivery())
		done <- record
	}()
	<-gw.started

	require.NoError(t, s.Close())
	close(gw.block)

	record := <-done
	assert.NotEqual(t, models.StatusApproved, record.Status,
		"a late response after teardown must not be applied")
}

func TestQuantityGuard(t *testing.T) {
	s := newTestSession(t, &mockTransactionGateway{})

	require.NoError(t, s.SetQuantity(1, 4))

	// Exceeding stock is rejected, not clamped; the prior value stays.
	err := s.SetQuantity(1, 11)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 4, s.Snapshot().Quantities[1])

	// Stock itself is accepted.
	require.NoError(t, s.SetQuantity(1, 10))
	assert.Equal(t, 10, s.Snapshot().Quantities[1])

	assert.ErrorIs(t, s.SetQuantity(1, -1), ErrValidation)
	assert.ErrorIs(t, s.SetQuantity(99, 1), ErrValidation)
	_, recorded := s.Snapshot().Quantities[99]
	assert.False(t, recorded, "quantities for unknown items are never recorded")
}

func TestSelectItemClearsOtherQuantities(t *testing.T) {
	s := newTestSession(t, &mockTransactionGateway{})

	require.NoError(t, s.SetQuantity(1, 2))
	require.NoError(t, s.SetQuantity(2, 3))
	require.NoError(t, s.SelectItem(1))

	require.NoError(t, s.SelectItem(1)) // reselecting keeps the quantity
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.SelectedItem)
	assert.Equal(t, map[int]int{1: 2}, snap.Quantities)

	assert.ErrorIs(t, s.SelectItem(2), ErrValidation, "cleared quantity fails the buy guard")
	assert.ErrorIs(t, s.SelectItem(99), ErrValidation)
}

func TestSelectItemRequiresQuantity(t *testing.T) {
	s := newTestSession(t, &mockTransactionGateway{})
	assert.ErrorIs(t, s.SelectItem(1), ErrValidation)
}

func TestReset(t *testing.T) {
	gw := &mockTransactionGateway{
		outcome: &models.TransactionOutcome{Status: models.StatusApproved},
	}
	s := newTestSession(t, gw)
	selectLaptop(t, s)

	_, err := s.Submit(context.Background(), validPayment(), validDelivery())
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, s.Record().Status)

	require.NoError(t, s.Reset())

	snap := s.Snapshot()
	assert.Equal(t, models.StatusIdle, snap.Status)
	assert.Empty(t, snap.Message)
	assert.Zero(t, snap.SelectedItem)
	assert.Empty(t, snap.Quantities)
}

func TestResetIllegalOutsideTerminalStatus(t *testing.T) {
	s := newTestSession(t, &mockTransactionGateway{})
	assert.ErrorIs(t, s.Reset(), ErrIllegalTransition)

	gw := &mockTransactionGateway{
		outcome: &models.TransactionOutcome{Status: models.StatusPending},
	}
	s = newTestSession(t, gw)
	selectLaptop(t, s)
	_, err := s.Submit(context.Background(), validPayment(), validDelivery())
	require.NoError(t, err)

	assert.ErrorIs(t, s.Reset(), ErrIllegalTransition)
}

func TestSubmitAfterReset(t *testing.T) {
	gw := &mockTransactionGateway{
		outcome: &models.TransactionOutcome{Status: models.StatusDenied, Message: "declined"},
	}
	s := newTestSession(t, gw)
	selectLaptop(t, s)

	record, err := s.Submit(context.Background(), validPayment(), validDelivery())
	require.NoError(t, err)
	require.Equal(t, models.StatusDenied, record.Status)

	require.NoError(t, s.Reset())

	// A fresh attempt runs the whole lifecycle again.
	gw.m.Lock()
	gw.outcome = &models.TransactionOutcome{Status: models.StatusApproved}
	gw.m.Unlock()
	selectLaptop(t, s)
	record, err = s.Submit(context.Background(), validPayment(), validDelivery())
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, record.Status)
	assert.Equal(t, 2, gw.callCount())
}

func TestLoadCatalogFailureKeepsPriorCatalog(t *testing.T) {
	catalogGW := &mockCatalogGateway{items: testCatalog}
	s := NewSession(catalogGW, &mockTransactionGateway{}, nil)
	require.NoError(t, s.LoadCatalog(context.Background()))

	catalogGW.m.Lock()
	catalogGW.err = errors.New("catalog down")
	catalogGW.m.Unlock()

	err := s.LoadCatalog(context.Background())
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Len(t, snap.Catalog, 2, "prior catalog retained")
	assert.Contains(t, snap.CatalogError, "catalog down")
	assert.False(t, snap.Loading)
}

func TestSnapshotTotals(t *testing.T) {
	s := newTestSession(t, &mockTransactionGateway{})
	selectLaptop(t, s)

	snap := s.Snapshot()
	assert.Equal(t, int64(200), snap.Subtotal)
	assert.Equal(t, int64(30), snap.ServiceFee)
	assert.Equal(t, int64(15230), snap.Total)
}

func TestSessionLiveSubscriptionLifecycle(t *testing.T) {
	gw := &mockTransactionGateway{
		outcome: &models.TransactionOutcome{Status: models.StatusPending},
	}
	source := newFakeSource()
	s := NewSession(&mockCatalogGateway{items: testCatalog}, gw, source)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.LoadCatalog(context.Background()))
	selectLaptop(t, s)

	_, err := s.Submit(context.Background(), validPayment(), validDelivery())
	require.NoError(t, err)

	source.events <- live.StatusEvent{Status: "approved"}
	require.Eventually(t, func() bool {
		return s.Record().Status == models.StatusApproved
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	assert.True(t, source.closed, "teardown closes the subscription")
}

func TestSubmitOnClosedSession(t *testing.T) {
	s := newTestSession(t, &mockTransactionGateway{})
	require.NoError(t, s.Close())

	_, err := s.Submit(context.Background(), validPayment(), validDelivery())
	assert.ErrorIs(t, err, ErrSessionClosed)
}
