// Package checkout owns the transaction lifecycle of a storefront session:
// the authoritative status, the quantity selections, and the merge of the
// two status channels (the synchronous gateway response and the asynchronous
// push stream) into one consistent record.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/arthurstore/storefront/internal/live"
	"github.com/arthurstore/storefront/internal/metrics"
	"github.com/arthurstore/storefront/internal/models"
	"github.com/arthurstore/storefront/internal/pricing"
	"github.com/arthurstore/storefront/internal/validation"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// CatalogGateway fetches the purchasable items from the catalog service.
type CatalogGateway interface {
	FetchCatalog(ctx context.Context) ([]models.Item, error)
}

// TransactionGateway submits a purchase to the remote processor.
type TransactionGateway interface {
	Submit(ctx context.Context, req models.PaymentRequest) (*models.TransactionOutcome, error)
}

// Error kinds surfaced by session operations.
var (
	// ErrValidation means a guard rejected the request before any
	// transition; the session state is unchanged.
	ErrValidation = errors.New("validation failed")

	// ErrIllegalTransition means the requested status change is not in the
	// transition table. It is surfaced, never silently applied.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrSessionClosed means the session has been torn down.
	ErrSessionClosed = errors.New("session closed")
)

// allowedTransitions is the authoritative transition table. The key is the
// current status, the value the statuses reachable from it.
var allowedTransitions = map[models.Status][]models.Status{
	models.StatusIdle:       {models.StatusSubmitting},
	models.StatusSubmitting: {models.StatusPending, models.StatusApproved, models.StatusDenied},
	models.StatusPending:    {models.StatusApproved, models.StatusDenied},
	models.StatusApproved:   {models.StatusIdle},
	models.StatusDenied:     {models.StatusIdle},
}

func canTransition(from, to models.Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Session is one user's purchase flow. All entry points serialize on the
// session mutex; the only operation that suspends without it is the gateway
// call itself.
type Session struct {
	ID string

	mu         sync.Mutex
	record     models.TransactionRecord
	catalog    []models.Item
	loading    bool
	catalogErr string
	selected   int // 0 means no active item
	quantities map[int]int
	txID       string // transaction id of the active submission
	epoch      uint64 // bumped on reset/close; in-flight responses from an older epoch are discarded
	closed     bool

	catalogGW CatalogGateway
	txGW      TransactionGateway
	source    live.Source
	cancel    context.CancelFunc
}

// NewSession creates a session in status idle. The live source may be nil
// when no push channel is configured.
func NewSession(catalogGW CatalogGateway, txGW TransactionGateway, source live.Source) *Session {
	return &Session{
		ID:         uuid.New().String(),
		record:     models.TransactionRecord{Status: models.StatusIdle},
		quantities: make(map[int]int),
		catalogGW:  catalogGW,
		txGW:       txGW,
		source:     source,
	}
}

// Start opens the live status subscription for the whole session lifetime.
// Events are filtered by transaction identity and current status, not
// assumed well-ordered relative to gateway responses.
func (s *Session) Start(ctx context.Context) error {
	if s.source == nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	events, err := s.source.Subscribe(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("live status subscription failed: %w", err)
	}
	s.cancel = cancel

	go func() {
		for ev := range events {
			s.ApplyLiveStatus(ev)
		}
	}()

	return nil
}

// Close tears the session down: the live subscription ends and any in-flight
// gateway response is discarded rather than applied.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.epoch++
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.source != nil {
		return s.source.Close()
	}
	return nil
}

// LoadCatalog replaces the session catalog with a fresh fetch. On failure
// the prior catalog is kept and the error recorded for the presentation
// layer.
func (s *Session) LoadCatalog(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.catalogErr = ""
	s.mu.Unlock()

	items, err := s.catalogGW.FetchCatalog(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.catalogErr = err.Error()
		log.WithField("session_id", s.ID).Error("Failed to fetch catalog: ", err)
		return err
	}

	s.catalog = items
	log.WithFields(log.Fields{
		"session_id": s.ID,
		"items":      len(items),
	}).Info("Catalog loaded")
	return nil
}

// SetQuantity records a requested quantity for an item. Requests above stock
// or below zero are rejected outright, never clamped; the prior value stays.
func (s *Session) SetQuantity(itemID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.itemLocked(itemID)
	if !ok {
		return fmt.Errorf("%w: unknown item %d", ErrValidation, itemID)
	}
	if quantity < 0 || quantity > item.Stock {
		return fmt.Errorf("%w: the maximum quantity available for %s is %d", ErrValidation, item.Name, item.Stock)
	}

	s.quantities[itemID] = quantity
	return nil
}

// SelectItem makes an item the active selection. The session supports one
// in-flight purchase, so quantities recorded for other items are cleared.
// Requires a positive recorded quantity, mirroring the buy guard.
func (s *Session) SelectItem(itemID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.itemLocked(itemID); !ok {
		return fmt.Errorf("%w: unknown item %d", ErrValidation, itemID)
	}
	quantity := s.quantities[itemID]
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be greater than 0 to proceed with payment", ErrValidation)
	}

	if s.selected != itemID {
		s.quantities = map[int]int{itemID: quantity}
	}
	s.selected = itemID
	return nil
}

// Submit drives one purchase attempt: idle -> submitting, exactly one
// gateway call, then the returned status verbatim. A gateway failure lands
// in denied with the message recorded; it never escapes as an error. The
// returned record is the state after the attempt.
func (s *Session) Submit(ctx context.Context, payment models.PaymentDetails, delivery models.DeliveryDetails) (models.TransactionRecord, error) {
	s.mu.Lock()
	if s.closed {
		record := s.record
		s.mu.Unlock()
		return record, ErrSessionClosed
	}

	// A repeat submit while one is outstanding, or a submit from pending or
	// a terminal status, fails the transition check, not the guard.
	if !canTransition(s.record.Status, models.StatusSubmitting) {
		record := s.record
		s.mu.Unlock()
		return record, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, record.Status, models.StatusSubmitting)
	}

	if err := s.submitGuardLocked(payment); err != nil {
		record := s.record
		s.mu.Unlock()
		return record, err
	}

	s.mustTransitionLocked(models.StatusSubmitting, "")

	txID := uuid.New().String()
	s.txID = txID
	epoch := s.epoch

	payment.ProductID = s.selected
	payment.ProductQuantity = s.quantities[s.selected]
	delivery.ProductID = s.selected
	req := models.PaymentRequest{TransactionID: txID, Payment: payment, Delivery: delivery}

	log.WithFields(log.Fields{
		"session_id":     s.ID,
		"transaction_id": txID,
		"product_id":     s.selected,
		"quantity":       payment.ProductQuantity,
	}).Info("Submitting transaction")
	s.mu.Unlock()

	outcome, err := s.txGW.Submit(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		// The session was reset or closed while the call was outstanding; a
		// late response must not resurrect a stale status.
		log.WithFields(log.Fields{
			"session_id":     s.ID,
			"transaction_id": txID,
		}).Warn("Discarding gateway response for a torn-down submission")
		return s.record, nil
	}

	if err != nil {
		s.mustTransitionLocked(models.StatusDenied, err.Error())
		metrics.SubmissionsTotal.WithLabelValues("request_failed").Inc()
		log.WithFields(log.Fields{
			"session_id":     s.ID,
			"transaction_id": txID,
		}).Error("Transaction request failed: ", err)
		return s.record, nil
	}

	s.mustTransitionLocked(outcome.Status, outcome.Message)
	metrics.SubmissionsTotal.WithLabelValues(string(outcome.Status)).Inc()
	return s.record, nil
}

// ApplyLiveStatus merges one push event into the session. Only approved and
// denied apply, only from pending, and only for the active transaction;
// everything else is a stale or irrelevant event and is dropped. The two
// channels race, so this guard is what keeps the merge idempotent.
func (s *Session) ApplyLiveStatus(ev live.StatusEvent) {
	status, ok := models.ParseStatus(ev.Status)
	if !ok || !status.Terminal() {
		metrics.LiveEventsTotal.WithLabelValues("ignored").Inc()
		log.WithField("status", ev.Status).Debug("Ignoring live event with non-terminal status")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.record.Status != models.StatusPending {
		metrics.LiveEventsTotal.WithLabelValues("stale").Inc()
		log.WithFields(log.Fields{
			"session_id": s.ID,
			"status":     status,
			"current":    s.record.Status,
		}).Debug("Ignoring stale live event")
		return
	}

	// Events carrying an id must match the active attempt; the bare
	// {status} shape is accepted for it.
	if ev.TransactionID != "" && ev.TransactionID != s.txID {
		metrics.LiveEventsTotal.WithLabelValues("stale").Inc()
		return
	}

	s.mustTransitionLocked(status, "")
	metrics.LiveEventsTotal.WithLabelValues("applied").Inc()
	log.WithFields(log.Fields{
		"session_id":     s.ID,
		"transaction_id": s.txID,
		"status":         status,
	}).Info("Live status applied")
}

// Reset is the explicit return-to-catalog action. It is legal only from a
// terminal status and clears the selection along with the transaction id;
// payment and delivery details are never stored, so there is nothing else
// to scrub.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canTransition(s.record.Status, models.StatusIdle) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.record.Status, models.StatusIdle)
	}

	s.mustTransitionLocked(models.StatusIdle, "")
	s.selected = 0
	s.quantities = make(map[int]int)
	s.txID = ""
	s.epoch++
	return nil
}

// Snapshot is a read-only view of the session for the presentation layer.
type Snapshot struct {
	SessionID    string        `json:"sessionId"`
	Status       models.Status `json:"status"`
	Message      string        `json:"message,omitempty"`
	Loading      bool          `json:"loading"`
	CatalogError string        `json:"catalogError,omitempty"`
	Catalog      []models.Item `json:"catalog"`
	SelectedItem int           `json:"selectedItem,omitempty"`
	Quantities   map[int]int   `json:"quantities"`
	Subtotal     int64         `json:"subtotal"`
	ServiceFee   int64         `json:"serviceFee"`
	Total        int64         `json:"total"`
}

// Snapshot returns the current session view with computed totals.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalog := make([]models.Item, len(s.catalog))
	copy(catalog, s.catalog)
	quantities := make(map[int]int, len(s.quantities))
	for id, q := range s.quantities {
		quantities[id] = q
	}

	subtotal := pricing.Subtotal(s.selected, s.catalog, s.quantities)
	return Snapshot{
		SessionID:    s.ID,
		Status:       s.record.Status,
		Message:      s.record.Message,
		Loading:      s.loading,
		CatalogError: s.catalogErr,
		Catalog:      catalog,
		SelectedItem: s.selected,
		Quantities:   quantities,
		Subtotal:     subtotal,
		ServiceFee:   pricing.ServiceFee(subtotal),
		Total:        pricing.Total(s.selected, s.catalog, s.quantities),
	}
}

// Record returns the current transaction record.
func (s *Session) Record() models.TransactionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// submitGuardLocked performs the fail-fast checks ahead of idle ->
// submitting. Failure is a no-op on the record.
func (s *Session) submitGuardLocked(payment models.PaymentDetails) error {
	if s.selected == 0 {
		return fmt.Errorf("%w: please select a product to proceed with payment", ErrValidation)
	}
	if s.quantities[s.selected] <= 0 {
		return fmt.Errorf("%w: quantity must be greater than 0", ErrValidation)
	}
	if !validation.IsStructurallyValidCardNumber(payment.CardNumber) {
		return fmt.Errorf("%w: invalid card number", ErrValidation)
	}
	if !validation.IsValidCVC(payment.CVC) {
		return fmt.Errorf("%w: CVC must be 3 or 4 digits", ErrValidation)
	}
	if !validation.IsValidEmail(payment.UserEmail) {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return nil
}

// mustTransitionLocked applies a transition the caller has already checked
// against the table. A miss here is a programming error.
func (s *Session) mustTransitionLocked(to models.Status, message string) {
	from := s.record.Status
	if !canTransition(from, to) {
		// Submitting can only reach pending/approved/denied and callers
		// gate every other edge, so this is unreachable; log loudly if a
		// new edge is ever missed.
		log.WithFields(log.Fields{
			"session_id": s.ID,
			"from":       from,
			"to":         to,
		}).Error("Refusing illegal status transition")
		return
	}

	s.record.Status = to
	s.record.Message = message
	metrics.TransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	log.WithFields(log.Fields{
		"session_id": s.ID,
		"from":       from,
		"to":         to,
	}).Info("Checkout status changed")
}

func (s *Session) itemLocked(itemID int) (models.Item, bool) {
	for _, item := range s.catalog {
		if item.ID == itemID {
			return item, true
		}
	}
	return models.Item{}, false
}
