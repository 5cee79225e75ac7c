package models

import "strings"

// Item is a purchasable product as returned by the catalog service.
// Items are immutable within a session; a catalog refresh replaces the
// whole slice.
type Item struct {
	ID          int    `json:"productId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Stock       int    `json:"stock"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"urlImage"`
}

// PaymentDetails carries the card data for a single purchase attempt.
// It exists only between selection confirmation and submission and is
// never persisted.
type PaymentDetails struct {
	CardNumber      string `json:"cardNumber" binding:"required"`
	CVC             string `json:"cvc" binding:"required"`
	ExpirationMonth string `json:"expirationMonth"`
	ExpirationYear  string `json:"expirationYear"`
	CardHolder      string `json:"cardHolder"`
	UserEmail       string `json:"userEmail" binding:"required"`
	Installments    int    `json:"installments"`
	ProductID       int    `json:"productId"`
	ProductQuantity int    `json:"productQuantity"`
}

// DeliveryDetails carries the shipping data for a purchase attempt.
type DeliveryDetails struct {
	Address      string `json:"address"`
	City         string `json:"city"`
	CustomerName string `json:"customerName"`
	ProductID    int    `json:"productId"`
}

// PaymentRequest is the payload sent to the transaction endpoint.
type PaymentRequest struct {
	TransactionID string          `json:"transactionId"`
	Payment       PaymentDetails  `json:"payment"`
	Delivery      DeliveryDetails `json:"delivery"`
}

// TransactionOutcome is the transaction endpoint's immediate response.
// Status is never idle or submitting; those are client-local states.
type TransactionOutcome struct {
	Message string `json:"message"`
	Status  Status `json:"transactionStatus"`
}

// Status is the lifecycle state of a purchase attempt.
type Status string

// Transaction status constants
const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusDenied     Status = "denied"
)

// ParseStatus normalizes a wire status string. The remote processor and the
// push channel both report statuses in varying case.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusIdle:
		return StatusIdle, true
	case StatusSubmitting:
		return StatusSubmitting, true
	case StatusPending:
		return StatusPending, true
	case StatusApproved:
		return StatusApproved, true
	case StatusDenied:
		return StatusDenied, true
	}
	return "", false
}

// Terminal reports whether the status ends the current purchase attempt.
// Only an explicit reset or a fresh submission leaves a terminal status.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDenied
}

// TransactionRecord is the authoritative transaction state of a session.
type TransactionRecord struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}
