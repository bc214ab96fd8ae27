package event

import (
	"time"

	"github.com/gyaneshwarpardhi/cachesync/internal/cache"
)

// Kind is the event type published by the source of record.
type Kind string

const (
	LoanCreated  Kind = "LOAN_CREATED"
	LoanUpdated  Kind = "LOAN_UPDATED"
	LoanRenewed  Kind = "LOAN_RENEWED"
	LoanDueDate  Kind = "LOAN_DUE_DATE"
	LoanReturned Kind = "LOAN_RETURNED"

	RequestCreated Kind = "REQUEST_CREATED"
	RequestUpdated Kind = "REQUEST_UPDATED"
	RequestClosed  Kind = "REQUEST_CLOSED"
)

// Event is the canonical input model for all incoming mutations. Exactly one
// of Loan or Request is expected to be set, matching Kind.
type Event struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	OccurredAt time.Time      `json:"occurred_at"`
	ReceivedAt time.Time      `json:"-"`
	Loan       *cache.Loan    `json:"item_loan,omitempty"`
	Request    *cache.Request `json:"user_request,omitempty"`
}

// ItemID returns the id of the loan or request carried by the event.
func (e *Event) ItemID() string {
	switch {
	case e.Loan != nil:
		return e.Loan.ID
	case e.Request != nil:
		return e.Request.ID
	}
	return ""
}
