package cache

import (
	"context"
	"time"
)

// ItemKind names one of the two item record kinds an Account references.
type ItemKind string

const (
	KindLoan    ItemKind = "loan"
	KindRequest ItemKind = "request"
)

// Record is implemented by every cached record type. Stamped returns a copy
// of the record with its expiry recomputed for a write happening at now.
type Record[T any] interface {
	RecordID() string
	Stamped(now time.Time, ttl TTL) T
}

// Item is a record owned by exactly one Account.
type Item[T any] interface {
	Record[T]
	OwnerID() string
}

// Store is the per-kind key/value accessor for one record type.
//
// Put is an idempotent upsert that overwrites every field and recomputes the
// expiry. Delete succeeds when the id is absent. Get returns ErrNotFound for
// an absent id. No locking is provided across calls.
type Store[T any] interface {
	Get(ctx context.Context, id string) (T, error)
	Put(ctx context.Context, rec T) error
	Delete(ctx context.Context, id string) error
}

// TTL holds the expiry policy applied by stores on every write.
type TTL struct {
	// Account and Request expire this long after their last write.
	Account time.Duration `yaml:"account" env:"ACCOUNT"`
	Request time.Duration `yaml:"request" env:"REQUEST"`
	// LoanGrace is added to a loan's due date.
	LoanGrace time.Duration `yaml:"loan_grace" env:"LOAN_GRACE"`
}

// DefaultTTL matches the expiry the cache has always used: two hours for
// accounts and requests, loans expire on their due date.
func DefaultTTL() TTL {
	return TTL{Account: 2 * time.Hour, Request: 2 * time.Hour}
}

// Account is the parent record referencing loans and requests by id.
type Account struct {
	ID         string `json:"primary_id" dynamodbav:"primary_id"`
	LoanIDs    RefSet `json:"loan_ids" dynamodbav:"loan_ids"`
	RequestIDs RefSet `json:"request_ids" dynamodbav:"request_ids"`
	Expiry     int64  `json:"expiry_date" dynamodbav:"expiry_date"`
}

func (a Account) RecordID() string { return a.ID }

func (a Account) Stamped(now time.Time, ttl TTL) Account {
	a.LoanIDs = a.LoanIDs.Clone()
	a.RequestIDs = a.RequestIDs.Clone()
	a.Expiry = now.Add(ttl.Account).Unix()
	return a
}

// Refs returns the reference set for kind.
func (a *Account) Refs(kind ItemKind) *RefSet {
	if kind == KindRequest {
		return &a.RequestIDs
	}
	return &a.LoanIDs
}

// Loan is a cached item loan. Descriptive fields are copied verbatim from the
// source event and never interpreted, except DueDate which drives expiry.
type Loan struct {
	ID         string `json:"loan_id" dynamodbav:"loan_id"`
	AccountID  string `json:"user_id" dynamodbav:"user_id"`
	Title      string `json:"title,omitempty" dynamodbav:"title,omitempty"`
	Barcode    string `json:"item_barcode,omitempty" dynamodbav:"item_barcode,omitempty"`
	Status     string `json:"loan_status,omitempty" dynamodbav:"loan_status,omitempty"`
	LoanDate   string `json:"loan_date,omitempty" dynamodbav:"loan_date,omitempty"`
	DueDate    string `json:"due_date,omitempty" dynamodbav:"due_date,omitempty"`
	ReturnDate string `json:"return_date,omitempty" dynamodbav:"return_date,omitempty"`
	Expiry     int64  `json:"expiry_date" dynamodbav:"expiry_date"`
}

func (l Loan) RecordID() string { return l.ID }

func (l Loan) OwnerID() string { return l.AccountID }

// Stamped sets the expiry to the due date plus the loan grace. Loans without
// a parseable due date fall back to the request TTL.
func (l Loan) Stamped(now time.Time, ttl TTL) Loan {
	if due, ok := parseDate(l.DueDate); ok {
		l.Expiry = due.Add(ttl.LoanGrace).Unix()
		return l
	}
	l.Expiry = now.Add(ttl.Request).Unix()
	return l
}

// Request is a cached user request.
type Request struct {
	ID             string `json:"request_id" dynamodbav:"request_id"`
	AccountID      string `json:"user_primary_id" dynamodbav:"user_primary_id"`
	Title          string `json:"title,omitempty" dynamodbav:"title,omitempty"`
	RequestType    string `json:"request_type,omitempty" dynamodbav:"request_type,omitempty"`
	Status         string `json:"request_status,omitempty" dynamodbav:"request_status,omitempty"`
	PickupLocation string `json:"pickup_location,omitempty" dynamodbav:"pickup_location,omitempty"`
	RequestDate    string `json:"request_date,omitempty" dynamodbav:"request_date,omitempty"`
	Expiry         int64  `json:"expiry_date" dynamodbav:"expiry_date"`
}

func (r Request) RecordID() string { return r.ID }

func (r Request) OwnerID() string { return r.AccountID }

func (r Request) Stamped(now time.Time, ttl TTL) Request {
	r.Expiry = now.Add(ttl.Request).Unix()
	return r
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseDate accepts RFC 3339 and the zone-less forms the source system emits,
// the latter interpreted as UTC.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
