package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gyaneshwarpardhi/cachesync/internal/cache"
)

// ErrMalformedMessage is returned when a message cannot be parsed.
var ErrMalformedMessage = errors.New("could not parse message")

// message is the webhook body published by the source of record.
type message struct {
	ID    string `json:"id"`
	Time  string `json:"time"`
	Event struct {
		Value string `json:"value"`
	} `json:"event"`
	ItemLoan    *cache.Loan    `json:"item_loan"`
	UserRequest *cache.Request `json:"user_request"`
}

// snsEnvelope is the notification wrapper used when the webhook body is
// fanned out through SNS.
type snsEnvelope struct {
	Records []struct {
		Sns struct {
			Message string `json:"Message"`
		} `json:"Sns"`
	} `json:"Records"`
}

// Decode parses a webhook message, bare or wrapped in an SNS notification.
// It does not check that the kind is supported; dispatch does that.
func Decode(data []byte) (*Event, error) {
	var env snsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if len(env.Records) > 0 {
		data = []byte(env.Records[0].Sns.Message)
	}

	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	ev := &Event{
		ID:      msg.ID,
		Kind:    Kind(msg.Event.Value),
		Loan:    msg.ItemLoan,
		Request: msg.UserRequest,
	}
	if msg.Time != "" {
		if t, err := time.Parse(time.RFC3339Nano, msg.Time); err == nil {
			ev.OccurredAt = t
		}
	}
	return ev, nil
}
