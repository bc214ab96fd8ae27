// Package sqs publishes reconciliation requests to an Amazon SQS queue.
package sqs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/gyaneshwarpardhi/cachesync/internal/queue"
)

// API is the subset of the SQS client used by Queue.
type API interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

var _ API = (*sqs.Client)(nil)

// Config identifies the queue either by URL or by name and owning account.
type Config struct {
	URL   string
	Name  string
	Owner string // AWS account id owning the queue; empty means the caller's account
}

// Queue sends each account id as the body of one SQS message.
type Queue struct {
	client API
	cfg    Config

	mu  sync.Mutex
	url string
}

var _ queue.Queue = (*Queue)(nil)

func New(client API, cfg Config) (*Queue, error) {
	if cfg.URL == "" && cfg.Name == "" {
		return nil, errors.New("sqs: queue url or name required")
	}
	return &Queue{client: client, cfg: cfg, url: cfg.URL}, nil
}

func (q *Queue) Enqueue(ctx context.Context, accountID string) error {
	url, err := q.queueURL(ctx)
	if err != nil {
		return &queue.Error{AccountID: accountID, Err: err}
	}
	if _, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(accountID),
	}); err != nil {
		return &queue.Error{AccountID: accountID, Err: fmt.Errorf("send message: %w", err)}
	}
	return nil
}

// queueURL resolves the URL from the queue name on first use and caches it.
// A failed lookup is not cached.
func (q *Queue) queueURL(ctx context.Context) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.url != "" {
		return q.url, nil
	}
	in := &sqs.GetQueueUrlInput{QueueName: aws.String(q.cfg.Name)}
	if q.cfg.Owner != "" {
		in.QueueOwnerAWSAccountId = aws.String(q.cfg.Owner)
	}
	out, err := q.client.GetQueueUrl(ctx, in)
	if err != nil {
		return "", fmt.Errorf("resolve queue %q: %w", q.cfg.Name, err)
	}
	q.url = aws.ToString(out.QueueUrl)
	return q.url, nil
}
