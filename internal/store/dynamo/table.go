// Package dynamo implements cache.Store on DynamoDB tables. Expiry is written
// to the expiry_date attribute, which the tables use as their TTL attribute.
package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/gyaneshwarpardhi/cachesync/internal/cache"
)

// API is the subset of the DynamoDB client used by Table.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Table is a cache.Store over a single DynamoDB table with a string hash key.
type Table[T cache.Record[T]] struct {
	client  API
	name    string
	keyAttr string
	ttl     cache.TTL
	now     func() time.Time
}

var _ cache.Store[cache.Loan] = (*Table[cache.Loan])(nil)

// NewTable returns a store over table name whose hash key attribute is keyAttr.
func NewTable[T cache.Record[T]](client API, name, keyAttr string, ttl cache.TTL) *Table[T] {
	return &Table[T]{client: client, name: name, keyAttr: keyAttr, ttl: ttl, now: time.Now}
}

// WithClock replaces the clock used for expiry. Intended for tests.
func (t *Table[T]) WithClock(now func() time.Time) *Table[T] {
	t.now = now
	return t
}

func (t *Table[T]) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{t.keyAttr: &types.AttributeValueMemberS{Value: id}}
}

func (t *Table[T]) Get(ctx context.Context, id string) (T, error) {
	var rec T
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            t.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return rec, cache.Wrap(t.name, "get", id, err)
	}
	if len(out.Item) == 0 {
		return rec, cache.ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return rec, cache.Wrap(t.name, "get", id, fmt.Errorf("decode item: %w", err))
	}
	return rec, nil
}

func (t *Table[T]) Put(ctx context.Context, rec T) error {
	id := rec.RecordID()
	item, err := attributevalue.MarshalMap(rec.Stamped(t.now(), t.ttl))
	if err != nil {
		return cache.Wrap(t.name, "put", id, fmt.Errorf("encode item: %w", err))
	}
	if _, err := t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.name),
		Item:      item,
	}); err != nil {
		return cache.Wrap(t.name, "put", id, err)
	}
	return nil
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	if _, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.name),
		Key:       t.key(id),
	}); err != nil {
		return cache.Wrap(t.name, "delete", id, err)
	}
	return nil
}
