// Package store implements C1: a transactional single-table DynamoDB store
// over users, trackers, scheduler jobs, notifications and shares. Search
// documents are not stored here; keys.go has only their key helper.
// Grounded on the teacher's
// internal/storage/storage.go (AWSStorage) — same DynamoDBItem{PK, SK,
// Data, Timestamp} shape and attributevalue marshal/PutItem/Query idiom,
// generalized from a metrics cache into the spec's logical tables via PK
// prefixes (see SPEC_FULL.md §4.1 for the full key layout).
package store

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// API is the subset of *dynamodb.Client the Store needs. Tests substitute
// an in-memory fake satisfying this interface — the same structural-test-
// double idiom the teacher uses with go-sqlmock in front of *sql.DB.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store is the C1 durable row store.
type Store struct {
	db    API
	table string
}

// New wraps a DynamoDB client (or fake) bound to a single table.
func New(db API, table string) *Store {
	return &Store{db: db, table: table}
}

// item mirrors the teacher's DynamoDBItem — generic PK/SK/Data envelope
// every logical row is marshaled into.
type item struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Data      string `dynamodbav:"Data"`
	Timestamp string `dynamodbav:"Timestamp"`
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }
