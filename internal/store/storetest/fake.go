// Package storetest is an in-memory stand-in for *dynamodb.Client, shared
// across internal/store's own tests and the internal/scheduler,
// internal/trackers and internal/notifications packages that need a real
// *store.Store to exercise. This is the same structural-test-double idiom
// the teacher applies to *sql.DB with go-sqlmock
// (internal/storage/storage_test.go): rather than mocking call expectations
// one by one, it's a tiny real implementation of the handful of DynamoDB
// semantics store.Store actually relies on (PK+SK item storage,
// attribute_not_exists PutItem conditions, ADD counter UpdateItem, and
// "PK = :pk" Query with optional <= Timestamp filtering and pagination).
//
// It is exported (rather than living in a _test.go file) only because Go
// cannot share test-only code across package boundaries; nothing outside
// test code should import it.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// FakeDB implements store.API in memory.
type FakeDB struct {
	mu    sync.Mutex
	table map[string]map[string]map[string]types.AttributeValue // pk -> sk -> item
}

// New returns an empty FakeDB.
func New() *FakeDB {
	return &FakeDB{table: map[string]map[string]map[string]types.AttributeValue{}}
}

func attrS(av map[string]types.AttributeValue, key string) string {
	if v, ok := av[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *FakeDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pk, sk := attrS(in.Item, "PK"), attrS(in.Item, "SK")
	if in.ConditionExpression != nil && *in.ConditionExpression == "attribute_not_exists(PK)" {
		if rows, ok := f.table[pk]; ok {
			if _, exists := rows[sk]; exists {
				return nil, &types.ConditionalCheckFailedException{Message: aws.String("item already exists")}
			}
		}
	}

	if f.table[pk] == nil {
		f.table[pk] = map[string]map[string]types.AttributeValue{}
	}
	cp := make(map[string]types.AttributeValue, len(in.Item))
	for k, v := range in.Item {
		cp[k] = v
	}
	f.table[pk][sk] = cp
	return &dynamodb.PutItemOutput{}, nil
}

func (f *FakeDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pk, sk := attrS(in.Key, "PK"), attrS(in.Key, "SK")
	row, ok := f.table[pk][sk]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	cp := make(map[string]types.AttributeValue, len(row))
	for k, v := range row {
		cp[k] = v
	}
	return &dynamodb.GetItemOutput{Item: cp}, nil
}

func (f *FakeDB) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pk, sk := attrS(in.Key, "PK"), attrS(in.Key, "SK")
	delete(f.table[pk], sk)
	return &dynamodb.DeleteItemOutput{}, nil
}

// UpdateItem supports only the single "ADD CounterValue :incr" expression
// the Store issues (NextNotificationID's atomic counter).
func (f *FakeDB) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pk, sk := attrS(in.Key, "PK"), attrS(in.Key, "SK")
	if f.table[pk] == nil {
		f.table[pk] = map[string]map[string]types.AttributeValue{}
	}
	row, ok := f.table[pk][sk]
	if !ok {
		row = map[string]types.AttributeValue{"PK": in.Key["PK"], "SK": in.Key["SK"]}
	}

	var current int64
	if n, ok := row["CounterValue"].(*types.AttributeValueMemberN); ok {
		current, _ = strconv.ParseInt(n.Value, 10, 64)
	}
	incrAV, ok := in.ExpressionAttributeValues[":incr"].(*types.AttributeValueMemberN)
	if !ok {
		return nil, fmt.Errorf("storetest: unsupported UpdateItem expression %q", aws.ToString(in.UpdateExpression))
	}
	incr, _ := strconv.ParseInt(incrAV.Value, 10, 64)
	current += incr
	row["CounterValue"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(current, 10)}
	f.table[pk][sk] = row

	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		"CounterValue": &types.AttributeValueMemberN{Value: strconv.FormatInt(current, 10)},
	}}, nil
}

// Query supports only "PK = :pk" key conditions (every call site in this
// repo uses exactly that), an optional "#ts <= :before" FilterExpression
// (GetNotificationIDs), ScanIndexForward, Limit and ExclusiveStartKey/
// LastEvaluatedKey pagination keyed on SK.
func (f *FakeDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pkAV, ok := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("storetest: Query requires a :pk value")
	}
	rows := f.table[pkAV.Value]

	sks := make([]string, 0, len(rows))
	for sk := range rows {
		sks = append(sks, sk)
	}
	forward := in.ScanIndexForward == nil || *in.ScanIndexForward
	if forward {
		sort.Strings(sks)
	} else {
		sort.Sort(sort.Reverse(sort.StringSlice(sks)))
	}

	if in.ExclusiveStartKey != nil {
		startSK := attrS(in.ExclusiveStartKey, "SK")
		idx := 0
		for ; idx < len(sks); idx++ {
			if sks[idx] == startSK {
				idx++
				break
			}
		}
		sks = sks[idx:]
	}

	var before string
	filterByTimestamp := in.FilterExpression != nil && *in.FilterExpression == "#ts <= :before"
	if filterByTimestamp {
		if v, ok := in.ExpressionAttributeValues[":before"].(*types.AttributeValueMemberS); ok {
			before = v.Value
		}
	}

	limit := 0
	if in.Limit != nil {
		limit = int(*in.Limit)
	}

	out := &dynamodb.QueryOutput{}
	for _, sk := range sks {
		row := rows[sk]
		if filterByTimestamp && attrS(row, "Timestamp") > before {
			continue
		}
		cp := make(map[string]types.AttributeValue, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Items = append(out.Items, cp)
		if limit > 0 && len(out.Items) == limit {
			out.LastEvaluatedKey = map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: pkAV.Value},
				"SK": &types.AttributeValueMemberS{Value: sk},
			}
			break
		}
	}
	out.Count = int32(len(out.Items))
	return out, nil
}
