package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/pkg/apperr"
)

// UpsertUserData writes (or overwrites) a namespaced key/value row.
func (s *Store) UpsertUserData(ctx context.Context, d domain.UserData) error {
	it := item{
		PK:        userDataPK(d.UserID, d.Namespace),
		SK:        userDataSK(d.Key, d.Timestamp.UnixNano()),
		Data:      string(d.Value),
		Timestamp: d.Timestamp.UTC().Format(rfc3339Nano),
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return apperr.System("marshal user data item", err)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av}); err != nil {
		return apperr.System("put user data", err)
	}
	return nil
}

// GetUserData returns rows for (userID, namespace), optionally filtered to
// a single key.
func (s *Store) GetUserData(ctx context.Context, userID uuid.UUID, namespace string, key string) ([]domain.UserData, error) {
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: userDataPK(userID, namespace)},
		},
	})
	if err != nil {
		return nil, apperr.System("query user data", err)
	}
	var result []domain.UserData
	for _, raw := range out.Items {
		var it item
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, apperr.System("unmarshal user data item", err)
		}
		rowKey, ts := splitUserDataSK(it.SK)
		if key != "" && rowKey != key {
			continue
		}
		result = append(result, domain.UserData{
			UserID:    userID,
			Namespace: namespace,
			Key:       rowKey,
			Value:     []byte(it.Data),
			Timestamp: ts,
		})
	}
	return result, nil
}

// RemoveUserData deletes a single (userID, namespace, key, timestamp) row.
func (s *Store) RemoveUserData(ctx context.Context, d domain.UserData) error {
	_, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userDataPK(d.UserID, d.Namespace)},
			"SK": &types.AttributeValueMemberS{Value: userDataSK(d.Key, d.Timestamp.UnixNano())},
		},
	})
	if err != nil {
		return apperr.System("delete user data", err)
	}
	return nil
}

// CleanupUserData deletes every row in (userID, namespace[, key]) whose
// Timestamp <= olderThan (spec.md §4.1).
func (s *Store) CleanupUserData(ctx context.Context, userID uuid.UUID, namespace, key string, olderThan time.Time) error {
	rows, err := s.GetUserData(ctx, userID, namespace, key)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.Timestamp.After(olderThan) {
			continue
		}
		if err := s.RemoveUserData(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// splitUserDataSK decodes the SK built by userDataSK, which makes rows sort
// by age within a (user, namespace) partition: a 20-digit zero-padded
// nanosecond timestamp, '#', then the key.
func splitUserDataSK(sk string) (key string, ts time.Time) {
	idx := strings.IndexByte(sk, '#')
	if idx < 0 {
		return sk, time.Time{}
	}
	nanos, err := strconv.ParseInt(sk[:idx], 10, 64)
	if err != nil {
		return sk[idx+1:], time.Time{}
	}
	return sk[idx+1:], time.Unix(0, nanos).UTC()
}
