package store

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/pkg/apperr"
)

// InsertRevision appends a new observation to a tracker's revision deque,
// dropping the oldest entries once the count exceeds maxRevisions
// (spec.md §4.4: "Settings.Revisions" is a retention bound, not a hard cap
// on ingestion).
func (s *Store) InsertRevision(ctx context.Context, rev domain.TrackerRevision, maxRevisions uint32) error {
	data, err := json.Marshal(rev.Payload)
	if err != nil {
		return apperr.System("marshal revision payload", err)
	}
	it := item{
		PK:        revisionPK(rev.TrackerID),
		SK:        revisionSK(rev.Timestamp.UnixNano()),
		Data:      string(data),
		Timestamp: rev.Timestamp.UTC().Format(rfc3339Nano),
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return apperr.System("marshal revision item", err)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av}); err != nil {
		return apperr.System("put revision", err)
	}
	return s.trimRevisions(ctx, rev.TrackerID, maxRevisions)
}

func (s *Store) trimRevisions(ctx context.Context, trackerID uuid.UUID, maxRevisions uint32) error {
	if maxRevisions == 0 {
		return nil
	}
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: revisionPK(trackerID)},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return apperr.System("query revisions for trim", err)
	}
	excess := len(out.Items) - int(maxRevisions)
	for i := 0; i < excess; i++ {
		var it item
		if err := attributevalue.UnmarshalMap(out.Items[i], &it); err != nil {
			return apperr.System("unmarshal revision item for trim", err)
		}
		if _, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.table),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: it.PK},
				"SK": &types.AttributeValueMemberS{Value: it.SK},
			},
		}); err != nil {
			return apperr.System("delete oldest revision", err)
		}
	}
	return nil
}

// GetRevisions returns up to limit revisions, most recent first. limit == 0
// means unbounded.
func (s *Store) GetRevisions(ctx context.Context, trackerID uuid.UUID, limit int) ([]domain.TrackerRevision, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: revisionPK(trackerID)},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}
	out, err := s.db.Query(ctx, in)
	if err != nil {
		return nil, apperr.System("query revisions", err)
	}
	result := make([]domain.TrackerRevision, 0, len(out.Items))
	for _, raw := range out.Items {
		var it item
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, apperr.System("unmarshal revision item", err)
		}
		ts, err := parseTime(it.Timestamp)
		if err != nil {
			return nil, apperr.System("parse revision timestamp", err)
		}
		var payload domain.RevisionPayload
		if err := json.Unmarshal([]byte(it.Data), &payload); err != nil {
			return nil, apperr.System("unmarshal revision payload", err)
		}
		result = append(result, domain.TrackerRevision{TrackerID: trackerID, Timestamp: ts, Payload: payload})
	}
	return result, nil
}

// ClearRevisions removes every retained revision for a tracker (spec.md
// §4.4: invoked when a tracker's URL changes, or the tracker is removed).
func (s *Store) ClearRevisions(ctx context.Context, trackerID uuid.UUID) error {
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: revisionPK(trackerID)},
		},
	})
	if err != nil {
		return apperr.System("query revisions for clear", err)
	}
	for _, raw := range out.Items {
		var it item
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return apperr.System("unmarshal revision item for clear", err)
		}
		if _, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.table),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: it.PK},
				"SK": &types.AttributeValueMemberS{Value: it.SK},
			},
		}); err != nil {
			return apperr.System("delete revision", err)
		}
	}
	return nil
}
