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

type shareRow struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	ResourceKind int    `json:"resource_kind"`
	ResourceID   string `json:"resource_id"`
	CreatedAt    string `json:"created_at"`
}

func toShareRow(sh domain.Share) shareRow {
	return shareRow{
		ID:           sh.ID.String(),
		UserID:       sh.UserID.String(),
		ResourceKind: int(sh.Resource.Kind),
		ResourceID:   sh.Resource.ID.String(),
		CreatedAt:    sh.CreatedAt.Format(rfc3339Nano),
	}
}

func (r shareRow) toDomain() (domain.Share, error) {
	id, err := parseUUID(r.ID)
	if err != nil {
		return domain.Share{}, err
	}
	userID, err := parseUUID(r.UserID)
	if err != nil {
		return domain.Share{}, err
	}
	resourceID, err := parseUUID(r.ResourceID)
	if err != nil {
		return domain.Share{}, err
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return domain.Share{}, err
	}
	return domain.Share{
		ID:     id,
		UserID: userID,
		Resource: domain.ShareResource{
			Kind: domain.ShareResourceKind(r.ResourceKind),
			ID:   resourceID,
		},
		CreatedAt: createdAt,
	}, nil
}

// InsertShare creates a share, failing with a Client conflict error if one
// already exists for (UserID, Resource) — spec.md §3: "at most one Share
// exists per (UserID, Resource) pair".
func (s *Store) InsertShare(ctx context.Context, sh domain.Share) error {
	row := toShareRow(sh)
	data, err := json.Marshal(row)
	if err != nil {
		return apperr.System("marshal share", err)
	}
	it := item{PK: sharePK(sh.UserID, sh.Resource.Kind, sh.Resource.ID), SK: shareSK(), Data: string(data), Timestamp: nowRFC3339()}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return apperr.System("marshal share item", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return apperr.Client("share already exists for resource", sh.Resource.ID.String())
		}
		return apperr.System("put share", err)
	}
	return nil
}

// GetShare looks up the share for a (userID, resource) pair, if any.
func (s *Store) GetShare(ctx context.Context, userID uuid.UUID, kind domain.ShareResourceKind, resourceID uuid.UUID) (*domain.Share, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sharePK(userID, kind, resourceID)},
			"SK": &types.AttributeValueMemberS{Value: shareSK()},
		},
	})
	if err != nil {
		return nil, apperr.System("get share", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, apperr.System("unmarshal share item", err)
	}
	var row shareRow
	if err := json.Unmarshal([]byte(it.Data), &row); err != nil {
		return nil, apperr.System("unmarshal share data", err)
	}
	sh, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// RemoveShare revokes a share.
func (s *Store) RemoveShare(ctx context.Context, userID uuid.UUID, kind domain.ShareResourceKind, resourceID uuid.UUID) error {
	_, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sharePK(userID, kind, resourceID)},
			"SK": &types.AttributeValueMemberS{Value: shareSK()},
		},
	})
	if err != nil {
		return apperr.System("delete share", err)
	}
	return nil
}
