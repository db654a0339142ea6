package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/pkg/apperr"
)

type userRow struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Handle           string `json:"handle"`
	CreatedAt        string `json:"created_at"`
	SubscriptionTier int    `json:"subscription_tier"`
	IsActivated      bool   `json:"is_activated"`
	IsOperator       bool   `json:"is_operator"`
}

func toUserRow(u domain.User) userRow {
	return userRow{
		ID:               u.ID.String(),
		Email:            domain.NormalizeEmail(u.Email),
		Handle:           u.Handle,
		CreatedAt:        u.CreatedAt.Format(rfc3339Nano),
		SubscriptionTier: int(u.SubscriptionTier),
		IsActivated:      u.IsActivated,
		IsOperator:       u.IsOperator,
	}
}

func (r userRow) toDomain() (domain.User, error) {
	id, err := parseUUID(r.ID)
	if err != nil {
		return domain.User{}, err
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:               id,
		Email:            r.Email,
		Handle:           r.Handle,
		CreatedAt:        createdAt,
		SubscriptionTier: domain.SubscriptionTier(r.SubscriptionTier),
		IsActivated:      r.IsActivated,
		IsOperator:       r.IsOperator,
	}, nil
}

// InsertUser inserts a new user row, failing with a Client conflict error
// if the email already exists (spec.md §4.1).
func (s *Store) InsertUser(ctx context.Context, u domain.User) error {
	row := toUserRow(u)
	data, err := json.Marshal(row)
	if err != nil {
		return apperr.System("marshal user", err)
	}
	it := item{PK: userPK(u.Email), SK: userSK(), Data: string(data), Timestamp: nowRFC3339()}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return apperr.System("marshal user item", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return apperr.Client("user already exists", u.Email)
		}
		return apperr.System("put user", err)
	}
	if err := s.putHandlePointer(ctx, u); err != nil {
		return err
	}
	return s.putIDPointer(ctx, u)
}

// UpsertUser overwrites a user row by email, regardless of whether one
// already exists.
func (s *Store) UpsertUser(ctx context.Context, u domain.User) error {
	row := toUserRow(u)
	data, err := json.Marshal(row)
	if err != nil {
		return apperr.System("marshal user", err)
	}
	it := item{PK: userPK(u.Email), SK: userSK(), Data: string(data), Timestamp: nowRFC3339()}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return apperr.System("marshal user item", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av})
	if err != nil {
		return apperr.System("put user", err)
	}
	if err := s.putHandlePointer(ctx, u); err != nil {
		return err
	}
	return s.putIDPointer(ctx, u)
}

func (s *Store) putIDPointer(ctx context.Context, u domain.User) error {
	ptr := item{PK: userByIDPK(u.ID), SK: userSK(), Timestamp: nowRFC3339()}
	data, err := json.Marshal(userHandlePointer{Email: domain.NormalizeEmail(u.Email)})
	if err != nil {
		return apperr.System("marshal id pointer", err)
	}
	ptr.Data = string(data)
	av, err := attributevalue.MarshalMap(ptr)
	if err != nil {
		return apperr.System("marshal id pointer item", err)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av}); err != nil {
		return apperr.System("put id pointer", err)
	}
	return nil
}

func (s *Store) putHandlePointer(ctx context.Context, u domain.User) error {
	if u.Handle == "" {
		return nil
	}
	ptr := item{PK: userHandlePK(u.Handle), SK: userSK(), Timestamp: nowRFC3339()}
	data, err := json.Marshal(userHandlePointer{Email: domain.NormalizeEmail(u.Email)})
	if err != nil {
		return apperr.System("marshal handle pointer", err)
	}
	ptr.Data = string(data)
	av, err := attributevalue.MarshalMap(ptr)
	if err != nil {
		return apperr.System("marshal handle pointer item", err)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av}); err != nil {
		return apperr.System("put handle pointer", err)
	}
	return nil
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(email)},
			"SK": &types.AttributeValueMemberS{Value: userSK()},
		},
	})
	if err != nil {
		return nil, apperr.System("get user", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	u, err := decodeUser(out.Item)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByHandle looks up a user by case-insensitive handle. Fails with a
// System error if more than one user shares a handle (should be prevented
// at write time, but is defensively checked here per spec.md §4.1).
func (s *Store) GetByHandle(ctx context.Context, handle string) (*domain.User, error) {
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: userHandlePK(handle)},
		},
	})
	if err != nil {
		return nil, apperr.System("query user by handle", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	if len(out.Items) > 1 {
		return nil, apperr.System("multiple users share handle", fmt.Errorf("handle %q", handle))
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Items[0], &it); err != nil {
		return nil, apperr.System("unmarshal handle pointer item", err)
	}
	var ptr userHandlePointer
	if err := json.Unmarshal([]byte(it.Data), &ptr); err != nil {
		return nil, apperr.System("unmarshal handle pointer", err)
	}
	return s.GetByEmail(ctx, ptr.Email)
}

// GetByID looks up a user by their stable id, used by the Notification
// Sender (C8) to resolve a Destination(User(id)) to an email address.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userByIDPK(id)},
			"SK": &types.AttributeValueMemberS{Value: userSK()},
		},
	})
	if err != nil {
		return nil, apperr.System("get user by id", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, apperr.System("unmarshal id pointer item", err)
	}
	var ptr userHandlePointer
	if err := json.Unmarshal([]byte(it.Data), &ptr); err != nil {
		return nil, apperr.System("unmarshal id pointer", err)
	}
	return s.GetByEmail(ctx, ptr.Email)
}

type userHandlePointer struct {
	Email string `json:"email"`
}

// RemoveByEmail deletes the user row and returns the prior value, or nil if
// no such user existed.
func (s *Store) RemoveByEmail(ctx context.Context, email string) (*domain.User, error) {
	prior, err := s.GetByEmail(ctx, email)
	if err != nil || prior == nil {
		return prior, err
	}
	_, err = s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(email)},
			"SK": &types.AttributeValueMemberS{Value: userSK()},
		},
	})
	if err != nil {
		return nil, apperr.System("delete user", err)
	}
	if prior.Handle != "" {
		_, _ = s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.table),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: userHandlePK(prior.Handle)},
				"SK": &types.AttributeValueMemberS{Value: userSK()},
			},
		})
	}
	_, _ = s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userByIDPK(prior.ID)},
			"SK": &types.AttributeValueMemberS{Value: userSK()},
		},
	})
	return prior, nil
}

func decodeUser(av map[string]types.AttributeValue) (domain.User, error) {
	var it item
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return domain.User{}, apperr.System("unmarshal user item", err)
	}
	var row userRow
	if err := json.Unmarshal([]byte(it.Data), &row); err != nil {
		return domain.User{}, apperr.System("unmarshal user data", err)
	}
	return row.toDomain()
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
