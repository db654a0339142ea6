package store

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/secutils/core/internal/pkg/apperr"
)

// Certificate templates and CSP policies are treated as opaque persisted
// maps (SPEC_FULL.md §3): CRUD only, no X.509/CSP semantics implemented
// here. Both share the same row shape, keyed under their own PK namespace.

func (s *Store) putArtifact(ctx context.Context, pk string, sk string, data map[string]any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return apperr.System("marshal artifact", err)
	}
	it := item{PK: pk, SK: sk, Data: string(body), Timestamp: nowRFC3339()}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return apperr.System("marshal artifact item", err)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av}); err != nil {
		return apperr.System("put artifact", err)
	}
	return nil
}

func (s *Store) getArtifact(ctx context.Context, pk string, sk string) (map[string]any, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return nil, apperr.System("get artifact", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, apperr.System("unmarshal artifact item", err)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(it.Data), &data); err != nil {
		return nil, apperr.System("unmarshal artifact data", err)
	}
	return data, nil
}

func (s *Store) deleteArtifact(ctx context.Context, pk string, sk string) error {
	if _, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	}); err != nil {
		return apperr.System("delete artifact", err)
	}
	return nil
}

// UpsertCertificateTemplate writes an opaque certificate-template row.
func (s *Store) UpsertCertificateTemplate(ctx context.Context, userID uuid.UUID, id uuid.UUID, data map[string]any) error {
	return s.putArtifact(ctx, certTemplatePK(userID), id.String(), data)
}

// GetCertificateTemplate reads an opaque certificate-template row.
func (s *Store) GetCertificateTemplate(ctx context.Context, userID uuid.UUID, id uuid.UUID) (map[string]any, error) {
	return s.getArtifact(ctx, certTemplatePK(userID), id.String())
}

// RemoveCertificateTemplate deletes a certificate-template row.
func (s *Store) RemoveCertificateTemplate(ctx context.Context, userID uuid.UUID, id uuid.UUID) error {
	return s.deleteArtifact(ctx, certTemplatePK(userID), id.String())
}

// UpsertContentSecurityPolicy writes an opaque CSP row.
func (s *Store) UpsertContentSecurityPolicy(ctx context.Context, userID uuid.UUID, id uuid.UUID, data map[string]any) error {
	return s.putArtifact(ctx, cspPK(userID), id.String(), data)
}

// GetContentSecurityPolicy reads an opaque CSP row.
func (s *Store) GetContentSecurityPolicy(ctx context.Context, userID uuid.UUID, id uuid.UUID) (map[string]any, error) {
	return s.getArtifact(ctx, cspPK(userID), id.String())
}

// RemoveContentSecurityPolicy deletes a CSP row.
func (s *Store) RemoveContentSecurityPolicy(ctx context.Context, userID uuid.UUID, id uuid.UUID) error {
	return s.deleteArtifact(ctx, cspPK(userID), id.String())
}
