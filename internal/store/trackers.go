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

type trackerRow struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Kind      int                    `json:"kind"`
	Name      string                 `json:"name"`
	URL       string                 `json:"url"`
	Settings  domain.TrackerSettings `json:"settings"`
	JobID     string                 `json:"job_id,omitempty"`
	JobConfig *domain.JobConfig      `json:"job_config,omitempty"`
	CreatedAt string                 `json:"created_at"`
	Meta      map[string]any         `json:"meta,omitempty"`
}

func toTrackerRow(t domain.Tracker) trackerRow {
	row := trackerRow{
		ID:        t.ID.String(),
		UserID:    t.UserID.String(),
		Kind:      int(t.Kind),
		Name:      t.Name,
		URL:       t.URL,
		Settings:  t.Settings,
		JobConfig: t.JobConfig,
		CreatedAt: t.CreatedAt.Format(rfc3339Nano),
		Meta:      t.Meta,
	}
	if t.JobID != nil {
		row.JobID = t.JobID.String()
	}
	return row
}

func (r trackerRow) toDomain() (domain.Tracker, error) {
	id, err := parseUUID(r.ID)
	if err != nil {
		return domain.Tracker{}, err
	}
	userID, err := parseUUID(r.UserID)
	if err != nil {
		return domain.Tracker{}, err
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return domain.Tracker{}, err
	}
	t := domain.Tracker{
		ID:        id,
		UserID:    userID,
		Kind:      domain.TrackerKind(r.Kind),
		Name:      r.Name,
		URL:       r.URL,
		Settings:  r.Settings,
		JobConfig: r.JobConfig,
		CreatedAt: createdAt,
		Meta:      r.Meta,
	}
	if r.JobID != "" {
		jobID, err := parseUUID(r.JobID)
		if err != nil {
			return domain.Tracker{}, err
		}
		t.JobID = &jobID
	}
	return t, nil
}

// idPointer is the shape of every "resolve by surrogate key" row: it only
// carries the coordinates of the row that actually owns the data.
type idPointer struct {
	Kind   int    `json:"kind"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// InsertTracker creates a tracker, failing with a Client conflict error if
// (userID, kind, name) already exists (spec.md §4.1 uniqueness invariant).
func (s *Store) InsertTracker(ctx context.Context, t domain.Tracker) error {
	av, err := s.trackerItemAV(t)
	if err != nil {
		return err
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return apperr.Client("tracker already exists", t.Name)
		}
		return apperr.System("put tracker", err)
	}
	if err := s.putTrackerIDPointer(ctx, t); err != nil {
		return err
	}
	if t.JobID != nil {
		if err := s.putTrackerJobPointer(ctx, t); err != nil {
			return err
		}
	}
	return s.syncTrackerUnscheduledPointer(ctx, t)
}

// UpdateTracker overwrites an existing tracker. If the URL changed from the
// stored value, all retained revisions are dropped (spec.md §4.4: a revision
// is only meaningful against the URL it was fetched from). If the job
// schedule changed, the tracker's job_id is cleared so the schedule sweep
// picks it up again and assigns a fresh trigger job (spec.md §8 round-trip
// property: a stale job_id must never survive a schedule edit).
func (s *Store) UpdateTracker(ctx context.Context, t domain.Tracker) error {
	prior, err := s.GetTracker(ctx, t.UserID, t.Kind, t.Name)
	if err != nil {
		return err
	}
	if prior != nil && prior.JobConfig != nil && t.JobConfig != nil && prior.JobConfig.Schedule != t.JobConfig.Schedule {
		t.JobID = nil
	}
	av, err := s.trackerItemAV(t)
	if err != nil {
		return err
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av}); err != nil {
		return apperr.System("put tracker", err)
	}
	if err := s.putTrackerIDPointer(ctx, t); err != nil {
		return err
	}
	if t.JobID != nil {
		if err := s.putTrackerJobPointer(ctx, t); err != nil {
			return err
		}
	}
	if err := s.syncTrackerUnscheduledPointer(ctx, t); err != nil {
		return err
	}
	if prior != nil && prior.URL != t.URL {
		if err := s.ClearRevisions(ctx, t.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) trackerItemAV(t domain.Tracker) (map[string]types.AttributeValue, error) {
	row := toTrackerRow(t)
	data, err := json.Marshal(row)
	if err != nil {
		return nil, apperr.System("marshal tracker", err)
	}
	it := item{PK: trackerPK(t.Kind, t.UserID), SK: trackerSK(t.Name), Data: string(data), Timestamp: nowRFC3339()}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return nil, apperr.System("marshal tracker item", err)
	}
	return av, nil
}

func (s *Store) putTrackerIDPointer(ctx context.Context, t domain.Tracker) error {
	data, err := json.Marshal(idPointer{Kind: int(t.Kind), UserID: t.UserID.String(), Name: t.Name})
	if err != nil {
		return apperr.System("marshal tracker id pointer", err)
	}
	it := item{PK: trackerByIDPK(t.ID), SK: "POINTER", Data: string(data), Timestamp: nowRFC3339()}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return apperr.System("marshal tracker id pointer item", err)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av}); err != nil {
		return apperr.System("put tracker id pointer", err)
	}
	return nil
}

func (s *Store) putTrackerJobPointer(ctx context.Context, t domain.Tracker) error {
	if t.JobID == nil {
		return nil
	}
	data, err := json.Marshal(idPointer{Kind: int(t.Kind), UserID: t.UserID.String(), Name: t.Name})
	if err != nil {
		return apperr.System("marshal tracker job pointer", err)
	}
	it := item{PK: trackerByJobPK(*t.JobID), SK: "POINTER", Data: string(data), Timestamp: nowRFC3339()}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return apperr.System("marshal tracker job pointer item", err)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av}); err != nil {
		return apperr.System("put tracker job pointer", err)
	}
	return nil
}

// syncTrackerUnscheduledPointer keeps the "TRACKERUNSCHED#<kind>" secondary
// list in sync: present while the tracker wants scheduling but has no job
// yet, absent otherwise (spec.md §4.5 precondition for the schedule sweep).
func (s *Store) syncTrackerUnscheduledPointer(ctx context.Context, t domain.Tracker) error {
	key := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: trackerUnschedPK(t.Kind)},
		"SK": &types.AttributeValueMemberS{Value: trackerUnschedSK(t.ID)},
	}
	if t.IsSchedulable() && t.JobID == nil {
		it := item{PK: trackerUnschedPK(t.Kind), SK: trackerUnschedSK(t.ID), Timestamp: nowRFC3339()}
		av, err := attributevalue.MarshalMap(it)
		if err != nil {
			return apperr.System("marshal unscheduled pointer item", err)
		}
		if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av}); err != nil {
			return apperr.System("put unscheduled pointer", err)
		}
		return nil
	}
	if _, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: aws.String(s.table), Key: key}); err != nil {
		return apperr.System("delete unscheduled pointer", err)
	}
	return nil
}

// GetTracker looks up a tracker by its natural key.
func (s *Store) GetTracker(ctx context.Context, userID uuid.UUID, kind domain.TrackerKind, name string) (*domain.Tracker, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: trackerPK(kind, userID)},
			"SK": &types.AttributeValueMemberS{Value: trackerSK(name)},
		},
	})
	if err != nil {
		return nil, apperr.System("get tracker", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	t, err := decodeTracker(out.Item)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTrackerByID resolves a tracker via its surrogate-key pointer row.
func (s *Store) GetTrackerByID(ctx context.Context, id uuid.UUID) (*domain.Tracker, error) {
	ptr, err := s.getIDPointer(ctx, trackerByIDPK(id))
	if err != nil || ptr == nil {
		return nil, err
	}
	userID, err := parseUUID(ptr.UserID)
	if err != nil {
		return nil, apperr.System("parse tracker pointer user id", err)
	}
	return s.GetTracker(ctx, userID, domain.TrackerKind(ptr.Kind), ptr.Name)
}

// GetTrackerByJobID resolves the tracker that owns a given scheduler job,
// used by the fetch sweep to recover tracker context from a JobData row.
func (s *Store) GetTrackerByJobID(ctx context.Context, jobID uuid.UUID) (*domain.Tracker, error) {
	ptr, err := s.getIDPointer(ctx, trackerByJobPK(jobID))
	if err != nil || ptr == nil {
		return nil, err
	}
	userID, err := parseUUID(ptr.UserID)
	if err != nil {
		return nil, apperr.System("parse tracker job pointer user id", err)
	}
	return s.GetTracker(ctx, userID, domain.TrackerKind(ptr.Kind), ptr.Name)
}

func (s *Store) getIDPointer(ctx context.Context, pk string) (*idPointer, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: "POINTER"},
		},
	})
	if err != nil {
		return nil, apperr.System("get pointer", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, apperr.System("unmarshal pointer item", err)
	}
	var ptr idPointer
	if err := json.Unmarshal([]byte(it.Data), &ptr); err != nil {
		return nil, apperr.System("unmarshal pointer", err)
	}
	return &ptr, nil
}

// GetUnscheduledTrackers returns every schedulable tracker of the given kind
// that has not yet been assigned a trigger job (spec.md §4.5).
func (s *Store) GetUnscheduledTrackers(ctx context.Context, kind domain.TrackerKind) ([]domain.Tracker, error) {
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: trackerUnschedPK(kind)},
		},
	})
	if err != nil {
		return nil, apperr.System("query unscheduled trackers", err)
	}
	var result []domain.Tracker
	for _, raw := range out.Items {
		var it item
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, apperr.System("unmarshal unscheduled pointer", err)
		}
		id, err := parseUUID(it.SK)
		if err != nil {
			return nil, apperr.System("parse unscheduled tracker id", err)
		}
		t, err := s.GetTrackerByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			result = append(result, *t)
		}
	}
	return result, nil
}

// RemoveTracker deletes a tracker and its pointers/revisions.
func (s *Store) RemoveTracker(ctx context.Context, userID uuid.UUID, kind domain.TrackerKind, name string) error {
	t, err := s.GetTracker(ctx, userID, kind, name)
	if err != nil || t == nil {
		return err
	}
	if _, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: trackerPK(kind, userID)},
			"SK": &types.AttributeValueMemberS{Value: trackerSK(name)},
		},
	}); err != nil {
		return apperr.System("delete tracker", err)
	}
	if _, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: trackerByIDPK(t.ID)},
			"SK": &types.AttributeValueMemberS{Value: "POINTER"},
		},
	}); err != nil {
		return apperr.System("delete tracker id pointer", err)
	}
	if t.JobID != nil {
		if _, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.table),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: trackerByJobPK(*t.JobID)},
				"SK": &types.AttributeValueMemberS{Value: "POINTER"},
			},
		}); err != nil {
			return apperr.System("delete tracker job pointer", err)
		}
	}
	if _, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: trackerUnschedPK(kind)},
			"SK": &types.AttributeValueMemberS{Value: trackerUnschedSK(t.ID)},
		},
	}); err != nil {
		return apperr.System("delete tracker unscheduled pointer", err)
	}
	return s.ClearRevisions(ctx, t.ID)
}

func decodeTracker(av map[string]types.AttributeValue) (domain.Tracker, error) {
	var it item
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return domain.Tracker{}, apperr.System("unmarshal tracker item", err)
	}
	var row trackerRow
	if err := json.Unmarshal([]byte(it.Data), &row); err != nil {
		return domain.Tracker{}, apperr.System("unmarshal tracker data", err)
	}
	return row.toDomain()
}
