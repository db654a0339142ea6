package store

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/pkg/apperr"
)

type jobRow struct {
	ID          string  `json:"id"`
	JobType     int     `json:"job_type"`
	Schedule    string  `json:"schedule,omitempty"`
	NextTick    uint64  `json:"next_tick"`
	LastTick    *uint64 `json:"last_tick,omitempty"`
	Count       uint32  `json:"count"`
	Ran         bool    `json:"ran"`
	Stopped     bool    `json:"stopped"`
	Extra       string  `json:"extra,omitempty"` // base64
	LastUpdated *uint64 `json:"last_updated,omitempty"`
}

func toJobRow(j domain.JobData) jobRow {
	return jobRow{
		ID:          j.ID.String(),
		JobType:     int(j.JobType),
		Schedule:    j.Schedule,
		NextTick:    j.NextTick,
		LastTick:    j.LastTick,
		Count:       j.Count,
		Ran:         j.Ran,
		Stopped:     j.Stopped,
		Extra:       base64.StdEncoding.EncodeToString(j.Extra),
		LastUpdated: j.LastUpdated,
	}
}

func (r jobRow) toDomain() (domain.JobData, error) {
	id, err := parseUUID(r.ID)
	if err != nil {
		return domain.JobData{}, err
	}
	var extra []byte
	if r.Extra != "" {
		extra, err = base64.StdEncoding.DecodeString(r.Extra)
		if err != nil {
			return domain.JobData{}, apperr.System("decode job extra", err)
		}
	}
	return domain.JobData{
		ID:          id,
		JobType:     domain.JobType(r.JobType),
		Schedule:    r.Schedule,
		NextTick:    r.NextTick,
		LastTick:    r.LastTick,
		Count:       r.Count,
		Ran:         r.Ran,
		Stopped:     r.Stopped,
		Extra:       extra,
		LastUpdated: r.LastUpdated,
	}, nil
}

// UpsertSchedulerJob writes a job row and keeps the ordered-by-next-tick
// list pointer in sync, moving it if NextTick changed (spec.md §4.3).
func (s *Store) UpsertSchedulerJob(ctx context.Context, j domain.JobData) error {
	prior, err := s.GetSchedulerJob(ctx, j.ID)
	if err != nil {
		return err
	}
	row := toJobRow(j)
	data, err := json.Marshal(row)
	if err != nil {
		return apperr.System("marshal job", err)
	}
	it := item{PK: schedJobPK(j.ID), SK: "JOB", Data: string(data), Timestamp: nowRFC3339()}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return apperr.System("marshal job item", err)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av}); err != nil {
		return apperr.System("put job", err)
	}
	if prior != nil && prior.NextTick != j.NextTick {
		if _, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.table),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: schedJobListPK()},
				"SK": &types.AttributeValueMemberS{Value: schedJobListSK(prior.NextTick, j.ID)},
			},
		}); err != nil {
			return apperr.System("delete stale job list pointer", err)
		}
	}
	listIt := item{PK: schedJobListPK(), SK: schedJobListSK(j.NextTick, j.ID), Timestamp: nowRFC3339()}
	listAV, err := attributevalue.MarshalMap(listIt)
	if err != nil {
		return apperr.System("marshal job list pointer item", err)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: listAV}); err != nil {
		return apperr.System("put job list pointer", err)
	}
	return nil
}

// GetSchedulerJob looks up a single job row by ID.
func (s *Store) GetSchedulerJob(ctx context.Context, id uuid.UUID) (*domain.JobData, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: schedJobPK(id)},
			"SK": &types.AttributeValueMemberS{Value: "JOB"},
		},
	})
	if err != nil {
		return nil, apperr.System("get job", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, apperr.System("unmarshal job item", err)
	}
	var row jobRow
	if err := json.Unmarshal([]byte(it.Data), &row); err != nil {
		return nil, apperr.System("unmarshal job data", err)
	}
	j, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// SetSchedulerJobStoppedState flips the overloaded Stopped flag (see
// domain.JobData's doc comment for the dual terminated/pending meaning).
func (s *Store) SetSchedulerJobStoppedState(ctx context.Context, id uuid.UUID, stopped bool) error {
	j, err := s.GetSchedulerJob(ctx, id)
	if err != nil {
		return err
	}
	if j == nil {
		return apperr.NotFound("scheduler job not found")
	}
	j.Stopped = stopped
	return s.UpsertSchedulerJob(ctx, *j)
}

// ResetSchedulerJobState clears a job's run bookkeeping and persists it.
// The scheduler's resume routine does not call it: a job whose schedule
// changed is removed instead.
func (s *Store) ResetSchedulerJobState(ctx context.Context, id uuid.UUID) error {
	j, err := s.GetSchedulerJob(ctx, id)
	if err != nil {
		return err
	}
	if j == nil {
		return apperr.NotFound("scheduler job not found")
	}
	j.Count = 0
	j.Ran = false
	j.LastTick = nil
	j.LastUpdated = nil
	return s.UpsertSchedulerJob(ctx, *j)
}

// GetSchedulerJobs returns up to limit jobs ordered by ascending NextTick,
// resuming from startKey (nil for the first page). The returned lastKey is
// nil once the sequence is exhausted, making this restartable across
// scheduler-core ticks (spec.md §4.3).
func (s *Store) GetSchedulerJobs(ctx context.Context, limit int, startKey map[string]types.AttributeValue) (jobs []domain.JobData, lastKey map[string]types.AttributeValue, err error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: schedJobListPK()},
		},
		ScanIndexForward: aws.Bool(true),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}
	if startKey != nil {
		in.ExclusiveStartKey = startKey
	}
	out, err := s.db.Query(ctx, in)
	if err != nil {
		return nil, nil, apperr.System("query job list", err)
	}
	for _, raw := range out.Items {
		var it item
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, nil, apperr.System("unmarshal job list pointer", err)
		}
		id, err := parseUUID(it.SK[len(it.SK)-36:])
		if err != nil {
			return nil, nil, apperr.System("parse job id from list pointer", err)
		}
		j, err := s.GetSchedulerJob(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if j != nil {
			jobs = append(jobs, *j)
		}
	}
	return jobs, out.LastEvaluatedKey, nil
}

// RemoveSchedulerJob deletes a job and its list pointer.
func (s *Store) RemoveSchedulerJob(ctx context.Context, id uuid.UUID) error {
	j, err := s.GetSchedulerJob(ctx, id)
	if err != nil || j == nil {
		return err
	}
	if _, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: schedJobPK(id)},
			"SK": &types.AttributeValueMemberS{Value: "JOB"},
		},
	}); err != nil {
		return apperr.System("delete job", err)
	}
	if _, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: schedJobListPK()},
			"SK": &types.AttributeValueMemberS{Value: schedJobListSK(j.NextTick, id)},
		},
	}); err != nil {
		return apperr.System("delete job list pointer", err)
	}
	return nil
}

// SchedulerJobs returns a restartable range-over-func sequence of every job
// ordered by ascending NextTick, paginating pageSize at a time. Each call
// issues fresh dynamodb.Query calls, so two independent ranges never share
// pagination state (spec.md §4.1/§4.3 requirement).
func (s *Store) SchedulerJobs(ctx context.Context, pageSize int) func(func(domain.JobData) bool) {
	return func(yield func(domain.JobData) bool) {
		var startKey map[string]types.AttributeValue
		for {
			page, next, err := s.GetSchedulerJobs(ctx, pageSize, startKey)
			if err != nil {
				return
			}
			for _, j := range page {
				if !yield(j) {
					return
				}
			}
			if next == nil {
				return
			}
			startKey = next
		}
	}
}
