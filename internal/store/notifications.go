package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/pkg/apperr"
)

// notificationTimestampLayout is fixed-width (unlike time.RFC3339Nano, which
// trims trailing fractional zeros) so notification Timestamp values sort
// lexically the same as chronologically — required for the <= filter in
// GetNotificationIDs.
const notificationTimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type destinationRow struct {
	Kind   int    `json:"kind"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

type contentRow struct {
	Kind       int            `json:"kind"`
	Text       string         `json:"text,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	HTML       string         `json:"html,omitempty"`
	TemplateID string         `json:"template_id,omitempty"`
	Bindings   map[string]any `json:"bindings,omitempty"`
}

type notificationRow struct {
	ID          uint64         `json:"id"`
	Destination destinationRow `json:"destination"`
	Content     contentRow     `json:"content"`
	ScheduledAt string         `json:"scheduled_at"`
}

func toNotificationRow(n domain.Notification) notificationRow {
	d := destinationRow{Kind: int(n.Destination.Kind), Email: n.Destination.Email}
	if n.Destination.Kind == domain.DestinationUser {
		d.UserID = n.Destination.UserID.String()
	}
	c := contentRow{
		Kind:     int(n.Content.Kind),
		Text:     n.Content.Text,
		Subject:  n.Content.Subject,
		HTML:     n.Content.HTML,
		Bindings: n.Content.Bindings,
	}
	if n.Content.Kind == domain.ContentTemplate {
		c.TemplateID = n.Content.TemplateID.String()
	}
	return notificationRow{ID: n.ID, Destination: d, Content: c, ScheduledAt: n.ScheduledAt.Format(rfc3339Nano)}
}

func (r notificationRow) toDomain() (domain.Notification, error) {
	scheduledAt, err := parseTime(r.ScheduledAt)
	if err != nil {
		return domain.Notification{}, err
	}
	dest := domain.Destination{Kind: domain.DestinationKind(r.Destination.Kind), Email: r.Destination.Email}
	if r.Destination.UserID != "" {
		id, err := parseUUID(r.Destination.UserID)
		if err != nil {
			return domain.Notification{}, err
		}
		dest.UserID = id
	}
	content := domain.Content{
		Kind:     domain.ContentKind(r.Content.Kind),
		Text:     r.Content.Text,
		Subject:  r.Content.Subject,
		HTML:     r.Content.HTML,
		Bindings: r.Content.Bindings,
	}
	if r.Content.TemplateID != "" {
		id, err := parseUUID(r.Content.TemplateID)
		if err != nil {
			return domain.Notification{}, err
		}
		content.TemplateID = id
	}
	return domain.Notification{ID: r.ID, Destination: dest, Content: content, ScheduledAt: scheduledAt}, nil
}

// NextNotificationID atomically allocates the next monotonic id (spec.md
// §4.7: notifications are ordered and never reused).
func (s *Store) NextNotificationID(ctx context.Context) (uint64, error) {
	out, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: notificationCounterPK()},
			"SK": &types.AttributeValueMemberS{Value: notificationCounterSK()},
		},
		UpdateExpression: aws.String("ADD CounterValue :incr"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":incr": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, apperr.System("increment notification counter", err)
	}
	av, ok := out.Attributes["CounterValue"]
	if !ok {
		return 0, apperr.System("missing notification counter value", nil)
	}
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return 0, apperr.System("notification counter value not numeric", nil)
	}
	val, err := strconv.ParseUint(n.Value, 10, 64)
	if err != nil {
		return 0, apperr.System("parse notification counter value", err)
	}
	return val, nil
}

// InsertNotification allocates a monotonic id and persists the row,
// returning the populated notification.
func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	id, err := s.NextNotificationID(ctx)
	if err != nil {
		return domain.Notification{}, err
	}
	n.ID = id
	row := toNotificationRow(n)
	data, err := json.Marshal(row)
	if err != nil {
		return domain.Notification{}, apperr.System("marshal notification", err)
	}
	it := item{PK: notificationPK(), SK: notificationSK(n.ID), Data: string(data), Timestamp: n.ScheduledAt.UTC().Format(notificationTimestampLayout)}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return domain.Notification{}, apperr.System("marshal notification item", err)
	}
	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av}); err != nil {
		return domain.Notification{}, apperr.System("put notification", err)
	}
	return n, nil
}

// GetNotification looks up a single notification by id.
func (s *Store) GetNotification(ctx context.Context, id uint64) (*domain.Notification, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: notificationPK()},
			"SK": &types.AttributeValueMemberS{Value: notificationSK(id)},
		},
	})
	if err != nil {
		return nil, apperr.System("get notification", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, apperr.System("unmarshal notification item", err)
	}
	var row notificationRow
	if err := json.Unmarshal([]byte(it.Data), &row); err != nil {
		return nil, apperr.System("unmarshal notification data", err)
	}
	n, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetNotificationIDs returns up to limit ids, ascending, of notifications
// scheduled at or before "before", resuming from startKey (nil for the
// first page) — spec.md §4.7 send_pending: page size capped at
// config.NotificationSendPageSize by the caller.
func (s *Store) GetNotificationIDs(ctx context.Context, before time.Time, limit int, startKey map[string]types.AttributeValue) (ids []uint64, lastKey map[string]types.AttributeValue, err error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		FilterExpression:       aws.String("#ts <= :before"),
		ExpressionAttributeNames: map[string]string{
			"#ts": "Timestamp",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: notificationPK()},
			":before": &types.AttributeValueMemberS{Value: before.UTC().Format(notificationTimestampLayout)},
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
		return nil, nil, apperr.System("query notification ids", err)
	}
	ids = make([]uint64, 0, len(out.Items))
	for _, raw := range out.Items {
		var it item
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, nil, apperr.System("unmarshal notification item", err)
		}
		var row notificationRow
		if err := json.Unmarshal([]byte(it.Data), &row); err != nil {
			return nil, nil, apperr.System("unmarshal notification data", err)
		}
		ids = append(ids, row.ID)
	}
	return ids, out.LastEvaluatedKey, nil
}

// NotificationIDs returns a restartable range-over-func sequence of pending
// notification ids scheduled at or before "before", ascending, paginating
// pageSize at a time. A fresh dynamodb.Query backs every page, so the
// sequence reflects concurrent inserts/removals exactly as spec.md §4.1
// requires of its lazy scans.
func (s *Store) NotificationIDs(ctx context.Context, before time.Time, pageSize int) func(func(uint64) bool) {
	return func(yield func(uint64) bool) {
		var startKey map[string]types.AttributeValue
		for {
			page, next, err := s.GetNotificationIDs(ctx, before, pageSize, startKey)
			if err != nil {
				return
			}
			for _, id := range page {
				if !yield(id) {
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

// RemoveNotification deletes a notification. Called only after its
// delivery attempt succeeds, so delivery is at-least-once: an interruption
// between the send and this call leaves the notification to be sent again.
func (s *Store) RemoveNotification(ctx context.Context, id uint64) error {
	_, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: notificationPK()},
			"SK": &types.AttributeValueMemberS{Value: notificationSK(id)},
		},
	})
	if err != nil {
		return apperr.System("delete notification", err)
	}
	return nil
}
