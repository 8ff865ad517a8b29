// Package audit keeps the append-only audit trail in DynamoDB.
//
// Items are keyed PK = "<entity>#<id>" and SK = "<RFC3339Nano>#<uuid>" so a
// single Query returns an entity's history in time order.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/apperr"
	"github.com/lapublica/platform/internal/pkg/logger"
)

var ErrUnknownEntity = apperr.Invalid("unknown audit entity")

var entities = map[string]bool{
	domain.EntityLead:       true,
	domain.EntityCompany:    true,
	domain.EntityGroupOffer: true,
	domain.EntityContent:    true,
	domain.EntityUser:       true,
}

// DynamoAPI is the subset of the DynamoDB client used by the trail.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Trail records and lists audit events.
type Trail interface {
	Record(ctx context.Context, ev domain.AuditEvent)
	ListForEntity(ctx context.Context, entity, id string, limit int) ([]domain.AuditEvent, error)
}

type item struct {
	PK       string            `dynamodbav:"PK"`
	SK       string            `dynamodbav:"SK"`
	ID       string            `dynamodbav:"id"`
	Entity   string            `dynamodbav:"entity"`
	EntityID string            `dynamodbav:"entity_id"`
	Action   string            `dynamodbav:"action"`
	ActorID  string            `dynamodbav:"actor_id"`
	Details  map[string]string `dynamodbav:"details,omitempty"`
	At       time.Time         `dynamodbav:"at"`
}

// DynamoTrail stores events in one DynamoDB table.
type DynamoTrail struct {
	db    DynamoAPI
	table string
	now   func() time.Time
}

// NewDynamoTrail creates a trail over table.
func NewDynamoTrail(db DynamoAPI, table string) *DynamoTrail {
	return &DynamoTrail{db: db, table: table, now: time.Now}
}

// sortLayout is RFC3339Nano with fixed-width fractions so keys sort in time
// order.
const sortLayout = "2006-01-02T15:04:05.000000000Z07:00"

func partitionKey(entity, id string) string { return entity + "#" + id }

// Record appends ev. Failures are logged and swallowed.
func (t *DynamoTrail) Record(ctx context.Context, ev domain.AuditEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = t.now()
	}
	ev.At = ev.At.UTC()

	av, err := attributevalue.MarshalMap(item{
		PK:       partitionKey(ev.Entity, ev.EntityID),
		SK:       ev.At.Format(sortLayout) + "#" + ev.ID,
		ID:       ev.ID,
		Entity:   ev.Entity,
		EntityID: ev.EntityID,
		Action:   ev.Action,
		ActorID:  ev.ActorID,
		Details:  ev.Details,
		At:       ev.At,
	})
	if err != nil {
		logger.Error("audit: marshal event", "entity", ev.Entity, "entity_id", ev.EntityID, "error", err)
		return
	}
	if _, err := t.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(t.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(SK)"),
	}); err != nil {
		logger.Error("audit: put event", "entity", ev.Entity, "entity_id", ev.EntityID, "action", ev.Action, "error", err)
	}
}

// ListForEntity returns the newest events for one entity first.
func (t *DynamoTrail) ListForEntity(ctx context.Context, entity, id string, limit int) ([]domain.AuditEvent, error) {
	if !entities[entity] {
		return nil, ErrUnknownEntity
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out, err := t.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(t.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: partitionKey(entity, id)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}

	var items []item
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshal audit items: %w", err)
	}
	events := make([]domain.AuditEvent, 0, len(items))
	for _, it := range items {
		events = append(events, domain.AuditEvent{
			ID:       it.ID,
			Entity:   it.Entity,
			EntityID: it.EntityID,
			Action:   it.Action,
			ActorID:  it.ActorID,
			Details:  it.Details,
			At:       it.At,
		})
	}
	return events, nil
}

// Nop discards events and lists nothing. Used when no table is configured.
type Nop struct{}

func (Nop) Record(ctx context.Context, ev domain.AuditEvent) {
	logger.Debug("audit: event (no table configured)", "entity", ev.Entity, "entity_id", ev.EntityID, "action", ev.Action)
}

func (Nop) ListForEntity(_ context.Context, entity, _ string, _ int) ([]domain.AuditEvent, error) {
	if !entities[entity] {
		return nil, ErrUnknownEntity
	}
	return []domain.AuditEvent{}, nil
}
