package audit

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapublica/platform/internal/domain"
)

// fakeDynamo keeps items per partition and answers descending queries.
type fakeDynamo struct {
	items  map[string][]map[string]types.AttributeValue
	putErr error
	last   *dynamodb.QueryInput
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	if f.items == nil {
		f.items = make(map[string][]map[string]types.AttributeValue)
	}
	pk := in.Item["PK"].(*types.AttributeValueMemberS).Value
	f.items[pk] = append(f.items[pk], in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.last = in
	pk := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	items := append([]map[string]types.AttributeValue(nil), f.items[pk]...)
	sort.Slice(items, func(i, j int) bool {
		a := items[i]["SK"].(*types.AttributeValueMemberS).Value
		b := items[j]["SK"].(*types.AttributeValueMemberS).Value
		return a > b
	})
	if n := int(aws.ToInt32(in.Limit)); n > 0 && len(items) > n {
		items = items[:n]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func TestRecordAndList(t *testing.T) {
	db := &fakeDynamo{}
	trail := NewDynamoTrail(db, "lp-audit")
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	trail.Record(context.Background(), domain.AuditEvent{
		Entity: domain.EntityLead, EntityID: "l1", Action: "stage_changed",
		ActorID: "g1", Details: map[string]string{"from": "NEW", "to": "CONTACTED"}, At: base,
	})
	trail.Record(context.Background(), domain.AuditEvent{
		Entity: domain.EntityLead, EntityID: "l1", Action: "assigned", ActorID: "a1", At: base.Add(time.Hour),
	})
	trail.Record(context.Background(), domain.AuditEvent{
		Entity: domain.EntityLead, EntityID: "other", Action: "assigned", ActorID: "a1", At: base,
	})

	events, err := trail.ListForEntity(context.Background(), domain.EntityLead, "l1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "assigned", events[0].Action)
	assert.Equal(t, "stage_changed", events[1].Action)
	assert.Equal(t, "CONTACTED", events[1].Details["to"])
	assert.NotEmpty(t, events[0].ID)
	assert.True(t, events[1].At.Equal(base))
	assert.False(t, aws.ToBool(db.last.ScanIndexForward))
	assert.Equal(t, int32(50), aws.ToInt32(db.last.Limit))
}

func TestRecordKeys(t *testing.T) {
	db := &fakeDynamo{}
	trail := NewDynamoTrail(db, "lp-audit")
	trail.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC) }

	trail.Record(context.Background(), domain.AuditEvent{ID: "ev1", Entity: domain.EntityCompany, EntityID: "c1", Action: "plan_changed"})

	items := db.items["company#c1"]
	require.Len(t, items, 1)
	sk := items[0]["SK"].(*types.AttributeValueMemberS).Value
	assert.Equal(t, "2026-01-02T03:04:05.000000006Z#ev1", sk)
}

func TestRecordSwallowsErrors(t *testing.T) {
	trail := NewDynamoTrail(&fakeDynamo{putErr: errors.New("throttled")}, "lp-audit")
	assert.NotPanics(t, func() {
		trail.Record(context.Background(), domain.AuditEvent{Entity: domain.EntityLead, EntityID: "l1", Action: "x"})
	})
}

func TestUnknownEntity(t *testing.T) {
	trail := NewDynamoTrail(&fakeDynamo{}, "lp-audit")
	_, err := trail.ListForEntity(context.Background(), "invoice", "1", 10)
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = Nop{}.ListForEntity(context.Background(), "invoice", "1", 10)
	assert.ErrorIs(t, err, ErrUnknownEntity)

	events, err := Nop{}.ListForEntity(context.Background(), domain.EntityLead, "1", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPartitionKey(t *testing.T) {
	assert.True(t, strings.HasPrefix(partitionKey(domain.EntityContent, "x"), "content#"))
}
