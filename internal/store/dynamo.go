package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/apresai/podcaster-async/internal/domain"
)

// DynamoStore is the default Store backend: a single-table design keyed by
// PK="TASK#<id>"/SK="TASK#<id>", with a GSI1 (GSI1PK="OWNER#<owner>" or
// "OWNER#_all", GSI1SK=<created_at as 20060102T150405.000000000Z>#<id>) for reverse-chronological
// listing, following the PK/SK + GSI1 shape used for the podcast item
// table this is generalized from.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoStore constructs a DynamoStore against the given table.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

type ddbItem struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	GSI1PK  string `dynamodbav:"GSI1PK"`
	GSI1SK  string `dynamodbav:"GSI1SK"`
	domain.TaskRecord
}

const allOwnersPartition = "_all"

func taskPK(taskID string) string { return "TASK#" + taskID }

func ownerGSI1PK(ownerID string) string {
	if ownerID == "" {
		ownerID = allOwnersPartition
	}
	return "OWNER#" + ownerID
}

func gsi1SK(rec *domain.TaskRecord) string {
	return rec.CreatedAt.UTC().Format("20060102T150405.000000000Z") + "#" + rec.TaskID
}

func toItem(rec *domain.TaskRecord) ddbItem {
	return ddbItem{
		PK:         taskPK(rec.TaskID),
		SK:         taskPK(rec.TaskID),
		GSI1PK:     ownerGSI1PK(rec.OwnerID),
		GSI1SK:     gsi1SK(rec),
		TaskRecord: *rec,
	}
}

func (d *DynamoStore) Create(ctx context.Context, rec *domain.TaskRecord) error {
	rec.CreatedAt = now()
	rec.UpdatedAt = rec.CreatedAt
	item := toItem(rec)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("store: marshal task: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("store: put task: %w", err)
	}
	return nil
}

func (d *DynamoStore) getItem(ctx context.Context, taskID string) (*ddbItem, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: taskPK(taskID)},
			"SK": &types.AttributeValueMemberS{Value: taskPK(taskID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: get task: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var item ddbItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("store: unmarshal task: %w", err)
	}
	return &item, nil
}

func (d *DynamoStore) Get(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	item, err := d.getItem(ctx, taskID)
	if err != nil {
		return nil, err
	}
	rec := item.TaskRecord
	return &rec, nil
}

func (d *DynamoStore) Update(ctx context.Context, taskID string, mutate func(*domain.TaskRecord) error) error {
	item, err := d.getItem(ctx, taskID)
	if err != nil {
		return err
	}
	if item.Status.Terminal() {
		return ErrTerminal
	}
	rec := item.TaskRecord
	if err := mutate(&rec); err != nil {
		return err
	}
	rec.UpdatedAt = now()
	newItem := toItem(&rec)
	av, err := attributevalue.MarshalMap(newItem)
	if err != nil {
		return fmt.Errorf("store: marshal task: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("store: put task: %w", err)
	}
	return nil
}

func (d *DynamoStore) AppendLog(ctx context.Context, taskID, line string) error {
	return d.Update(ctx, taskID, func(rec *domain.TaskRecord) error {
		rec.AppendLog(line)
		return nil
	})
}

func (d *DynamoStore) List(ctx context.Context, ownerID string, limit int, cursor string) (*Page, error) {
	if limit <= 0 {
		limit = 20
	}
	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: ownerGSI1PK(ownerID)},
		},
		ScanIndexForward: aws.Bool(false), // newest first
		Limit:            aws.Int32(int32(limit)),
	}
	if cursor != "" {
		key, err := decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		input.ExclusiveStartKey = key
	}
	out, err := d.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	page := &Page{}
	for _, raw := range out.Items {
		var item ddbItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("store: unmarshal task: %w", err)
		}
		rec := item.TaskRecord
		page.Tasks = append(page.Tasks, &rec)
	}
	if len(out.LastEvaluatedKey) > 0 {
		cur, err := encodeCursor(out.LastEvaluatedKey)
		if err != nil {
			return nil, err
		}
		page.NextCursor = cur
	}
	return page, nil
}

func (d *DynamoStore) Close() error { return nil }

func encodeCursor(key map[string]types.AttributeValue) (string, error) {
	m := map[string]string{}
	for k, v := range key {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			m[k] = s.Value
		}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("store: invalid cursor: %w", err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("store: invalid cursor: %w", err)
	}
	key := make(map[string]types.AttributeValue, len(m))
	for k, v := range m {
		key[k] = &types.AttributeValueMemberS{Value: v}
	}
	return key, nil
}
