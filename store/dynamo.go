package store

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Dynamo is a Store keeping one DynamoDB item per key. The table uses a
// string partition key "k" and a binary attribute "v".
//
// Prefix deletes are issued as batched item deletes; a failure partway
// leaves the true partial state visible to later listings, which the
// hierarchy contract permits for remote backends.
type Dynamo struct {
	client *dynamodb.Client
	table  string
}

var _ Store = (*Dynamo)(nil)

// dynamoRecord is the item shape for stored keys.
type dynamoRecord struct {
	K string `dynamodbav:"k"`
	V []byte `dynamodbav:"v"`
}

// NewDynamo creates a store over an existing DynamoDB client.
func NewDynamo(client *dynamodb.Client, cfg Config) *Dynamo {
	cfg.validate()
	return &Dynamo{client: client, table: cfg.DynamoTable}
}

// NewDynamoFromEnv creates a store using the ambient AWS configuration
// (environment, shared config files, instance role).
func NewDynamoFromEnv(ctx context.Context, cfg Config) (*Dynamo, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, ioErr("open", cfg.DynamoTable, err)
	}
	return NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg), nil
}

// Get retrieves a value by key.
func (d *Dynamo) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key:       d.itemKey(key),
	})
	if err != nil {
		return nil, ioErr("get", key, err)
	}
	if len(result.Item) == 0 {
		return nil, ErrNotFound
	}
	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, ioErr("get", key, err)
	}
	return rec.V, nil
}

// Set creates or overwrites the value at key.
func (d *Dynamo) Set(ctx context.Context, key string, value []byte) error {
	item, err := attributevalue.MarshalMap(dynamoRecord{K: key, V: value})
	if err != nil {
		return ioErr("set", key, err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	return ioErr("set", key, err)
}

// Delete removes the key if present.
func (d *Dynamo) Delete(ctx context.Context, key string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       d.itemKey(key),
	})
	return ioErr("delete", key, err)
}

// DeletePrefix removes every key beginning with prefix using batched
// deletes of up to 25 items per request.
func (d *Dynamo) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := d.ListPrefix(ctx, prefix)
	if err != nil {
		return err
	}

	const batchSize = 25
	for start := 0; start < len(keys); start += batchSize {
		end := min(start+batchSize, len(keys))
		requests := make([]types.WriteRequest, 0, end-start)
		for _, key := range keys[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: d.itemKey(key)},
			})
		}

		unprocessed := map[string][]types.WriteRequest{d.table: requests}
		for len(unprocessed[d.table]) > 0 {
			out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: unprocessed,
			})
			if err != nil {
				return ioErr("delete_prefix", prefix, err)
			}
			unprocessed = out.UnprocessedItems
		}
	}
	return nil
}

// ListPrefix returns all keys beginning with prefix via a paginated scan.
func (d *Dynamo) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	input := &dynamodb.ScanInput{
		TableName:            aws.String(d.table),
		ProjectionExpression: aws.String("k"),
	}
	if prefix != "" {
		input.FilterExpression = aws.String("begins_with(k, :p)")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: prefix},
		}
	}

	var keys []string
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, ioErr("list_prefix", prefix, err)
		}
		for _, item := range page.Items {
			if v, ok := item["k"].(*types.AttributeValueMemberS); ok {
				keys = append(keys, v.Value)
			}
		}
	}
	return keys, nil
}

// Exists reports whether the key is present.
func (d *Dynamo) Exists(ctx context.Context, key string) (bool, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(d.table),
		Key:                  d.itemKey(key),
		ProjectionExpression: aws.String("k"),
	})
	if err != nil {
		return false, ioErr("exists", key, err)
	}
	return len(result.Item) > 0, nil
}

// Clear removes all keys.
func (d *Dynamo) Clear(ctx context.Context) error {
	return d.DeletePrefix(ctx, "")
}

// SupportsDeletes always reports true.
func (d *Dynamo) SupportsDeletes() bool { return true }

func (d *Dynamo) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"k": &types.AttributeValueMemberS{Value: key},
	}
}
