package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoStore backs the KVStore contract with a single DynamoDB table whose
// partition key is the logical table name and whose sort key is the record
// key. HSetNX relies on a conditional put, so the insert-if-absent check is
// atomic on the server side.
type DynamoStore struct {
	Client    *dynamodb.Client
	TableName string
}

type dynamoRecord struct {
	Table string `dynamodbav:"tbl"`
	Key   string `dynamodbav:"k"`
	Value []byte `dynamodbav:"v"`
}

// InitializeDynamoDBClient initializes the DynamoDB client
func InitializeDynamoDBClient() *dynamodb.Client {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(os.Getenv("AWS_REGION")))
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	return dynamodb.NewFromConfig(cfg)
}

func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{Client: client, TableName: tableName}
}

func (ds *DynamoStore) key(table, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"tbl": &types.AttributeValueMemberS{Value: table},
		"k":   &types.AttributeValueMemberS{Value: key},
	}
}

func (ds *DynamoStore) HGet(ctx context.Context, table, key string) ([]byte, error) {
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &ds.TableName,
		Key:       ds.key(table, key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s/%s: %w", table, key, err)
	}
	if output.Item == nil {
		return nil, ErrKeyNotFound
	}
	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(output.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item %s/%s: %w", table, key, err)
	}
	return rec.Value, nil
}

func (ds *DynamoStore) HSet(ctx context.Context, table, key string, value []byte) error {
	item, err := attributevalue.MarshalMap(dynamoRecord{Table: table, Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &ds.TableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item %s/%s: %w", table, key, err)
	}
	return nil
}

func (ds *DynamoStore) HSetNX(ctx context.Context, table, key string, value []byte) error {
	item, err := attributevalue.MarshalMap(dynamoRecord{Table: table, Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &ds.TableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(tbl)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrKeyExists
		}
		return fmt.Errorf("failed to put item %s/%s: %w", table, key, err)
	}
	return nil
}

func (ds *DynamoStore) HDel(ctx context.Context, table, key string) error {
	_, err := ds.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &ds.TableName,
		Key:       ds.key(table, key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete item %s/%s: %w", table, key, err)
	}
	return nil
}

func (ds *DynamoStore) HLen(ctx context.Context, table string) (int, error) {
	output, err := ds.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &ds.TableName,
		KeyConditionExpression: aws.String("tbl = :tbl"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tbl": &types.AttributeValueMemberS{Value: table},
		},
		Select: types.SelectCount,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count table '%s': %w", table, err)
	}
	return int(output.Count), nil
}

func (ds *DynamoStore) HGetAll(ctx context.Context, table string) (map[string][]byte, error) {
	output, err := ds.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &ds.TableName,
		KeyConditionExpression: aws.String("tbl = :tbl"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tbl": &types.AttributeValueMemberS{Value: table},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query table '%s': %w", table, err)
	}
	var records []dynamoRecord
	if err := attributevalue.UnmarshalListOfMaps(output.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal query result: %w", err)
	}
	out := make(map[string][]byte, len(records))
	for _, rec := range records {
		out[rec.Key] = rec.Value
	}
	return out, nil
}
