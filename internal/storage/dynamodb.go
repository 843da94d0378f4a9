package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/charleshuang3/cf-ping/internal/models"
)

// DynamoAPI is the subset of the DynamoDB client the store needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore keeps one item per entity, keyed by the "name" attribute.
type DynamoStore struct {
	Client    DynamoAPI
	TableName string
}

// NewDynamoClient builds a DynamoDB client from the default AWS credential
// chain. An empty region defers to the environment.
func NewDynamoClient(ctx context.Context, region string) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// NewDynamoStore wraps client for the given table.
func NewDynamoStore(client DynamoAPI, table string) (*DynamoStore, error) {
	if client == nil {
		return nil, errors.New("dynamodb client is not initialized")
	}
	if table == "" {
		return nil, errors.New("dynamodb table name is required")
	}
	return &DynamoStore{Client: client, TableName: table}, nil
}

// Get performs a strongly consistent point read.
func (s *DynamoStore) Get(ctx context.Context, name string) (models.EntityStatus, bool, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.TableName),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: name},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return models.EntityStatus{}, false, fmt.Errorf("failed to read %s from dynamodb: %w", name, err)
	}
	if len(out.Item) == 0 {
		return models.EntityStatus{}, false, nil
	}

	var rec models.EntityStatus
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return models.EntityStatus{}, false, fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return rec, true, nil
}

// Put writes the whole item, conditioned on the version it was decided from.
func (s *DynamoStore) Put(ctx context.Context, rec models.EntityStatus, expectedVersion int64) error {
	rec.Version = expectedVersion + 1
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", rec.Name, err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.TableName),
		Item:      item,
	}
	// Rows written without a version attribute read back as version 0 and
	// must stay writable; only a versioned row blocks a create.
	if expectedVersion == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(#version)")
		input.ExpressionAttributeNames = map[string]string{"#version": "version"}
	} else {
		input.ConditionExpression = aws.String("#version = :expected")
		input.ExpressionAttributeNames = map[string]string{"#version": "version"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		}
	}

	if _, err := s.Client.PutItem(ctx, input); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return fmt.Errorf("put %s: %w", rec.Name, ErrConflict)
		}
		return fmt.Errorf("failed to store %s in dynamodb: %w", rec.Name, err)
	}
	return nil
}
