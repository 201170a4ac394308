//go:build integration

package dynamodb_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"docprobe/application/ports"
	"docprobe/infrastructure/persistence/dynamodb"
	"docprobe/infrastructure/persistence/storetest"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Runs against DynamoDB Local or LocalStack:
//
//	DYNAMODB_ENDPOINT=http://localhost:8000 go test -tags integration ./infrastructure/persistence/dynamodb/
func TestDocumentStore_Integration(t *testing.T) {
	endpoint := os.Getenv("DYNAMODB_ENDPOINT")
	if endpoint == "" {
		t.Skip("DYNAMODB_ENDPOINT not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := dynamodb.NewClient(ctx, dynamodb.ClientOptions{
		Endpoint:    endpoint,
		Region:      "us-west-2",
		Credential:  "local:local",
		MaxAttempts: 3,
	})
	require.NoError(t, err)

	table := dynamodb.TableName("db", "common")
	ensureTable(ctx, t, client, table)

	storetest.Run(t, func(t *testing.T) ports.DocumentStore {
		return dynamodb.NewDocumentStore(client, table, zaptest.NewLogger(t))
	})

	t.Run("ping", func(t *testing.T) {
		store := dynamodb.NewDocumentStore(client, table, zaptest.NewLogger(t))
		require.NoError(t, store.Ping(ctx))
	})
}

func ensureTable(ctx context.Context, t *testing.T, client *awsdynamodb.Client, table string) {
	t.Helper()

	_, err := client.CreateTable(ctx, &awsdynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		require.NoError(t, err)
	}

	waiter := awsdynamodb.NewTableExistsWaiter(client)
	require.NoError(t, waiter.Wait(ctx, &awsdynamodb.DescribeTableInput{TableName: aws.String(table)}, time.Minute))
}
