package dynamodb

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "docprobe/pkg/errors"
	"docprobe/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DBClient is the subset of the DynamoDB API the document store uses.
// *dynamodb.Client satisfies it; tests substitute a mock.
type DBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

var _ DBClient = (*dynamodb.Client)(nil)

// ClientOptions describes how to reach the service
type ClientOptions struct {
	Endpoint string
	Region   string
	// Credential is "accessKeyID:secretAccessKey[:sessionToken]".
	Credential string
	// MaxAttempts bounds the SDK's own retryer. 1 disables it so retry
	// policy stays with the caller.
	MaxAttempts int
}

// NewClient builds a DynamoDB client with static credentials and an explicit endpoint
func NewClient(ctx context.Context, opts ClientOptions) (*dynamodb.Client, error) {
	provider, err := staticCredentials(opts.Credential)
	if err != nil {
		return nil, err
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(provider),
		awsconfig.WithRetryMaxAttempts(maxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

func staticCredentials(credential string) (aws.CredentialsProvider, error) {
	parts := utils.SplitCredential(credential)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return nil, pkgerrors.NewValidationError("credential must be accessKeyID:secretAccessKey[:sessionToken]").
			WithCode(pkgerrors.CodeBadCredentials)
	}
	session := ""
	if len(parts) == 3 {
		session = parts[2]
	}
	return credentials.NewStaticCredentialsProvider(parts[0], parts[1], session), nil
}

// TableName maps a database/collection pair onto a single table name
func TableName(databaseName, collectionName string) string {
	return databaseName + "." + collectionName
}
