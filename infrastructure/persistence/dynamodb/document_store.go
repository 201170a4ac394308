package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docprobe/application/ports"
	"docprobe/domain/core/entities"
	"docprobe/domain/core/valueobjects"
	pkgerrors "docprobe/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	_ ports.DocumentStore = (*DocumentStore)(nil)
	_ ports.HealthChecker = (*DocumentStore)(nil)
)

// Attribute names. The table must be keyed on PK (hash) and SK (range) with
// TTL configured as its time-to-live attribute.
const (
	attrPK         = "PK"
	attrSK         = "SK"
	attrETag       = "ETag"
	attrTTL        = "TTL"
	attrTTLSeconds = "TTLSeconds"
	attrUpdatedAt  = "UpdatedAt"
)

// documentItem is the stored shape of a document
type documentItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	ETag       string `dynamodbav:"ETag"`
	TTL        int64  `dynamodbav:"TTL,omitempty"`        // epoch seconds, read by DynamoDB TTL
	TTLSeconds *int   `dynamodbav:"TTLSeconds,omitempty"` // as requested by the writer
	CreatedAt  string `dynamodbav:"CreatedAt"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

func (i documentItem) expired(now time.Time) bool {
	return i.TTL != 0 && i.TTL <= now.Unix()
}

func (i documentItem) toDocument() *entities.Document {
	return &entities.Document{
		PartitionKey:      i.PK,
		ID:                i.SK,
		VersionToken:      i.ETag,
		TimeToLiveSeconds: i.TTLSeconds,
	}
}

// DocumentStore stores documents in one DynamoDB table using conditional
// writes for optimistic concurrency. Version tokens are random UUIDs kept in
// the ETag attribute.
type DocumentStore struct {
	client    DBClient
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewDocumentStore creates a DynamoDB-backed document store
func NewDocumentStore(client DBClient, tableName string, logger *zap.Logger) *DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentStore{
		client:    client,
		tableName: tableName,
		logger:    logger.Named("dynamodb").With(zap.String("table", tableName)),
		now:       time.Now,
	}
}

// Write dispatches on the request's precondition
func (s *DocumentStore) Write(ctx context.Context, req entities.WriteRequest) (*entities.Document, error) {
	if req.Document == nil {
		return nil, pkgerrors.NewValidationError("document is required")
	}
	if req.Precondition.IsMustNotExist() {
		return s.create(ctx, req.Document)
	}
	return s.replace(ctx, req.Document, req.Precondition.Token())
}

// create puts the item only if no live item holds the key. An item whose TTL
// has passed but which DynamoDB has not yet reaped counts as absent.
func (s *DocumentStore) create(ctx context.Context, doc *entities.Document) (*entities.Document, error) {
	now := s.now()
	stamp := now.UTC().Format(time.RFC3339)

	item := documentItem{
		PK:         doc.PartitionKey,
		SK:         doc.ID,
		ETag:       uuid.NewString(),
		TTLSeconds: doc.TimeToLiveSeconds,
		CreatedAt:  stamp,
		UpdatedAt:  stamp,
	}
	if exp, ok := doc.ExpiresAt(now); ok {
		item.TTL = exp.Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to marshal document").WithCause(err)
	}

	cond := expression.Name(attrPK).AttributeNotExists().
		Or(expression.Name(attrTTL).LessThanEqual(expression.Value(now.Unix())))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build condition").WithCause(err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		mapped := translateError("PutItem", doc.Key().String(), err)
		s.logger.Debug("Conditional create failed",
			zap.String("partitionKey", doc.PartitionKey),
			zap.String("documentID", doc.ID),
			zap.Error(mapped),
		)
		return nil, mapped
	}

	s.logger.Debug("Document created",
		zap.String("partitionKey", doc.PartitionKey),
		zap.String("documentID", doc.ID),
		zap.String("etag", item.ETag),
	)
	return item.toDocument(), nil
}

// replace updates the item only while its ETag still equals token and it has
// not expired. CreatedAt is preserved.
func (s *DocumentStore) replace(ctx context.Context, doc *entities.Document, token string) (*entities.Document, error) {
	now := s.now()
	next := uuid.NewString()

	update := expression.Set(expression.Name(attrETag), expression.Value(next)).
		Set(expression.Name(attrUpdatedAt), expression.Value(now.UTC().Format(time.RFC3339)))
	if exp, ok := doc.ExpiresAt(now); ok {
		update = update.
			Set(expression.Name(attrTTL), expression.Value(exp.Unix())).
			Set(expression.Name(attrTTLSeconds), expression.Value(*doc.TimeToLiveSeconds))
	} else {
		update = update.Remove(expression.Name(attrTTL)).Remove(expression.Name(attrTTLSeconds))
	}

	live := expression.Name(attrTTL).AttributeNotExists().
		Or(expression.Name(attrTTL).GreaterThan(expression.Value(now.Unix())))
	cond := expression.Name(attrETag).Equal(expression.Value(token)).And(live)

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build update").WithCause(err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.tableName),
		Key:                                 keyAttributes(doc.Key()),
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		return nil, s.replaceError(doc, err, now)
	}

	stored := doc.WithVersion(next)
	s.logger.Debug("Document replaced",
		zap.String("partitionKey", doc.PartitionKey),
		zap.String("documentID", doc.ID),
		zap.String("etag", next),
	)
	return stored, nil
}

// replaceError tells a stale token apart from a missing document using the
// old item DynamoDB returns with the failed condition.
func (s *DocumentStore) replaceError(doc *entities.Document, err error, now time.Time) error {
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return translateError("UpdateItem", doc.Key().String(), err)
	}

	if len(ccf.Item) > 0 {
		var old documentItem
		if uerr := attributevalue.UnmarshalMap(ccf.Item, &old); uerr == nil && !old.expired(now) {
			return pkgerrors.NewConflictError("version token does not match").
				WithCode(pkgerrors.CodeVersionMismatch).
				WithOperation("UpdateItem").
				WithResource(doc.Key().String()).
				WithCause(err)
		}
	}
	return pkgerrors.NewNotFoundError("document").
		WithOperation("UpdateItem").
		WithCause(err)
}

// Read performs a strongly consistent point read
func (s *DocumentStore) Read(ctx context.Context, key valueobjects.DocumentKey) (*entities.Document, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            keyAttributes(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, translateError("GetItem", key.String(), err)
	}
	if len(out.Item) == 0 {
		return nil, pkgerrors.NewNotFoundError("document").WithOperation("GetItem")
	}

	var item documentItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewInternalError("failed to unmarshal document").WithCause(err)
	}
	if item.expired(s.now()) {
		return nil, pkgerrors.NewNotFoundError("document").
			WithOperation("GetItem").
			WithDetails(map[string]interface{}{"expired": true})
	}
	return item.toDocument(), nil
}

// Ping checks the table exists and is usable
func (s *DocumentStore) Ping(ctx context.Context) error {
	out, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		return translateError("DescribeTable", s.tableName, err)
	}
	if out.Table != nil && out.Table.TableStatus != types.TableStatusActive && out.Table.TableStatus != types.TableStatusUpdating {
		return pkgerrors.NewTransientError(fmt.Sprintf("table status is %s", out.Table.TableStatus), nil).
			WithOperation("DescribeTable").
			WithResource(s.tableName)
	}
	return nil
}

// Close is a no-op; the SDK client holds no long-lived connections to release
func (s *DocumentStore) Close() error {
	return nil
}

func keyAttributes(key valueobjects.DocumentKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: key.PartitionKey},
		attrSK: &types.AttributeValueMemberS{Value: key.ID},
	}
}
