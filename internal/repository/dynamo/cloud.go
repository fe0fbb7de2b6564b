// Package dynamo implements the cloud-side provision.Store against
// DynamoDB. Subscribers live in a single table under PK "SUB#<uid>" /
// SK "PROFILE"; msisdn and imsi are projected into GSIs so store-local
// uniqueness can be checked before a write.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/ignite/subscriber-sync/internal/domain"
	"github.com/ignite/subscriber-sync/internal/normalize"
	"github.com/ignite/subscriber-sync/internal/service/provision"
)

// API is the subset of the DynamoDB client the adapter uses.
// *dynamodb.Client satisfies it; tests supply a fake.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Options configures the cloud adapter.
type Options struct {
	TableName   string
	MSISDNIndex string
	IMSIIndex   string
	Region      string
	Profile     string
	// Static credentials for environments without a metadata service.
	AccessKey string
	SecretKey string
	// Timeout bounds every individual DynamoDB call.
	Timeout time.Duration
}

// CloudStore implements provision.Store over DynamoDB.
type CloudStore struct {
	client      API
	table       string
	msisdnIndex string
	imsiIndex   string
	timeout     time.Duration
}

// New creates a DynamoDB-backed cloud store, loading AWS configuration
// from the usual sources (profile, env, static keys when supplied).
func New(ctx context.Context, opts Options) (*CloudStore, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewWithClient(dynamodb.NewFromConfig(cfg), opts), nil
}

// NewWithClient creates the store over an existing client. Tests use this
// with a fake API.
func NewWithClient(client API, opts Options) *CloudStore {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	msisdnIdx := opts.MSISDNIndex
	if msisdnIdx == "" {
		msisdnIdx = "msisdn-index"
	}
	imsiIdx := opts.IMSIIndex
	if imsiIdx == "" {
		imsiIdx = "imsi-index"
	}
	return &CloudStore{
		client:      client,
		table:       opts.TableName,
		msisdnIndex: msisdnIdx,
		imsiIndex:   imsiIdx,
		timeout:     timeout,
	}
}

func (s *CloudStore) ID() domain.StoreID { return domain.StoreCloud }

func (s *CloudStore) key(uid string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: normalize.CloudKeyPrefix + uid},
		"SK": &types.AttributeValueMemberS{Value: normalize.CloudProfileSK},
	}
}

func (s *CloudStore) Get(ctx context.Context, uid string) (*domain.CanonicalSubscriber, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(uid),
	})
	if err != nil {
		return nil, classify("get", uid, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("cloud %s: %w", uid, provision.ErrNotFound)
	}

	var native normalize.CloudRecord
	if err := attributevalue.UnmarshalMap(out.Item, &native); err != nil {
		return nil, fmt.Errorf("unmarshal cloud item %s: %w", uid, err)
	}
	return normalize.FromCloud(&native)
}

func (s *CloudStore) Create(ctx context.Context, rec *domain.CanonicalSubscriber) (*domain.CanonicalSubscriber, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.checkOwnership(ctx, rec); err != nil {
		return nil, err
	}

	item, err := attributevalue.MarshalMap(normalize.ToCloud(rec))
	if err != nil {
		return nil, fmt.Errorf("marshal cloud item %s: %w", rec.UID, err)
	}
	// Conditional on the partition key: a retried create of the same uid
	// can never produce a duplicate item.
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, fmt.Errorf("cloud uid %s already exists: %w", rec.UID, provision.ErrConflict)
		}
		return nil, classify("create", rec.UID, err)
	}
	return rec.Clone(), nil
}

func (s *CloudStore) Update(ctx context.Context, rec *domain.CanonicalSubscriber) (*domain.CanonicalSubscriber, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.checkOwnership(ctx, rec); err != nil {
		return nil, err
	}

	item, err := attributevalue.MarshalMap(normalize.ToCloud(rec))
	if err != nil {
		return nil, fmt.Errorf("marshal cloud item %s: %w", rec.UID, err)
	}
	// Upsert by uid: same key, same item, safe to retry.
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return nil, classify("update", rec.UID, err)
	}
	return rec.Clone(), nil
}

func (s *CloudStore) Delete(ctx context.Context, uid string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.table),
		Key:          s.key(uid),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return classify("delete", uid, err)
	}
	if len(out.Attributes) == 0 {
		return fmt.Errorf("cloud %s: %w", uid, provision.ErrNotFound)
	}
	return nil
}

func (s *CloudStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err != nil {
		return classify("ping", "", err)
	}
	return nil
}

// checkOwnership queries the msisdn and imsi GSIs and fails with
// ErrConflict when either identifier is already held by a different uid.
func (s *CloudStore) checkOwnership(ctx context.Context, rec *domain.CanonicalSubscriber) error {
	checks := []struct {
		index, attr, value string
	}{
		{s.msisdnIndex, "msisdn", rec.MSISDN},
		{s.imsiIndex, "imsi", rec.IMSI},
	}
	for _, c := range checks {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.table),
			IndexName:              aws.String(c.index),
			KeyConditionExpression: aws.String(fmt.Sprintf("%s = :v", c.attr)),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":v": &types.AttributeValueMemberS{Value: c.value},
			},
			ProjectionExpression: aws.String("#u"),
			ExpressionAttributeNames: map[string]string{
				"#u": "uid",
			},
		})
		if err != nil {
			return classify("ownership check", rec.UID, err)
		}
		for _, item := range out.Items {
			var owner struct {
				UID string `dynamodbav:"uid"`
			}
			if err := attributevalue.UnmarshalMap(item, &owner); err != nil {
				continue
			}
			if owner.UID != "" && owner.UID != rec.UID {
				return fmt.Errorf("cloud %s %q owned by uid %s: %w", c.attr, c.value, owner.UID, provision.ErrConflict)
			}
		}
	}
	return nil
}

// transientCodes are DynamoDB error codes worth retrying.
var transientCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"ThrottlingException":                    true,
	"RequestLimitExceeded":                   true,
	"InternalServerError":                    true,
	"ServiceUnavailable":                     true,
}

// classify maps SDK failures onto the adapter error taxonomy. Timeouts
// and transport failures become ErrStoreUnavailable so downstream logic
// sees a definite error outcome, never an "unknown".
func classify(op, uid string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("cloud %s %s timed out: %w", op, uid, provision.ErrStoreUnavailable)
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		if transientCodes[ae.ErrorCode()] {
			return fmt.Errorf("cloud %s %s: %s: %w", op, uid, ae.ErrorCode(), provision.ErrStoreUnavailable)
		}
		return fmt.Errorf("cloud %s %s: %w", op, uid, err)
	}
	// Anything that never reached the service is transport trouble.
	return fmt.Errorf("cloud %s %s: %v: %w", op, uid, err, provision.ErrStoreUnavailable)
}
