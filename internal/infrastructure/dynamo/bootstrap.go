package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/member-auth/internal/config"
)

// tableWaitTimeout bounds how long a new table may stay CREATING.
const tableWaitTimeout = 2 * time.Minute

// SchemaAPI is the control-plane subset of the DynamoDB client used at startup.
type SchemaAPI interface {
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateTimeToLive(ctx context.Context, in *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// tableSpec pairs a table definition with its optional TTL attribute.
type tableSpec struct {
	input   *dynamodb.CreateTableInput
	ttlAttr string
}

// schema returns the member and pending-verification tables.
//
// Members are keyed by member_id. Email-claim items share the table under
// "email#<address>" so the transactional insert can enforce both uniqueness
// rules. The id_prefix index serves the highest-id-with-prefix lookup.
func schema(tables config.DynamoTables) []tableSpec {
	return []tableSpec{
		{input: &dynamodb.CreateTableInput{
			TableName:   aws.String(tables.Members),
			BillingMode: types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{
				stringAttr(fieldMemberID),
				stringAttr(fieldEmail),
				stringAttr(fieldIDPrefix),
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(fieldMemberID), KeyType: types.KeyTypeHash},
			},
			GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
				gsi(indexEmail, fieldEmail, ""),
				gsi(indexIDPrefix, fieldIDPrefix, fieldMemberID),
			},
		}},
		{
			input: &dynamodb.CreateTableInput{
				TableName:            aws.String(tables.PendingVerifications),
				BillingMode:          types.BillingModePayPerRequest,
				AttributeDefinitions: []types.AttributeDefinition{stringAttr(fieldEmail)},
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(fieldEmail), KeyType: types.KeyTypeHash},
				},
			},
			ttlAttr: fieldTTL,
		},
	}
}

// Bootstrap creates missing tables and enables TTL where the schema asks for it.
// Tables that already exist are left untouched, so it runs on every startup.
func Bootstrap(ctx context.Context, client SchemaAPI, tables config.DynamoTables) error {
	var errs []error
	for _, spec := range schema(tables) {
		name := aws.ToString(spec.input.TableName)
		created, err := createTable(ctx, client, spec.input)
		if err != nil {
			errs = append(errs, fmt.Errorf("create %s: %w", name, err))
			continue
		}
		if spec.ttlAttr == "" || !created {
			continue
		}
		// TTL cannot be changed while the table is still CREATING.
		if err := waitActive(ctx, client, name); err != nil {
			slog.Warn("table not active, TTL left disabled", "table", name, "err", err)
			continue
		}
		if err := enableTTL(ctx, client, name, spec.ttlAttr); err != nil {
			// Expired pending records are still rejected on read; TTL only reclaims space.
			slog.Warn("could not enable TTL", "table", name, "err", err)
		}
	}
	return errors.Join(errs...)
}

func stringAttr(name string) types.AttributeDefinition {
	return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS}
}

// gsi builds an all-attributes projection index. sortKey may be empty.
func gsi(indexName, hashKey, sortKey string) types.GlobalSecondaryIndex {
	ks := []types.KeySchemaElement{
		{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
	}
	if sortKey != "" {
		ks = append(ks, types.KeySchemaElement{
			AttributeName: aws.String(sortKey), KeyType: types.KeyTypeRange,
		})
	}
	return types.GlobalSecondaryIndex{
		IndexName:  aws.String(indexName),
		KeySchema:  ks,
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

// createTable reports whether the table was newly created.
func createTable(ctx context.Context, client SchemaAPI, input *dynamodb.CreateTableInput) (bool, error) {
	_, err := client.CreateTable(ctx, input)
	var inUse *types.ResourceInUseException
	switch {
	case errors.As(err, &inUse):
		return false, nil
	case err != nil:
		return false, err
	}
	slog.Info("created table", "table", aws.ToString(input.TableName))
	return true, nil
}

func waitActive(ctx context.Context, client SchemaAPI, tableName string) error {
	w := dynamodb.NewTableExistsWaiter(client, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = time.Second
		o.MaxDelay = 10 * time.Second
	})
	return w.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}, tableWaitTimeout)
}

func enableTTL(ctx context.Context, client SchemaAPI, tableName, ttlAttr string) error {
	_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String(ttlAttr),
		},
	})
	return err
}
