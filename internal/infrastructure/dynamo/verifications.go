package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/member-auth/internal/domain"
)

// pendingTTLGrace keeps expired registrations readable for a while so a late
// completion gets "expired" rather than "not found".
const pendingTTLGrace = 24 * time.Hour

// PendingVerificationRepo manages registrations awaiting their email OTP.
// PK: email
type PendingVerificationRepo struct {
	client    API
	tableName string
}

func NewPendingVerificationRepo(client API, tableName string) *PendingVerificationRepo {
	return &PendingVerificationRepo{client: client, tableName: tableName}
}

// Put stores v, replacing any earlier pending registration for the same email.
func (r *PendingVerificationRepo) Put(ctx context.Context, v *domain.PendingVerification) error {
	v.TTL = v.ExpiresAt.Add(pendingTTLGrace).Unix()
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal pending verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *PendingVerificationRepo) Get(ctx context.Context, email string) (*domain.PendingVerification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("pending verification not found: %w", domain.ErrNotFound)
	}
	var v domain.PendingVerification
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, fmt.Errorf("unmarshal pending verification: %w", err)
	}
	return &v, nil
}

func (r *PendingVerificationRepo) Delete(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldEmail, email),
	})
	return err
}
