package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/member-auth/internal/domain"
)

// MemberRepo provides typed DynamoDB operations for the members table.
//
// Every member item is written together with an `email#<address>` claim item
// in the same table. The claim has neither `email` nor `id_prefix`, so it
// stays out of both sparse GSIs, and its conditional put makes email unique.
type MemberRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewMemberRepo(client API, tableName string) *MemberRepo {
	return &MemberRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *MemberRepo) Get(ctx context.Context, memberID string) (*domain.Member, error) {
	if memberID == "" || strings.HasPrefix(memberID, emailClaimPrefix) {
		return nil, fmt.Errorf("member not found: %w", domain.ErrNotFound)
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldMemberID, memberID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("member not found: %w", domain.ErrNotFound)
	}
	var m domain.Member
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return nil, fmt.Errorf("unmarshal member: %w", err)
	}
	return &m, nil
}

func (r *MemberRepo) GetByEmail(ctx context.Context, email string) (*domain.Member, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexEmail),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": fieldEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: email}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("member not found: %w", domain.ErrNotFound)
	}
	var m domain.Member
	if err := attributevalue.UnmarshalMap(out.Items[0], &m); err != nil {
		return nil, fmt.Errorf("unmarshal member: %w", err)
	}
	return &m, nil
}

// Create inserts a new member. It fails with domain.ErrMemberIDTaken when the
// id is already used and with domain.ErrConflict when the email is.
func (r *MemberRepo) Create(ctx context.Context, m *domain.Member) error {
	item, err := attributevalue.MarshalMap(m)
	if err != nil {
		return fmt.Errorf("marshal member: %w", err)
	}
	claim := map[string]types.AttributeValue{
		fieldMemberID: &types.AttributeValueMemberS{Value: emailClaimPrefix + m.Email},
		fieldOwner:    &types.AttributeValueMemberS{Value: m.MemberID},
	}
	notExists := aws.String("attribute_not_exists(" + fieldMemberID + ")")
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: item, ConditionExpression: notExists}},
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: claim, ConditionExpression: notExists}},
		},
	})
	if err == nil {
		return nil
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		reasons := tce.CancellationReasons
		if len(reasons) > 0 && aws.ToString(reasons[0].Code) == "ConditionalCheckFailed" {
			return fmt.Errorf("member %s: %w", m.MemberID, domain.ErrMemberIDTaken)
		}
		if len(reasons) > 1 && aws.ToString(reasons[1].Code) == "ConditionalCheckFailed" {
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
	}
	return err
}

// SetLoginChallenge replaces the member's pending login code.
func (r *MemberRepo) SetLoginChallenge(ctx context.Context, memberID string, c *domain.OTPChallenge) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldLoginChallenge: c,
		fieldUpdatedAt:      r.now().UTC(),
	})
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldMemberID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldMemberID, memberID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("member not found: %w", domain.ErrNotFound)
	}
	return err
}

// ClearLoginChallenge removes the login challenge only if it still carries
// expectedHash, so a code is consumed at most once even under concurrent
// verification. A lost race reports domain.ErrExpired.
func (r *MemberRepo) ClearLoginChallenge(ctx context.Context, memberID, expectedHash string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldUpdatedAt: r.now().UTC()}, fieldLoginChallenge)
	if err != nil {
		return err
	}
	ue.Names["#ch"] = fieldLoginChallenge
	ue.Names["#h"] = "hash"
	ue.Values[":h"] = &types.AttributeValueMemberS{Value: expectedHash}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldMemberID, memberID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#ch.#h = :h"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("login code already used: %w", domain.ErrExpired)
	}
	return err
}

// HighestIDWithPrefix returns the lexicographically greatest member id that
// starts with prefix, or ok=false when none exists.
func (r *MemberRepo) HighestIDWithPrefix(ctx context.Context, prefix string) (string, bool, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		IndexName:                aws.String(indexIDPrefix),
		KeyConditionExpression:   aws.String("#p = :p"),
		ExpressionAttributeNames: map[string]string{"#p": fieldIDPrefix, "#id": fieldMemberID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: prefix},
		},
		ProjectionExpression: aws.String("#id"),
		ScanIndexForward:     aws.Bool(false),
		Limit:                aws.Int32(1),
	})
	if err != nil {
		return "", false, err
	}
	if len(out.Items) == 0 {
		return "", false, nil
	}
	v, ok := out.Items[0][fieldMemberID].(*types.AttributeValueMemberS)
	if !ok {
		return "", false, fmt.Errorf("member id attribute missing on %s index", indexIDPrefix)
	}
	return v.Value, true, nil
}
