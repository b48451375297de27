package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/member-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockAPI struct{ mock.Mock }

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}
func (m *mockAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

func sampleMember() *domain.Member {
	return &domain.Member{
		MemberID:  "A0101",
		IDPrefix:  "A01",
		FullName:  "Alice Doe",
		Email:     "alice@example.com",
		Contact:   "+15550100",
		BirthDate: time.Date(2001, 3, 4, 0, 0, 0, 0, time.UTC),
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func cancelled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, c := range codes {
		reasons[i] = types.CancellationReason{Code: aws.String(c)}
	}
	return &types.TransactionCanceledException{CancellationReasons: reasons}
}

// --- Get / GetByEmail ---

func TestMemberRepo_Get_RoundTripsChallenge(t *testing.T) {
	m := sampleMember()
	m.LoginChallenge = &domain.OTPChallenge{Hash: "h", ExpiresAt: time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)}
	item, err := attributevalue.MarshalMap(m)
	require.NoError(t, err)

	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return in.Key[fieldMemberID].(*types.AttributeValueMemberS).Value == "A0101"
	})).Return(&dynamodb.GetItemOutput{Item: item}, nil)

	got, err := NewMemberRepo(api, "members").Get(context.Background(), "A0101")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
	require.NotNil(t, got.LoginChallenge)
	assert.Equal(t, "h", got.LoginChallenge.Hash)
}

func TestMemberRepo_Get_NotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := NewMemberRepo(api, "members").Get(context.Background(), "Z9999")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestMemberRepo_Get_RefusesClaimKeys(t *testing.T) {
	api := &mockAPI{}
	_, err := NewMemberRepo(api, "members").Get(context.Background(), "email#alice@example.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	api.AssertNotCalled(t, "GetItem", mock.Anything, mock.Anything)
}

func TestMemberRepo_GetByEmail_UsesIndex(t *testing.T) {
	item, err := attributevalue.MarshalMap(sampleMember())
	require.NoError(t, err)

	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return aws.ToString(in.IndexName) == indexEmail
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil)

	got, err := NewMemberRepo(api, "members").GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "A0101", got.MemberID)
}

func TestMemberRepo_GetByEmail_NotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	_, err := NewMemberRepo(api, "members").GetByEmail(context.Background(), "nobody@example.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// --- Create ---

func TestMemberRepo_Create_WritesMemberAndEmailClaim(t *testing.T) {
	api := &mockAPI{}
	var captured *dynamodb.TransactWriteItemsInput
	api.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*dynamodb.TransactWriteItemsInput) }).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	require.NoError(t, NewMemberRepo(api, "members").Create(context.Background(), sampleMember()))

	require.NotNil(t, captured)
	require.Len(t, captured.TransactItems, 2)
	claim := captured.TransactItems[1].Put.Item
	assert.Equal(t, "email#alice@example.com", claim[fieldMemberID].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "A0101", claim[fieldOwner].(*types.AttributeValueMemberS).Value)
	for _, ti := range captured.TransactItems {
		assert.Equal(t, "attribute_not_exists(member_id)", aws.ToString(ti.Put.ConditionExpression))
	}
}

func TestMemberRepo_Create_IDCollision(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, cancelled("ConditionalCheckFailed", "None"))

	err := NewMemberRepo(api, "members").Create(context.Background(), sampleMember())
	assert.True(t, errors.Is(err, domain.ErrMemberIDTaken))
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestMemberRepo_Create_EmailCollision(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, cancelled("None", "ConditionalCheckFailed"))

	err := NewMemberRepo(api, "members").Create(context.Background(), sampleMember())
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.False(t, errors.Is(err, domain.ErrMemberIDTaken))
}

// --- login challenge ---

func TestMemberRepo_SetLoginChallenge(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return aws.ToString(in.UpdateExpression) == "SET #f0 = :v0, #f1 = :v1" &&
			in.ExpressionAttributeNames["#f0"] == fieldLoginChallenge &&
			aws.ToString(in.ConditionExpression) == "attribute_exists(#pk)"
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	err := NewMemberRepo(api, "members").SetLoginChallenge(context.Background(), "A0101",
		&domain.OTPChallenge{Hash: "h", ExpiresAt: time.Now().Add(time.Minute)})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestMemberRepo_ClearLoginChallenge_Conditional(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		h, _ := in.ExpressionAttributeValues[":h"].(*types.AttributeValueMemberS)
		return aws.ToString(in.UpdateExpression) == "SET #f0 = :v0 REMOVE #r0" &&
			aws.ToString(in.ConditionExpression) == "#ch.#h = :h" &&
			h != nil && h.Value == "h1"
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	require.NoError(t, NewMemberRepo(api, "members").ClearLoginChallenge(context.Background(), "A0101", "h1"))
	api.AssertExpectations(t)
}

func TestMemberRepo_ClearLoginChallenge_AlreadyConsumed(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	err := NewMemberRepo(api, "members").ClearLoginChallenge(context.Background(), "A0101", "h1")
	assert.True(t, errors.Is(err, domain.ErrExpired))
}

// --- HighestIDWithPrefix ---

func TestMemberRepo_HighestIDWithPrefix(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return aws.ToString(in.IndexName) == indexIDPrefix &&
			!aws.ToBool(in.ScanIndexForward) &&
			aws.ToInt32(in.Limit) == 1
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		{fieldMemberID: &types.AttributeValueMemberS{Value: "A0107"}},
	}}, nil)

	got, ok, err := NewMemberRepo(api, "members").HighestIDWithPrefix(context.Background(), "A01")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A0107", got)
}

func TestMemberRepo_HighestIDWithPrefix_None(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	_, ok, err := NewMemberRepo(api, "members").HighestIDWithPrefix(context.Background(), "A01")
	require.NoError(t, err)
	assert.False(t, ok)
}
