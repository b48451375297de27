package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// API is the subset of *dynamodb.Client the repos use.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts set (field->value) and remove (field names) into a
// DynamoDB update expression. Fields are sorted so the output is deterministic.
func buildUpdateExpr(set map[string]interface{}, remove ...string) (updateExpr, error) {
	ue := updateExpr{
		Names:  make(map[string]string),
		Values: make(map[string]types.AttributeValue),
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []string
	if len(keys) > 0 {
		parts := make([]string, 0, len(keys))
		for i, k := range keys {
			nameKey := fmt.Sprintf("#f%d", i)
			valueKey := fmt.Sprintf(":v%d", i)
			av, err := attributevalue.Marshal(set[k])
			if err != nil {
				return updateExpr{}, fmt.Errorf("marshal field %s: %w", k, err)
			}
			ue.Names[nameKey] = k
			ue.Values[valueKey] = av
			parts = append(parts, nameKey+" = "+valueKey)
		}
		clauses = append(clauses, "SET "+strings.Join(parts, ", "))
	}
	if len(remove) > 0 {
		sorted := append([]string(nil), remove...)
		sort.Strings(sorted)
		parts := make([]string, 0, len(sorted))
		for i, k := range sorted {
			nameKey := fmt.Sprintf("#r%d", i)
			ue.Names[nameKey] = k
			parts = append(parts, nameKey)
		}
		clauses = append(clauses, "REMOVE "+strings.Join(parts, ", "))
	}
	if len(clauses) == 0 {
		return updateExpr{}, fmt.Errorf("no fields to update")
	}
	ue.Expr = strings.Join(clauses, " ")
	if len(ue.Values) == 0 {
		ue.Values = nil
	}
	return ue, nil
}
