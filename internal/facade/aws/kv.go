// Package aws implements the cloud-capability façade (spec §4.1) for AWS: DynamoDB
// backs KV, S3 backs Object, ECS Fargate tasks back Exec, S3-object log chunks back
// Logs, and SNS backs Notify.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
)

// KV adapts a single DynamoDB table (partition key "PK", sort key "SK") to facade.KV.
// Secondary indexes are GSIs named after QueryInput.IndexName.
type KV struct {
	Client    *dynamodb.Client
	TableName string
}

func NewKV(client *dynamodb.Client, tableName string) *KV {
	return &KV{Client: client, TableName: tableName}
}

func itemToAV(item facade.Item) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(item.Attributes)
	if err != nil {
		return nil, err
	}
	pk, err := attributevalue.Marshal(item.PK)
	if err != nil {
		return nil, err
	}
	sk, err := attributevalue.Marshal(item.SK)
	if err != nil {
		return nil, err
	}
	av["PK"] = pk
	av["SK"] = sk
	return av, nil
}

func avToItem(av map[string]types.AttributeValue) (facade.Item, error) {
	var item facade.Item
	if err := attributevalue.Unmarshal(av["PK"], &item.PK); err != nil {
		return item, err
	}
	if err := attributevalue.Unmarshal(av["SK"], &item.SK); err != nil {
		return item, err
	}
	attrs := map[string]any{}
	for k, v := range av {
		if k == "PK" || k == "SK" {
			continue
		}
		var dst any
		if err := attributevalue.Unmarshal(v, &dst); err != nil {
			continue
		}
		attrs[k] = dst
	}
	item.Attributes = attrs
	return item, nil
}

func (k *KV) Put(ctx context.Context, item facade.Item, operationID string) error {
	av, err := itemToAV(item)
	if err != nil {
		return apperrors.Wrap(apperrors.Malformed, err, "marshal item %s/%s", item.PK, item.SK)
	}
	input := &dynamodb.PutItemInput{TableName: aws.String(k.TableName), Item: av}
	if operationID != "" {
		input.ExpressionAttributeValues = map[string]types.AttributeValue{":op": &types.AttributeValueMemberS{Value: operationID}}
	}
	_, err = k.Client.PutItem(ctx, input)
	return translateErr(err, "put %s/%s", item.PK, item.SK)
}

func (k *KV) Get(ctx context.Context, pk, sk string) (facade.Item, bool, error) {
	out, err := k.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(k.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return facade.Item{}, false, translateErr(err, "get %s/%s", pk, sk)
	}
	if out.Item == nil {
		return facade.Item{}, false, nil
	}
	item, err := avToItem(out.Item)
	return item, true, err
}

func (k *KV) Delete(ctx context.Context, pk, sk string, _ string) error {
	_, err := k.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(k.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	return translateErr(err, "delete %s/%s", pk, sk)
}

func (k *KV) Query(ctx context.Context, in facade.QueryInput) ([]facade.Item, error) {
	keyCond := "PK = :pk"
	values := map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: in.PK}}
	if in.SKPrefix != "" {
		keyCond += " AND begins_with(SK, :skprefix)"
		values[":skprefix"] = &types.AttributeValueMemberS{Value: in.SKPrefix}
	} else if in.SKGreaterEq != "" && in.SKLessEq != "" {
		keyCond += " AND SK BETWEEN :sklo AND :skhi"
		values[":sklo"] = &types.AttributeValueMemberS{Value: in.SKGreaterEq}
		values[":skhi"] = &types.AttributeValueMemberS{Value: in.SKLessEq}
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(k.TableName),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeValues: values,
	}
	if in.IndexName != "" {
		input.IndexName = aws.String(in.IndexName)
	}
	if in.Limit > 0 {
		input.Limit = aws.Int32(int32(in.Limit))
	}

	out, err := k.Client.Query(ctx, input)
	if err != nil {
		return nil, translateErr(err, "query %s", in.PK)
	}
	items := make([]facade.Item, 0, len(out.Items))
	for _, raw := range out.Items {
		item, err := avToItem(raw)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// TransactWrite issues a single DynamoDB TransactWriteItems call, translating a
// cancellation with any condition-check failure into apperrors.Conflict (spec §4.1/§4.2).
func (k *KV) TransactWrite(ctx context.Context, writes []facade.Write, _ string) error {
	items := make([]types.TransactWriteItem, 0, len(writes))
	for _, w := range writes {
		switch {
		case w.Put != nil:
			av, err := itemToAV(*w.Put)
			if err != nil {
				return apperrors.Wrap(apperrors.Malformed, err, "marshal item %s/%s", w.Put.PK, w.Put.SK)
			}
			put := &types.Put{TableName: aws.String(k.TableName), Item: av}
			if w.ConditionAttribute != "" {
				if w.ConditionAbsent {
					put.ConditionExpression = aws.String(fmt.Sprintf("attribute_not_exists(%s)", w.ConditionAttribute))
				} else {
					put.ConditionExpression = aws.String(fmt.Sprintf("%s = :cond", w.ConditionAttribute))
					cv, err := attributevalue.Marshal(w.ConditionValue)
					if err != nil {
						return apperrors.Wrap(apperrors.Malformed, err, "marshal condition value")
					}
					put.ExpressionAttributeValues = map[string]types.AttributeValue{":cond": cv}
				}
			}
			items = append(items, types.TransactWriteItem{Put: put})
		case w.Delete != nil:
			del := &types.Delete{
				TableName: aws.String(k.TableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: w.Delete.PK},
					"SK": &types.AttributeValueMemberS{Value: w.Delete.SK},
				},
			}
			items = append(items, types.TransactWriteItem{Delete: del})
		}
	}

	_, err := k.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	return translateErr(err, "transact write (%d ops)", len(items))
}

func (k *KV) ConditionalUpdate(ctx context.Context, pk, sk, attribute string, expect, next any) error {
	expectAV, err := attributevalue.Marshal(expect)
	if err != nil {
		return apperrors.Wrap(apperrors.Malformed, err, "marshal expect value")
	}
	nextAV, err := attributevalue.Marshal(next)
	if err != nil {
		return apperrors.Wrap(apperrors.Malformed, err, "marshal next value")
	}
	_, err = k.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(k.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
		UpdateExpression:          aws.String(fmt.Sprintf("SET %s = :next", attribute)),
		ConditionExpression:       aws.String(fmt.Sprintf("%s = :expect", attribute)),
		ExpressionAttributeValues: map[string]types.AttributeValue{":next": nextAV, ":expect": expectAV},
	})
	return translateErr(err, "conditional update %s/%s.%s", pk, sk, attribute)
}
