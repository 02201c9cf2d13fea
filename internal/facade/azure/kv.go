package azure

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
)

// document is the Cosmos wire shape: "pk" is the partition key (the container's
// partition key path is "/pk"), "id" is the sort key, matching the DynamoDB PK/SK
// composite-key schema spec §4.1/§4.2 describe.
type document struct {
	ID         string         `json:"id"`
	PK         string         `json:"pk"`
	Attributes map[string]any `json:"attributes"`
}

// KV adapts a single Cosmos DB container to facade.KV.
type KV struct {
	Container *azcosmos.ContainerClient
}

func NewKV(container *azcosmos.ContainerClient) *KV {
	return &KV{Container: container}
}

func (k *KV) Put(ctx context.Context, item facade.Item, _ string) error {
	doc := document{ID: item.SK, PK: item.PK, Attributes: item.Attributes}
	body, err := json.Marshal(doc)
	if err != nil {
		return apperrors.Wrap(apperrors.Malformed, err, "marshal item %s/%s", item.PK, item.SK)
	}
	pk := azcosmos.NewPartitionKeyString(item.PK)
	_, err = k.Container.UpsertItem(ctx, pk, body, nil)
	return translateErr(err, "put %s/%s", item.PK, item.SK)
}

func (k *KV) Get(ctx context.Context, pk, sk string) (facade.Item, bool, error) {
	partitionKey := azcosmos.NewPartitionKeyString(pk)
	resp, err := k.Container.ReadItem(ctx, partitionKey, sk, nil)
	if err != nil {
		wrapped := translateErr(err, "get %s/%s", pk, sk)
		if apperrors.KindOf(wrapped) == apperrors.NotFound {
			return facade.Item{}, false, nil
		}
		return facade.Item{}, false, wrapped
	}
	var doc document
	if err := json.Unmarshal(resp.Value, &doc); err != nil {
		return facade.Item{}, false, apperrors.Wrap(apperrors.Malformed, err, "unmarshal item %s/%s", pk, sk)
	}
	return facade.Item{PK: doc.PK, SK: doc.ID, Attributes: doc.Attributes}, true, nil
}

func (k *KV) Delete(ctx context.Context, pk, sk string, _ string) error {
	partitionKey := azcosmos.NewPartitionKeyString(pk)
	_, err := k.Container.DeleteItem(ctx, partitionKey, sk, nil)
	return translateErr(err, "delete %s/%s", pk, sk)
}

func (k *KV) Query(ctx context.Context, in facade.QueryInput) ([]facade.Item, error) {
	query := "SELECT * FROM c WHERE c.pk = @pk"
	params := []azcosmos.QueryParameter{{Name: "@pk", Value: in.PK}}
	if in.SKPrefix != "" {
		query += " AND STARTSWITH(c.id, @skprefix)"
		params = append(params, azcosmos.QueryParameter{Name: "@skprefix", Value: in.SKPrefix})
	} else if in.SKGreaterEq != "" && in.SKLessEq != "" {
		query += " AND c.id >= @sklo AND c.id <= @skhi"
		params = append(params,
			azcosmos.QueryParameter{Name: "@sklo", Value: in.SKGreaterEq},
			azcosmos.QueryParameter{Name: "@skhi", Value: in.SKLessEq})
	}
	query += " ORDER BY c.id"

	pk := azcosmos.NewPartitionKeyString(in.PK)
	pager := k.Container.NewQueryItemsPager(query, pk, &azcosmos.QueryOptions{QueryParameters: params})

	var items []facade.Item
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, translateErr(err, "query %s", in.PK)
		}
		for _, raw := range page.Items {
			var doc document
			if err := json.Unmarshal(raw, &doc); err != nil {
				continue
			}
			items = append(items, facade.Item{PK: doc.PK, SK: doc.ID, Attributes: doc.Attributes})
			if in.Limit > 0 && len(items) >= in.Limit {
				return items, nil
			}
		}
	}
	return items, nil
}

// TransactWrite uses a Cosmos transactional batch, which (like a DynamoDB transaction)
// is scoped to a single partition key; spec §4.2's composite rows always share PK, so
// this holds for the catalog-commit and deployment-finalize call sites that need it.
func (k *KV) TransactWrite(ctx context.Context, writes []facade.Write, _ string) error {
	if len(writes) == 0 {
		return nil
	}
	pkValue := ""
	for _, w := range writes {
		switch {
		case w.Put != nil:
			pkValue = w.Put.PK
		case w.Delete != nil:
			pkValue = w.Delete.PK
		}
		if pkValue != "" {
			break
		}
	}
	pk := azcosmos.NewPartitionKeyString(pkValue)
	batch := k.Container.NewTransactionalBatch(pk)

	for _, w := range writes {
		switch {
		case w.Put != nil:
			doc := document{ID: w.Put.SK, PK: w.Put.PK, Attributes: w.Put.Attributes}
			body, err := json.Marshal(doc)
			if err != nil {
				return apperrors.Wrap(apperrors.Malformed, err, "marshal item %s/%s", w.Put.PK, w.Put.SK)
			}
			if w.ConditionAttribute != "" && w.ConditionAbsent {
				batch.CreateItem(body, nil)
			} else {
				batch.UpsertItem(body, nil)
			}
		case w.Delete != nil:
			batch.DeleteItem(w.Delete.SK, nil)
		}
	}

	resp, err := k.Container.ExecuteTransactionalBatch(ctx, batch, nil)
	if err != nil {
		return translateErr(err, "transact write (%d ops)", len(writes))
	}
	if !resp.Success {
		return apperrors.New(apperrors.Conflict, "transactional batch rejected (%d ops)", len(writes))
	}
	return nil
}

func (k *KV) ConditionalUpdate(ctx context.Context, pk, sk, attribute string, expect, next any) error {
	current, found, err := k.Get(ctx, pk, sk)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.New(apperrors.NotFound, "no item %s/%s", pk, sk)
	}
	if fmt.Sprint(current.Attributes[attribute]) != fmt.Sprint(expect) {
		return apperrors.New(apperrors.Conflict, "conditional update %s/%s.%s: expectation mismatch", pk, sk, attribute)
	}
	current.Attributes[attribute] = next
	return k.Put(ctx, current, "")
}
