package local

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
)

func TestKVStorePutGetRoundTrip(t *testing.T) {
	store := NewKVStore()
	ctx := context.Background()

	err := store.Put(ctx, facade.Item{PK: "MODULE#s3-bucket", SK: "1.0.0", Attributes: map[string]any{"deprecated": false}}, "op-1")
	require.NoError(t, err)

	item, found, err := store.Get(ctx, "MODULE#s3-bucket", "1.0.0")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, false, item.Attributes["deprecated"])
}

func TestKVStorePutIsIdempotentPerOperationID(t *testing.T) {
	store := NewKVStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, facade.Item{PK: "PK", SK: "SK", Attributes: map[string]any{"v": 1}}, "op-1"))
	require.NoError(t, store.Put(ctx, facade.Item{PK: "PK", SK: "SK", Attributes: map[string]any{"v": 2}}, "op-1"))

	item, _, err := store.Get(ctx, "PK", "SK")
	require.NoError(t, err)
	require.Equal(t, 1, item.Attributes["v"])
}

func TestKVStoreTransactWriteFailsWholeBatchOnConditionMismatch(t *testing.T) {
	store := NewKVStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, facade.Item{PK: "LOCK#a", SK: "-", Attributes: map[string]any{"owner": "job-1"}}, "seed"))

	err := store.TransactWrite(ctx, []facade.Write{
		{Put: &facade.Item{PK: "LOCK#a", SK: "-", Attributes: map[string]any{"owner": "job-2"}},
			ConditionAttribute: "owner", ConditionValue: "wrong-owner"},
	}, "op-2")
	require.Error(t, err)
	require.Equal(t, apperrors.Conflict, apperrors.KindOf(err))

	item, _, _ := store.Get(ctx, "LOCK#a", "-")
	require.Equal(t, "job-1", item.Attributes["owner"], "the mismatched write must not have applied")
}

func TestKVStoreConditionalUpdateRejectsStaleExpectation(t *testing.T) {
	store := NewKVStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, facade.Item{PK: "PK", SK: "SK", Attributes: map[string]any{"status": "running"}}, "seed"))

	err := store.ConditionalUpdate(ctx, "PK", "SK", "status", "done", "failed")
	require.Error(t, err)
	require.Equal(t, apperrors.Conflict, apperrors.KindOf(err))

	err = store.ConditionalUpdate(ctx, "PK", "SK", "status", "running", "done")
	require.NoError(t, err)

	item, _, _ := store.Get(ctx, "PK", "SK")
	require.Equal(t, "done", item.Attributes["status"])
}

func TestObjectStorePutGetRoundTrip(t *testing.T) {
	obj := NewObjectStore(afero.NewMemMapFs(), "/objects", "http://localhost/objects")
	ctx := context.Background()

	require.NoError(t, obj.Put(ctx, "/modules/stable/s3-bucket/1.0.0/src.zip", []byte("zip-bytes")))

	exists, err := obj.Exists(ctx, "/modules/stable/s3-bucket/1.0.0/src.zip")
	require.NoError(t, err)
	require.True(t, exists)

	body, err := obj.Get(ctx, "/modules/stable/s3-bucket/1.0.0/src.zip")
	require.NoError(t, err)
	require.Equal(t, []byte("zip-bytes"), body)
}

func TestObjectStoreGetMissingReturnsNotFound(t *testing.T) {
	obj := NewObjectStore(afero.NewMemMapFs(), "/objects", "http://localhost/objects")
	_, err := obj.Get(context.Background(), "/modules/stable/missing/1.0.0/src.zip")
	require.Error(t, err)
	require.Equal(t, apperrors.NotFound, apperrors.KindOf(err))
}

func TestObjectStorePresignURLsCarryOperationAndExpiry(t *testing.T) {
	obj := NewObjectStore(afero.NewMemMapFs(), "/objects", "http://localhost/objects")
	ctx := context.Background()

	getURL, err := obj.PresignGet(ctx, "/x.zip", 0)
	require.NoError(t, err)
	require.Contains(t, getURL, "op=get")
	require.Contains(t, getURL, "&exp=")

	putURL, err := obj.PresignPut(ctx, "/x.zip", 0)
	require.NoError(t, err)
	require.Contains(t, putURL, "op=put")
	require.Contains(t, putURL, "&exp=")
}
