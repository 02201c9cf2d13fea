package aws

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

// translateErr maps SDK-specific error types onto the apperrors taxonomy (spec §7) so
// callers above the façade never branch on an AWS type directly.
func translateErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)

	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return apperrors.Wrap(apperrors.Conflict, err, "%s", msg)
	}
	var txCancelled *types.TransactionCanceledException
	if errors.As(err, &txCancelled) {
		return apperrors.Wrap(apperrors.Conflict, err, "%s", msg)
	}
	var notFound *s3types.NoSuchKey
	if errors.As(err, &notFound) {
		return apperrors.Wrap(apperrors.NotFound, err, "%s", msg)
	}
	var notFound2 *s3types.NotFound
	if errors.As(err, &notFound2) {
		return apperrors.Wrap(apperrors.NotFound, err, "%s", msg)
	}
	var dynNotFound *types.ResourceNotFoundException
	if errors.As(err, &dynNotFound) {
		return apperrors.Wrap(apperrors.NotFound, err, "%s", msg)
	}
	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughput) {
		return apperrors.Wrap(apperrors.Transient, err, "%s", msg)
	}
	var throttling *types.RequestLimitExceeded
	if errors.As(err, &throttling) {
		return apperrors.Wrap(apperrors.Transient, err, "%s", msg)
	}
	return apperrors.Wrap(apperrors.Transient, err, "%s", msg)
}
