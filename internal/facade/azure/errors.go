// Package azure implements the cloud-capability façade (spec §4.1) for Azure:
// Cosmos DB backs KV, Blob Storage backs Object, Container Apps Jobs back Exec, and
// Blob-backed log chunks back Logs, mirroring the AWS variant's service mapping.
package azure

import (
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

// translateErr maps azcore.ResponseError status codes onto the apperrors taxonomy the
// same way the AWS variant maps SDK exception types, so callers stay cloud-agnostic.
func translateErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case 404:
			return apperrors.Wrap(apperrors.NotFound, err, "%s", msg)
		case 409, 412:
			return apperrors.Wrap(apperrors.Conflict, err, "%s", msg)
		case 429:
			return apperrors.Wrap(apperrors.Transient, err, "%s", msg)
		case 401:
			return apperrors.Wrap(apperrors.Unauthenticated, err, "%s", msg)
		case 403:
			return apperrors.Wrap(apperrors.Forbidden, err, "%s", msg)
		}
	}
	return apperrors.Wrap(apperrors.Transient, err, "%s", msg)
}
