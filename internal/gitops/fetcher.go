package gitops

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

// httpFetchTimeout bounds every raw-content request (spec §5 "every network operation
// has a bounded timeout").
const httpFetchTimeout = 30 * time.Second

// GitHubFetcher retrieves manifest file content from GitHub's raw-content endpoint. No
// pack dependency wraps a git hosting provider's content API, so this is implemented
// directly against net/http rather than introducing an otherwise-unused SDK for one
// call site.
type GitHubFetcher struct {
	Token   string
	BaseURL string // defaults to https://raw.githubusercontent.com
}

func NewGitHubFetcher(token string) *GitHubFetcher {
	return &GitHubFetcher{Token: token, BaseURL: "https://raw.githubusercontent.com"}
}

// FetchFile satisfies FileFetcher.
func (f *GitHubFetcher) FetchFile(ctx context.Context, repo, commitSHA, path string) ([]byte, error) {
	base := f.BaseURL
	if base == "" {
		base = "https://raw.githubusercontent.com"
	}
	url := fmt.Sprintf("%s/%s/%s/%s", base, repo, commitSHA, path)

	fetchCtx, cancel := context.WithTimeout(ctx, httpFetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Malformed, err, "build raw-content request for %s", path)
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "token "+f.Token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Transient, err, "fetch %s at %s", path, commitSHA)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.New(apperrors.NotFound, "%s not found at %s in %s", path, commitSHA, repo)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New(apperrors.Transient, "raw-content fetch for %s returned %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Transient, err, "read body for %s", path)
	}
	return body, nil
}
