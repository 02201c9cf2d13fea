// Package gitops implements the GitOps webhook ingester of spec §4.7: validates the
// webhook signature, parses the inbound commit, locates touched claim manifest files,
// and invokes run_claim for each as the committer's identity projected onto the
// project token.
package gitops

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/manifest"
)

// Commit is the subset of a push-event payload the ingester needs.
type Commit struct {
	ID        string   `json:"id"`
	Author    Author   `json:"author"`
	Added     []string `json:"added"`
	Modified  []string `json:"modified"`
	Removed   []string `json:"removed"`
}

type Author struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// PushEvent is the webhook body shape this ingester accepts (GitHub/GitLab push-event
// compatible subset: repository name plus a commits array).
type PushEvent struct {
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Commits []Commit `json:"commits"`
}

// FileFetcher retrieves a manifest file's raw content at a given commit, abstracting
// over the git hosting provider's content API.
type FileFetcher interface {
	FetchFile(ctx context.Context, repo, commitSHA, path string) ([]byte, error)
}

// ClaimRunner is satisfied by app.App.RunClaim; kept narrow so gitops never imports
// internal/app or the router package directly (spec §9).
type ClaimRunner interface {
	RunClaim(ctx context.Context, committer, commitSHA, repo, project string, claim *manifest.Claim) error
}

// Ingester validates and processes inbound GitOps push webhooks.
type Ingester struct {
	Secret  string
	Fetcher FileFetcher
	Runner  ClaimRunner
}

func New(secret string, fetcher FileFetcher, runner ClaimRunner) *Ingester {
	return &Ingester{Secret: secret, Fetcher: fetcher, Runner: runner}
}

// VerifySignature checks an `X-Hub-Signature-256`-style header (`sha256=<hex hmac>`)
// against body using the ingester's shared secret (spec §4.7 "HMAC-SHA256").
func (g *Ingester) VerifySignature(body []byte, signatureHeader string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(signatureHeader, prefix) {
		return false
	}
	expected := hmac.New(sha256.New, []byte(g.Secret))
	expected.Write(body)
	want := hex.EncodeToString(expected.Sum(nil))
	got := strings.TrimPrefix(signatureHeader, prefix)
	return hmac.Equal([]byte(want), []byte(got))
}

// Process validates body against signatureHeader, parses the push event, and invokes
// run_claim for every touched manifest file across every commit.
func (g *Ingester) Process(ctx context.Context, body []byte, signatureHeader string) error {
	if !g.VerifySignature(body, signatureHeader) {
		return apperrors.New(apperrors.Unauthenticated, "webhook signature validation failed")
	}

	var event PushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperrors.Wrap(apperrors.Malformed, err, "parse push event body")
	}

	for _, commit := range event.Commits {
		for _, path := range touchedManifestPaths(commit) {
			if err := g.processFile(ctx, event.Repository.FullName, commit, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Ingester) processFile(ctx context.Context, repo string, commit Commit, path string) error {
	raw, err := g.Fetcher.FetchFile(ctx, repo, commit.ID, path)
	if err != nil {
		return err
	}
	claim, err := manifest.ParseClaim(raw)
	if err != nil {
		return err
	}
	committer := commit.Author.Username
	if committer == "" {
		committer = commit.Author.Email
	}
	// gitops has no per-request project scope of its own (the whole repo is trusted via
	// the webhook secret); "" lets RunClaim fall back to the claim's own namespace.
	return g.Runner.RunClaim(ctx, committer, commit.ID, repo, "", claim)
}

// touchedManifestPaths returns every added/modified path that looks like a claim
// manifest; removed files have no manifest content left to resolve against.
func touchedManifestPaths(c Commit) []string {
	var paths []string
	for _, p := range append(append([]string{}, c.Added...), c.Modified...) {
		if isManifestPath(p) {
			paths = append(paths, p)
		}
	}
	return paths
}

func isManifestPath(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}
