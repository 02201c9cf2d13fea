package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/infraweave-io/control-plane/internal/router"
)

// client talks to a control plane's single dispatch envelope endpoint (spec §6,
// §9 Open Question resolved: one handler accepts both HTTP and direct invocation),
// so the CLI carries no parallel REST routing table of its own.
type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient(baseURL, token string) *client {
	return &client{baseURL: baseURL, token: token, http: &http.Client{Timeout: 60 * time.Second}}
}

// dispatch posts {event, payload} to /api/v1/dispatch and decodes the {ok, data, error}
// response envelope, surfacing a cliError so main can map it to an exit code.
func (c *client) dispatch(ctx context.Context, event string, payload map[string]any) (any, error) {
	body, err := json.Marshal(router.Envelope{Event: event, Payload: payload})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/dispatch", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &cliError{exitCode: exitBackendTransient, cause: err}
	}
	defer resp.Body.Close()

	var env router.Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &cliError{exitCode: exitBackendTransient, cause: fmt.Errorf("decode response: %w", err)}
	}
	if !env.OK {
		return nil, errorFromEnvelope(env)
	}
	return env.Data, nil
}
