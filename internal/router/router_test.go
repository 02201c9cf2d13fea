package router

import (
	"context"
	"testing"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/router/authn"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	a, err := authn.New(authn.Options{Insecure: true})
	if err != nil {
		t.Fatalf("new authn: %v", err)
	}
	return New(a, nil)
}

func TestDispatchUnknownEvent(t *testing.T) {
	r := newTestRouter(t)
	resp := r.Dispatch(context.Background(), "", Envelope{Event: "no_such_event"})
	if resp.OK {
		t.Fatal("expected failure for unknown event")
	}
	if resp.Error.Kind != apperrors.Malformed {
		t.Fatalf("expected Malformed, got %s", resp.Error.Kind)
	}
}

func TestDispatchRequiresProjectForScopedEvents(t *testing.T) {
	r := newTestRouter(t)
	r.Register("get_deployment", func(context.Context, authn.Identity, map[string]any) (any, error) {
		return map[string]any{"status": "Ready"}, nil
	})

	resp := r.Dispatch(context.Background(), "", Envelope{Event: "get_deployment", Payload: map[string]any{}})
	if resp.OK {
		t.Fatal("expected failure for missing project in payload")
	}
	if resp.Error.Kind != apperrors.Malformed {
		t.Fatalf("expected Malformed, got %s", resp.Error.Kind)
	}
}

func TestDispatchSucceedsForScopedEventWithProject(t *testing.T) {
	r := newTestRouter(t)
	var gotProject string
	r.Register("get_deployment", func(_ context.Context, _ authn.Identity, payload map[string]any) (any, error) {
		gotProject, _ = payload["project"].(string)
		return map[string]any{"status": "Ready"}, nil
	})

	resp := r.Dispatch(context.Background(), "", Envelope{Event: "get_deployment", Payload: map[string]any{"project": "p1"}})
	if !resp.OK {
		t.Fatalf("expected success, got error %+v", resp.Error)
	}
	if gotProject != "p1" {
		t.Fatalf("expected handler to observe project p1, got %q", gotProject)
	}
}

func TestDispatchUnscopedEventNeedsNoProject(t *testing.T) {
	r := newTestRouter(t)
	r.Register("list_modules", func(context.Context, authn.Identity, map[string]any) (any, error) {
		return []string{"S3Bucket"}, nil
	})

	resp := r.Dispatch(context.Background(), "", Envelope{Event: "list_modules"})
	if !resp.OK {
		t.Fatalf("expected success, got error %+v", resp.Error)
	}
}

func TestDispatchSanitizesNonUserVisibleErrors(t *testing.T) {
	r := newTestRouter(t)
	r.Register("list_modules", func(context.Context, authn.Identity, map[string]any) (any, error) {
		return nil, apperrors.New(apperrors.Transient, "dynamodb throttled: table-secret-arn leaked-in-message")
	})

	resp := r.Dispatch(context.Background(), "", Envelope{Event: "list_modules"})
	if resp.OK {
		t.Fatal("expected failure")
	}
	if resp.Error.Message == "dynamodb throttled: table-secret-arn leaked-in-message" {
		t.Fatal("expected backend error message to be sanitized for the caller")
	}
}

func TestBearerToken(t *testing.T) {
	if got := BearerToken("Bearer abc.def.ghi"); got != "abc.def.ghi" {
		t.Fatalf("expected token extraction, got %q", got)
	}
	if got := BearerToken("Basic abc"); got != "" {
		t.Fatalf("expected empty token for non-bearer header, got %q", got)
	}
}
