// Package router implements the uniform request envelope and dispatcher of spec §4.6:
// the HTTP transport (used by the CLI and the load tester) and direct invocation produce
// the same `{event, payload}` envelope, which one Router authenticates, scopes to a
// project, and dispatches to the handler bound to that event. The GitOps ingester and
// the k8s operator adapter do not use the router; they call App.RunClaim directly.
package router

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/metrics"
	"github.com/infraweave-io/control-plane/internal/router/authn"
)

// Envelope is the request shape shared by every adapter (spec §4.6, §6).
type Envelope struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// ErrorBody is the error shape of spec §6's response envelope.
type ErrorBody struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

// Response is the uniform response shape of spec §6: `{ok, data?, error?}`.
type Response struct {
	OK    bool        `json:"ok"`
	Data  any         `json:"data,omitempty"`
	Error *ErrorBody  `json:"error,omitempty"`
}

// Handler processes one event's payload for an already-authenticated, project-scoped
// caller and returns the data to place in Response.Data.
type Handler func(ctx context.Context, caller authn.Identity, payload map[string]any) (any, error)

// events that do not require a project scope in the payload (spec §4.6 lists
// catalog-read and meta-style operations that are not scoped to one deployment).
var unscopedEvents = map[string]bool{
	"publish_module":  true,
	"publish_stack":   true,
	"publish_provider": true,
	"list_modules":    true,
	"list_stacks":     true,
	"list_providers":  true,
	"get_module_version": true,
	"get_stack_version": true,
	"get_provider_version": true,
	"download_module": true,
}

// Router dispatches envelopes to registered handlers (spec §4.6).
type Router struct {
	authenticator *authn.Authenticator
	handlers      map[string]Handler
	logger        *zap.Logger
}

func New(authenticator *authn.Authenticator, logger *zap.Logger) *Router {
	return &Router{authenticator: authenticator, handlers: make(map[string]Handler), logger: logger}
}

// Register binds a Handler to an event name. Panics on duplicate registration, since
// that is a startup-time programming error, not a runtime condition.
func (r *Router) Register(event string, h Handler) {
	if _, exists := r.handlers[event]; exists {
		panic("router: duplicate handler for event " + event)
	}
	r.handlers[event] = h
}

// Dispatch authenticates rawToken, resolves the target project from payload, checks
// the caller's token scope against it, and invokes the bound handler — the single path
// shared by both the HTTP and direct-invocation transports (spec §4.6, §9 Open
// Question: "implementations should keep a single handler and accept both").
func (r *Router) Dispatch(ctx context.Context, rawToken string, env Envelope) Response {
	data, err := r.dispatch(ctx, rawToken, env)
	outcome := "ok"
	if err != nil {
		outcome = string(apperrors.KindOf(err))
	}
	metrics.RouterRequestsTotal.WithLabelValues(env.Event, outcome).Inc()

	if err != nil {
		return errorResponse(err)
	}
	return Response{OK: true, Data: data}
}

func (r *Router) dispatch(ctx context.Context, rawToken string, env Envelope) (any, error) {
	handler, ok := r.handlers[env.Event]
	if !ok {
		return nil, apperrors.New(apperrors.Malformed, "unknown event %q", env.Event)
	}

	caller, err := r.authenticator.Authenticate(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	if !unscopedEvents[env.Event] {
		project, _ := env.Payload["project"].(string)
		if project == "" {
			return nil, apperrors.New(apperrors.Malformed, "payload for event %q requires a project", env.Event)
		}
		if !caller.HasProject(project) {
			return nil, apperrors.New(apperrors.Forbidden, "caller %s is not scoped to project %q", caller.Subject, project)
		}
	}

	data, err := handler(ctx, caller, env.Payload)
	if err != nil && r.logger != nil {
		r.logger.Warn("handler failed", zap.String("event", env.Event), zap.Error(err))
	}
	return data, err
}

func errorResponse(err error) Response {
	kind := apperrors.KindOf(err)
	message := err.Error()
	if !apperrors.UserVisible(err) {
		message = "an internal error occurred; see the event log for details"
	}
	return Response{OK: false, Error: &ErrorBody{Kind: kind, Message: message}}
}

// BearerToken extracts a raw JWT from an `Authorization: Bearer <token>` header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimPrefix(header, prefix)
	}
	return ""
}
