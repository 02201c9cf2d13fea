// Package facade defines the cloud-capability set (spec §4.1) that the rest of the
// control plane consumes. One Capability is selected at process start from a runtime
// discriminant; callers never branch on cloud identity themselves.
package facade

import (
	"context"
	"time"
)

// Runtime selects which capability implementation a process wires at startup.
type Runtime string

const (
	AWS   Runtime = "AWS"
	Azure Runtime = "Azure"
	Local Runtime = "Local"
)

// Item is a single KV row. PK/SK are opaque composite strings (e.g. "MODULE#stable#s3-bucket").
type Item struct {
	PK         string
	SK         string
	Attributes map[string]any
}

// QueryInput selects rows by partition key with an optional sort-key range predicate
// and an optional secondary index name.
type QueryInput struct {
	PK           string
	SKPrefix     string
	SKGreaterEq  string
	SKLessEq     string
	IndexName    string
	Limit        int
}

// Write is one mutation inside a TransactWrite batch.
type Write struct {
	Put                *Item
	Delete             *Item
	ConditionAttribute string // attribute that must currently be absent/equal to ConditionValue
	ConditionValue     any
	ConditionAbsent    bool
}

// KV is the composite-key catalog/registry store (spec §4.1).
type KV interface {
	Put(ctx context.Context, item Item, operationID string) error
	Get(ctx context.Context, pk, sk string) (Item, bool, error)
	Delete(ctx context.Context, pk, sk string, operationID string) error
	Query(ctx context.Context, in QueryInput) ([]Item, error)
	TransactWrite(ctx context.Context, writes []Write, operationID string) error
	ConditionalUpdate(ctx context.Context, pk, sk, attribute string, expect, next any) error
}

// Object is the blob/artifact store (spec §4.1).
type Object interface {
	Put(ctx context.Context, path string, body []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	PresignGet(ctx context.Context, path string, ttl time.Duration) (string, error)
	PresignPut(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// ExecStatus is the lifecycle state of a launched job container.
type ExecStatus string

const (
	ExecPending   ExecStatus = "pending"
	ExecRunning   ExecStatus = "running"
	ExecSucceeded ExecStatus = "succeeded"
	ExecFailed    ExecStatus = "failed"
	ExecLost      ExecStatus = "lost"
)

// ExecStartInput describes one container launch.
type ExecStartInput struct {
	JobID       string
	Image       string
	Env         map[string]string
	OperationID string
}

// JobHandle is an opaque reference returned by Exec.Start; its shape is
// implementation-specific (ECS task ARN, Container App job execution name, PID).
type JobHandle string

// Exec launches one container per job (spec §4.1, §4.4).
type Exec interface {
	Start(ctx context.Context, in ExecStartInput) (JobHandle, error)
	Status(ctx context.Context, handle JobHandle) (ExecStatus, error)
	Stop(ctx context.Context, handle JobHandle) error
}

// LogEntry is one line of runner output.
type LogEntry struct {
	Timestamp time.Time
	Line      string
}

// Logs is the per-job log store (spec §4.1).
type Logs interface {
	Append(ctx context.Context, handle JobHandle, lines []string) error
	Tail(ctx context.Context, handle JobHandle, cursor string, limit int) (entries []LogEntry, nextCursor string, err error)
}

// Notify is the best-effort async event bus (spec §4.1).
type Notify interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Capability bundles the five primitives a runtime variant provides.
type Capability struct {
	Runtime Runtime
	KV      KV
	Object  Object
	Exec    Exec
	Logs    Logs
	Notify  Notify
}
