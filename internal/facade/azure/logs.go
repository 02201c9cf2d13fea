package azure

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
)

// Logs stores runner output as one append-accumulated blob per job, the same
// object-chunk-plus-byte-cursor scheme the AWS variant uses over S3 (see DESIGN.md for
// why no managed log service client is wired here).
type Logs struct {
	Client    *azblob.Client
	Container string
	Prefix    string
}

func NewLogs(client *azblob.Client, container, prefix string) *Logs {
	return &Logs{Client: client, Container: container, Prefix: prefix}
}

func (l *Logs) blobName(handle facade.JobHandle) string {
	return fmt.Sprintf("%s/%s.log", strings.TrimSuffix(l.Prefix, "/"), handle)
}

func (l *Logs) readAll(ctx context.Context, name string) ([]byte, error) {
	resp, err := l.Client.DownloadStream(ctx, l.Container, name, nil)
	if err != nil {
		return nil, translateErr(err, "get logs %s", name)
	}
	defer resp.Body.Close()
	buf := new(strings.Builder)
	chunk := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if rerr != nil {
			break
		}
	}
	return []byte(buf.String()), nil
}

func (l *Logs) Append(ctx context.Context, handle facade.JobHandle, lines []string) error {
	name := l.blobName(handle)
	existing, err := l.readAll(ctx, name)
	if err != nil && apperrors.KindOf(err) != apperrors.NotFound {
		return err
	}
	var buf strings.Builder
	buf.Write(existing)
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	_, err = l.Client.UploadBuffer(ctx, l.Container, name, []byte(buf.String()), nil)
	return translateErr(err, "append logs %s", handle)
}

func (l *Logs) Tail(ctx context.Context, handle facade.JobHandle, cursor string, limit int) ([]facade.LogEntry, string, error) {
	data, err := l.readAll(ctx, l.blobName(handle))
	if err != nil {
		if apperrors.KindOf(err) == apperrors.NotFound {
			return nil, cursor, nil
		}
		return nil, "", err
	}

	start := 0
	if cursor != "" {
		if v, err := strconv.Atoi(cursor); err == nil && v >= 0 && v <= len(data) {
			start = v
		}
	}
	if start >= len(data) {
		return nil, strconv.Itoa(len(data)), nil
	}

	lines := strings.Split(strings.TrimRight(string(data[start:]), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, strconv.Itoa(len(data)), nil
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}

	now := time.Now()
	entries := make([]facade.LogEntry, 0, len(lines))
	consumed := start
	for _, line := range lines {
		entries = append(entries, facade.LogEntry{Timestamp: now, Line: line})
		consumed += len(line) + 1
	}
	return entries, strconv.Itoa(consumed), nil
}
