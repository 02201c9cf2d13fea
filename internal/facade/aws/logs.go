package aws

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
)

// Logs stores runner output as newline-delimited chunks under the same artifact bucket
// Object uses, keyed by job handle. The pack carries no CloudWatch Logs client, so
// tailing is implemented as object-append plus a byte-offset cursor rather than reaching
// for a service the teacher's dependency set never imports (see DESIGN.md).
type Logs struct {
	Client *s3.Client
	Bucket string
	Prefix string
}

func NewLogs(client *s3.Client, bucket, prefix string) *Logs {
	return &Logs{Client: client, Bucket: bucket, Prefix: prefix}
}

func (l *Logs) key(handle facade.JobHandle) string {
	return fmt.Sprintf("%s/%s.log", strings.TrimSuffix(l.Prefix, "/"), handle)
}

func (l *Logs) Append(ctx context.Context, handle facade.JobHandle, lines []string) error {
	key := l.key(handle)
	existing, err := l.readAll(ctx, key)
	if err != nil && apperrors.KindOf(err) != apperrors.NotFound {
		return err
	}
	var buf bytes.Buffer
	buf.Write(existing)
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	_, err = l.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(l.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	return translateErr(err, "append logs %s", handle)
}

func (l *Logs) readAll(ctx context.Context, key string) ([]byte, error) {
	out, err := l.Client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(l.Bucket), Key: aws.String(key)})
	if err != nil {
		return nil, translateErr(err, "get logs %s", key)
	}
	defer out.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, apperrors.Wrap(apperrors.Transient, err, "read log object %s", key)
	}
	return buf.Bytes(), nil
}

func (l *Logs) Tail(ctx context.Context, handle facade.JobHandle, cursor string, limit int) ([]facade.LogEntry, string, error) {
	data, err := l.readAll(ctx, l.key(handle))
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
