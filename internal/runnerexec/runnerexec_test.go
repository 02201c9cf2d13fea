package runnerexec

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/infraweave-io/control-plane/internal/facade/local"
)

// fakeTerraform writes a shell script standing in for the terraform binary: it logs
// its subcommand to stdout and, for `output -json`, prints a fixed outputs document.
func fakeTerraform(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake terraform script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "terraform")
	script := `#!/bin/sh
echo "running: $1"
if [ "$1" = "output" ]; then
  echo '{"bucketArn":{"value":"arn:aws:s3:::demo"}}'
fi
exit 0
`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake terraform: %v", err)
	}
	return path
}

func TestRunStreamsInitAndPlanOutput(t *testing.T) {
	bin := fakeTerraform(t)
	workdir := t.TempDir()

	var lines []string
	err := Run(context.Background(), bin, workdir, EventPlan, map[string]string{"TF_VAR_x": "1"}, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(lines) != 2 || lines[0] != "running: init" || lines[1] != "running: plan" {
		t.Fatalf("unexpected output lines: %v", lines)
	}
}

func TestRunRejectsUnknownEvent(t *testing.T) {
	bin := fakeTerraform(t)
	err := Run(context.Background(), bin, t.TempDir(), Event("rollback"), nil, nil)
	if err == nil {
		t.Fatal("expected an error for an unknown event")
	}
}

func TestExtractOutputsParsesJSON(t *testing.T) {
	bin := fakeTerraform(t)
	outputs, err := ExtractOutputs(context.Background(), bin, t.TempDir())
	if err != nil {
		t.Fatalf("extract outputs: %v", err)
	}
	if outputs["bucketArn"] != "arn:aws:s3:::demo" {
		t.Fatalf("unexpected outputs: %v", outputs)
	}
}

func TestFetchArtifactExtractsZipIntoSrcDir(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("main.tf")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte("resource \"null_resource\" \"x\" {}")); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	obj, err := local.New(local.Options{ObjectRoot: t.TempDir(), PresignBaseURL: "http://localhost/objects", RunnerPath: "true"})
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	ctx := context.Background()
	if err := obj.Object.Put(ctx, "/modules/stable/s3-bucket/1.0.0/src.zip", buf.Bytes()); err != nil {
		t.Fatalf("put artifact: %v", err)
	}

	destDir := t.TempDir()
	if err := FetchArtifact(ctx, obj.Object, "/modules/stable/s3-bucket/1.0.0/src.zip", destDir); err != nil {
		t.Fatalf("fetch artifact: %v", err)
	}
	if _, err := os.Stat(filepath.Join(destDir, "src", "main.tf")); err != nil {
		t.Fatalf("expected extracted main.tf: %v", err)
	}
}
