package common

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"postulamatch/internal/errors"
	"postulamatch/internal/types"
)

func TestValidateOutputFormat(t *testing.T) {
	supported := []string{"json", "text", "markdown"}

	tests := []struct {
		name      string
		format    string
		supported []string
		wantErr   string
	}{
		{name: "json", format: "json", supported: supported},
		{name: "markdown", format: "markdown", supported: supported},
		{name: "unknown format", format: "xml", supported: supported,
			wantErr: "INVALID_FORMAT: unsupported output format 'xml'. Supported formats: [json text markdown]"},
		{name: "case sensitive", format: "JSON", supported: supported,
			wantErr: "INVALID_FORMAT: unsupported output format 'JSON'. Supported formats: [json text markdown]"},
		{name: "empty format", format: "", supported: supported,
			wantErr: "INVALID_FORMAT: unsupported output format ''. Supported formats: [json text markdown]"},
		{name: "no restrictions", format: "yaml", supported: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.supported)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("Expected error '%s', got '%v'", tt.wantErr, err)
			}
			if !errors.IsType(err, errors.ErrorTypeValidation) {
				t.Errorf("Expected a validation error, got %v", err)
			}
		})
	}
}

var quietLogger = errors.NewLoggerWithWriter(io.Discard, slog.LevelError)

func writeDocs(t *testing.T) (resume, job string) {
	t.Helper()
	dir := t.TempDir()
	resume = filepath.Join(dir, "cv.txt")
	job = filepath.Join(dir, "vacante.txt")
	if err := os.WriteFile(resume, []byte("Ana, backend developer, Go.\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(job, []byte("Buscamos SRE con Kubernetes.\n"), 0600); err != nil {
		t.Fatal(err)
	}
	return resume, job
}

func TestRunCommand(t *testing.T) {
	resumePath, jobPath := writeDocs(t)
	files := NewFileProcessor(quietLogger, 1024)
	var stdout bytes.Buffer
	out := NewOutputHandler(quietLogger).WithStdout(&stdout)

	var got Inputs
	op := func(_ context.Context, in Inputs) (*types.SeniorFeedback, error) {
		got = in
		return &types.SeniorFeedback{RealityCheck: "Sin rodeos"}, nil
	}

	err := RunCommand(context.Background(), quietLogger, files, CommandConfig{OutputFormat: "text"},
		resumePath, "", "senior feedback", op, out)
	if err != nil {
		t.Fatalf("RunCommand failed: %v", err)
	}
	if got.Resume.SourceType != types.SourceResume || got.Resume.MimeType != "text/plain" {
		t.Errorf("Unexpected resume attachment %+v", got.Resume)
	}
	if got.Job.Data != "" {
		t.Error("The job posting was not requested and must stay empty")
	}
	if !strings.Contains(stdout.String(), "Sin rodeos") {
		t.Errorf("Output missing the report:\n%s", stdout.String())
	}

	t.Run("output file", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "nested", "decoder.json")
		op := func(_ context.Context, in Inputs) (*types.JobTranslation, error) {
			return &types.JobTranslation{HonestVersion: "Guardias"}, nil
		}
		err := RunCommand(context.Background(), quietLogger, files, CommandConfig{OutputFile: target, OutputFormat: "json"},
			"", jobPath, "job translation", op, out)
		if err != nil {
			t.Fatalf("RunCommand failed: %v", err)
		}
		content, err := os.ReadFile(target)
		if err != nil || !strings.Contains(string(content), `"honestVersion": "Guardias"`) {
			t.Errorf("Unexpected file content %q (%v)", content, err)
		}
	})

	t.Run("operation error", func(t *testing.T) {
		boom := stderrors.New("boom")
		op := func(context.Context, Inputs) (*types.MarketTrends, error) { return nil, boom }
		err := RunCommand(context.Background(), quietLogger, files, CommandConfig{OutputFormat: "json"},
			resumePath, jobPath, "market trends", op, out)
		if !stderrors.Is(err, boom) {
			t.Errorf("Expected the operation error, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		op := func(context.Context, Inputs) (*types.MarketTrends, error) {
			t.Fatal("operation must not run")
			return nil, nil
		}
		err := RunCommand(context.Background(), quietLogger, files, CommandConfig{OutputFormat: "json"},
			filepath.Join(t.TempDir(), "nope.pdf"), "", "market trends", op, out)
		if !errors.HasCode(err, errors.ErrCodeFileNotFound) {
			t.Errorf("Expected FILE_NOT_FOUND, got %v", err)
		}
	})
}

func BenchmarkValidateOutputFormat(b *testing.B) {
	supportedFormats := []string{"json", "text", "markdown"}
	for b.Loop() {
		_ = ValidateOutputFormat("xml", supportedFormats)
	}
}
