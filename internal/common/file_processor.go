package common

import (
	"fmt"
	"os"
	"path/filepath"

	"postulamatch/internal/config"
	"postulamatch/internal/errors"
	"postulamatch/internal/intake"
	"postulamatch/internal/types"
)

// FileProcessor reads input documents and writes command output
type FileProcessor struct {
	logger  *errors.Logger
	maxSize int64
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(logger *errors.Logger, maxSize int64) *FileProcessor {
	return &FileProcessor{logger: logger, maxSize: maxSize}
}

// ReadAttachments reads the resume and job posting. Either path may be empty
// when the operation does not need that document.
func (fp *FileProcessor) ReadAttachments(resumePath, jobPath string) (resume, job types.Attachment, err error) {
	if resumePath != "" {
		if resume, err = fp.read(resumePath, types.SourceResume); err != nil {
			return resume, job, err
		}
	}
	if jobPath != "" {
		if job, err = fp.read(jobPath, types.SourceJob); err != nil {
			return resume, job, err
		}
	}
	return resume, job, nil
}

func (fp *FileProcessor) read(path string, source types.SourceType) (types.Attachment, error) {
	att, err := intake.ReadFile(path, source, fp.maxSize)
	if err != nil {
		return att, err
	}
	if fp.logger != nil {
		fp.logger.Debug("Document loaded", "file", path, "source", source, "mime_type", att.MimeType)
	}
	return att, nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		err := os.MkdirAll(dir, 0750)
		if err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	err := os.WriteFile(filename, []byte(content), 0600)
	if err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ValidateOutputFile checks that the output directory exists or can be created
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	dir := filepath.Dir(filename)
	if dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewValidationError("INVALID_OUTPUT_FILE",
				fmt.Sprintf("Invalid output file: %s", filename), err)
		}
	}
	return nil
}

// MaxFileSize returns the configured upload limit
func MaxFileSize(cfg *config.Config) int64 {
	if cfg == nil {
		return 0
	}
	return cfg.App.MaxFileSize
}
