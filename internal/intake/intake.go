// Package intake turns uploaded or local documents into attachments. Only
// PDF, DOCX and plain text are accepted; the type is sniffed from the content.
package intake

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"postulamatch/internal/errors"
	"postulamatch/internal/types"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText = "text/plain"
)

// SupportedTypes lists the accepted MIME types
var SupportedTypes = []string{MimePDF, MimeDOCX, MimeText}

// Detect returns the supported MIME type of data
func Detect(data []byte) (string, error) {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		for _, supported := range SupportedTypes {
			if m.Is(supported) {
				return supported, nil
			}
		}
	}
	return "", errors.NewValidationError(errors.ErrCodeUnsupportedFile,
		fmt.Sprintf("unsupported file type %s, expected PDF, DOCX or TXT", mimetype.Detect(data).String()), nil)
}

// FromBytes builds an attachment from raw document bytes
func FromBytes(data []byte, source types.SourceType, maxSize int64) (types.Attachment, error) {
	if len(data) == 0 {
		return types.Attachment{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("%s document is empty", source), nil)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return types.Attachment{}, errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("%s document exceeds the limit of %s", source, FormatFileSize(maxSize)), nil)
	}

	mime, err := Detect(data)
	if err != nil {
		return types.Attachment{}, err
	}

	return types.Attachment{
		MimeType:   mime,
		Data:       base64.StdEncoding.EncodeToString(data),
		SourceType: source,
	}, nil
}

// Normalize validates an uploaded attachment. Data may carry a data URI
// prefix, which is stripped. The declared MIME type is replaced by the one
// sniffed from the decoded content.
func Normalize(att types.Attachment, source types.SourceType, maxSize int64) (types.Attachment, error) {
	data := att.Data
	if strings.HasPrefix(data, "data:") {
		_, payload, ok := strings.Cut(data, ",")
		if !ok {
			return types.Attachment{}, errors.NewValidationError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("%s document has a malformed data URI", source), nil)
		}
		data = payload
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return types.Attachment{}, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("%s document is not valid base64", source), err)
	}
	return FromBytes(raw, source, maxSize)
}

// ReadFile reads a local document into an attachment
func ReadFile(filename string, source types.SourceType, maxSize int64) (types.Attachment, error) {
	if err := ValidateInputFile(filename); err != nil {
		return types.Attachment{}, err
	}

	file, err := os.Open(filename)
	if err != nil {
		return types.Attachment{}, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer file.Close()

	// Read one byte past the limit to detect oversized files without loading them.
	var r io.Reader = file
	if maxSize > 0 {
		r = io.LimitReader(file, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return types.Attachment{}, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}

	att, err := FromBytes(data, source, maxSize)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return att, appErr.WithContext("filename", filename)
		}
		return att, err
	}
	return att, nil
}

// ValidateInputFile checks if a file exists and is a regular file
func ValidateInputFile(filename string) error {
	if filename == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "filename cannot be empty", nil)
	}

	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot access file: %s", filename), err)
	}

	if info.IsDir() {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("path is a directory, not a file: %s", filename), nil)
	}
	return nil
}

// FormatFileSize returns a human-readable file size
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
