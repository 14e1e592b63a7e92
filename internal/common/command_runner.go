package common

import (
	"context"
	"time"

	"postulamatch/internal/errors"
	"postulamatch/internal/types"
)

// Inputs are the documents a command operates on
type Inputs struct {
	Resume types.Attachment
	Job    types.Attachment
}

// OperationFunc runs one generation on the loaded documents
type OperationFunc[Output any] func(ctx context.Context, in Inputs) (Output, error)

// RunCommand loads the documents, runs op and writes its result
func RunCommand[Output any](
	ctx context.Context,
	logger *errors.Logger,
	files *FileProcessor,
	cmdConfig CommandConfig,
	resumePath, jobPath string,
	name string,
	op OperationFunc[Output],
	output *OutputHandler,
) error {
	resume, job, err := files.ReadAttachments(resumePath, jobPath)
	if err != nil {
		return err
	}

	logger.Info("Starting "+name,
		"resume", resumePath,
		"job", jobPath,
		"format", cmdConfig.OutputFormat)

	start := time.Now()
	result, err := op(ctx, Inputs{Resume: resume, Job: job})
	if err != nil {
		return err
	}
	logger.Info("Completed "+name, "duration", time.Since(start).Round(time.Millisecond).String())

	return output.HandleOutput(result, cmdConfig)
}
