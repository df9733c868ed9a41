package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"docchat/api"
	"docchat/state"
)

const (
	// uploadConcurrency bounds parallel uploads so a big batch doesn't
	// saturate the backend's processing queue all at once
	uploadConcurrency = 3

	taskPollInterval = 2 * time.Second
)

// processDocuments uploads files and/or ingests a URL, then waits for
// processing unless --no-wait was given. The last successfully
// processed document becomes the default for new sessions.
func processDocuments(ctx context.Context, client *api.Client, store *state.Store, config *Config) error {
	var tasks []*api.UploadTask

	if len(config.Uploads) > 0 {
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(uploadConcurrency)

		results := make([]*api.UploadTask, len(config.Uploads))
		for i, path := range config.Uploads {
			i, path := i, path
			group.Go(func() error {
				task, err := client.UploadDocument(groupCtx, path)
				if err != nil {
					return fmt.Errorf("upload %s: %w", filepath.Base(path), err)
				}
				printInfo(config.Quiet, "Queued %s (task %s)", filepath.Base(path), task.TaskID)
				results[i] = task
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
		tasks = append(tasks, results...)
	}

	if config.IngestURL != "" {
		task, err := client.IngestURL(ctx, config.IngestURL)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", config.IngestURL, err)
		}
		printInfo(config.Quiet, "Queued %s (task %s)", config.IngestURL, task.TaskID)
		tasks = append(tasks, task)
	}

	if config.NoWait {
		return nil
	}

	for _, task := range tasks {
		status, err := client.WaitForTask(ctx, task.TaskID, taskPollInterval)
		if err != nil {
			return fmt.Errorf("waiting for task %s: %w", task.TaskID, err)
		}
		if status.Status == api.TaskStatusError {
			printError(fmt.Sprintf("processing task %s failed: %s", task.TaskID, status.Error))
			continue
		}
		printInfo(config.Quiet, "Processed document %s", status.DocumentID)
		if _, err := store.Update(&state.State{LastDocumentID: status.DocumentID}); err != nil {
			printInfo(config.Quiet, "Warning: could not persist document state: %v", err)
		}
	}
	return nil
}

func listDocuments(ctx context.Context, client *api.Client) error {
	documents, err := client.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(documents) == 0 {
		fmt.Println("No documents")
		return nil
	}
	for _, doc := range documents {
		size := "-"
		if doc.FileSize != nil {
			size = fmt.Sprintf("%dKB", *doc.FileSize/1024)
		}
		fmt.Printf("%s  %s  %s  status=%s  chunks=%d\n",
			doc.ID, doc.OriginalName, size, doc.Status, doc.ChunkCount)
	}
	return nil
}
