package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/git"
)

// journal is the write-ahead record of one commit. It carries both images
// of every touched record so an interrupted commit can be rolled forward
// and a failed one rolled back.
type journal struct {
	ID      string         `json:"id"`
	Created time.Time      `json:"created"`
	Message string         `json:"message,omitempty"`
	Ops     []journalEntry `json:"ops"`
}

type journalEntry struct {
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Delete     bool            `json:"delete,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Prev       json.RawMessage `json:"prev,omitempty"`
}

// commit is the memory store's write-through hook. It runs under the store's
// write lock, so commits never interleave.
//
// Workflow:
//  1. Write the journal atomically.
//  2. Apply every op with temp file + rename.
//  3. (If versioned) git add/rm and commit with the context change reason.
//  4. Remove the journal.
//
// If step 2 fails the before-images are restored and the error is returned.
func (r *Repository) commit(ctx context.Context, ops []memory.Op) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}

	j := journal{
		ID:      uuid.NewString(),
		Created: time.Now().UTC(),
		Message: core.ChangeReason(ctx, ""),
		Ops:     make([]journalEntry, 0, len(ops)),
	}
	for _, op := range ops {
		j.Ops = append(j.Ops, journalEntry{
			Collection: op.Record.Collection,
			Key:        op.Record.Key,
			Delete:     op.Delete,
			Data:       op.Record.Data,
			Prev:       op.Prev,
		})
	}

	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}
	if err := writeFileAtomic(r.journalPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}

	if n, err := r.applyJournal(j); err != nil {
		if undoErr := r.revertJournal(j.Ops[:n]); undoErr != nil {
			// Leave the journal in place; the next Initialize rolls forward.
			return fmt.Errorf("commit failed and rollback incomplete: %w", errors.Join(err, undoErr))
		}
		_ = removeFile(r.journalPath())
		return fmt.Errorf("commit failed: %w", err)
	}

	if r.config.Versioned {
		r.commitGit(ctx, j)
	}

	if err := removeFile(r.journalPath()); err != nil {
		return err
	}

	now := time.Now()
	r.mu.Lock()
	r.lastCommit = &now
	r.mu.Unlock()
	return nil
}

// applyJournal writes the after-images of j in order. It returns how many
// entries were applied before the first failure.
func (r *Repository) applyJournal(j journal) (int, error) {
	for i, e := range j.Ops {
		var err error
		if e.Delete {
			err = r.removeRecord(e.Collection, e.Key)
		} else {
			err = r.writeRecord(e.Collection, e.Key, e.Data)
		}
		if err != nil {
			return i, err
		}
	}
	return len(j.Ops), nil
}

// revertJournal restores the before-images of the applied entries.
func (r *Repository) revertJournal(applied []journalEntry) error {
	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		e := applied[i]
		var err error
		if len(e.Prev) == 0 {
			err = r.removeRecord(e.Collection, e.Key)
		} else {
			err = r.writeRecord(e.Collection, e.Key, e.Prev)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Repository) writeRecord(collection, key string, data []byte) error {
	relPath := r.relPath(collection, key)
	path := r.filePath(collection, key)

	raw, err := r.serializer(collection).Encode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", relPath, err)
	}
	if err := writeFileAtomic(path, raw, 0644); err != nil {
		return fmt.Errorf("%s: %w", relPath, err)
	}
	if info, err := os.Stat(path); err == nil {
		r.cache.Set(relPath, &indexEntry{Collection: collection, Key: key, Data: data, LastModified: info.ModTime()})
	}
	return nil
}

func (r *Repository) removeRecord(collection, key string) error {
	if err := removeFile(r.filePath(collection, key)); err != nil {
		return err
	}
	r.cache.Delete(r.relPath(collection, key))
	return nil
}

// commitGit records the commit in git. Files are already durable, so a git
// failure is reported but does not fail the transaction.
func (r *Repository) commitGit(ctx context.Context, j journal) {
	unlock, err := r.git.Lock(ctx)
	if err != nil {
		r.reportGitError(err)
		return
	}
	defer unlock()

	var added, removed []string
	for _, e := range j.Ops {
		if e.Delete {
			removed = append(removed, r.relPath(e.Collection, e.Key))
		} else {
			added = append(added, r.relPath(e.Collection, e.Key))
		}
	}
	if err := r.git.Add(added...); err != nil {
		r.reportGitError(err)
		return
	}
	if err := r.git.Rm(removed...); err != nil {
		r.reportGitError(err)
		return
	}

	msg := j.Message
	if msg == "" {
		msg = git.FormatCommitMessage(git.CommitTypeDocs, "vault", fmt.Sprintf("update %d records", len(j.Ops)), "")
	} else {
		msg = git.AppendFooter(msg)
	}
	if err := r.git.Commit(msg); err != nil {
		r.reportGitError(err)
	}
}

func (r *Repository) reportGitError(err error) {
	err = fmt.Errorf("git history not updated: %w", err)
	if r.config.ErrorHandler != nil {
		r.config.ErrorHandler(err)
		return
	}
	r.config.Logger.Error("git commit failed", "error", err)
}

// recover rolls an interrupted commit forward.
func (r *Repository) recover(ctx context.Context) error {
	data, err := os.ReadFile(r.journalPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	var j journal
	if err := json.Unmarshal(data, &j); err != nil {
		// The journal is written atomically, so a torn file was never committed.
		r.config.Logger.Warn("discarding unreadable journal", "error", err)
		return removeFile(r.journalPath())
	}

	r.config.Logger.Info("recovering interrupted commit", "id", j.ID, "ops", len(j.Ops))
	if _, err := r.applyJournal(j); err != nil {
		return fmt.Errorf("failed to recover commit %s: %w", j.ID, err)
	}
	if r.config.Versioned {
		r.commitGit(ctx, j)
	}
	r.mu.Lock()
	r.recovered++
	r.mu.Unlock()
	return removeFile(r.journalPath())
}
