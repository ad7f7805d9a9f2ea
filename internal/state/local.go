package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/carina-lang/carina/internal/ir"
)

// LocalBackend persists a StateDocument to a single file on disk, writing
// via a temp-file-then-rename so readers never observe a partial write, and
// serializing concurrent writers with a sibling ".lock" file.
//
// Grounded on picklr-io-picklr/internal/state/{state.go,lock.go}, replacing
// their PKL-text serialization with the canonical JSON form ir.StateDocument
// implements, and their lock.go's mtime-based staleness check kept as-is.
type LocalBackend struct {
	path          string
	staleAfter    time.Duration
	loadedLineage string
	haveLoaded    bool
}

func NewLocalBackend(cfg LocalConfig) *LocalBackend {
	return &LocalBackend{path: cfg.Path, staleAfter: 10 * time.Minute}
}

func (b *LocalBackend) Load(ctx context.Context) (*ir.StateDocument, error) {
	raw, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", b.path, err)
	}

	if IsEncrypted(raw) {
		decrypted, err := DecryptState(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt state: %w", err)
		}
		raw = decrypted
	}

	doc := &ir.StateDocument{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("corrupt state document at %s: %w", b.path, err)
	}

	b.loadedLineage = doc.Lineage
	b.haveLoaded = true
	return doc, nil
}

// readSerial re-reads the file's current on-disk serial directly, rather
// than trusting any value cached on b from a prior Load or Save on this
// same instance: Save must catch a concurrent writer even when it is a
// different LocalBackend value (a second `carina apply` process), which a
// same-instance cache can never see.
func (b *LocalBackend) readSerial() (serial int, exists bool, err error) {
	raw, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read state file %s: %w", b.path, err)
	}
	if IsEncrypted(raw) {
		decrypted, err := DecryptState(raw)
		if err != nil {
			return 0, false, fmt.Errorf("failed to decrypt state: %w", err)
		}
		raw = decrypted
	}
	var doc ir.StateDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, false, fmt.Errorf("corrupt state document at %s: %w", b.path, err)
	}
	return doc.Serial, true, nil
}

func (b *LocalBackend) Save(ctx context.Context, doc *ir.StateDocument) error {
	actualSerial, exists, err := b.readSerial()
	if err != nil {
		return err
	}
	switch {
	case exists && (!b.haveLoaded || doc.Serial != actualSerial):
		// Either we never Loaded (so whatever is on disk now was written by
		// someone else since), or the file's serial has moved past what doc
		// was built against: another Save landed first. Caller re-Builds a
		// fresh plan against the lock instead of clobbering it.
		return &VersionMismatchError{Expected: doc.Serial, Actual: actualSerial}
	case !exists && b.haveLoaded:
		return &VersionMismatchError{Expected: doc.Serial, Actual: 0}
	}
	if b.haveLoaded && b.loadedLineage != "" && doc.Lineage != "" && doc.Lineage != b.loadedLineage {
		return &LineageMismatchError{Expected: doc.Lineage, Actual: b.loadedLineage}
	}

	if doc.Lineage == "" {
		doc.Lineage = uuid.NewString()
	}
	doc.Serial++
	if doc.Version == 0 {
		doc.Version = ir.CurrentStateVersion
	}

	content, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	encrypted, err := EncryptState(content)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(encrypted); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish state file %s: %w", b.path, err)
	}

	b.loadedLineage = doc.Lineage
	b.haveLoaded = true

	if err := b.writeLockFile(doc); err != nil {
		return fmt.Errorf("failed to write carina.lock.yaml: %w", err)
	}
	return nil
}

// lockFilePath is the sibling human-readable summary SPEC_FULL.md's state
// section asks for, separate from the advisory ".lock" file: a YAML
// companion naming the lineage, serial and resource count of what Save
// just wrote, so it can be diffed in a PR without parsing the JSON state.
func (b *LocalBackend) lockFilePath() string {
	return filepath.Join(filepath.Dir(b.path), "carina.lock.yaml")
}

type lockSummary struct {
	Version   int    `yaml:"version"`
	Lineage   string `yaml:"lineage"`
	Serial    int    `yaml:"serial"`
	Resources int    `yaml:"resources"`
}

func (b *LocalBackend) writeLockFile(doc *ir.StateDocument) error {
	content, err := yaml.Marshal(lockSummary{
		Version:   doc.Version,
		Lineage:   doc.Lineage,
		Serial:    doc.Serial,
		Resources: len(doc.Resources),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(b.lockFilePath(), content, 0644)
}

func (b *LocalBackend) lockPath() string { return b.path + ".lock" }

type lockFileContent struct {
	LockID     string    `json:"lock_id"`
	Who        string    `json:"who"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock acquires the sibling ".lock" file, polling at a fixed interval up to
// timeout. A lock file older than staleAfter is treated as abandoned and
// reclaimed, matching the teacher's mtime-based staleness check.
func (b *LocalBackend) Lock(ctx context.Context, timeout time.Duration, who string) (*LockHandle, error) {
	deadline := time.Now().Add(timeout)
	for {
		handle, err := b.tryLock(who)
		if err == nil {
			return handle, nil
		}
		lockedErr, ok := err.(*LockedError)
		if !ok {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, lockedErr
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (b *LocalBackend) tryLock(who string) (*LockHandle, error) {
	lockPath := b.lockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	if info, err := os.Stat(lockPath); err == nil {
		if time.Since(info.ModTime()) > b.staleAfter {
			os.Remove(lockPath)
		} else {
			existing, _ := os.ReadFile(lockPath)
			var content lockFileContent
			_ = json.Unmarshal(existing, &content)
			return nil, &LockedError{CurrentHolder: content.Who, AcquiredAt: content.AcquiredAt}
		}
	}

	handle := &LockHandle{LockID: uuid.NewString(), Who: who, AcquiredAt: time.Now().UTC()}
	content, err := json.Marshal(lockFileContent{LockID: handle.LockID, Who: handle.Who, AcquiredAt: handle.AcquiredAt})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize lock file: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, &LockedError{CurrentHolder: "unknown", AcquiredAt: time.Now()}
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}
	return handle, nil
}

func (b *LocalBackend) Unlock(ctx context.Context, handle *LockHandle) error {
	lockPath := b.lockPath()
	existing, err := os.ReadFile(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read lock file: %w", err)
	}
	var content lockFileContent
	if err := json.Unmarshal(existing, &content); err == nil && content.LockID != "" && content.LockID != handle.LockID {
		return fmt.Errorf("lock file %s is held by a different lock (%s), refusing to unlock", lockPath, content.LockID)
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}
