// Package state persists StateDocuments with serial-number optimistic
// concurrency, a lineage guard against mixing unrelated state files, and
// mandatory advisory locking around any apply, via a pluggable Backend.
package state

import (
	"context"
	"fmt"
	"time"

	"github.com/carina-lang/carina/internal/ir"
)

// LockHandle identifies an acquired advisory lock, returned by Lock and
// required by Unlock.
type LockHandle struct {
	LockID     string
	Who        string
	AcquiredAt time.Time
}

// Backend is the pluggable storage contract a state document is persisted
// through. Implementations: the local filesystem (rename-on-write, a
// sibling ".lock" file) and an object store (conditional PUT + a sibling
// lock object).
type Backend interface {
	// Load reads the current document. Returns ErrNotFound if none has ever
	// been saved.
	Load(ctx context.Context) (*ir.StateDocument, error)

	// Save persists doc. Fails with *VersionMismatchError if doc.Serial no
	// longer matches the backend's current serial, or *LineageMismatchError
	// if doc.Lineage conflicts with an already-persisted lineage. On success
	// the backend increments doc.Serial in place.
	Save(ctx context.Context, doc *ir.StateDocument) error

	// Lock acquires the whole-state advisory exclusive lock, polling up to
	// timeout if already held. who identifies the caller (e.g. "user@host").
	Lock(ctx context.Context, timeout time.Duration, who string) (*LockHandle, error)

	// Unlock releases a lock acquired by Lock.
	Unlock(ctx context.Context, handle *LockHandle) error
}

// ObjectStoreConfig carries the backend configuration options spec.md §6
// names for the object-store backend: bucket, key, region, encrypt,
// auto_create.
type ObjectStoreConfig struct {
	Bucket     string
	Key        string
	Region     string
	Encrypt    bool
	AutoCreate bool
	Profile    string
}

// LocalConfig carries configuration for the local-filesystem backend.
type LocalConfig struct {
	Path string
}

// BackendConfig is the parsed form of a `.crn` `backend` block (spec.md §6).
type BackendConfig struct {
	Kind        string // "local" or "object_store"
	Local       LocalConfig
	ObjectStore ObjectStoreConfig
}

// NewBackend constructs the Backend named by cfg.Kind.
func NewBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	switch cfg.Kind {
	case "", "local":
		if cfg.Local.Path == "" {
			return nil, fmt.Errorf("local backend requires a path")
		}
		return NewLocalBackend(cfg.Local), nil
	case "object_store":
		return NewS3Backend(ctx, cfg.ObjectStore)
	default:
		return nil, fmt.Errorf("unknown backend kind: %s", cfg.Kind)
	}
}
