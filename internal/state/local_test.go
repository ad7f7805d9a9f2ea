package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carina-lang/carina/internal/ir"
	"github.com/carina-lang/carina/internal/value"
)

func TestLocalBackend_LoadMissingReturnsNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	b := NewLocalBackend(LocalConfig{Path: filepath.Join(tmpDir, "state.json")})

	_, err := b.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalBackend_SaveThenLoadRoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.json")
	b := NewLocalBackend(LocalConfig{Path: statePath})
	ctx := context.Background()

	doc := ir.NewStateDocument("")
	key := ir.NewResourceKey(nil, "aws.vpc", "main")
	doc.Resources[key] = &ir.State{
		QualifiedType: "aws.vpc",
		LocalName:     "main",
		ProviderID:    "vpc-001",
		Attrs:         value.Map{"cidr_block": value.String("10.0.0.0/16")},
	}

	require.NoError(t, b.Save(ctx, doc))
	assert.Equal(t, 1, doc.Serial)
	assert.NotEmpty(t, doc.Lineage)

	_, err := os.Stat(statePath)
	require.NoError(t, err)

	loaded, err := NewLocalBackend(LocalConfig{Path: statePath}).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc.Serial, loaded.Serial)
	assert.Equal(t, doc.Lineage, loaded.Lineage)
	require.Contains(t, loaded.Resources, key)
	assert.Equal(t, "vpc-001", loaded.Resources[key].ProviderID)
	assert.Equal(t, value.String("10.0.0.0/16"), loaded.Resources[key].Attrs["cidr_block"])
}

func TestLocalBackend_SaveRejectsStaleSerial(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.json")
	b := NewLocalBackend(LocalConfig{Path: statePath})
	ctx := context.Background()

	doc := ir.NewStateDocument("")
	require.NoError(t, b.Save(ctx, doc))

	stale := doc.Clone()
	stale.Serial = 0

	err := b.Save(ctx, stale)
	var mismatch *VersionMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestLocalBackend_SaveRejectsForeignLineage(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.json")
	b := NewLocalBackend(LocalConfig{Path: statePath})
	ctx := context.Background()

	doc := ir.NewStateDocument("")
	require.NoError(t, b.Save(ctx, doc))

	foreign := doc.Clone()
	foreign.Lineage = "some-other-lineage"

	err := b.Save(ctx, foreign)
	var mismatch *LineageMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestLocalBackend_SaveRejectsStaleSerialFromAConcurrentProcess(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.json")
	ctx := context.Background()

	seed := NewLocalBackend(LocalConfig{Path: statePath})
	require.NoError(t, seed.Save(ctx, ir.NewStateDocument("")))

	// Two independent LocalBackend instances -- standing in for two
	// concurrent `carina apply` processes -- each Load at the same serial.
	procA := NewLocalBackend(LocalConfig{Path: statePath})
	docA, err := procA.Load(ctx)
	require.NoError(t, err)

	procB := NewLocalBackend(LocalConfig{Path: statePath})
	docB, err := procB.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, procA.Save(ctx, docA))

	err = procB.Save(ctx, docB)
	var mismatch *VersionMismatchError
	require.ErrorAs(t, err, &mismatch, "a Save whose serial no longer matches the file's actual on-disk serial must fail, even on a backend instance that never itself called Save before")
}

func TestLocalBackend_LockIsExclusive(t *testing.T) {
	tmpDir := t.TempDir()
	b1 := NewLocalBackend(LocalConfig{Path: filepath.Join(tmpDir, "state.json")})
	b2 := NewLocalBackend(LocalConfig{Path: filepath.Join(tmpDir, "state.json")})
	ctx := context.Background()

	handle, err := b1.Lock(ctx, time.Second, "alice")
	require.NoError(t, err)
	require.NotNil(t, handle)

	_, err = b2.Lock(ctx, 200*time.Millisecond, "bob")
	var lockedErr *LockedError
	require.ErrorAs(t, err, &lockedErr)
	assert.Equal(t, "alice", lockedErr.CurrentHolder)

	require.NoError(t, b1.Unlock(ctx, handle))

	handle2, err := b2.Lock(ctx, time.Second, "bob")
	require.NoError(t, err)
	require.NoError(t, b2.Unlock(ctx, handle2))
}
