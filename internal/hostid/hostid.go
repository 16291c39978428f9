// Package hostid owns the two process-wide identifiers every
// LogMessage may carry: a host id persisted once at boot, and a
// monotonically incrementing receipt id (spec.md §5, §9 "Global
// state" — modeled as a context struct threaded through constructors
// rather than a module-level static).
package hostid

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/flowlog-io/flowlog/internal/persist"
)

// rcptIDCheckpointInterval bounds how often the rcptid high-water-mark
// is persisted. Checkpointing on every NextRcptID call would make
// every message allocation pay a store commit, so Context instead
// flushes every rcptIDCheckpointInterval ids; a crash between
// checkpoints may replay a small range of ids across a restart, which
// is the same trade spec.md §C already allows ("only guaranteeing
// monotonicity within one run unless a persisted counter is present").
const rcptIDCheckpointInterval = 1000

// rcptIDVersion is the only record version this build writes for the
// rcptid checkpoint.
const rcptIDVersion byte = 0

// Context carries the process's host id and rcpt id counter. One
// Context is constructed at startup and threaded into whatever needs
// it (source drivers, message constructors).
type Context struct {
	hostID uint32
	rcptID atomic.Uint64
	store  persist.Store

	// runID scopes CorrelationID to this process's lifetime, mirroring
	// friggdb's uuid.New() per-block identifiers (wal/head_block.go):
	// a fresh random id minted once at construction rather than parsed
	// or derived from anything durable.
	runID uuid.UUID
}

// Load resolves the host id from store, generating and persisting a
// new random one on first run. It accepts either the canonical key or
// the legacy alias on read (spec.md §6.2). It also resumes the rcptid
// counter from whatever high-water-mark was last checkpointed, if any.
func Load(store persist.Store) (*Context, error) {
	id, err := lookup(store, persist.HostIDKey)
	if err == persist.ErrNotFound {
		id, err = lookup(store, persist.HostIDLegacyKey)
	}
	if err == persist.ErrNotFound {
		id, err = generate()
		if err != nil {
			return nil, err
		}
		if err := save(store, id); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	rcptBase, err := lookupRcptID(store)
	if err != nil && err != persist.ErrNotFound {
		return nil, err
	}

	ctx := &Context{hostID: id, store: store, runID: uuid.New()}
	ctx.rcptID.Store(rcptBase)
	return ctx, nil
}

func lookup(store persist.Store, key string) (uint32, error) {
	h, _, _, err := store.LookupEntry(key)
	if err != nil {
		return 0, err
	}
	body, err := store.MapEntry(h)
	if err != nil {
		return 0, err
	}
	defer store.UnmapEntry(h)
	return persist.DecodeHostID(body)
}

func save(store persist.Store, id uint32) error {
	version, body := persist.EncodeHostID(id)
	h, err := store.AllocEntry(persist.HostIDKey, len(body))
	if err != nil {
		return err
	}
	buf, err := store.MapEntry(h)
	if err != nil {
		return err
	}
	copy(buf, body)
	if err := store.UnmapEntry(h); err != nil {
		return err
	}
	if ls, ok := store.(*persist.LocalStore); ok {
		ls.SetVersion(h, version)
	}
	return store.Commit()
}

func lookupRcptID(store persist.Store) (uint64, error) {
	h, _, _, err := store.LookupEntry(persist.RcptIDKey)
	if err != nil {
		return 0, err
	}
	body, err := store.MapEntry(h)
	if err != nil {
		return 0, err
	}
	defer store.UnmapEntry(h)
	return persist.DecodeUint64BE(body)
}

func saveRcptID(store persist.Store, id uint64) error {
	version, body := persist.EncodeUint64BE(rcptIDVersion, id)
	h, err := store.AllocEntry(persist.RcptIDKey, len(body))
	if err != nil {
		return err
	}
	buf, err := store.MapEntry(h)
	if err != nil {
		return err
	}
	copy(buf, body)
	if err := store.UnmapEntry(h); err != nil {
		return err
	}
	if ls, ok := store.(*persist.LocalStore); ok {
		ls.SetVersion(h, version)
	}
	return store.Commit()
}

func generate() (uint32, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// HostID returns the process's persisted host id.
func (c *Context) HostID() uint32 { return c.hostID }

// NextRcptID returns the next value of the monotonically incrementing
// receipt id counter, starting above whatever high-water-mark was
// persisted at Load (or at 1 on a fresh store). Every
// rcptIDCheckpointInterval ids it checkpoints the new high-water-mark,
// best-effort: a save failure here is no more fatal than a missed
// bookmark save, so it is logged nowhere and simply retried on the
// next checkpoint boundary.
func (c *Context) NextRcptID() uint64 {
	id := c.rcptID.Inc()
	if c.store != nil && id%rcptIDCheckpointInterval == 0 {
		_ = saveRcptID(c.store, id)
	}
	return id
}

// CorrelationID derives a stable uuid.UUID for rcptID, scoped to this
// process run, so a message's receipt id can be surfaced in logs and
// traces as a single correlation token (mirrors friggdb's use of
// uuid.UUID as the externally-visible identifier for a unit of work,
// friggdb/wal/head_block.go) without keeping a uuid alongside every
// in-flight LogMessage.
func (c *Context) CorrelationID(rcptID uint64) uuid.UUID {
	var name [8]byte
	binary.BigEndian.PutUint64(name[:], rcptID)
	return uuid.NewSHA1(c.runID, name[:])
}
