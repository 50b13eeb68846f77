package command

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/dreamware/torudis/internal/blocking"
	"github.com/dreamware/torudis/internal/config"
	"github.com/dreamware/torudis/internal/log"
	"github.com/dreamware/torudis/internal/persist/aof"
	"github.com/dreamware/torudis/internal/pubsub"
	"github.com/dreamware/torudis/internal/replication"
	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/script"
	"github.com/dreamware/torudis/internal/session"
	"github.com/dreamware/torudis/internal/store"
	"github.com/dreamware/torudis/internal/txn"
)

// ExecContext is the shared, process-wide collaborator set every
// command handler runs against: the keyspace, the transaction/watch
// engine, the blocking coordinator, the pub/sub bus, and the optional
// persistence/replication/scripting peers, none of which a handler
// reaches for directly by package import cycle (command depends on all
// of them, none of them depend back on command).
type ExecContext struct {
	Store    *store.Store
	Registry *Registry
	Watches  *txn.Registry
	TxEngine *txn.Engine
	Blocking *blocking.Coordinator
	PubSub   *pubsub.Bus
	Script   *script.Host
	Config   *config.Config
	Fs       afero.Fs

	mu       sync.RWMutex
	AOF      *aof.Writer // nil unless appendonly is enabled
	Master   *replication.Master // attached by the server at startup; nil where none is attached (e.g. tests)
	Replica  *replication.Replica // attached by the server at startup; IsReplica reports whether it points at a master

	SubscriberOf func(*session.Session) *pubsub.Subscriber

	// OnReplicaOf, if set, is invoked after REPLICAOF updates Replica's
	// state, so the network layer can (re)dial the new master or, for
	// REPLICAOF NO ONE (addr == ""), tear down the replication link and
	// promote this server back to a standalone master. The command
	// layer itself never dials a socket.
	OnReplicaOf func(addr string)

	// Now overrides the wall clock (milliseconds since epoch) for
	// deterministic tests; nil means time.Now(). It drives the deadlines
	// and TTLs command handlers compute; the store's own lazy expiry
	// reads the clock given in store.Options instead.
	Now func() int64

	dirtySinceSave int

	memMu    sync.Mutex
	keySizes map[int]map[string]int64 // db -> key -> last-noted approx size, feeds Store.Note's delta
}

func nowMsFrom(ctx *ExecContext) int64 {
	if ctx.Now != nil {
		return ctx.Now()
	}
	return time.Now().UnixMilli()
}

// NewExecContext wires a fresh ExecContext around the given store,
// sized per cfg, with the transaction/blocking/pub-sub layers attached
// as mutation hooks on every database (§4.2's "notify blocking
// coordinator" / "decrement per-connection watch set consumers" steps).
func NewExecContext(st *store.Store, cfg *config.Config, scriptHost *script.Host) *ExecContext {
	ctx := &ExecContext{
		Store:    st,
		Registry: NewRegistry(),
		Watches:  txn.NewRegistry(),
		Blocking: blocking.NewCoordinator(),
		PubSub:   pubsub.NewBus(),
		Script:   scriptHost,
		Config:   cfg,
		Fs:       afero.NewOsFs(),
		keySizes: make(map[int]map[string]int64),
	}
	ctx.TxEngine = txn.NewEngine(ctx.Watches)

	ctx.Store.OnEvict(ctx.evictKey)

	for i := 0; i < st.DatabaseCount(); i++ {
		db := st.DB(i)
		idx := i
		db.AddHook(func(m store.Mutation) {
			ctx.Watches.OnMutation(m.DB, m.Key)
			if m.Kind != store.MutationDelete {
				ctx.Blocking.Notify(blocking.Target{DB: idx, Key: m.Key})
			}
			ctx.accountMemory(idx, m)
		})
	}
	return ctx
}

// accountMemory is the §4.2/§5 write-admission step: every committed
// mutation re-estimates its key's footprint, notes the delta against
// the maxmemory budget, and — if that note pushes the store over
// budget — runs the approximate-LRU sampler to evict until it no
// longer is. Eviction itself happens in evictKey, via Store.OnEvict,
// so a key sacrificed under memory pressure is deleted and propagated
// exactly like an ordinary DEL.
func (c *ExecContext) accountMemory(dbIdx int, m store.Mutation) {
	c.memMu.Lock()
	sizes, ok := c.keySizes[dbIdx]
	if !ok {
		sizes = make(map[string]int64)
		c.keySizes[dbIdx] = sizes
	}
	prev := sizes[m.Key]
	c.memMu.Unlock()

	var next int64
	if m.Kind != store.MutationDelete {
		if entry, present := c.Store.DB(dbIdx).Get(m.Key); present {
			next = approxEntrySize(m.Key, entry)
		}
	}

	c.memMu.Lock()
	if next == 0 {
		delete(sizes, m.Key)
	} else {
		sizes[m.Key] = next
	}
	c.memMu.Unlock()

	if delta := next - prev; delta != 0 {
		if c.Store.Note(delta) {
			c.Store.EvictUntilUnderBudget()
		}
	}
}

// evictKey is registered with Store.OnEvict: it runs when the
// approximate-LRU sampler picks a victim under memory pressure,
// deleting it from its database and propagating the deletion to
// AOF/replication exactly like a command-issued DEL (§4.2's "eviction
// is itself a write").
func (c *ExecContext) evictKey(dbIdx int, key string) {
	d := c.Store.DB(dbIdx)
	var deleted bool
	d.WithKeysLocked([]string{key}, func() {
		deleted = d.DeleteLocked(key)
	})
	if !deleted {
		return
	}
	d.EmitDelete(key)
	c.propagateWrite(dbIdx, [][]byte{[]byte("DEL"), []byte(key)})
	log.Component("store").WithField("db", dbIdx).WithField("key", key).Debug("evicted key under maxmemory pressure")
}

// AOFWriter returns the currently attached append-log writer, or nil.
func (c *ExecContext) AOFWriter() *aof.Writer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.AOF
}

// AttachAOF installs w as the append-log writer propagated writes go to.
func (c *ExecContext) AttachAOF(w *aof.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AOF = w
}

// AttachMaster installs m as the replication backlog propagated writes
// go to.
func (c *ExecContext) AttachMaster(m *replication.Master) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Master = m
}

// AttachReplica marks this server as a replication sink.
func (c *ExecContext) AttachReplica(r *replication.Replica) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Replica = r
}

// propagateWrite is the §4.2 "emit to replication pipe and append log
// if enabled" step, invoked by Dispatch and Execute once for every
// successfully executed write command (and by evictKey for an evicted
// key). It counts the write toward DirtySinceSave, then sends it to the
// attached append log and replication master, if any, prefixed by a
// SELECT of db, the database the command ran against. The SELECT is
// sent every time, not only when the database changes — redundant
// SELECTs are harmless and this path is not the hot read path.
func (c *ExecContext) propagateWrite(db int, args [][]byte) {
	c.mu.Lock()
	c.dirtySinceSave++
	w, m := c.AOF, c.Master
	c.mu.Unlock()

	if w == nil && m == nil {
		return
	}

	selectArgs := [][]byte{[]byte("SELECT"), []byte(strconv.Itoa(db))}

	if w != nil {
		if err := w.Append(selectArgs); err != nil {
			log.Component("command").WithError(err).Error("aof append (SELECT) failed")
		}
		if err := w.Append(args); err != nil {
			log.Component("command").WithError(err).Error("aof append failed")
		}
	}
	if m != nil {
		m.Propagate(resp.MarshalCommand(selectArgs))
		m.Propagate(resp.MarshalCommand(args))
	}
}

// DirtySinceSave returns how many write commands have been propagated
// since the last successful SAVE/BGSAVE, the signal §4.9's automatic
// background save threshold checks against.
func (c *ExecContext) DirtySinceSave() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirtySinceSave
}

// ResetDirtyCounter zeroes the dirty-since-save counter, called after a
// snapshot completes.
func (c *ExecContext) ResetDirtyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirtySinceSave = 0
}

// IsReplica reports whether this server is currently a replication sink
// with an upstream master configured (the read-only-replica guard,
// §4.11).
func (c *ExecContext) IsReplica() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Replica != nil && c.Replica.MasterAddr() != ""
}

// scriptRedisCall adapts Execute into the script.RedisCall signature
// used by EVAL's nested redis_call, running against the same session
// (and therefore the same selected database) as the script itself but
// bypassing that session's own transaction buffer (§4.12).
func (c *ExecContext) scriptRedisCall(sess *session.Session) script.RedisCall {
	return func(_ context.Context, args [][]byte) resp.Value {
		return Execute(c, sess, args)
	}
}

