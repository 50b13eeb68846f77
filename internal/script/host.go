// Package script defines the boundary between the server core and an
// external script interpreter (§4.12): caching of script sources by
// their SHA1 digest, the nested redis_call contract, and the
// instruction-count ceiling enforced at this boundary rather than
// inside whatever interpreter is plugged in. No interpreter lives here
// — Interpreter is implemented by a peer system.
package script

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/dreamware/torudis/internal/resp"
)

// ErrNoScript is returned by EvalSHA when the digest is not cached,
// mirroring the reference NOSCRIPT error.
var ErrNoScript = errors.New("NOSCRIPT No matching script. Please use EVAL.")

// ErrInstructionLimitExceeded is returned when a running script reports
// more instructions executed than the configured ceiling.
var ErrInstructionLimitExceeded = errors.New("ERR Script exceeded configured instruction limit")

// RedisCall is the nested-command callback a script invokes to run a
// command through the ordinary dispatcher, bypassing the caller's
// transaction buffer and inheriting its selected database (§4.12).
type RedisCall func(ctx context.Context, args [][]byte) resp.Value

// Budget is how an Interpreter reports its own progress back to the
// host so the host can enforce the instruction ceiling without knowing
// anything about the interpreter's internals. An interpreter calls
// Spend periodically (e.g. once per executed opcode or loop
// iteration); Spend returns a non-nil error once the budget configured
// for this run is exhausted, which the interpreter is expected to
// treat as a request to abort and return that error from Eval.
type Budget interface {
	Spend(instructions int64) error
}

// Interpreter is implemented by the actual script engine. Eval runs
// source to completion or failure and must return a RESP-representable
// value. call lets the script run nested commands; budget lets the
// interpreter cooperatively enforce the instruction ceiling — the host
// cannot interrupt a foreign interpreter's call stack by itself.
type Interpreter interface {
	Eval(ctx context.Context, source string, keys, argv [][]byte, call RedisCall, budget Budget) (resp.Value, error)
}

// Host is the single point of contact between the command dispatcher
// and a plugged-in Interpreter: script source cache, the
// exactly-one-script-at-a-time execution lock (§4.12's "the server is
// blocked" while a script runs), and instruction-budget enforcement.
type Host struct {
	mu               sync.Mutex // held for the whole duration of one Eval, serializing scripts and representing the "server blocked" contract
	cacheMu          sync.RWMutex
	cache            map[string]string // sha1 hex -> source
	interp           Interpreter
	maxInstructions  int64
}

// NewHost returns a host with an empty script cache. maxInstructions is
// the per-invocation instruction ceiling (§ Open Questions: fixed at
// 5,000,000 by default, exposed as Config.ScriptMaxInstructions).
func NewHost(interp Interpreter, maxInstructions int64) *Host {
	return &Host{
		cache:           make(map[string]string),
		interp:          interp,
		maxInstructions: maxInstructions,
	}
}

// Load caches source and returns its SHA1 digest, for later
// SCRIPT EXISTS / EVALSHA lookups.
func (h *Host) Load(source string) string {
	sum := sha1.Sum([]byte(source))
	digest := hex.EncodeToString(sum[:])
	h.cacheMu.Lock()
	h.cache[digest] = source
	h.cacheMu.Unlock()
	return digest
}

// Exists reports whether digest is cached.
func (h *Host) Exists(digest string) bool {
	h.cacheMu.RLock()
	defer h.cacheMu.RUnlock()
	_, ok := h.cache[digest]
	return ok
}

// Flush empties the script cache (SCRIPT FLUSH).
func (h *Host) Flush() {
	h.cacheMu.Lock()
	h.cache = make(map[string]string)
	h.cacheMu.Unlock()
}

// Eval runs source synchronously, caching it as a side effect (so a
// subsequent EVALSHA of the same digest hits the cache, matching the
// reference EVAL's caching behavior).
func (h *Host) Eval(ctx context.Context, source string, keys, argv [][]byte, call RedisCall) (resp.Value, error) {
	h.Load(source)
	return h.run(ctx, source, keys, argv, call)
}

// EvalSHA runs the script cached under digest, returning ErrNoScript if
// it is not known to this host.
func (h *Host) EvalSHA(ctx context.Context, digest string, keys, argv [][]byte, call RedisCall) (resp.Value, error) {
	h.cacheMu.RLock()
	source, ok := h.cache[digest]
	h.cacheMu.RUnlock()
	if !ok {
		return resp.Value{}, ErrNoScript
	}
	return h.run(ctx, source, keys, argv, call)
}

func (h *Host) run(ctx context.Context, source string, keys, argv [][]byte, call RedisCall) (resp.Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	budget := &instructionBudget{max: h.maxInstructions}
	return h.interp.Eval(ctx, source, keys, argv, call, budget)
}

type instructionBudget struct {
	max   int64
	spent int64
}

func (b *instructionBudget) Spend(instructions int64) error {
	if b.max <= 0 {
		return nil
	}
	b.spent += instructions
	if b.spent > b.max {
		return ErrInstructionLimitExceeded
	}
	return nil
}
