// Package command implements the command registry and dispatcher
// (§4.4): the name/arity/flag table every handler is registered under,
// the six-step dispatch sequence, and the handler functions themselves,
// grouped by the value kind or connection concern they belong to. This
// is the package that wires together every other package in this
// module — store, session, txn, blocking, pubsub, persist/aof,
// persist/snapshot, replication and script — into one command surface.
package command

import (
	"strings"

	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
)

// Flags classifies a command along the axes the dispatcher and
// transaction/replication/scripting layers need to decide things
// without a name-based special case.
type Flags uint16

const (
	FlagWrite       Flags = 1 << iota // mutates the keyspace; gets propagated to AOF/replicas
	FlagReadOnly                      // never mutates; allowed on a read-only replica link
	FlagAdmin                         // administrative command, not meaningful inside a script
	FlagPubSub                        // allowed while a connection is in subscribed mode
	FlagNoScript                      // refused inside EVAL/EVALSHA
	FlagNotInTx                       // executes immediately even inside MULTI, never queued
	FlagLoading                       // allowed while the server is still loading an AOF/snapshot
)

// Handler executes one already-arity-checked command and returns its
// reply.
type Handler func(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value

// Command is one registry entry.
type Command struct {
	Name string
	// Arity mirrors the reference command-table convention: a positive
	// number is the exact argument count including the command name
	// itself; a negative number is a minimum (-3 means "3 or more").
	Arity   int
	Flags   Flags
	Handler Handler
}

func (c *Command) checkArity(argc int) bool {
	if c.Arity >= 0 {
		return argc == c.Arity
	}
	return argc >= -c.Arity
}

// Registry is the name -> Command table, looked up case-insensitively
// per §4.4 ("uppercase-name lookup").
type Registry struct {
	commands map[string]*Command
}

// NewRegistry returns a registry with every built-in command registered.
func NewRegistry() *Registry {
	r := &Registry{commands: make(map[string]*Command)}
	registerGeneric(r)
	registerStrings(r)
	registerLists(r)
	registerSets(r)
	registerHashes(r)
	registerZSets(r)
	registerStreams(r)
	registerTransactions(r)
	registerPubSub(r)
	registerAdmin(r)
	registerScripting(r)
	return r
}

// Register adds (or replaces) a command entry.
func (r *Registry) Register(c *Command) {
	r.commands[strings.ToUpper(c.Name)] = c
}

// Lookup returns the command named name (case-insensitively), if known.
func (r *Registry) Lookup(name string) (*Command, bool) {
	c, ok := r.commands[strings.ToUpper(name)]
	return c, ok
}
