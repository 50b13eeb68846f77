package command

import (
	"os"
	"path/filepath"

	"github.com/dreamware/torudis/internal/log"
	"github.com/dreamware/torudis/internal/persist/aof"
	"github.com/dreamware/torudis/internal/persist/snapshot"
	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
)

func registerAdmin(r *Registry) {
	r.Register(&Command{Name: "SAVE", Arity: 1, Flags: FlagAdmin, Handler: cmdSave})
	r.Register(&Command{Name: "BGSAVE", Arity: -1, Flags: FlagAdmin, Handler: cmdBGSave})
	r.Register(&Command{Name: "BGREWRITEAOF", Arity: 1, Flags: FlagAdmin, Handler: cmdBGRewriteAOF})
	r.Register(&Command{Name: "REPLICAOF", Arity: 3, Flags: FlagAdmin | FlagNotInTx, Handler: cmdReplicaOf})
	r.Register(&Command{Name: "SLAVEOF", Arity: 3, Flags: FlagAdmin | FlagNotInTx, Handler: cmdReplicaOf})
}

func (c *ExecContext) snapshotPath() string {
	return filepath.Join(c.Config.Dir, c.Config.DBFilename)
}

func (c *ExecContext) aofPath() string {
	return filepath.Join(c.Config.Dir, c.Config.AOFFilename)
}

// cmdSave runs §4.9's point-in-time snapshot synchronously, blocking
// the calling connection until the dump file is written.
func cmdSave(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if err := snapshot.Save(ctx.Fs, ctx.Store, ctx.snapshotPath()); err != nil {
		return resp.Errf("ERR %s", err)
	}
	ctx.ResetDirtyCounter()
	return resp.OK()
}

// cmdBGSave forks the same snapshot work onto a goroutine and replies
// immediately, matching the reference protocol's "Background saving
// started" acknowledgement; errors are logged, not surfaced to the
// caller, since the connection has already moved on.
func cmdBGSave(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	path := ctx.snapshotPath()
	go func() {
		if err := snapshot.Save(ctx.Fs, ctx.Store, path); err != nil {
			log.Component("admin").WithError(err).Error("BGSAVE failed")
			return
		}
		ctx.ResetDirtyCounter()
	}()
	return resp.Str("Background saving started")
}

// cmdBGRewriteAOF compacts the append-only log to one command per live
// key (§4.10): a fresh minimal log is written to a temp file while new
// writes are mirrored into a tail buffer, then the tail is appended and
// the temp file atomically replaces the live log.
func cmdBGRewriteAOF(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	ctx.mu.RLock()
	w := ctx.AOF
	ctx.mu.RUnlock()
	if w == nil {
		return resp.Err("ERR Background append only file rewriting is not enabled")
	}
	st := ctx.Store
	fs := ctx.Fs
	tmpPath := ctx.aofPath() + ".rewrite"
	go func() {
		logger := log.Component("admin")
		tail := w.BeginRewrite()
		defer w.FinishRewrite()

		if err := aof.Rewrite(fs, st, tmpPath); err != nil {
			logger.WithError(err).Error("BGREWRITEAOF failed")
			return
		}
		f, err := fs.OpenFile(tmpPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			logger.WithError(err).Error("BGREWRITEAOF: reopening rewrite file failed")
			return
		}
		_, writeErr := f.Write(tail.Bytes())
		closeErr := f.Close()
		if writeErr != nil {
			logger.WithError(writeErr).Error("BGREWRITEAOF: appending tail failed")
			return
		}
		if closeErr != nil {
			logger.WithError(closeErr).Error("BGREWRITEAOF: closing rewrite file failed")
			return
		}
		if err := w.Replace(tmpPath); err != nil {
			logger.WithError(err).Error("BGREWRITEAOF: replace failed")
		}
	}()
	return resp.Str("Background append only file rewriting started")
}

// cmdReplicaOf implements REPLICAOF host port / REPLICAOF NO ONE
// (§4.11). The command layer only updates the Replica handle's
// declared target; dialing the master (or tearing the link down and
// promoting back to standalone) is left to OnReplicaOf, wired by the
// network layer.
func cmdReplicaOf(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	host := string(args[1])
	port := string(args[2])

	if ctx.Replica == nil {
		return resp.Err("ERR this server was not started with replication support")
	}

	if string(bytesUpper(args[1])) == "NO" && string(bytesUpper(args[2])) == "ONE" {
		ctx.Replica.Disconnect()
		ctx.Replica.ReplicaOf("")
		if ctx.OnReplicaOf != nil {
			ctx.OnReplicaOf("")
		}
		return resp.OK()
	}

	addr := host + ":" + port
	ctx.Replica.ReplicaOf(addr)
	if ctx.OnReplicaOf != nil {
		ctx.OnReplicaOf(addr)
	}
	return resp.OK()
}
