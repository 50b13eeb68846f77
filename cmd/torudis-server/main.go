// Command torudis-server is the network entrypoint: it wires the store,
// command registry, persistence and replication layers together behind
// one RESP listener per §6.1/§6.4, the same "accept loop, one goroutine
// per connection, graceful shutdown on signal" shape the reference
// topology's node service uses for its HTTP listener.
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dreamware/torudis/internal/command"
	"github.com/dreamware/torudis/internal/config"
	"github.com/dreamware/torudis/internal/log"
	"github.com/dreamware/torudis/internal/persist/aof"
	"github.com/dreamware/torudis/internal/persist/snapshot"
	"github.com/dreamware/torudis/internal/pubsub"
	"github.com/dreamware/torudis/internal/replication"
	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
	"github.com/dreamware/torudis/internal/store"
)

func main() {
	var configFile string

	root := &cobra.Command{
		Use:   "torudis-server [config-file]",
		Short: "an in-memory, RESP-compatible key/value server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				configFile = args[0]
			}
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				log.SetLevel(lvl)
			}
			cfg, v, err := config.Load(configFile, bindFlags(cmd))
			if err != nil {
				return err
			}
			cfg.Watch(v)
			return run(cfg)
		},
	}

	flags := root.Flags()
	flags.String("bind", "", "address to listen on")
	flags.Int("port", 0, "port to listen on")
	flags.String("dir", "", "working directory for snapshot/AOF files")
	flags.String("dbfilename", "", "snapshot file name")
	flags.String("requirepass", "", "require clients to authenticate")
	flags.String("replicaof", "", "host port of a master to replicate from")
	flags.Bool("appendonly", false, "enable the append-only log")
	flags.String("appendfsync", "", "always | everysec | no")
	flags.Int("databases", 0, "number of logical databases")
	flags.String("log-level", "info", "debug | info | warn | error")

	if err := root.Execute(); err != nil {
		log.Component("main").WithError(err).Error("fatal startup error")
		os.Exit(1)
	}
}

// bindFlags returns the callback config.Load invokes to layer cobra's
// flags on top of defaults/file/env, per §6.4.
func bindFlags(cmd *cobra.Command) func(*viper.Viper) {
	return func(v *viper.Viper) {
		for _, name := range []string{"bind", "port", "dir", "dbfilename", "requirepass", "replicaof", "appendonly", "appendfsync", "databases"} {
			_ = v.BindPFlag(name, cmd.Flags().Lookup(name))
		}
	}
}

// server is the process-wide runtime state the accept loop and every
// connection goroutine share.
type server struct {
	cfg *config.Config
	ctx *command.ExecContext
	st  *store.Store

	mu          sync.Mutex
	subscribers map[uint64]*pubsub.Subscriber

	nextConnID uint64
}

func run(cfg *config.Config) error {
	logger := log.Component("main")

	st := store.New(store.Options{
		Databases:      cfg.Databases,
		Shards:         cfg.Shards,
		MaxMemoryBytes: cfg.MaxMemoryBytes,
	})
	st.StartSweeper(100*time.Millisecond, 20)
	defer st.StopSweeper()

	srv := &server{
		cfg:         cfg,
		st:          st,
		subscribers: make(map[uint64]*pubsub.Subscriber),
	}

	ctx := command.NewExecContext(st, cfg, nil)
	srv.ctx = ctx
	ctx.SubscriberOf = srv.subscriberOf
	ctx.OnReplicaOf = srv.onReplicaOf

	if err := srv.loadPersistedState(); err != nil {
		logger.WithError(err).Error("failed to load persisted state")
		return err
	}

	if cfg.AOFEnabled {
		if err := srv.enableAOF(); err != nil {
			return err
		}
	}

	ctx.AttachMaster(replication.NewMaster(1 << 20))
	ctx.AttachReplica(replication.NewReplica())

	if cfg.ReplicaOf != "" {
		srv.onReplicaOf(cfg.ReplicaOf)
	}

	addr := net.JoinHostPort(cfg.Bind, strconv.Itoa(cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.WithField("addr", addr).Info("torudis-server listening")

	stopAutosave := srv.startAutosave()
	defer stopAutosave()

	go srv.acceptLoop(ln)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	_ = ln.Close()
	if w := srv.ctx.AOFWriter(); w != nil {
		_ = w.Close()
	}
	return nil
}

// loadPersistedState restores the keyspace before the listener opens.
// With appendonly enabled and an append log on disk, only the log is
// replayed, through one session so its SELECTs carry over to the
// commands that follow them; otherwise the snapshot, if present, is
// loaded (§4.9/§4.10).
func (s *server) loadPersistedState() error {
	fs := s.ctx.Fs
	if s.cfg.AOFEnabled {
		aofPath := filepath.Join(s.cfg.Dir, s.cfg.AOFFilename)
		if exists, _ := afero.Exists(fs, aofPath); exists {
			replaySess := session.New(0)
			replaySess.IsReplicaLink = true
			dispatch := func(args [][]byte) error {
				reply := command.Execute(s.ctx, replaySess, args)
				if reply.Type == resp.Error {
					return fmt.Errorf("%s", reply.Str)
				}
				return nil
			}
			if err := aof.Replay(fs, aofPath, dispatch); err != nil {
				return fmt.Errorf("replay aof: %w", err)
			}
			return nil
		}
	}
	snapPath := filepath.Join(s.cfg.Dir, s.cfg.DBFilename)
	if exists, _ := afero.Exists(fs, snapPath); exists {
		if err := snapshot.Load(fs, s.st, snapPath); err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
	}
	return nil
}

func fsyncPolicyFor(name string) aof.FsyncPolicy {
	switch name {
	case "always":
		return aof.FsyncAlways
	case "no":
		return aof.FsyncNo
	default:
		return aof.FsyncEverySec
	}
}

func (s *server) enableAOF() error {
	aofPath := filepath.Join(s.cfg.Dir, s.cfg.AOFFilename)
	w, err := aof.Open(s.ctx.Fs, aofPath, fsyncPolicyFor(s.ctx.Config.Fsync()))
	if err != nil {
		return fmt.Errorf("open aof: %w", err)
	}
	w.StartEverySecFsync()
	s.ctx.AttachAOF(w)
	return nil
}

// startAutosave checks SaveThresholds every second on its own
// time.Ticker and, once the save interval has elapsed and at least the
// configured number of changes has accumulated since the last save,
// runs snapshot.Save synchronously on that goroutine (§4.9's periodic
// background save).
func (s *server) startAutosave() func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		var sinceLastCheck time.Duration
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				sinceLastCheck += time.Second
				interval, changes := s.cfg.SaveThresholds()
				if interval <= 0 || changes <= 0 {
					continue
				}
				if sinceLastCheck >= interval && s.ctx.DirtySinceSave() >= changes {
					sinceLastCheck = 0
					path := filepath.Join(s.cfg.Dir, s.cfg.DBFilename)
					if err := snapshot.Save(s.ctx.Fs, s.st, path); err != nil {
						log.Component("autosave").WithError(err).Error("periodic BGSAVE failed")
						continue
					}
					s.ctx.ResetDirtyCounter()
				}
			}
		}
	}()
	return func() { close(done) }
}

func (s *server) acceptLoop(ln net.Listener) {
	logger := log.Component("listener")
	var active int64
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && !ne.Timeout() {
				return
			}
			logger.WithError(err).Warn("accept failed")
			continue
		}
		if atomic.AddInt64(&active, 1) > int64(s.cfg.MaxClients) {
			atomic.AddInt64(&active, -1)
			_, _ = conn.Write(resp.Marshal(resp.Err("ERR max number of clients reached")))
			_ = conn.Close()
			continue
		}
		go func() {
			defer atomic.AddInt64(&active, -1)
			s.handleConnection(conn)
		}()
	}
}

func (s *server) nextID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextConnID++
	return s.nextConnID
}

func (s *server) subscriberOf(sess *session.Session) *pubsub.Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subscribers[sess.ID]; ok {
		return sub
	}
	sub := pubsub.NewSubscriber(sess.ID, 1024, 1000)
	s.subscribers[sess.ID] = sub
	return sub
}

func (s *server) dropSubscriber(sess *session.Session) {
	s.mu.Lock()
	sub, ok := s.subscribers[sess.ID]
	delete(s.subscribers, sess.ID)
	s.mu.Unlock()
	if ok {
		s.ctx.PubSub.RemoveAll(sub)
	}
}

// handleConnection drives one client's read-dispatch-write loop.
// SYNC/PSYNC is special-cased here rather than through the ordinary
// command registry, because satisfying it means holding the connection
// open for an unbounded, server-initiated stream of future writes
// rather than returning one reply (§4.11).
func (s *server) handleConnection(conn net.Conn) {
	defer conn.Close()
	logger := log.Component("conn").WithField("remote", conn.RemoteAddr().String())

	sess := session.New(s.nextID())
	defer s.dropSubscriber(sess)
	defer s.ctx.TxEngine.Disconnect(sess)

	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)
	dec := resp.NewDecoder(br)

	writerDone := make(chan struct{})
	go s.pumpSubscriberOutbox(sess, conn, writerDone)
	defer close(writerDone)

	for {
		args, err := dec.ReadCommand()
		if err != nil {
			if err != io.EOF {
				logger.WithError(err).Debug("connection read error")
			}
			return
		}
		if len(args) == 0 {
			continue
		}
		name := string(args[0])
		if (name == "SYNC" || name == "sync" || name == "PSYNC" || name == "psync") && s.ctx.Master != nil {
			s.serveReplica(sess, conn, bw)
			return
		}

		reply := command.Dispatch(s.ctx, sess, args)
		bw.Write(resp.Marshal(reply))
		if err := bw.Flush(); err != nil {
			return
		}
	}
}

// pumpSubscriberOutbox forwards pub/sub deliveries queued for sess onto
// its connection, independent of the request/reply read loop, since a
// publish can arrive at any time regardless of what the client last
// asked for (§4.8).
func (s *server) pumpSubscriberOutbox(sess *session.Session, conn net.Conn, done <-chan struct{}) {
	sub := s.subscriberOf(sess)
	for {
		select {
		case <-done:
			return
		case msg, ok := <-sub.Outbox:
			if !ok {
				_ = conn.Close()
				return
			}
			var reply resp.Value
			if msg.Pattern != "" {
				reply = resp.Arr(resp.BulkStr("pmessage"), resp.BulkStr(msg.Pattern), resp.BulkStr(msg.Channel), resp.Bulk(msg.Payload))
			} else {
				reply = resp.Arr(resp.BulkStr("message"), resp.BulkStr(msg.Channel), resp.Bulk(msg.Payload))
			}
			if _, err := conn.Write(resp.Marshal(reply)); err != nil {
				return
			}
		}
	}
}

// serveReplica performs the master side of the §4.11 handshake: it
// always serves a full snapshot (partial resync is not implemented; see
// DESIGN.md's Open Question resolutions), then attaches
// the connection as a replica and blocks until it disconnects.
func (s *server) serveReplica(sess *session.Session, conn net.Conn, bw *bufio.Writer) {
	sess.IsReplicaLink = true
	logger := log.Component("replication").WithField("remote", conn.RemoteAddr().String())

	memFs := afero.NewMemMapFs()
	const tmpPath = "/sync-snapshot"
	if err := snapshot.Save(memFs, s.st, tmpPath); err != nil {
		logger.WithError(err).Error("failed to build sync snapshot")
		return
	}
	payload, err := afero.ReadFile(memFs, tmpPath)
	if err != nil {
		logger.WithError(err).Error("failed to read sync snapshot")
		return
	}

	if _, err := bw.WriteString("$" + strconv.Itoa(len(payload)) + "\r\n"); err != nil {
		return
	}
	if _, err := bw.Write(payload); err != nil {
		return
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return
	}
	if err := bw.Flush(); err != nil {
		return
	}

	var mu sync.Mutex
	send := func(p []byte) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := conn.Write(p)
		return err
	}
	handle := s.ctx.Master.AttachReplica(send)
	defer s.ctx.Master.DetachReplica(handle.ID)
	logger.Info("replica attached")

	buf := make([]byte, 4096)
	for {
		if _, err := conn.Read(buf); err != nil {
			logger.WithError(err).Info("replica detached")
			return
		}
	}
}

// onReplicaOf is installed as ExecContext.OnReplicaOf: addr == "" means
// REPLICAOF NO ONE (promote to standalone master), anything else (re)
// starts the replica connector goroutine against the new master.
func (s *server) onReplicaOf(addr string) {
	if addr == "" {
		if s.ctx.Master != nil {
			s.ctx.Master.ResetEpoch()
		}
		return
	}
	go s.replicaConnectLoop(addr)
}

// replicaConnectLoop dials addr, performs the SYNC handshake, loads the
// returned snapshot, and then applies every subsequently streamed
// command through the normal dispatcher with the replica-link guard
// disabled (§4.11).
func (s *server) replicaConnectLoop(addr string) {
	logger := log.Component("replication").WithField("master", addr)
	replica := s.ctx.Replica
	if replica == nil {
		return
	}
	replica.SetState(replication.LinkConnecting)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		logger.WithError(err).Error("failed to connect to master")
		replica.Disconnect()
		return
	}
	defer conn.Close()

	replica.SetState(replication.LinkSyncing)
	if _, err := conn.Write(resp.MarshalCommandStrings("SYNC")); err != nil {
		logger.WithError(err).Error("failed to send SYNC")
		replica.Disconnect()
		return
	}

	br := bufio.NewReader(conn)
	header, err := br.ReadString('\n')
	if err != nil || len(header) < 2 || header[0] != '$' {
		logger.WithError(err).Error("malformed SYNC reply header")
		replica.Disconnect()
		return
	}
	n, err := strconv.Atoi(header[1 : len(header)-2])
	if err != nil {
		logger.WithError(err).Error("malformed SYNC payload length")
		replica.Disconnect()
		return
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(br, payload); err != nil {
		logger.WithError(err).Error("failed to read SYNC payload")
		replica.Disconnect()
		return
	}
	br.Discard(2) // trailing CRLF

	memFs := afero.NewMemMapFs()
	const tmpPath = "/sync-snapshot"
	if err := afero.WriteFile(memFs, tmpPath, payload, 0o644); err != nil {
		logger.WithError(err).Error("failed to stage snapshot")
		replica.Disconnect()
		return
	}
	for i := 0; i < s.st.DatabaseCount(); i++ {
		s.st.DB(i).Flush()
	}
	if err := snapshot.Load(memFs, s.st, tmpPath); err != nil {
		logger.WithError(err).Error("failed to load snapshot from master")
		replica.Disconnect()
		return
	}
	replica.BeginFullSync(uuid.NewString(), 0)
	logger.Info("full sync complete, applying replication stream")

	dec := resp.NewDecoder(br)
	replSess := session.New(0)
	replSess.IsReplicaLink = true
	for {
		args, err := dec.ReadCommand()
		if err != nil {
			logger.WithError(err).Info("replication link closed")
			replica.Disconnect()
			return
		}
		if len(args) == 0 {
			continue
		}
		n := 0
		for _, a := range args {
			n += len(a)
		}
		command.Execute(s.ctx, replSess, args)
		replica.Advance(uint64(n))
	}
}
