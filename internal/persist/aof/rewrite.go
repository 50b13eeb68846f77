package aof

import (
	"bufio"
	"strconv"

	"github.com/spf13/afero"

	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/store"
	"github.com/dreamware/torudis/internal/values"
)

// Rewrite produces a minimal log at tmpPath reconstructing every live key
// in st with one or a few commands, the same mechanism BGSAVE uses to
// walk a consistent keyspace view (§4.10). It does not touch the live
// log file; the caller atomically swaps it in via Writer.Replace once
// the rewrite's tail buffer has been appended.
func Rewrite(fs afero.Fs, st *store.Store, tmpPath string) error {
	f, err := fs.Create(tmpPath)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	for i := 0; i < st.DatabaseCount(); i++ {
		db := st.DB(i)
		keys := db.Keys(nil)
		if len(keys) == 0 {
			continue
		}
		if _, err := bw.Write(resp.MarshalCommandStrings("SELECT", strconv.Itoa(i))); err != nil {
			return err
		}
		for _, key := range keys {
			e, ok := db.Get(key)
			if !ok {
				continue
			}
			if err := writeCommandsFor(bw, key, e); err != nil {
				return err
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return nil
}

func writeCommandsFor(bw *bufio.Writer, key string, e *store.Entry) error {
	switch e.Kind {
	case values.KindString:
		if err := write(bw, "SET", key, string(e.Data.([]byte))); err != nil {
			return err
		}

	case values.KindList:
		l := e.Data.(*values.List)
		items := l.Range(0, -1)
		if len(items) == 0 {
			return nil
		}
		args := make([]string, 0, len(items)+2)
		args = append(args, "RPUSH", key)
		for _, it := range items {
			args = append(args, string(it))
		}
		if err := write(bw, args...); err != nil {
			return err
		}

	case values.KindSet:
		members := e.Data.(*values.Set).Members()
		if len(members) == 0 {
			return nil
		}
		args := make([]string, 0, len(members)+2)
		args = append(args, "SADD", key)
		for _, m := range members {
			args = append(args, string(m))
		}
		if err := write(bw, args...); err != nil {
			return err
		}

	case values.KindHash:
		all := e.Data.(*values.Hash).All()
		if len(all) == 0 {
			return nil
		}
		args := make([]string, 0, len(all)*2+2)
		args = append(args, "HSET", key)
		for f, v := range all {
			args = append(args, f, string(v))
		}
		if err := write(bw, args...); err != nil {
			return err
		}

	case values.KindZSet:
		members := e.Data.(*values.ZSet).All()
		if len(members) == 0 {
			return nil
		}
		args := make([]string, 0, len(members)*2+2)
		args = append(args, "ZADD", key)
		for _, m := range members {
			args = append(args, strconv.FormatFloat(m.Score, 'g', -1, 64), m.Value)
		}
		if err := write(bw, args...); err != nil {
			return err
		}

	case values.KindStream:
		s := e.Data.(*values.Stream)
		entries := s.Range(values.StreamID{}, s.LastID(), 0)
		for _, entry := range entries {
			args := make([]string, 0, len(entry.Fields)*2+3)
			args = append(args, "XADD", key, entry.ID.String())
			for _, fld := range entry.Fields {
				args = append(args, string(fld.Field), string(fld.Value))
			}
			if err := write(bw, args...); err != nil {
				return err
			}
		}
		if len(entries) == 0 {
			return nil
		}
	}

	if e.HasExpiry() {
		if err := write(bw, "PEXPIREAT", key, strconv.FormatInt(e.Deadline, 10)); err != nil {
			return err
		}
	}
	return nil
}

func write(bw *bufio.Writer, args ...string) error {
	_, err := bw.Write(resp.MarshalCommandStrings(args...))
	return err
}
