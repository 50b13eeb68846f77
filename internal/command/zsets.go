package command

import (
	"math"
	"strconv"

	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/session"
	"github.com/dreamware/torudis/internal/store"
	"github.com/dreamware/torudis/internal/values"
)

func registerZSets(r *Registry) {
	r.Register(&Command{Name: "ZADD", Arity: -4, Flags: FlagWrite, Handler: cmdZAdd})
	r.Register(&Command{Name: "ZSCORE", Arity: 3, Flags: FlagReadOnly, Handler: cmdZScore})
	r.Register(&Command{Name: "ZCARD", Arity: 2, Flags: FlagReadOnly, Handler: cmdZCard})
	r.Register(&Command{Name: "ZRANGE", Arity: -4, Flags: FlagReadOnly, Handler: cmdZRange})
	r.Register(&Command{Name: "ZREVRANGE", Arity: -4, Flags: FlagReadOnly, Handler: cmdZRevRange})
	r.Register(&Command{Name: "ZRANGEBYSCORE", Arity: -4, Flags: FlagReadOnly, Handler: cmdZRangeByScore})
	r.Register(&Command{Name: "ZREVRANGEBYSCORE", Arity: -4, Flags: FlagReadOnly, Handler: cmdZRevRangeByScore})
	r.Register(&Command{Name: "ZRANGEBYLEX", Arity: -4, Flags: FlagReadOnly, Handler: cmdZRangeByLex})
	r.Register(&Command{Name: "ZREVRANGEBYLEX", Arity: -4, Flags: FlagReadOnly, Handler: cmdZRevRangeByLex})
	r.Register(&Command{Name: "ZRANK", Arity: 3, Flags: FlagReadOnly, Handler: cmdZRank})
	r.Register(&Command{Name: "ZREVRANK", Arity: 3, Flags: FlagReadOnly, Handler: cmdZRevRank})
	r.Register(&Command{Name: "ZINCRBY", Arity: 4, Flags: FlagWrite, Handler: cmdZIncrBy})
	r.Register(&Command{Name: "ZCOUNT", Arity: 4, Flags: FlagReadOnly, Handler: cmdZCount})
	r.Register(&Command{Name: "ZLEXCOUNT", Arity: 4, Flags: FlagReadOnly, Handler: cmdZLexCount})
	r.Register(&Command{Name: "ZPOPMIN", Arity: -2, Flags: FlagWrite, Handler: cmdZPopMin})
	r.Register(&Command{Name: "ZPOPMAX", Arity: -2, Flags: FlagWrite, Handler: cmdZPopMax})
	r.Register(&Command{Name: "ZREM", Arity: -3, Flags: FlagWrite, Handler: cmdZRem})
	r.Register(&Command{Name: "ZUNIONSTORE", Arity: -4, Flags: FlagWrite, Handler: cmdZUnionStore})
	r.Register(&Command{Name: "ZINTERSTORE", Arity: -4, Flags: FlagWrite, Handler: cmdZInterStore})
}

func getZSetLocked(d *store.Database, key string) (*values.ZSet, bool, bool) {
	e, present := d.GetLocked(key)
	if !present {
		return nil, false, true
	}
	if e.Kind != values.KindZSet {
		return nil, true, false
	}
	return e.Data.(*values.ZSet), true, true
}

func getZSet(d *store.Database, key string) (*values.ZSet, bool, bool) {
	e, present, ok := requireKind(d, key, values.KindZSet)
	if !present || !ok {
		return nil, present, ok
	}
	return e.Data.(*values.ZSet), true, true
}

func membersReply(members []values.Member, withScores bool) resp.Value {
	if withScores {
		out := make([]resp.Value, 0, len(members)*2)
		for _, m := range members {
			out = append(out, resp.BulkStr(m.Value), resp.Bulk(values.FormatFloat(m.Score)))
		}
		return resp.ArrSlice(out)
	}
	out := make([]resp.Value, len(members))
	for i, m := range members {
		out[i] = resp.BulkStr(m.Value)
	}
	return resp.ArrSlice(out)
}

// cmdZAdd implements ZADD's NX/XX/GT/LT/CH/INCR option matrix (§4.3.5).
// NX and XX are mutually exclusive, as are (NX) and (GT or LT); INCR
// only makes sense with a single (score, member) pair.
func cmdZAdd(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	i := 2
	var nx, xx, gt, lt, ch, incr bool
loop:
	for i < len(args) {
		switch string(bytesUpper(args[i])) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "GT":
			gt = true
		case "LT":
			lt = true
		case "CH":
			ch = true
		case "INCR":
			incr = true
		default:
			break loop
		}
		i++
	}
	if nx && (xx || gt || lt) {
		return syntaxError()
	}
	if gt && lt {
		return syntaxError()
	}
	pairs := args[i:]
	if len(pairs) == 0 || len(pairs)%2 != 0 {
		return syntaxError()
	}
	if incr && len(pairs) != 2 {
		return resp.Err("ERR INCR option supports a single increment-element pair")
	}

	type scorePair struct {
		score  float64
		member string
	}
	parsed := make([]scorePair, len(pairs)/2)
	for j := 0; j < len(pairs); j += 2 {
		f, ok := parseFloat(pairs[j])
		if !ok {
			return notFloat()
		}
		parsed[j/2] = scorePair{score: f, member: string(pairs[j+1])}
	}

	d := db(ctx, sess)
	var reply resp.Value
	var wrote, wasPresent bool
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		var z *values.ZSet
		if present {
			if existing.Kind != values.KindZSet {
				reply = wrongType()
				return
			}
			z = existing.Data.(*values.ZSet)
		} else {
			if xx {
				if incr {
					reply = resp.NullBulk()
				} else {
					reply = resp.Int(0)
				}
				return
			}
			z = values.NewZSet()
			d.SetLocked(key, store.NewEntry(values.KindZSet, z))
		}

		added, changed := int64(0), int64(0)
		var incrResult float64
		var incrOK bool
		for _, p := range parsed {
			oldScore, existed := z.Score(p.member)
			if nx && existed {
				continue
			}
			if xx && !existed {
				continue
			}
			newScore := p.score
			if incr {
				newScore = oldScore + p.score
				if math.IsNaN(newScore) {
					reply = resp.Err("ERR resulting score is not a number (NaN)")
					return
				}
				if existed {
					if gt && newScore <= oldScore {
						continue
					}
					if lt && newScore >= oldScore {
						continue
					}
				}
				incrResult = newScore
				incrOK = true
			} else {
				if existed {
					if gt && newScore <= oldScore {
						continue
					}
					if lt && newScore >= oldScore {
						continue
					}
					if newScore == oldScore {
						continue
					}
				}
			}
			z.Set(p.member, newScore)
			if !existed {
				added++
			} else {
				changed++
			}
		}

		wasPresent = present
		wrote = true
		if incr {
			if !incrOK {
				reply = resp.NullBulk()
			} else {
				reply = resp.Bulk(values.FormatFloat(incrResult))
			}
			return
		}
		if ch {
			reply = resp.Int(added + changed)
		} else {
			reply = resp.Int(added)
		}
	})
	if wrote {
		if wasPresent {
			d.EmitTouch(key)
		} else {
			d.EmitSet(key)
		}
	}
	return reply
}

func cmdZScore(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	z, present, ok := getZSet(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.NullBulk()
	}
	score, found := z.Score(string(args[2]))
	if !found {
		return resp.NullBulk()
	}
	return resp.Bulk(values.FormatFloat(score))
}

func cmdZCard(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	z, present, ok := getZSet(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.Int(0)
	}
	return resp.Int(int64(z.Len()))
}

// parseScoreBound parses a ZRANGEBYSCORE-style bound: "-inf"/"+inf" or a
// float, optionally prefixed with "(" for exclusive.
func parseScoreBound(b []byte) (float64, bool, bool) {
	s := string(b)
	excl := false
	if len(s) > 0 && s[0] == '(' {
		excl = true
		s = s[1:]
	}
	switch s {
	case "-inf", "-Inf", "-INF":
		return math.Inf(-1), excl, true
	case "+inf", "+Inf", "+INF", "inf":
		return math.Inf(1), excl, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, false
	}
	return f, excl, true
}

func parseScoreRange(minB, maxB []byte) (values.ScoreRange, bool) {
	min, minExcl, ok1 := parseScoreBound(minB)
	max, maxExcl, ok2 := parseScoreBound(maxB)
	if !ok1 || !ok2 {
		return values.ScoreRange{}, false
	}
	return values.ScoreRange{Min: min, Max: max, MinExcl: minExcl, MaxExcl: maxExcl}, true
}

// parseLexBound parses a ZRANGEBYLEX-style bound: "-"/"+" sentinels, or a
// member prefixed with "[" (inclusive) or "(" (exclusive).
func parseLexBound(b []byte) (value string, excl, unbounded, ok bool) {
	s := string(b)
	switch s {
	case "-":
		return "", false, true, true
	case "+":
		return "", false, true, true
	}
	if len(s) == 0 {
		return "", false, false, false
	}
	switch s[0] {
	case '[':
		return s[1:], false, false, true
	case '(':
		return s[1:], true, false, true
	default:
		return "", false, false, false
	}
}

func parseLexRange(minB, maxB []byte) (values.LexRange, bool) {
	minVal, minExcl, minUnbounded, ok1 := parseLexBound(minB)
	maxVal, maxExcl, maxUnbounded, ok2 := parseLexBound(maxB)
	if !ok1 || !ok2 {
		return values.LexRange{}, false
	}
	r := values.LexRange{Min: minVal, Max: maxVal, MinExcl: minExcl, MaxExcl: maxExcl}
	if string(minB) == "-" {
		r.MinUnbounded = true
	} else {
		r.MinUnbounded = minUnbounded && string(minB) != "+"
	}
	if string(maxB) == "+" {
		r.MaxUnbounded = true
	}
	return r, true
}

// parseLimit scans a trailing "LIMIT offset count" clause, returning
// (offset, count, consumed). count defaults to -1 (unbounded) absent a
// LIMIT clause.
func parseLimit(args [][]byte) (offset, count int, ok bool) {
	count = -1
	if len(args) == 0 {
		return 0, -1, true
	}
	if len(args) != 3 || string(bytesUpper(args[0])) != "LIMIT" {
		return 0, 0, false
	}
	off, ok1 := parseIntArg(args[1])
	cnt, ok2 := parseIntArg(args[2])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return off, cnt, true
}

func cmdZRangeByScore(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return zRangeByScoreGeneric(ctx, sess, args, false)
}

func cmdZRevRangeByScore(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return zRangeByScoreGeneric(ctx, sess, args, true)
}

func zRangeByScoreGeneric(ctx *ExecContext, sess *session.Session, args [][]byte, rev bool) resp.Value {
	minArg, maxArg := args[2], args[3]
	if rev {
		minArg, maxArg = args[3], args[2]
	}
	r, ok := parseScoreRange(minArg, maxArg)
	if !ok {
		return resp.Err("ERR min or max is not a float")
	}
	withScores := false
	rest := args[4:]
	if len(rest) > 0 && string(bytesUpper(rest[0])) == "WITHSCORES" {
		withScores = true
		rest = rest[1:]
	}
	offset, count, ok := parseLimit(rest)
	if !ok {
		return syntaxError()
	}
	z, present, ok := getZSet(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.ArrSlice(nil)
	}
	return membersReply(z.RangeByScore(r, rev, offset, count), withScores)
}

func cmdZRangeByLex(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return zRangeByLexGeneric(ctx, sess, args, false)
}

func cmdZRevRangeByLex(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return zRangeByLexGeneric(ctx, sess, args, true)
}

func zRangeByLexGeneric(ctx *ExecContext, sess *session.Session, args [][]byte, rev bool) resp.Value {
	minArg, maxArg := args[2], args[3]
	if rev {
		minArg, maxArg = args[3], args[2]
	}
	r, ok := parseLexRange(minArg, maxArg)
	if !ok {
		return resp.Err("ERR min or max not valid string range item")
	}
	offset, count, ok := parseLimit(args[4:])
	if !ok {
		return syntaxError()
	}
	z, present, ok := getZSet(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.ArrSlice(nil)
	}
	members := z.RangeByLex(r, rev)
	if offset > 0 || count >= 0 {
		members = applyLimit(members, offset, count)
	}
	return membersReply(members, false)
}

func applyLimit(members []values.Member, offset, count int) []values.Member {
	if offset >= len(members) {
		return nil
	}
	members = members[offset:]
	if count >= 0 && count < len(members) {
		members = members[:count]
	}
	return members
}

// cmdZRange implements the unified ZRANGE with BYSCORE/BYLEX/REV/LIMIT/
// WITHSCORES (§4.3.5); absent BYSCORE/BYLEX it behaves as a plain
// rank-indexed range (ZRANGE's original form).
func cmdZRange(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	byScore, byLex, rev, withScores := false, false, false, false
	var limitArgs [][]byte
	rest := args[4:]
	for len(rest) > 0 {
		switch string(bytesUpper(rest[0])) {
		case "BYSCORE":
			byScore = true
			rest = rest[1:]
		case "BYLEX":
			byLex = true
			rest = rest[1:]
		case "REV":
			rev = true
			rest = rest[1:]
		case "WITHSCORES":
			withScores = true
			rest = rest[1:]
		case "LIMIT":
			if len(rest) < 3 {
				return syntaxError()
			}
			limitArgs = rest[0:3]
			rest = rest[3:]
		default:
			return syntaxError()
		}
	}
	if byScore && byLex {
		return syntaxError()
	}

	d := db(ctx, sess)
	key := string(args[1])

	if byLex {
		if withScores {
			return resp.Err("ERR syntax error, WITHSCORES not supported in combination with BYLEX")
		}
		minArg, maxArg := args[2], args[3]
		if rev {
			minArg, maxArg = args[3], args[2]
		}
		r, ok := parseLexRange(minArg, maxArg)
		if !ok {
			return resp.Err("ERR min or max not valid string range item")
		}
		offset, count, ok := parseLimit(limitArgs)
		if !ok {
			return syntaxError()
		}
		z, present, ok := getZSet(d, key)
		if !ok {
			return wrongType()
		}
		if !present {
			return resp.ArrSlice(nil)
		}
		members := z.RangeByLex(r, rev)
		members = applyLimit(members, offset, count)
		return membersReply(members, false)
	}

	if byScore {
		minArg, maxArg := args[2], args[3]
		if rev {
			minArg, maxArg = args[3], args[2]
		}
		r, ok := parseScoreRange(minArg, maxArg)
		if !ok {
			return resp.Err("ERR min or max is not a float")
		}
		offset, count, ok := parseLimit(limitArgs)
		if !ok {
			return syntaxError()
		}
		z, present, ok := getZSet(d, key)
		if !ok {
			return wrongType()
		}
		if !present {
			return resp.ArrSlice(nil)
		}
		return membersReply(z.RangeByScore(r, rev, offset, count), withScores)
	}

	if len(limitArgs) > 0 {
		return resp.Err("ERR syntax error, LIMIT is only supported in combination with either BYSCORE or BYLEX")
	}
	start, ok1 := parseIntArg(args[2])
	stop, ok2 := parseIntArg(args[3])
	if !ok1 || !ok2 {
		return notInteger()
	}
	z, present, ok := getZSet(d, key)
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.ArrSlice(nil)
	}
	return membersReply(z.RangeByRank(start, stop, rev), withScores)
}

func cmdZRevRange(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	start, ok1 := parseIntArg(args[2])
	stop, ok2 := parseIntArg(args[3])
	if !ok1 || !ok2 {
		return notInteger()
	}
	withScores := false
	if len(args) >= 5 && string(bytesUpper(args[4])) == "WITHSCORES" {
		withScores = true
	}
	z, present, ok := getZSet(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.ArrSlice(nil)
	}
	return membersReply(z.RangeByRank(start, stop, true), withScores)
}

func cmdZRank(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return zRankGeneric(ctx, sess, args, false)
}

func cmdZRevRank(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return zRankGeneric(ctx, sess, args, true)
}

func zRankGeneric(ctx *ExecContext, sess *session.Session, args [][]byte, rev bool) resp.Value {
	z, present, ok := getZSet(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.NullBulk()
	}
	rank, found := z.Rank(string(args[2]))
	if !found {
		return resp.NullBulk()
	}
	if rev {
		rank = z.Len() - 1 - rank
	}
	return resp.Int(int64(rank))
}

func cmdZIncrBy(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	delta, ok := parseFloat(args[2])
	if !ok {
		return notFloat()
	}
	key := string(args[1])
	d := db(ctx, sess)
	var reply resp.Value
	var wrote, wasPresent bool
	d.WithKeysLocked([]string{key}, func() {
		existing, present := d.GetLocked(key)
		var z *values.ZSet
		if present {
			if existing.Kind != values.KindZSet {
				reply = wrongType()
				return
			}
			z = existing.Data.(*values.ZSet)
		} else {
			z = values.NewZSet()
			d.SetLocked(key, store.NewEntry(values.KindZSet, z))
		}
		old, _ := z.Score(string(args[3]))
		newScore := old + delta
		if math.IsNaN(newScore) {
			reply = resp.Err("ERR resulting score is not a number (NaN)")
			return
		}
		z.Set(string(args[3]), newScore)
		wasPresent = present
		wrote = true
		reply = resp.Bulk(values.FormatFloat(newScore))
	})
	if wrote {
		if wasPresent {
			d.EmitTouch(key)
		} else {
			d.EmitSet(key)
		}
	}
	return reply
}

func cmdZCount(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	r, ok := parseScoreRange(args[2], args[3])
	if !ok {
		return resp.Err("ERR min or max is not a float")
	}
	z, present, ok := getZSet(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.Int(0)
	}
	return resp.Int(int64(z.Count(r)))
}

func cmdZLexCount(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	r, ok := parseLexRange(args[2], args[3])
	if !ok {
		return resp.Err("ERR min or max not valid string range item")
	}
	z, present, ok := getZSet(db(ctx, sess), string(args[1]))
	if !ok {
		return wrongType()
	}
	if !present {
		return resp.Int(0)
	}
	return resp.Int(int64(z.LexCount(r)))
}

func cmdZPopMin(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return zPopGeneric(ctx, sess, args, false)
}

func cmdZPopMax(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return zPopGeneric(ctx, sess, args, true)
}

func zPopGeneric(ctx *ExecContext, sess *session.Session, args [][]byte, max bool) resp.Value {
	count := 1
	if len(args) >= 3 {
		n, ok := parseIntArg(args[2])
		if !ok || n < 0 {
			return resp.Err("ERR value is out of range, must be positive")
		}
		count = n
	}
	key := string(args[1])
	d := db(ctx, sess)
	var reply resp.Value
	var emptied, touched bool
	d.WithKeysLocked([]string{key}, func() {
		z, present, ok := getZSetLocked(d, key)
		if !ok {
			reply = wrongType()
			return
		}
		if !present {
			reply = resp.ArrSlice(nil)
			return
		}
		var popped []values.Member
		if max {
			popped = z.PopMax(count)
		} else {
			popped = z.PopMin(count)
		}
		if z.Len() == 0 {
			d.DeleteLocked(key)
			emptied = true
		} else if len(popped) > 0 {
			touched = true
		}
		reply = membersReply(popped, true)
	})
	if emptied {
		d.EmitDelete(key)
	} else if touched {
		d.EmitTouch(key)
	}
	return reply
}

func cmdZRem(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	key := string(args[1])
	d := db(ctx, sess)
	var reply resp.Value
	var emptied, touched bool
	d.WithKeysLocked([]string{key}, func() {
		z, present, ok := getZSetLocked(d, key)
		if !ok {
			reply = wrongType()
			return
		}
		if !present {
			reply = resp.Int(0)
			return
		}
		removed := int64(0)
		for _, m := range args[2:] {
			if z.Remove(string(m)) {
				removed++
			}
		}
		if z.Len() == 0 {
			d.DeleteLocked(key)
			emptied = true
		} else if removed > 0 {
			touched = true
		}
		reply = resp.Int(removed)
	})
	if emptied {
		d.EmitDelete(key)
	} else if touched {
		d.EmitTouch(key)
	}
	return reply
}

// zStoreGeneric implements ZUNIONSTORE/ZINTERSTORE: numkeys source keys
// (which may be plain sets, treated as all-score-1 per §4.3.5), optional
// WEIGHTS and an AGGREGATE mode, combined under a single multi-key lock
// spanning dest and every source key.
func zStoreGeneric(ctx *ExecContext, sess *session.Session, args [][]byte, union bool) resp.Value {
	dest := string(args[1])
	numKeys, ok := parseIntArg(args[2])
	if !ok || numKeys <= 0 || len(args) < 3+numKeys {
		return resp.Err("ERR at least 1 input key is needed")
	}
	srcKeys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		srcKeys[i] = string(args[3+i])
	}
	rest := args[3+numKeys:]
	weights := make([]float64, numKeys)
	for i := range weights {
		weights[i] = 1
	}
	aggregate := "SUM"
	for len(rest) > 0 {
		switch string(bytesUpper(rest[0])) {
		case "WEIGHTS":
			if len(rest) < 1+numKeys {
				return syntaxError()
			}
			for i := 0; i < numKeys; i++ {
				w, ok := parseFloat(rest[1+i])
				if !ok {
					return resp.Err("ERR weight value is not a float")
				}
				weights[i] = w
			}
			rest = rest[1+numKeys:]
		case "AGGREGATE":
			if len(rest) < 2 {
				return syntaxError()
			}
			aggregate = string(bytesUpper(rest[1]))
			if aggregate != "SUM" && aggregate != "MIN" && aggregate != "MAX" {
				return syntaxError()
			}
			rest = rest[2:]
		default:
			return syntaxError()
		}
	}

	d := db(ctx, sess)
	keys := append([]string{dest}, srcKeys...)
	var reply resp.Value
	var emptied, stored bool
	d.WithKeysLocked(keys, func() {
		perKeyScores := make([]map[string]float64, len(srcKeys))
		for i, k := range srcKeys {
			e, ok := d.GetLocked(k)
			if !ok {
				perKeyScores[i] = map[string]float64{}
				continue
			}
			scores := make(map[string]float64)
			switch e.Kind {
			case values.KindZSet:
				for _, m := range e.Data.(*values.ZSet).All() {
					scores[m.Value] = m.Score
				}
			case values.KindSet:
				for _, m := range e.Data.(*values.Set).Members() {
					scores[string(m)] = 1
				}
			default:
				reply = wrongType()
				return
			}
			perKeyScores[i] = scores
		}

		combine := func(a, b float64) float64 {
			switch aggregate {
			case "MIN":
				if b < a {
					return b
				}
				return a
			case "MAX":
				if b > a {
					return b
				}
				return a
			default:
				return a + b
			}
		}

		acc := make(map[string]float64)
		seenCount := make(map[string]int)
		for i, scores := range perKeyScores {
			for member, score := range scores {
				weighted := score * weights[i]
				if seenCount[member] == 0 {
					acc[member] = weighted
				} else {
					acc[member] = combine(acc[member], weighted)
				}
				seenCount[member]++
			}
		}
		if !union {
			for member, c := range seenCount {
				if c != len(srcKeys) {
					delete(acc, member)
				}
			}
		}

		result := values.NewZSet()
		for member, score := range acc {
			result.Set(member, score)
		}
		if result.Len() == 0 {
			if d.DeleteLocked(dest) {
				emptied = true
			}
		} else {
			d.SetLocked(dest, store.NewEntry(values.KindZSet, result))
			stored = true
		}
		reply = resp.Int(int64(result.Len()))
	})
	if emptied {
		d.EmitDelete(dest)
	} else if stored {
		d.EmitSet(dest)
	}
	return reply
}

func cmdZUnionStore(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return zStoreGeneric(ctx, sess, args, true)
}

func cmdZInterStore(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	return zStoreGeneric(ctx, sess, args, false)
}
