package command

import (
	"context"
	"strings"
	"time"

	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/script"
	"github.com/dreamware/torudis/internal/session"
)

func registerScripting(r *Registry) {
	r.Register(&Command{Name: "EVAL", Arity: -3, Flags: FlagNoScript, Handler: cmdEval})
	r.Register(&Command{Name: "EVALSHA", Arity: -3, Flags: FlagNoScript, Handler: cmdEvalSHA})
	r.Register(&Command{Name: "SCRIPT", Arity: -2, Flags: FlagNoScript | FlagNotInTx, Handler: cmdScript})
}

// splitKeysArgv parses the shared EVAL/EVALSHA tail: a numkeys count,
// that many key arguments, then the remaining argv arguments (§4.12).
func splitKeysArgv(args [][]byte) (keys, argv [][]byte, ok bool) {
	numkeys, parsed := parseIntArg(args[2])
	if !parsed || numkeys < 0 {
		return nil, nil, false
	}
	rest := args[3:]
	if len(rest) < numkeys {
		return nil, nil, false
	}
	return rest[:numkeys], rest[numkeys:], true
}

func cmdEval(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if ctx.Script == nil {
		return resp.Err("ERR this server has no script interpreter configured")
	}
	keys, argv, ok := splitKeysArgv(args)
	if !ok {
		return resp.Err("ERR Number of keys can't be negative")
	}
	source := string(args[1])
	evCtx, cancel := ctx.scriptDeadline()
	defer cancel()
	reply, err := ctx.Script.Eval(evCtx, source, keys, argv, ctx.scriptRedisCall(sess))
	return scriptReply(reply, err)
}

func cmdEvalSHA(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if ctx.Script == nil {
		return resp.Err("ERR this server has no script interpreter configured")
	}
	keys, argv, ok := splitKeysArgv(args)
	if !ok {
		return resp.Err("ERR Number of keys can't be negative")
	}
	digest := strings.ToLower(string(args[1]))
	evCtx, cancel := ctx.scriptDeadline()
	defer cancel()
	reply, err := ctx.Script.EvalSHA(evCtx, digest, keys, argv, ctx.scriptRedisCall(sess))
	return scriptReply(reply, err)
}

func scriptReply(reply resp.Value, err error) resp.Value {
	if err != nil {
		if err == script.ErrNoScript || err == script.ErrInstructionLimitExceeded {
			return resp.Err(err.Error())
		}
		return resp.Errf("ERR %s", err)
	}
	return reply
}

// scriptDeadline bounds a running script to Config.ScriptMaxRunMS, the
// wall-clock half of §4.12's "busy script" ceiling (instruction counting
// is the interpreter-cooperative half, enforced inside script.Host).
func (c *ExecContext) scriptDeadline() (context.Context, context.CancelFunc) {
	if c.Config.ScriptMaxRunMS <= 0 {
		return context.Background(), func() {}
	}
	return context.WithTimeout(context.Background(), time.Duration(c.Config.ScriptMaxRunMS)*time.Millisecond)
}

func cmdScript(ctx *ExecContext, sess *session.Session, args [][]byte) resp.Value {
	if ctx.Script == nil {
		return resp.Err("ERR this server has no script interpreter configured")
	}
	sub := strings.ToUpper(string(args[1]))
	switch sub {
	case "LOAD":
		if len(args) != 3 {
			return wrongArgs("SCRIPT|LOAD")
		}
		digest := ctx.Script.Load(string(args[2]))
		return resp.BulkStr(digest)
	case "EXISTS":
		out := make([]resp.Value, len(args)-2)
		for i, a := range args[2:] {
			if ctx.Script.Exists(strings.ToLower(string(a))) {
				out[i] = resp.Int(1)
			} else {
				out[i] = resp.Int(0)
			}
		}
		return resp.ArrSlice(out)
	case "FLUSH":
		ctx.Script.Flush()
		return resp.OK()
	default:
		return resp.Errf("ERR Unknown SCRIPT subcommand or wrong number of arguments for '%s'", args[1])
	}
}
