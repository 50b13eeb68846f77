package aof

import (
	"bufio"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/dreamware/torudis/internal/resp"
)

// Dispatch replays one logged command against the keyspace. The caller
// supplies the real command dispatcher; Replay itself knows nothing
// about command semantics.
type Dispatch func(args [][]byte) error

// Replay reads every command logged at path, in order, and passes each
// to dispatch. A missing file is not an error (a fresh server with no
// prior log). Per §4.10's startup rule, the caller is responsible for
// preferring the append log over a snapshot when both exist.
func Replay(fs afero.Fs, path string, dispatch Dispatch) error {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	dec := resp.NewDecoder(bufio.NewReaderSize(f, 64*1024))
	for {
		args, err := dec.ReadCommand()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(args) == 0 {
			continue
		}
		if err := dispatch(args); err != nil {
			return err
		}
	}
}
