package server

import (
	"context"
	"fmt"
	"os"

	"github.com/pithecene-io/ferry/protocol"
	"github.com/pithecene-io/ferry/storage"
)

// Dispatcher maps parsed commands onto storage backend operations and wraps
// each outcome in a response envelope. It holds no protocol state; only the
// backend has side effects.
type Dispatcher struct {
	store storage.Store
}

// NewDispatcher creates a dispatcher over the given store.
func NewDispatcher(store storage.Store) *Dispatcher {
	return &Dispatcher{store: store}
}

// Dispatch executes one command and returns its envelope. Failures are
// returned as ErrorResult — a bad command or a missing file never takes
// the connection down.
//
// The UPLOAD verb here is internal: the session issues it with the scratch
// file path once an upload stream completes. Remote UPLOAD frames switch
// the session into upload mode before ever reaching the dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd protocol.Command) protocol.Response {
	switch cmd.Verb {
	case protocol.VerbList:
		names, err := d.store.List(ctx)
		if err != nil {
			return protocol.ErrorResult{Message: err.Error()}
		}
		return protocol.ListResult{Names: names}

	case protocol.VerbGet:
		name := cmd.Arg(0)
		if name == "" {
			return protocol.ErrorResult{Message: "GET requires a filename"}
		}
		data, err := d.store.Fetch(ctx, name)
		if err != nil {
			return protocol.ErrorResult{Message: err.Error()}
		}
		return protocol.GetResult{Filename: name, Data: data}

	case protocol.VerbDelete:
		name := cmd.Arg(0)
		if name == "" {
			return protocol.ErrorResult{Message: "DELETE requires a filename"}
		}
		if err := d.store.Remove(ctx, name); err != nil {
			return protocol.ErrorResult{Message: err.Error()}
		}
		return protocol.DeleteResult{}

	case protocol.VerbUpload:
		scratchPath := cmd.Arg(0)
		if scratchPath == "" {
			return protocol.ErrorResult{Message: "UPLOAD requires a scratch path"}
		}
		data, err := os.ReadFile(scratchPath)
		if err != nil {
			return protocol.ErrorResult{Message: fmt.Sprintf("read upload data: %v", err)}
		}
		name, err := d.store.Put(ctx, data)
		if err != nil {
			return protocol.ErrorResult{Message: err.Error()}
		}
		return protocol.UploadResult{StoredName: name}

	default:
		return protocol.ErrorResult{Message: fmt.Sprintf("unknown command: %s", cmd.Verb)}
	}
}
