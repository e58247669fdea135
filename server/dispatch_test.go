package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pithecene-io/ferry/protocol"
	"github.com/pithecene-io/ferry/storage"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *storage.DirStore) {
	t.Helper()
	store, err := storage.NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	return NewDispatcher(store), store
}

func TestDispatch_List(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()

	name, err := store.Put(ctx, []byte("hello"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	resp := d.Dispatch(ctx, protocol.Command{Verb: protocol.VerbList})
	list, ok := resp.(protocol.ListResult)
	if !ok {
		t.Fatalf("response type = %T, want ListResult", resp)
	}
	if len(list.Names) != 1 || list.Names[0] != name {
		t.Errorf("Names = %v, want [%s]", list.Names, name)
	}
}

func TestDispatch_Get(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()

	content := []byte("get me")
	name, err := store.Put(ctx, content)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	resp := d.Dispatch(ctx, protocol.Command{Verb: protocol.VerbGet, Args: []string{name}})
	get, ok := resp.(protocol.GetResult)
	if !ok {
		t.Fatalf("response type = %T, want GetResult", resp)
	}
	if get.Filename != name || string(get.Data) != string(content) {
		t.Errorf("got %q/%q, want %q/%q", get.Filename, get.Data, name, content)
	}
}

func TestDispatch_GetMissingFilename(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), protocol.Command{Verb: protocol.VerbGet})
	if _, ok := resp.(protocol.ErrorResult); !ok {
		t.Errorf("response type = %T, want ErrorResult", resp)
	}
}

func TestDispatch_GetMissingFile(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), protocol.Command{Verb: protocol.VerbGet, Args: []string{"absent.bin"}})
	errRes, ok := resp.(protocol.ErrorResult)
	if !ok {
		t.Fatalf("response type = %T, want ErrorResult", resp)
	}
	if !strings.Contains(errRes.Message, "absent.bin") {
		t.Errorf("error message %q does not name the file", errRes.Message)
	}
}

func TestDispatch_DeleteMissing(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), protocol.Command{Verb: protocol.VerbDelete, Args: []string{"absent.bin"}})
	if _, ok := resp.(protocol.ErrorResult); !ok {
		t.Errorf("response type = %T, want ErrorResult", resp)
	}
}

func TestDispatch_UploadFromScratchFile(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()

	content := []byte("uploaded payload")
	scratch := filepath.Join(t.TempDir(), "scratch.part")
	if err := os.WriteFile(scratch, content, 0o600); err != nil {
		t.Fatalf("write scratch: %v", err)
	}

	resp := d.Dispatch(ctx, protocol.Command{Verb: protocol.VerbUpload, Args: []string{scratch}})
	up, ok := resp.(protocol.UploadResult)
	if !ok {
		t.Fatalf("response type = %T, want UploadResult", resp)
	}
	if up.StoredName != storage.ContentName(content) {
		t.Errorf("StoredName = %q, want %q", up.StoredName, storage.ContentName(content))
	}

	got, err := store.Fetch(ctx, up.StoredName)
	if err != nil {
		t.Fatalf("Fetch after upload failed: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("stored data = %q, want %q", got, content)
	}
}

func TestDispatch_UnknownVerb(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), protocol.Command{Verb: "FROB"})
	errRes, ok := resp.(protocol.ErrorResult)
	if !ok {
		t.Fatalf("response type = %T, want ErrorResult", resp)
	}
	if !strings.Contains(errRes.Message, "FROB") {
		t.Errorf("error message %q does not name the verb", errRes.Message)
	}
}

// decodeEnvelope unpacks an encoded response for wire-level assertions.
func decodeEnvelope(t *testing.T, payload []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\n%s", err, payload)
	}
	return m
}

func TestDispatch_GetEnvelopeShape(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()

	content := []byte{0x00, 0x01, 0xFF}
	name, err := store.Put(ctx, content)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	resp := d.Dispatch(ctx, protocol.Command{Verb: protocol.VerbGet, Args: []string{name}})
	payload, err := protocol.Encode(resp)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	m := decodeEnvelope(t, payload)
	if m["status"] != "OK" {
		t.Errorf("status = %v, want OK", m["status"])
	}
	if m["data_namafile"] != name {
		t.Errorf("data_namafile = %v, want %s", m["data_namafile"], name)
	}
	if m["data_file"] != base64.StdEncoding.EncodeToString(content) {
		t.Errorf("data_file = %v, want base64 of content", m["data_file"])
	}
}
