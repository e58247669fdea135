package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// stubS3 is an in-memory s3API implementation.
type stubS3 struct {
	objects map[string][]byte
}

func newStubS3() *stubS3 {
	return &stubS3{objects: make(map[string][]byte)}
}

func (s *stubS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := k
		out.Contents = append(out.Contents, s3types.Object{Key: &key})
	}
	truncated := false
	out.IsTruncated = &truncated
	return out, nil
}

func (s *stubS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := s.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (s *stubS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	s.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (s *stubS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := s.objects[*in.Key]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (s *stubS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(s.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_RoundTrip(t *testing.T) {
	stub := newStubS3()
	store := newS3StoreWithClient(stub, "bucket", "files")
	ctx := context.Background()

	content := []byte("s3 payload")
	name, err := store.Put(ctx, content)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if name != ContentName(content) {
		t.Errorf("name = %q, want %q", name, ContentName(content))
	}

	got, err := store.Fetch(ctx, name)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Fetch = %q, want %q", got, content)
	}

	names, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 1 || names[0] != name {
		t.Errorf("List = %v, want [%s]", names, name)
	}
}

func TestS3Store_PrefixedKeys(t *testing.T) {
	stub := newStubS3()
	store := newS3StoreWithClient(stub, "bucket", "deep/prefix/")
	ctx := context.Background()

	name, err := store.Put(ctx, []byte("prefixed"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, ok := stub.objects["deep/prefix/"+name]; !ok {
		t.Errorf("object not stored under prefix; keys: %v", stub.objects)
	}
}

func TestS3Store_FetchMissing(t *testing.T) {
	store := newS3StoreWithClient(newStubS3(), "bucket", "")
	if _, err := store.Fetch(context.Background(), "nope.bin"); !IsNotFound(err) {
		t.Errorf("Fetch missing = %v, want NotFoundError", err)
	}
}

func TestS3Store_RemoveMissing(t *testing.T) {
	store := newS3StoreWithClient(newStubS3(), "bucket", "")
	if err := store.Remove(context.Background(), "nope.bin"); !IsNotFound(err) {
		t.Errorf("Remove missing = %v, want NotFoundError", err)
	}
}

func TestS3Store_Remove(t *testing.T) {
	stub := newStubS3()
	store := newS3StoreWithClient(stub, "bucket", "")
	ctx := context.Background()

	name, err := store.Put(ctx, []byte("transient"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Remove(ctx, name); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if len(stub.objects) != 0 {
		t.Errorf("objects remain after Remove: %v", stub.objects)
	}
}

func TestS3Config_Validate(t *testing.T) {
	cfg := S3Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted empty bucket")
	}
	cfg.Bucket = "b"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate rejected valid config: %v", err)
	}
}
