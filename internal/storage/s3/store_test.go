package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/colplan/colplan/internal/storage"
)

type fakeClient struct {
	objects map[string][]byte
	putKeys []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}}
}

func (f *fakeClient) Put(_ context.Context, _, key string, reader io.Reader, _ int64, _ string) (storage.ObjectInfo, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.objects[key] = body
	f.putKeys = append(f.putKeys, key)
	return storage.ObjectInfo{Key: key, Size: int64(len(body))}, nil
}

func (f *fakeClient) Get(_ context.Context, _, key string) (io.ReadCloser, error) {
	body, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *fakeClient) Stat(_ context.Context, _, key string) (storage.ObjectInfo, error) {
	body, ok := f.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(body))}, nil
}

func (f *fakeClient) BucketExists(context.Context, string) (bool, error) { return true, nil }

func (f *fakeClient) CreateBucket(context.Context, string, string) error { return nil }

func TestStorePrefixesKeys(t *testing.T) {
	fake := newFakeClient()
	store, err := NewWithClient("archive", "colplan", fake)
	if err != nil {
		t.Fatalf("NewWithClient: %v", err)
	}

	_, err = store.Put(context.Background(), "exports/crm_customers/x.csv", strings.NewReader("a,b\n"), 4, storage.PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(fake.putKeys) != 1 || fake.putKeys[0] != "colplan/exports/crm_customers/x.csv" {
		t.Fatalf("put keys = %v", fake.putKeys)
	}

	info, err := store.Stat(context.Background(), "exports/crm_customers/x.csv")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != 4 {
		t.Fatalf("size = %d", info.Size)
	}
}

func TestStoreRejectsTraversalKeys(t *testing.T) {
	store, err := NewWithClient("archive", "", newFakeClient())
	if err != nil {
		t.Fatalf("NewWithClient: %v", err)
	}
	for _, key := range []string{"", "   ", "../secrets", "a/../../b"} {
		if _, err := store.Stat(context.Background(), key); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestStoreMapsNotFound(t *testing.T) {
	store, err := NewWithClient("archive", "", newFakeClient())
	if err != nil {
		t.Fatalf("NewWithClient: %v", err)
	}
	if _, err := store.Get(context.Background(), "missing.csv"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("err = %v, want ErrObjectNotFound", err)
	}
}

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
	}{
		{"https://s3.example.com", false, "s3.example.com", true},
		{"http://minio:9000", true, "minio:9000", true},
		{"minio:9000", false, "minio:9000", false},
	}
	for _, tc := range cases {
		host, secure, err := parseEndpoint(tc.raw, tc.useSSL)
		if err != nil {
			t.Fatalf("parseEndpoint(%q): %v", tc.raw, err)
		}
		if host != tc.wantHost || secure != tc.wantSecure {
			t.Fatalf("parseEndpoint(%q) = %q/%v", tc.raw, host, secure)
		}
	}
}
