package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"

	"elwinator/internal/blob/core"
)

func TestStore_MockedBasicFlow(t *testing.T) { //nolint:cyclop
	store, _ := newMock(0)
	ctx := context.Background()
	info, err := store.Put(ctx, "namespaces/prod.json", bytes.NewReader([]byte("hello")), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"sha256": "abc"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "namespaces/prod.json" || info.ContentType != "application/json" || info.Size != 5 {
		t.Fatalf("unexpected info %#v", info)
	}
	if info.Metadata["sha256"] != "abc" {
		t.Fatalf("metadata not round-tripped: %#v", info.Metadata)
	}
	replaced, err := store.Put(ctx, "namespaces/prod.json", bytes.NewReader([]byte("hello, again")), core.PutOptions{})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if replaced.Size != 12 || replaced.ETag == info.ETag {
		t.Fatalf("expected replacement, got %#v", replaced)
	}
	_, rc, err := store.Get(ctx, "namespaces/prod.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "hello, again" {
		t.Fatalf("get mismatch: %q", string(data))
	}
	list, err := store.List(ctx, "namespaces/")
	if err != nil || len(list) != 1 || list[0].ETag != replaced.ETag {
		t.Fatalf("list: %v %+v", err, list)
	}
	if ok, err := store.Delete(ctx, "namespaces/prod.json"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "namespaces/prod.json"); err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
}

func TestStore_NotFound(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	if _, err := store.Head(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected head ErrNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected get ErrNotFound, got %v", err)
	}
	if _, err := store.Put(ctx, "../nope", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
}

func TestStore_ListPaginates(t *testing.T) {
	store, backend := newMock(1)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		k := "k" + strconv.Itoa(i) + ".txt"
		if _, err := store.Put(ctx, k, bytes.NewReader([]byte("body")), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	if list, err := store.List(ctx, "no-such-prefix/"); err != nil || len(list) != 0 {
		t.Fatalf("expected empty list: %v %+v", err, list)
	}
	before := backend.count(http.MethodGet)
	list, err := store.List(ctx, "k")
	if err != nil || len(list) != 3 {
		t.Fatalf("expected three items via pagination: %v %+v", err, list)
	}
	if pages := backend.count(http.MethodGet) - before; pages < 3 {
		t.Fatalf("expected at least 3 list pages, got %d", pages)
	}
}

func TestStore_New(t *testing.T) {
	s, err := New(context.Background(), Config{
		Bucket:          "bkt",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Driver() != core.DriverS3 || s.Bucket() != "bkt" {
		t.Fatalf("unexpected store %+v", s)
	}
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}

func TestOpenFromEnv(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")
	t.Setenv("ELWINATOR_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	t.Setenv("ELWINATOR_BLOB_S3_BUCKET", "env-bucket")
	t.Setenv("ELWINATOR_BLOB_S3_PATH_STYLE", "TRUE")
	cfg := ConfigFromEnv()
	if !cfg.PathStyle || cfg.Bucket != "env-bucket" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if _, err := OpenFromEnv(context.Background()); err != nil {
		t.Fatalf("OpenFromEnv: %v", err)
	}
}

func TestFromHeadNilFields(t *testing.T) {
	store := NewMockForTests()
	info := store.fromHead("k", 10, nil, aws.String(`"etagval"`), map[string]string{"x": "y"}, nil)
	if info.ETag != "etagval" || info.ContentType != "" || info.Key != "k" || info.Size != 10 || info.LastModified.IsZero() {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestDecodeChunked(t *testing.T) {
	if _, ok := decodeChunked([]byte("not-chunked")); ok {
		t.Fatalf("expected failure for plain body")
	}
	if _, ok := decodeChunked([]byte("5\r\nabc\r\n0\r\n")); ok {
		t.Fatalf("size mismatch should fail")
	}
	if b, ok := decodeChunked([]byte("5\r\nhello\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n")); !ok || string(b) != "hello" {
		t.Fatalf("expected decode hello, got %q %v", b, ok)
	}
}

func TestMockUnsupportedMethod(t *testing.T) {
	_, backend := newMock(0)
	req, _ := http.NewRequest(http.MethodPatch, "https://mock.s3.local/bucket/key", nil)
	resp, _ := backend.RoundTrip(req)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", resp.StatusCode)
	}
}
