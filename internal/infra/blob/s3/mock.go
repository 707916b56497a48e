package s3

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const metaHeaderPrefix = "X-Amz-Meta-"

// NewMockForTests returns a Store backed by an in-memory fake HTTP transport that
// understands the Head/Get/Put/Delete/ListObjectsV2 subset the Store uses.
func NewMockForTests() *Store {
	store, _ := newMock(0)
	return store
}

// newMock also returns the backend so tests can inspect requests. pageSize > 0
// truncates list responses.
func newMock(pageSize int) (*Store, *mockBackend) {
	backend := &mockBackend{objects: make(map[string]mockObj), pageSize: pageSize}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(DefaultRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: backend}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return newStore(client, "mock-bucket"), backend
}

type mockObj struct {
	body        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

func (o mockObj) etag() string {
	sum := md5.Sum(o.body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

type mockBackend struct {
	mu       sync.Mutex
	objects  map[string]mockObj
	pageSize int
	requests map[string]int
}

func (m *mockBackend) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[method]
}

func (m *mockBackend) RoundTrip(req *http.Request) (*http.Response, error) { //nolint:cyclop
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requests == nil {
		m.requests = make(map[string]int)
	}
	m.requests[req.Method]++

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return m.list(req.URL.Query().Get("prefix"), req.URL.Query().Get("continuation-token")), nil
	}
	switch req.Method {
	case http.MethodHead, http.MethodGet:
		obj, ok := m.objects[key]
		if !ok {
			return response(http.StatusNotFound, nil, http.Header{}), nil
		}
		h := http.Header{
			"Content-Length": {strconv.Itoa(len(obj.body))},
			"Content-Type":   {obj.contentType},
			"Etag":           {obj.etag()},
			"Last-Modified":  {obj.modified.Format(http.TimeFormat)},
		}
		for k, v := range obj.metadata {
			h.Set(metaHeaderPrefix+k, v)
		}
		if req.Method == http.MethodHead {
			return response(http.StatusOK, nil, h), nil
		}
		return response(http.StatusOK, obj.body, h), nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		obj := mockObj{body: body, contentType: req.Header.Get("Content-Type"), modified: time.Now().UTC()}
		for k, v := range req.Header {
			if len(k) > len(metaHeaderPrefix) && strings.EqualFold(k[:len(metaHeaderPrefix)], metaHeaderPrefix) {
				if obj.metadata == nil {
					obj.metadata = make(map[string]string)
				}
				obj.metadata[strings.ToLower(k[len(metaHeaderPrefix):])] = v[0]
			}
		}
		m.objects[key] = obj
		return response(http.StatusOK, nil, http.Header{"Etag": {obj.etag()}}), nil
	case http.MethodDelete:
		delete(m.objects, key)
		return response(http.StatusNoContent, nil, http.Header{}), nil
	}
	return response(http.StatusNotImplemented, nil, http.Header{}), nil
}

func (m *mockBackend) list(prefix, token string) *http.Response {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) && k > token {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	truncated := m.pageSize > 0 && len(keys) > m.pageSize
	if truncated {
		keys = keys[:m.pageSize]
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><ListBucketResult>`)
	fmt.Fprintf(&b, "<IsTruncated>%t</IsTruncated>", truncated)
	if truncated {
		fmt.Fprintf(&b, "<NextContinuationToken>%s</NextContinuationToken>", keys[len(keys)-1])
	}
	for _, k := range keys {
		obj := m.objects[k]
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><ETag>%s</ETag><LastModified>%s</LastModified></Contents>",
			k, len(obj.body), obj.etag(), obj.modified.Format(time.RFC3339))
	}
	b.WriteString("</ListBucketResult>")
	return response(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}})
}

func response(status int, body []byte, h http.Header) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: h}
}

// decodeChunked unwraps a single-chunk aws-chunked payload:
// <hex>\r\n<body>\r\n0\r\n...
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	size := strings.SplitN(parts[0], ";", 2)[0]
	n, err := strconv.ParseInt(size, 16, 64)
	if err != nil || int64(len(parts[1])) != n || strings.SplitN(parts[2], ";", 2)[0] != "0" {
		return nil, false
	}
	return []byte(parts[1]), true
}
