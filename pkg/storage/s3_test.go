package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string                 { return e.msg }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.msg }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var (
	errNoSuchKey = &apiError{code: "NoSuchKey", msg: "no such key"}
	errNotFound  = &apiError{code: "NotFound", msg: "not found"}
)

// mockS3 is an in-memory S3 backend with injectable failures.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte

	getErr error
	putErr error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte)}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, errNotFound
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3ReadWrite(t *testing.T) {
	ctx := context.Background()
	mock := newMockS3()
	store := NewS3(mock, "models", "pocket/b6369a24")

	if err := WriteFile(ctx, store, "manifest.yaml", []byte("variant: b6369a24\n")); err != nil {
		t.Fatal(err)
	}
	if _, ok := mock.objects["pocket/b6369a24/manifest.yaml"]; !ok {
		t.Fatalf("object not stored under prefix; have %v", mock.objects)
	}
	got, err := ReadFile(ctx, store, "manifest.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "variant: b6369a24\n" {
		t.Fatalf("got %q", got)
	}

	ok, err := store.Exists(ctx, "manifest.yaml")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true", ok, err)
	}
	if err := store.Delete(ctx, "manifest.yaml"); err != nil {
		t.Fatal(err)
	}
	ok, _ = store.Exists(ctx, "manifest.yaml")
	if ok {
		t.Fatal("object should be gone after delete")
	}
}

func TestS3ReadErrors(t *testing.T) {
	ctx := context.Background()
	store := NewS3(newMockS3(), "models", "")
	if _, err := store.Read(ctx, "missing"); !IsNotExist(err) {
		t.Fatalf("Read missing err = %v, want not-exist", err)
	}

	mock := newMockS3()
	mock.getErr = errors.New("network timeout")
	store = NewS3(mock, "models", "")
	_, err := store.Read(ctx, "x")
	if err == nil || IsNotExist(err) {
		t.Fatalf("Read err = %v, want network timeout", err)
	}
}

func TestS3WriteUploadError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("upload failed")
	store := NewS3(mock, "models", "")

	w, err := store.Write(context.Background(), "obj")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "data")
	if err := w.Close(); err == nil || err.Error() != "upload failed" {
		t.Fatalf("Close err = %v, want upload failed", err)
	}
}

func TestIsS3NotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"NoSuchKey", errNoSuchKey, true},
		{"NotFound", errNotFound, true},
		{"other api error", &apiError{code: "AccessDenied", msg: "denied"}, false},
		{"plain error", errors.New("timeout"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isS3NotFound(tt.err); got != tt.want {
				t.Fatalf("isS3NotFound(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewS3Client(t *testing.T) {
	c := NewS3Client(S3Config{Endpoint: "http://localhost:9000", PathStyle: true, AccessKeyID: "k", SecretAccessKey: "s"})
	if got := c.Options().Region; got != "us-east-1" {
		t.Errorf("Region = %q, want us-east-1", got)
	}
	if !c.Options().UsePathStyle {
		t.Error("UsePathStyle = false, want true")
	}
}
