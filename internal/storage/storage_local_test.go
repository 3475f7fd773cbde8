package storage

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/Xunop/bookworm/internal/config"
)

func TestLocalAdapter(t *testing.T) {
	ctx := context.Background()
	adapter, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create local adapter: %v", err)
	}
	key := ArchiveKey("alice", "books/../Moby Dick.epub")
	data := []byte("PK\x03\x04 archive")

	t.Run("TestKey", func(t *testing.T) {
		if key != "alice/books/Moby Dick.epub" {
			t.Errorf("Unexpected key %q", key)
		}
	})

	t.Run("TestPutGet", func(t *testing.T) {
		if err := adapter.Put(ctx, key, bytes.NewReader(data)); err != nil {
			t.Fatalf("Failed to put data: %v", err)
		}
		if ok, err := adapter.Exists(ctx, key); err != nil || !ok {
			t.Fatalf("File should exist after Put: %v", err)
		}
		got, err := ReadAll(ctx, adapter, key)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("Expected %q, got %q", data, got)
		}

		if err := adapter.Put(ctx, key, bytes.NewReader([]byte("replaced"))); err != nil {
			t.Fatal(err)
		}
		if got, _ := ReadAll(ctx, adapter, key); string(got) != "replaced" {
			t.Errorf("Put did not replace the file: %q", got)
		}
	})

	t.Run("TestDelete", func(t *testing.T) {
		if err := adapter.Delete(ctx, key); err != nil {
			t.Fatal(err)
		}
		if ok, _ := adapter.Exists(ctx, key); ok {
			t.Errorf("File should not exist after Delete")
		}
		if err := adapter.Delete(ctx, key); err != nil {
			t.Errorf("Deleting twice should not fail: %v", err)
		}
		if _, err := adapter.Get(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("TestEscape", func(t *testing.T) {
		if err := adapter.Put(ctx, "../outside.epub", bytes.NewReader(data)); err == nil {
			t.Errorf("Expected a key outside the storage directory to be refused")
		}
	})
}

func TestNewAdapter(t *testing.T) {
	ctx := context.Background()
	opts := config.GetDefaultOptions()
	opts.Data = t.TempDir()

	a, err := NewAdapter(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.(*LocalAdapter); !ok {
		t.Errorf("Expected a local adapter, got %T", a)
	}

	opts.StorageAdapter = "s3"
	if _, err := NewAdapter(ctx, opts); err == nil {
		t.Errorf("Expected s3 without a bucket to fail")
	}
	opts.S3Bucket = "archives"
	opts.S3Region = "us-east-1"
	opts.S3AccessKeyID = "key"
	opts.S3SecretAccessKey = "secret"
	opts.S3Endpoint = "http://127.0.0.1:9000"
	if a, err := NewAdapter(ctx, opts); err != nil {
		t.Errorf("Failed to configure s3: %v", err)
	} else if _, ok := a.(*S3Adapter); !ok {
		t.Errorf("Expected an s3 adapter, got %T", a)
	}

	opts.StorageAdapter = "ftp"
	if _, err := NewAdapter(ctx, opts); err == nil {
		t.Errorf("Expected an unknown adapter to fail")
	}
}
