package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
)

// fakeObjects 把对象保存在内存里，键为 bucket/object。
type fakeObjects struct {
	buckets     map[string]bool
	objects     map[string][]byte
	contentType map[string]string
	existsErr   error
	made        []string
}

func newFakeObjects(buckets ...string) *fakeObjects {
	f := &fakeObjects{buckets: map[string]bool{}, objects: map[string][]byte{}, contentType: map[string]string{}}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeObjects) BucketExists(_ context.Context, bucket string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.buckets[bucket], nil
}

func (f *fakeObjects) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	f.buckets[bucket] = true
	return nil
}

func (f *fakeObjects) FPutObject(_ context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[bucket+"/"+object] = data
	f.contentType[bucket+"/"+object] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: int64(len(data))}, nil
}

func (f *fakeObjects) FGetObject(_ context.Context, bucket, object, filePath string, _ minio.GetObjectOptions) error {
	data, ok := f.objects[bucket+"/"+object]
	if !ok {
		return errors.New("NoSuchKey")
	}
	return os.WriteFile(filePath, data, 0o644)
}

func TestNewSnapshotStore_CreatesMissingBucket(t *testing.T) {
	ctx := context.Background()

	f := newFakeObjects()
	if _, err := newSnapshotStore(ctx, f, "learner-snapshots"); err != nil {
		t.Fatalf("new store: %v", err)
	}
	if len(f.made) != 1 || f.made[0] != "learner-snapshots" {
		t.Fatalf("bucket not created: %v", f.made)
	}

	existing := newFakeObjects("learner-snapshots")
	if _, err := newSnapshotStore(ctx, existing, "learner-snapshots"); err != nil {
		t.Fatalf("new store: %v", err)
	}
	if len(existing.made) != 0 {
		t.Fatalf("existing bucket recreated: %v", existing.made)
	}

	broken := newFakeObjects()
	broken.existsErr = errors.New("connection refused")
	if _, err := newSnapshotStore(ctx, broken, "learner-snapshots"); err == nil {
		t.Fatal("expected error when bucket check fails")
	}
}

func TestSnapshotStore_UploadThenDownload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := newFakeObjects("learner-snapshots")
	s, err := newSnapshotStore(ctx, f, "learner-snapshots")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	src := filepath.Join(dir, "model.json")
	if err := os.WriteFile(src, []byte(`{"vocab":5}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.UploadFile(ctx, "message_learner_model.json", src); err != nil {
		t.Fatalf("upload: %v", err)
	}
	key := "learner-snapshots/message_learner_model.json"
	if string(f.objects[key]) != `{"vocab":5}` || f.contentType[key] != "application/json" {
		t.Fatalf("unexpected stored object %q (%s)", f.objects[key], f.contentType[key])
	}

	dst := filepath.Join(dir, "restored.json")
	if err := s.DownloadFile(ctx, "message_learner_model.json", dst); err != nil {
		t.Fatalf("download: %v", err)
	}
	if raw, _ := os.ReadFile(dst); string(raw) != `{"vocab":5}` {
		t.Fatalf("restored = %q", raw)
	}

	if err := s.DownloadFile(ctx, "tokenizer.json", filepath.Join(dir, "tok.json")); err == nil {
		t.Fatal("expected error for missing object")
	}
	if err := s.UploadFile(ctx, "x.json", filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing local file")
	}
}
