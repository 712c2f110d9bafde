package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/fpang/product-catalog/internal/clock"
)

type fakeS3 struct {
	mu        sync.Mutex
	puts      []*s3.PutObjectInput
	parts     map[int32]int
	completed *s3.CompleteMultipartUploadInput
	aborted   bool
	deleted   []string
	listing   []s3types.Object

	putErr  error
	partErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) CreateMultipartUpload(_ context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1"), Key: in.Key}, nil
}

func (f *fakeS3) UploadPart(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	if f.partErr != nil && aws.ToInt32(in.PartNumber) == 2 {
		return nil, f.partErr
	}
	n, _ := io.Copy(io.Discard, in.Body)
	f.mu.Lock()
	if f.parts == nil {
		f.parts = make(map[int32]int)
	}
	f.parts[aws.ToInt32(in.PartNumber)] = int(n)
	f.mu.Unlock()
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("etag-%d", aws.ToInt32(in.PartNumber)))}, nil
}

func (f *fakeS3) CompleteMultipartUpload(_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	f.completed = in
	f.mu.Unlock()
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	f.aborted = true
	f.mu.Unlock()
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return &s3.ListObjectsV2Output{Contents: f.listing, IsTruncated: aws.Bool(false)}, nil
}

func TestS3Uploader_PutObject(t *testing.T) {
	fake := &fakeS3{}
	u := NewS3Uploader(fake, "catalog-bucket", "us-east-1", "products")
	u.Clock = clock.NewFake(time.UnixMilli(1700000000000))

	url, err := u.Upload(context.Background(), []byte("jpeg"), "Red Chair.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(fake.puts) != 1 {
		t.Fatalf("expected 1 PutObject, got %d", len(fake.puts))
	}
	in := fake.puts[0]
	key := aws.ToString(in.Key)
	if !strings.HasPrefix(key, "products/") || !strings.HasSuffix(key, "-red-chair.jpg-MAIN") {
		t.Errorf("unexpected key %q", key)
	}
	if url != "https://catalog-bucket.s3.us-east-1.amazonaws.com/"+key {
		t.Errorf("url = %q", url)
	}
	if aws.ToString(in.CacheControl) != "max-age=31536000" {
		t.Errorf("CacheControl = %q", aws.ToString(in.CacheControl))
	}
	if aws.ToString(in.ContentDisposition) != `inline; filename="Red Chair.jpg"` {
		t.Errorf("ContentDisposition = %q", aws.ToString(in.ContentDisposition))
	}
	if in.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Errorf("SSE = %q", in.ServerSideEncryption)
	}
	if in.Metadata["original-name"] != "Red Chair.jpg" || in.Metadata["upload-timestamp"] != "1700000000000" {
		t.Errorf("metadata = %v", in.Metadata)
	}
}

func TestS3Uploader_EachUploadGetsAFreshKey(t *testing.T) {
	fake := &fakeS3{}
	u := NewS3Uploader(fake, "b", "eu-west-1", "products")
	a, _ := u.Upload(context.Background(), []byte("x"), "same.jpg", "image/jpeg")
	b, _ := u.Upload(context.Background(), []byte("x"), "same.jpg", "image/jpeg")
	if a == b {
		t.Error("retried uploads must produce distinct keys")
	}
}

func TestS3Uploader_Multipart(t *testing.T) {
	fake := &fakeS3{}
	u := NewS3Uploader(fake, "b", "us-east-1", "products")
	data := make([]byte, 11*1024*1024)

	if _, err := u.Upload(context.Background(), data, "big.jpg", "image/jpeg"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(fake.puts) != 0 {
		t.Error("large body should not use PutObject")
	}
	if len(fake.parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(fake.parts))
	}
	if fake.parts[1] != 5*1024*1024 || fake.parts[3] != 1024*1024 {
		t.Errorf("part sizes = %v", fake.parts)
	}
	if fake.completed == nil {
		t.Fatal("multipart upload was not completed")
	}
	var numbers []int
	for _, p := range fake.completed.MultipartUpload.Parts {
		numbers = append(numbers, int(aws.ToInt32(p.PartNumber)))
	}
	if !sort.IntsAreSorted(numbers) || len(numbers) != 3 {
		t.Errorf("completed parts out of order: %v", numbers)
	}
}

func TestS3Uploader_MultipartFailureAborts(t *testing.T) {
	fake := &fakeS3{partErr: errors.New("connection reset")}
	u := NewS3Uploader(fake, "b", "us-east-1", "products")

	_, err := u.Upload(context.Background(), make([]byte, 11*1024*1024), "big.jpg", "image/jpeg")
	if err == nil {
		t.Fatal("expected error")
	}
	var se *Error
	if !errors.As(err, &se) || se.Op != "upload-part" {
		t.Errorf("expected upload-part storage error, got %v", err)
	}
	if !fake.aborted {
		t.Error("failed multipart upload should be aborted")
	}
	if fake.completed != nil {
		t.Error("failed multipart upload should not complete")
	}
}

func TestS3Uploader_ErrorCarriesAPICode(t *testing.T) {
	fake := &fakeS3{putErr: &smithy.GenericAPIError{Code: "SlowDown", Message: "reduce your request rate"}}
	u := NewS3Uploader(fake, "b", "us-east-1", "products")

	_, err := u.Upload(context.Background(), []byte("x"), "a.jpg", "image/jpeg")
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if se.Code != "SlowDown" || se.Op != "put" {
		t.Errorf("error = %+v", se)
	}
	if !strings.Contains(err.Error(), "reduce your request rate") {
		t.Errorf("message should keep the provider text: %v", err)
	}
}

func TestS3Uploader_CleanupOlderThan(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	fake := &fakeS3{listing: []s3types.Object{
		{Key: aws.String("products/old-MAIN"), LastModified: aws.Time(now.Add(-8 * 24 * time.Hour))},
		{Key: aws.String("products/new-MAIN"), LastModified: aws.Time(now.Add(-time.Hour))},
	}}
	u := NewS3Uploader(fake, "b", "us-east-1", "products")
	u.Clock = clock.NewFake(now)

	n, err := u.CleanupOlderThan(context.Background(), "products/", DefaultCleanupAge)
	if err != nil {
		t.Fatalf("CleanupOlderThan: %v", err)
	}
	if n != 1 || len(fake.deleted) != 1 || fake.deleted[0] != "products/old-MAIN" {
		t.Errorf("deleted %d: %v", n, fake.deleted)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Red Chair.jpg", "red-chair.jpg"},
		{"  ../weird//Name!!.PNG", "weird-name-.png"},
		{"", "unnamed"},
		{"???", "unnamed"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMemoryUploader(t *testing.T) {
	m := NewMemoryUploader("products")
	url, err := m.Upload(context.Background(), []byte("abc"), "a.png", "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	key := strings.TrimPrefix(url, "memory://")
	data, ct, ok := m.Get(key)
	if !ok || string(data) != "abc" || ct != "image/png" {
		t.Errorf("Get(%q) = %q, %q, %v", key, data, ct, ok)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d", m.Len())
	}
}
