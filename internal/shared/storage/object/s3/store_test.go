package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "1001/passport.pdf", want: "1001/passport.pdf"},
		{name: "simple prefix", prefix: "kyc", key: "1001/passport.pdf", want: "kyc/1001/passport.pdf"},
		{name: "prefix trailing slash", prefix: "kyc/", key: "1001/passport.pdf", want: "kyc/1001/passport.pdf"},
		{name: "prefix and key slashes", prefix: "/kyc/", key: "/1001/passport.pdf", want: "kyc/1001/passport.pdf"},
		{name: "nested prefix", prefix: "kyc/sub", key: "1001/passport.pdf", want: "kyc/sub/1001/passport.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestApplyEncryption(t *testing.T) {
	t.Parallel()

	withKMS := &s3.PutObjectInput{}
	applyEncryption(withKMS, "arn:aws:kms:eu-west-1:111122223333:key/kyc")
	if withKMS.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms || aws.ToString(withKMS.SSEKMSKeyId) == "" {
		t.Fatalf("expected SSE-KMS, got %v", withKMS.ServerSideEncryption)
	}

	plain := &s3.PutObjectInput{}
	applyEncryption(plain, "")
	if plain.ServerSideEncryption != s3types.ServerSideEncryptionAes256 || plain.SSEKMSKeyId != nil {
		t.Fatalf("expected SSE-S3, got %v", plain.ServerSideEncryption)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), "eu-west-1", "", "kyc/", ""); err == nil {
		t.Fatalf("expected error for empty bucket")
	}
}

type fakeS3 struct {
	puts map[string][]byte
	meta map[string]*s3.PutObjectInput
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	if f.puts == nil {
		f.puts = map[string][]byte{}
		f.meta = map[string]*s3.PutObjectInput{}
	}
	key := aws.ToString(params.Key)
	f.puts[key] = data
	f.meta[key] = params
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.puts[aws.ToString(params.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestSaveUploadsUnderPrefixWithEncryption(t *testing.T) {
	t.Parallel()

	fake := &fakeS3{}
	store := newStore(fake, "kyc-bucket", "/archive/", "")
	pdf := []byte("%PDF-1.4\nbody")

	key, size, mime, err := store.Save(context.Background(), "98765", "passport.pdf", bytes.NewReader(pdf))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(key, "98765/") || !strings.HasSuffix(key, "_passport.pdf") {
		t.Fatalf("unexpected key %q", key)
	}
	if size != int64(len(pdf)) || mime != "application/pdf" {
		t.Fatalf("size=%d mime=%q", size, mime)
	}

	put := fake.meta["archive/"+key]
	if put == nil {
		t.Fatalf("no object at archive/%s", key)
	}
	if put.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Fatalf("expected SSE-S3, got %v", put.ServerSideEncryption)
	}

	rc, err := store.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, pdf) {
		t.Fatalf("round trip mismatch")
	}
}
