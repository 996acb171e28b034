package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/ethoflow/ethoflow/pkg/interfaces"
)

func TestNewClient(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, Config{}); err == nil {
		t.Error("expected error without bucket")
	}

	cfg := DefaultConfig("lab", "us-east-1")
	cfg.Prefix = "runs/42"
	cfg.AccessKeyID, cfg.SecretAccessKey = "key", "secret"
	c, err := NewClient(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if c.Bucket() != "lab" || c.Scheme() != "s3" {
		t.Errorf("client = %s/%s", c.Scheme(), c.Bucket())
	}

	tests := []struct {
		in, want string
	}{
		{"obs1_A.tsv", "runs/42/obs1_A.tsv"},
		{"/obs1_A.tsv", "runs/42/obs1_A.tsv"},
		{"sub/obs1_A.tsv", "runs/42/sub/obs1_A.tsv"},
	}
	for _, tt := range tests {
		if got := c.Key(tt.in); got != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	cfg.Prefix = ""
	c, _ = NewClient(ctx, cfg)
	if got := c.Key("a.csv"); got != "a.csv" {
		t.Errorf("Key without prefix = %q", got)
	}
}

// TestClient_RoundTrip runs against an S3-compatible endpoint such as MinIO.
func TestClient_RoundTrip(t *testing.T) {
	endpoint := os.Getenv("ETHOFLOW_TEST_S3_ENDPOINT")
	bucket := os.Getenv("ETHOFLOW_TEST_S3_BUCKET")
	if endpoint == "" || bucket == "" {
		t.Skip("ETHOFLOW_TEST_S3_ENDPOINT / ETHOFLOW_TEST_S3_BUCKET not set")
	}
	ctx := context.Background()
	cfg := DefaultConfig(bucket, "us-east-1")
	cfg.Endpoint = endpoint
	cfg.UsePathStyle = true
	cfg.Prefix = "ethoflow-test"
	c, err := NewClient(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}

	body := []byte("time\trest\n0\t1\n")
	if err := c.Put(ctx, "obs1_A.tsv", bytes.NewReader(body), interfaces.PutOptions{ContentType: "text/tab-separated-values"}); err != nil {
		t.Fatal(err)
	}
	defer c.Delete(ctx, "obs1_A.tsv")

	err = c.Put(ctx, "obs1_A.tsv", bytes.NewReader(body), interfaces.PutOptions{IfNotExists: true})
	if !errors.Is(err, interfaces.ErrObjectExists) {
		t.Errorf("IfNotExists Put = %v", err)
	}

	rc, err := c.Get(ctx, "obs1_A.tsv")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, body) {
		t.Errorf("Get = %q", got)
	}

	info, err := c.Head(ctx, "obs1_A.tsv")
	if err != nil || info.Size != int64(len(body)) {
		t.Errorf("Head = %+v, %v", info, err)
	}
	if ok, _ := c.Exists(ctx, "missing.tsv"); ok {
		t.Error("missing object reported as existing")
	}
}
