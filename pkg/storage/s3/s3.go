// Package s3 stores exported results in AWS S3 or an S3-compatible service.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ethoflow/ethoflow/pkg/interfaces"
)

// Config holds S3 client configuration.
type Config struct {
	// Region is the AWS region (e.g., "us-east-1")
	Region string

	// Bucket receives every object.
	Bucket string

	// Prefix is prepended to every key.
	Prefix string

	// Endpoint overrides the default S3 endpoint (for S3-compatible services)
	Endpoint string

	// UsePathStyle forces path-style addressing (for MinIO, LocalStack)
	UsePathStyle bool

	// Credentials (optional - uses default chain if not provided)
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	OperationTimeout time.Duration
	UploadTimeout    time.Duration

	// PartSize is the multipart threshold and part size in bytes.
	PartSize int64
}

// DefaultConfig returns defaults for a bucket and region.
func DefaultConfig(bucket, region string) Config {
	return Config{
		Bucket:           bucket,
		Region:           region,
		OperationTimeout: 30 * time.Second,
		UploadTimeout:    5 * time.Minute,
		PartSize:         5 * 1024 * 1024, // S3 minimum part size
	}
}

// Client implements interfaces.ObjectStorage on one bucket and prefix.
type Client struct {
	cfg    Config
	client *s3.Client
}

// NewClient creates a new S3 client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	if cfg.PartSize <= 0 {
		cfg.PartSize = DefaultConfig("", "").PartSize
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultConfig("", "").OperationTimeout
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = DefaultConfig("", "").UploadTimeout
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Client{
		cfg:    cfg,
		client: s3.NewFromConfig(awsCfg, s3Opts...),
	}, nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.cfg.Bucket
}

// Scheme returns "s3".
func (c *Client) Scheme() string {
	return "s3"
}

// Key maps a relative object path to its bucket key.
func (c *Client) Key(p string) string {
	p = strings.TrimPrefix(p, "/")
	if c.cfg.Prefix == "" {
		return p
	}
	return path.Join(c.cfg.Prefix, p)
}

// Put uploads data. Small objects use a single PUT, larger ones a multipart
// upload. This SDK release has no conditional PUT, so IfNotExists is a
// HEAD check before the upload.
func (c *Client) Put(ctx context.Context, p string, data io.Reader, opts interfaces.PutOptions) error {
	if opts.IfNotExists {
		exists, err := c.Exists(ctx, p)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("s3://%s/%s: %w", c.cfg.Bucket, c.Key(p), interfaces.ErrObjectExists)
		}
	}

	w := newS3Writer(ctx, c.client, c.cfg.Bucket, c.Key(p), c.cfg, opts)
	if _, err := io.Copy(w, data); err != nil {
		w.abort()
		return fmt.Errorf("failed to upload %s: %w", p, err)
	}
	return w.Close()
}

// Get returns a reader for the object.
func (c *Client) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	output, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.Key(p)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s/%s: %w", c.cfg.Bucket, c.Key(p), err)
	}
	return output.Body, nil
}

// Head returns object metadata.
func (c *Client) Head(ctx context.Context, p string) (interfaces.ObjectInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	output, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.Key(p)),
	})
	if err != nil {
		return interfaces.ObjectInfo{}, fmt.Errorf("failed to head object %s/%s: %w", c.cfg.Bucket, c.Key(p), err)
	}

	return interfaces.ObjectInfo{
		Path:         p,
		Size:         aws.ToInt64(output.ContentLength),
		LastModified: aws.ToTime(output.LastModified),
		ContentType:  aws.ToString(output.ContentType),
		Metadata:     output.Metadata,
	}, nil
}

// Exists checks if an object exists.
func (c *Client) Exists(ctx context.Context, p string) (bool, error) {
	_, err := c.Head(ctx, p)
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return false, nil
	}
	return false, err
}

// Delete removes an object.
func (c *Client) Delete(ctx context.Context, p string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.Key(p)),
	})
	return err
}

// s3Writer buffers up to one part and switches to a multipart upload once
// the buffer fills.
type s3Writer struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	cfg    Config
	opts   interfaces.PutOptions

	mu       sync.Mutex
	buf      []byte
	parts    []types.CompletedPart
	uploadID string
	partNum  int32
	closed   bool
	err      error
}

func newS3Writer(ctx context.Context, client *s3.Client, bucket, key string, cfg Config, opts interfaces.PutOptions) *s3Writer {
	return &s3Writer{
		ctx:    ctx,
		client: client,
		bucket: bucket,
		key:    key,
		cfg:    cfg,
		opts:   opts,
		buf:    make([]byte, 0, cfg.PartSize),
	}
}

func (w *s3Writer) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, fmt.Errorf("writer is closed")
	}
	if w.err != nil {
		return 0, w.err
	}

	w.buf = append(w.buf, p...)

	for int64(len(w.buf)) >= w.cfg.PartSize {
		if err := w.uploadPartLocked(); err != nil {
			w.err = err
			return len(p), err
		}
	}

	return len(p), nil
}

func (w *s3Writer) contentType() *string {
	if w.opts.ContentType == "" {
		return nil
	}
	return aws.String(w.opts.ContentType)
}

func (w *s3Writer) uploadPartLocked() error {
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.UploadTimeout)
	defer cancel()

	if w.uploadID == "" {
		input := &s3.CreateMultipartUploadInput{
			Bucket:      aws.String(w.bucket),
			Key:         aws.String(w.key),
			ContentType: w.contentType(),
		}
		if len(w.opts.Metadata) > 0 {
			input.Metadata = w.opts.Metadata
		}

		output, err := w.client.CreateMultipartUpload(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to create multipart upload: %w", err)
		}
		w.uploadID = aws.ToString(output.UploadId)
	}

	w.partNum++
	partData := w.buf[:w.cfg.PartSize]

	output, err := w.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(w.bucket),
		Key:        aws.String(w.key),
		UploadId:   aws.String(w.uploadID),
		PartNumber: aws.Int32(w.partNum),
		Body:       bytes.NewReader(partData),
	})
	if err != nil {
		return fmt.Errorf("failed to upload part %d: %w", w.partNum, err)
	}

	w.parts = append(w.parts, types.CompletedPart{
		ETag:       output.ETag,
		PartNumber: aws.Int32(w.partNum),
	})

	w.buf = append(w.buf[:0], w.buf[w.cfg.PartSize:]...)
	return nil
}

// abort discards a started multipart upload.
func (w *s3Writer) abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.uploadID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.OperationTimeout)
	defer cancel()
	w.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
	})
}

func (w *s3Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.err != nil {
		return w.err
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.UploadTimeout)
	defer cancel()

	// Never started multipart: simple PUT.
	if w.uploadID == "" {
		input := &s3.PutObjectInput{
			Bucket:      aws.String(w.bucket),
			Key:         aws.String(w.key),
			Body:        bytes.NewReader(w.buf),
			ContentType: w.contentType(),
		}
		if len(w.opts.Metadata) > 0 {
			input.Metadata = w.opts.Metadata
		}
		_, err := w.client.PutObject(ctx, input)
		return err
	}

	if len(w.buf) > 0 {
		w.partNum++
		output, err := w.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(w.bucket),
			Key:        aws.String(w.key),
			UploadId:   aws.String(w.uploadID),
			PartNumber: aws.Int32(w.partNum),
			Body:       bytes.NewReader(w.buf),
		})
		if err != nil {
			return fmt.Errorf("failed to upload final part: %w", err)
		}

		w.parts = append(w.parts, types.CompletedPart{
			ETag:       output.ETag,
			PartNumber: aws.Int32(w.partNum),
		})
	}

	_, err := w.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(w.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: w.parts,
		},
	})
	return err
}
