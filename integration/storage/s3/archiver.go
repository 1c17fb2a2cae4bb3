package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrymomot/lehaproxy/core/logger"
)

// S3Client defines the S3 operations used by Archiver.
type S3Client interface {
	PutObject(ctx context.Context, params *s3aws.PutObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3aws.ListObjectsV2Input, optFns ...func(*s3aws.Options)) (*s3aws.ListObjectsV2Output, error)
}

// Config contains configuration for the checkpoint archive.
type Config struct {
	Bucket         string `env:"BUCKET"`
	Region         string `env:"REGION" envDefault:"us-east-1"`
	Prefix         string `env:"PREFIX" envDefault:"lehaproxy/checkpoints"`
	AccessKeyID    string `env:"ACCESS_KEY_ID"`
	SecretKey      string `env:"SECRET_KEY"`
	Endpoint       string `env:"ENDPOINT"`         // For S3-compatible services like MinIO, Wasabi
	ForcePathStyle bool   `env:"FORCE_PATH_STYLE"` // Required for MinIO and some S3-compatible services
}

// Option configures an Archiver.
type Option func(*options)

type options struct {
	httpClient      *http.Client
	s3Client        S3Client
	s3ConfigOptions []func(*config.LoadOptions) error
	s3ClientOptions []func(*s3aws.Options)
	uploadTimeout   time.Duration
	logger          *slog.Logger
}

// WithS3Client sets a custom pre-configured S3 client.
// Primarily used for testing with mocks.
func WithS3Client(client S3Client) Option {
	return func(o *options) {
		o.s3Client = client
	}
}

// WithHTTPClient sets a custom HTTP client for S3 requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithS3ConfigOption adds a custom AWS config option.
func WithS3ConfigOption(option func(*config.LoadOptions) error) Option {
	return func(o *options) {
		o.s3ConfigOptions = append(o.s3ConfigOptions, option)
	}
}

// WithS3ClientOption adds a custom S3 client option.
func WithS3ClientOption(option func(*s3aws.Options)) Option {
	return func(o *options) {
		o.s3ClientOptions = append(o.s3ClientOptions, option)
	}
}

// WithUploadTimeout bounds each object upload.
// If not set, relies on context deadline from caller.
func WithUploadTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.uploadTimeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Archiver copies finalized checkpoints to s3://bucket/prefix/<id>/<file>.
type Archiver struct {
	client        S3Client
	bucket        string
	prefix        string
	uploadTimeout time.Duration
	logger        *slog.Logger
}

// New creates an archiver. Without static credentials the default AWS
// credential chain is used.
func New(ctx context.Context, cfg Config, opts ...Option) (*Archiver, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	client := o.s3Client
	if client == nil {
		awsOptions := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
		}

		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretKey,
					"",
				)),
			)
		}

		if o.httpClient != nil {
			awsOptions = append(awsOptions, config.WithHTTPClient(o.httpClient))
		}

		awsOptions = append(awsOptions, o.s3ConfigOptions...)

		awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		client = s3aws.NewFromConfig(awsConfig, func(so *s3aws.Options) {
			if cfg.Endpoint != "" {
				so.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			so.UsePathStyle = cfg.ForcePathStyle

			for _, opt := range o.s3ClientOptions {
				opt(so)
			}
		})
	}

	return &Archiver{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        strings.Trim(cfg.Prefix, "/"),
		uploadTimeout: o.uploadTimeout,
		logger:        o.logger.With(logger.Component("archive")),
	}, nil
}

// Archive uploads every file walk visits under the checkpoint id. Objects are
// encrypted at rest because pre-images hold private keys.
func (a *Archiver) Archive(ctx context.Context, id string, walk func(visit func(name string, r io.Reader) error) error) error {
	if !validSegment(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	count := 0
	err := walk(func(name string, r io.Reader) error {
		if !validSegment(name) {
			return fmt.Errorf("%w: %q", ErrInvalidID, name)
		}
		// PutObject needs a seekable body to compute the payload hash.
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := a.put(ctx, a.key(id, name), data); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}

	a.logger.Info("checkpoint archived",
		logger.Checkpoint(id),
		logger.Count("files", count),
		slog.String("bucket", a.bucket))
	return nil
}

func (a *Archiver) put(ctx context.Context, key string, data []byte) error {
	if a.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.uploadTimeout)
		defer cancel()
	}

	_, err := a.client.PutObject(ctx, &s3aws.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentLength:        aws.Int64(int64(len(data))),
		ContentType:          aws.String("application/octet-stream"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return classifyS3Error(err, "upload "+key)
	}
	return nil
}

// List returns the archived checkpoint ids, newest first.
func (a *Archiver) List(ctx context.Context) ([]string, error) {
	prefix := a.prefix + "/"
	if a.prefix == "" {
		prefix = ""
	}

	paginator := s3aws.NewListObjectsV2Paginator(a.client, &s3aws.ListObjectsV2Input{
		Bucket:    aws.String(a.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var ids []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classifyS3Error(err, "list checkpoints")
		}
		for _, cp := range page.CommonPrefixes {
			id := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if id != "" {
				ids = append(ids, id)
			}
		}
	}

	// Checkpoint ids sort chronologically.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}

func (a *Archiver) key(id, name string) string {
	if a.prefix == "" {
		return path.Join(id, name)
	}
	return path.Join(a.prefix, id, name)
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
