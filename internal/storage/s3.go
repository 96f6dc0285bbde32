package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const (
	SSEAlgorithmAES256 = "AES256"
	SSEAlgorithmKMS    = "aws:kms"

	headerContentType = "Content-Type"
	headerSSE         = "x-amz-server-side-encryption"
	headerSSEKMSKeyID = "x-amz-server-side-encryption-aws-kms-key-id"
)

var ErrObjectNotFound = errors.New("object not found")

// Seams over the SDK calls, replaced in tests.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	presignPostObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignPostOptions)) (*s3.PresignedPostRequest, error) {
		return pc.PresignPostObject(ctx, in, optFns...)
	}
	headObject = func(c *s3.Client, ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return c.HeadObject(ctx, in, optFns...)
	}
)

// AWSOptions holds what is needed to build a shared aws.Config for S3 and SQS.
type AWSOptions struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// LoadAWSConfig builds the SDK configuration: standard retryer with three attempts,
// 5s connect timeout, 60s overall HTTP timeout. Static credentials are only used when
// an access key is configured; otherwise the default chain (env, profile, instance role) applies.
func LoadAWSConfig(ctx context.Context, opts AWSOptions) (aws.Config, error) {
	httpClient := awshttp.NewBuildableClient().
		WithTimeout(60 * time.Second).
		WithDialerOptions(func(d *net.Dialer) {
			d.Timeout = 5 * time.Second
		})

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
		config.WithRetryMode(aws.RetryModeStandard),
		config.WithRetryMaxAttempts(3),
		config.WithHTTPClient(httpClient),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return cfg, nil
}

type S3Options struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
	SSEAlgorithm  string
	KMSKeyID      string
}

type S3Client struct {
	client  *s3.Client
	presign *s3.PresignClient
	opts    S3Options
}

func NewS3Client(awsCfg aws.Config, opts S3Options) *S3Client {
	if opts.SSEAlgorithm == "" {
		opts.SSEAlgorithm = SSEAlgorithmAES256
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Client{
		client:  client,
		presign: s3.NewPresignClient(client),
		opts:    opts,
	}
}

// PresignPostInput describes one direct browser upload.
type PresignPostInput struct {
	Key         string
	ContentType string
	MaxBytes    int64
	Expires     time.Duration
}

// PresignedPost is what the client needs to POST the file straight to the bucket.
type PresignedPost struct {
	URL    string
	Fields map[string]string
}

type ObjectMetadata struct {
	SizeBytes    int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

func (s *S3Client) Bucket() string {
	return s.opts.Bucket
}

// PublicURL is the address the object will be readable at once uploaded.
func (s *S3Client) PublicURL(key string) string {
	if s.opts.PublicBaseURL != "" {
		return strings.TrimRight(s.opts.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, key)
}

// PresignPost signs a POST policy. Bucket and key conditions are added by the SDK; the
// content type, size range and encryption directives are added here and echoed in the
// returned fields so the browser form satisfies the policy.
func (s *S3Client) PresignPost(ctx context.Context, in PresignPostInput) (*PresignedPost, error) {
	conditions, fields := s.policy(in)

	req, err := presignPostObject(s.presign, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(in.Key),
		ContentType: aws.String(in.ContentType),
	}, func(o *s3.PresignPostOptions) {
		o.Expires = in.Expires
		o.Conditions = conditions
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign post for %s: %w", in.Key, err)
	}

	out := make(map[string]string, len(req.Values)+len(fields))
	for k, v := range req.Values {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}

	return &PresignedPost{URL: req.URL, Fields: out}, nil
}

func (s *S3Client) policy(in PresignPostInput) ([]interface{}, map[string]string) {
	fields := map[string]string{
		headerContentType: in.ContentType,
		headerSSE:         s.opts.SSEAlgorithm,
	}
	conditions := []interface{}{
		map[string]string{"key": in.Key},
		map[string]string{headerContentType: in.ContentType},
		[]interface{}{"content-length-range", 1, in.MaxBytes},
		map[string]string{headerSSE: s.opts.SSEAlgorithm},
	}
	if s.opts.SSEAlgorithm == SSEAlgorithmKMS && s.opts.KMSKeyID != "" {
		conditions = append(conditions, map[string]string{headerSSEKMSKeyID: s.opts.KMSKeyID})
		fields[headerSSEKMSKeyID] = s.opts.KMSKeyID
	}
	return conditions, fields
}

// HeadObject fetches authoritative metadata without downloading the body.
// A missing object is reported as ErrObjectNotFound.
func (s *S3Client) HeadObject(ctx context.Context, key string) (*ObjectMetadata, error) {
	out, err := headObject(s.client, ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to head object %s: %w", key, err)
	}

	meta := &ObjectMetadata{
		SizeBytes:   aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
	}
	if out.LastModified != nil {
		meta.LastModified = out.LastModified.UTC()
	}
	return meta, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "404", "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
