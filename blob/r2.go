// blob/r2.go
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"task-staking-system/config"
)

// R2Store keeps blobs in a Cloudflare R2 bucket through the S3 API.
type R2Store struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string
	maxBytes   int64
	now        func() time.Time
}

func NewR2Store(ctx context.Context, cfg config.R2Config, maxBytes int64) (*R2Store, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	cdn := cfg.CDNBaseURL
	if cdn == "" {
		cdn = endpoint + "/" + cfg.Bucket
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return &R2Store{
		client:     client,
		bucket:     cfg.Bucket,
		cdnBaseURL: strings.TrimRight(cdn, "/"),
		maxBytes:   maxBytes,
		now:        time.Now,
	}, nil
}

func (s *R2Store) Put(ctx context.Context, u Upload) (Object, error) {
	contentType, err := Check(u, s.maxBytes)
	if err != nil {
		return Object{}, err
	}

	file, err := u.Open()
	if err != nil {
		return Object{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, io.LimitReader(file, s.maxBytes+1)); err != nil {
		return Object{}, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(buf.Len()) > s.maxBytes {
		return Object{}, fmt.Errorf("%w: max %d", ErrTooLarge, s.maxBytes)
	}
	size := int64(buf.Len())

	key := NewFilename(contentType, s.now())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		Metadata:      map[string]string{"original-name": OriginalNameMetadata(u.OriginalName)},
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload to R2: %w", err)
	}

	return Object{
		Filename:    key,
		Path:        fmt.Sprintf("%s/%s", s.cdnBaseURL, key),
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (s *R2Store) Get(ctx context.Context, filename string) (*Reader, error) {
	if !ValidName(filename) {
		return nil, ErrInvalidName
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(filename),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, fmt.Errorf("failed to fetch from R2: %w", err)
	}

	ct := aws.ToString(out.ContentType)
	if ct == "" {
		ct = contentTypeFor(filename)
	}
	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return &Reader{ReadCloser: out.Body, ContentType: ct, Size: size}, nil
}

func (s *R2Store) Delete(ctx context.Context, filename string) error {
	if !ValidName(filename) {
		return ErrInvalidName
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(filename),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from R2: %w", err)
	}
	return nil
}
