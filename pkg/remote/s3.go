package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type s3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Session maps the session model onto a bucket. Directories are
// zero-byte objects whose key ends in "/".
type S3Session struct {
	api      s3API
	uploader s3Uploader
	bucket   string
	cwd      string
}

func DialS3(ctx context.Context, ep Endpoint) (Session, error) {
	if ep.Host == "" {
		return nil, errors.New("bucket name cannot be empty")
	}

	var configOpts []func(*config.LoadOptions) error
	if ep.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(ep.Profile))
	}
	if ep.Region != "" {
		configOpts = append(configOpts, config.WithRegion(ep.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep.EndpointURL != "" {
			o.BaseEndpoint = aws.String(ep.EndpointURL)
			o.UsePathStyle = true
		}
	})

	session := NewS3Session(client, manager.NewUploader(client), ep.Host)

	// Fail here rather than on the first upload when the bucket is
	// missing or the credentials are wrong.
	if _, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(ep.Host),
		MaxKeys: aws.Int32(1),
	}); err != nil {
		return nil, fmt.Errorf("access bucket %s: %w", ep.Host, describeAPIError(err))
	}

	return session, nil
}

func NewS3Session(api s3API, uploader s3Uploader, bucket string) *S3Session {
	return &S3Session{
		api:      api,
		uploader: uploader,
		bucket:   bucket,
		cwd:      "/",
	}
}

func (s *S3Session) Getwd(ctx context.Context) (string, error) {
	return s.cwd, nil
}

func (s *S3Session) ChangeDir(ctx context.Context, dir string) error {
	p := s.resolve(dir)
	if p != "/" {
		exists, err := s.prefixExists(ctx, dirKey(p))
		if err != nil {
			return fmt.Errorf("change directory %s: %w", p, err)
		}
		if !exists {
			return fmt.Errorf("change directory %s: %w", p, fs.ErrNotExist)
		}
	}
	s.cwd = p
	return nil
}

func (s *S3Session) MakeDir(ctx context.Context, dir string) error {
	p := s.resolve(dir)
	if p == "/" {
		return fmt.Errorf("make directory %s: %w", p, fs.ErrExist)
	}

	key := dirKey(p)
	exists, err := s.prefixExists(ctx, key)
	if err != nil {
		return fmt.Errorf("make directory %s: %w", p, err)
	}
	if exists {
		return fmt.Errorf("make directory %s: %w", p, fs.ErrExist)
	}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return fmt.Errorf("make directory %s: %w", p, describeAPIError(err))
	}
	return nil
}

func (s *S3Session) List(ctx context.Context, dir string) ([]string, error) {
	p := s.resolve(dir)
	prefix := ""
	if p != "/" {
		prefix = dirKey(p)
	}

	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", p, describeAPIError(err))
		}

		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(trimS3KeyPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name != "" {
				names = append(names, name)
			}
		}
		for _, obj := range page.Contents {
			name := trimS3KeyPrefix(aws.ToString(obj.Key), prefix)
			if name != "" {
				names = append(names, name)
			}
		}
	}

	return names, nil
}

func (s *S3Session) Store(ctx context.Context, remotePath string, r io.Reader, size int64) error {
	p := s.resolve(remotePath)
	contentType, body := detectContentType(p, r)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(strings.TrimPrefix(p, "/")),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to put object %s: %w", p, describeAPIError(err))
	}
	return nil
}

func (s *S3Session) Close() error {
	return nil
}

func (s *S3Session) resolve(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(s.cwd, p)
}

func (s *S3Session) prefixExists(ctx context.Context, prefix string) (bool, error) {
	out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, describeAPIError(err)
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

// dirKey turns an absolute session path into a directory marker key.
func dirKey(p string) string {
	return strings.TrimPrefix(p, "/") + "/"
}

// trimS3KeyPrefix strips prefix from key. prefix is either empty or ends
// in "/".
func trimS3KeyPrefix(key, prefix string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, prefix)
}

// describeAPIError puts the service error code in front of the message.
func describeAPIError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", apiErr.ErrorCode(), err)
	}
	return err
}

// ParseS3URI splits s3://bucket/prefix into the bucket and an absolute
// session path ("/" when there is no prefix).
func ParseS3URI(uri string) (bucket, dir string, err error) {
	if !strings.HasPrefix(uri, "s3://") {
		return "", "", fmt.Errorf("URI must start with s3://")
	}

	rest := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(rest, "/", 2)

	bucket = parts[0]
	if bucket == "" {
		return "", "", fmt.Errorf("bucket name cannot be empty")
	}

	dir = "/"
	if len(parts) > 1 {
		dir = path.Clean("/" + parts[1])
	}
	return bucket, dir, nil
}
