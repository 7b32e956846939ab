package s3_helper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/rs/zerolog"

	"github.com/danthegoodman1/icefields/gologger"
	"github.com/danthegoodman1/icefields/utils"
)

const URIScheme = "s3://"

var (
	logger = gologger.NewLogger()

	ErrNotS3URI  = errors.New("not an s3:// uri")
	ErrNoSuchKey = errors.New("s3 key does not exist")
)

// NewSession builds an AWS session from the env config, S3_ENDPOINT allows
// S3 compatible stores.
func NewSession() (*session.Session, error) {
	s3Config := &aws.Config{
		Region:      aws.String(utils.AWS_DEFAULT_REGION),
		Credentials: credentials.NewEnvCredentials(),
	}
	if utils.S3_ENDPOINT != "" {
		s3Config.Endpoint = aws.String(utils.S3_ENDPOINT)
		s3Config.S3ForcePathStyle = aws.Bool(true)
	}

	s3Session, err := session.NewSession(s3Config)
	if err != nil {
		return nil, fmt.Errorf("error making new session: %w", err)
	}
	return s3Session, nil
}

func NewClient() (*s3.S3, error) {
	sess, err := NewSession()
	if err != nil {
		return nil, err
	}
	return s3.New(sess), nil
}

// ParseURI splits s3://bucket/key into its bucket and key. A uri without a
// bucket falls back to S3_BUCKET_NAME, so s3:///key is valid.
func ParseURI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, URIScheme) {
		return "", "", fmt.Errorf("%q: %w", uri, ErrNotS3URI)
	}
	rest := strings.TrimPrefix(uri, URIScheme)
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		bucket = utils.S3_BUCKET_NAME
	}
	if bucket == "" {
		return "", "", fmt.Errorf("%q has no bucket and S3_BUCKET_NAME is not set: %w", uri, ErrNotS3URI)
	}
	return bucket, key, nil
}

func IsURI(s string) bool {
	return strings.HasPrefix(s, URIScheme)
}

func WriteBytesToS3(ctx context.Context, bucket, fileName string, byteStream io.Reader, contentType *string) (*s3manager.UploadOutput, error) {
	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	s3Session, err := NewSession()
	if err != nil {
		return nil, err
	}

	uploader := s3manager.NewUploader(s3Session)

	input := &s3manager.UploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(fileName),
		Body:        byteStream,
		ContentType: contentType,
	}

	s := time.Now()
	output, err := uploader.UploadWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("error uploading to s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("bucket", bucket).Str("fileName", fileName).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("uploaded file to s3")

	return output, nil
}

func ReadBytesFromS3(ctx context.Context, bucket, fileName string) ([]byte, error) {
	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	s3Session, err := NewSession()
	if err != nil {
		return nil, err
	}

	downloader := s3manager.NewDownloader(s3Session)

	buf := &aws.WriteAtBuffer{}

	s := time.Now()
	_, err = downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(fileName),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, fmt.Errorf("%s/%s: %w", bucket, fileName, ErrNoSuchKey)
		}
		return nil, fmt.Errorf("error downloading from s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("bucket", bucket).Str("fileName", fileName).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("downloaded file from s3")

	return buf.Bytes(), nil
}

// ListKeys lists every key under prefix.
func ListKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	client, err := NewClient()
	if err != nil {
		return nil, err
	}
	var keys []string
	err = client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("error listing s3 objects: %w", err)
	}
	return keys, nil
}
