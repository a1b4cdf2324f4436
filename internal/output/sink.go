package output

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/campaign"
	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/config"
	"github.com/allenroque-ai/sms-campaign-orchestrator/internal/pkg/logger"
)

// s3API is the slice of the S3 client the sink uses; swapped for a fake in
// tests.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Sink delivers a formatted dataset to stdout, a file, or an S3 object,
// chosen by the configured path.
type Sink struct {
	cfg      config.OutputConfig
	s3Client s3API
}

func NewSink(cfg config.OutputConfig) *Sink {
	return &Sink{cfg: cfg}
}

// SetS3Client overrides the lazily built S3 client.
func (s *Sink) SetS3Client(client s3API) { s.s3Client = client }

// Write formats and delivers the dataset. CSV output is header-validated
// before anything leaves the process.
func (s *Sink) Write(ctx context.Context, ds *campaign.CampaignDataset) error {
	var data []byte
	var err error
	contentType := "text/csv"

	switch s.cfg.Format {
	case "json":
		data, err = FormatJSON(ds)
		contentType = "application/json"
	default:
		data, err = FormatCSV(ds)
		if err == nil {
			err = ValidateCSVHeader(data)
		}
	}
	if err != nil {
		return err
	}

	path := strings.TrimSpace(s.cfg.Path)
	switch {
	case path == "", path == "-":
		_, err = os.Stdout.Write(data)
		return err
	case strings.HasPrefix(path, "s3://"):
		return s.writeS3(ctx, path, data, contentType)
	default:
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		logger.Info("Dataset written", "path", path, "bytes", len(data), "contacts", len(ds.Contacts))
		return nil
	}
}

// writeS3 uploads the dataset to an s3://bucket/key destination, with KMS
// server-side encryption when a key is configured.
func (s *Sink) writeS3(ctx context.Context, uri string, data []byte, contentType string) error {
	bucket, key, err := splitS3URI(uri)
	if err != nil {
		return err
	}

	client := s.s3Client
	if client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.cfg.S3Region))
		if err != nil {
			return fmt.Errorf("loading AWS config for S3 output: %w", err)
		}
		client = s3.NewFromConfig(awsCfg)
		s.s3Client = client
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if s.cfg.KMSKeyID != "" {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(s.cfg.KMSKeyID)
	}

	if _, err := client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("S3 PutObject %s/%s: %w", bucket, key, err)
	}

	logger.Info("Dataset uploaded", "bucket", bucket, "key", key, "bytes", len(data))
	return nil
}

func splitS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q: want s3://bucket/key", uri)
	}
	return bucket, key, nil
}
