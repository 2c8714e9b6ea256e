// Package uploader copies the latest pipeline artifacts to S3 cold storage
package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/lvonguyen/finops-pipeline/internal/aggregator"
	internalConfig "github.com/lvonguyen/finops-pipeline/internal/config"
	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
	"github.com/lvonguyen/finops-pipeline/internal/reporter"
)

// ErrNothingUploaded is returned when no artifact could be uploaded
var ErrNothingUploaded = errors.New("no artifact uploaded")

// PutObjectAPI is the subset of the S3 client used here
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Target maps an artifact pattern to a key prefix
type Target struct {
	Pattern string
	Prefix  string
}

// Upload is one uploaded file
type Upload struct {
	Path string
	Key  string
}

// Uploader pushes the newest file of each target to a bucket
type Uploader struct {
	client  PutObjectAPI
	bucket  string
	dir     string
	targets []Target
	logger  *zap.Logger
	now     func() time.Time
}

// Targets returns the artifact patterns uploaded after each run
func Targets(cfg internalConfig.UploadConfig) []Target {
	return []Target{
		{reporter.Pattern(reporter.PrefixEnriched, "csv"), cfg.ProcessedPrefix},
		{reporter.Pattern(aggregator.ViewDaily, "csv"), cfg.ProcessedPrefix},
		{reporter.Pattern(reporter.PrefixTopServices, "csv"), cfg.ReportsPrefix},
		{reporter.Pattern(reporter.PrefixMonthlyEvolution, "csv"), cfg.ReportsPrefix},
		{reporter.Pattern(reporter.PrefixKPIs, "json"), cfg.KPIsPrefix},
	}
}

// New creates an uploader using the default AWS credential chain
func New(ctx context.Context, cfg internalConfig.UploadConfig, outputDir string, logger *zap.Logger) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("upload bucket not configured")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(s3.NewFromConfig(awsCfg), cfg.Bucket, outputDir, Targets(cfg), logger), nil
}

// NewWithClient wires a prebuilt client
func NewWithClient(client PutObjectAPI, bucket, outputDir string, targets []Target, logger *zap.Logger) *Uploader {
	return &Uploader{
		client:  client,
		bucket:  bucket,
		dir:     outputDir,
		targets: targets,
		logger:  logger,
		now:     time.Now,
	}
}

// Key returns the object key of file under prefix for the given day
func Key(prefix string, day time.Time, file string) string {
	return path.Join(prefix, day.Format(normalizer.DateLayout), filepath.Base(file))
}

// UploadLatest uploads the newest match of every target under
// <prefix>/<YYYY-MM-DD>/. Missing artifacts and failed uploads are logged and
// skipped. It fails with ErrNothingUploaded when no file made it.
func (u *Uploader) UploadLatest(ctx context.Context) ([]Upload, error) {
	today := u.now()
	var uploaded []Upload

	for _, t := range u.targets {
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}

		file, err := reporter.Latest(u.dir, t.Pattern)
		if err != nil {
			u.logger.Warn("no artifact to upload", zap.String("pattern", t.Pattern), zap.Error(err))
			continue
		}

		key := Key(t.Prefix, today, file)
		if err := u.put(ctx, file, key); err != nil {
			u.logger.Error("upload failed", zap.String("file", file), zap.Error(err))
			continue
		}

		u.logger.Info("uploaded artifact",
			zap.String("file", file),
			zap.String("uri", fmt.Sprintf("s3://%s/%s", u.bucket, key)))
		uploaded = append(uploaded, Upload{Path: file, Key: key})
	}

	if len(uploaded) == 0 {
		return nil, ErrNothingUploaded
	}
	return uploaded, nil
}

func (u *Uploader) put(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", u.bucket, key, err)
	}
	return nil
}
