// Package uploader ships rotated record files to S3.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Uploader handles uploading completed record files to S3.
type Uploader struct {
	s3Client    *s3.Client
	bucket      string
	deleteAfter bool
	maxRetries  int
	logger      *slog.Logger
}

// flyTokenRetriever implements stscreds.IdentityTokenRetriever for Fly.io OIDC.
type flyTokenRetriever struct {
	socketPath string
	audience   string
}

// GetIdentityToken fetches an OIDC token from Fly.io's Unix socket API.
func (f *flyTokenRetriever) GetIdentityToken() ([]byte, error) {
	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", f.socketPath)
			},
		},
		Timeout: 5 * time.Second,
	}

	reqBody, err := json.Marshal(map[string]string{"aud": f.audience})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := client.Post("http://localhost/v1/tokens/oidc", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	token, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	return token, nil
}

// New creates an S3 uploader using OIDC authentication.
func New(ctx context.Context, bucket, region, roleARN string, deleteAfter bool, maxRetries int, logger *slog.Logger) (*Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if roleARN != "" {
		stsClient := sts.NewFromConfig(cfg)
		tokenRetriever := &flyTokenRetriever{
			socketPath: "/.fly/api",
			audience:   "sts.amazonaws.com",
		}
		credProvider := stscreds.NewWebIdentityRoleProvider(stsClient, roleARN, tokenRetriever)
		cfg.Credentials = aws.NewCredentialsCache(credProvider)
	}

	return newUploader(s3.NewFromConfig(cfg), bucket, deleteAfter, maxRetries, logger), nil
}

// NewWithStaticCredentials creates an S3 uploader using static credentials (legacy).
func NewWithStaticCredentials(ctx context.Context, bucket, region, accessKeyID, secretAccessKey string, deleteAfter bool, maxRetries int, logger *slog.Logger) (*Uploader, error) {
	credProvider := credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credProvider),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newUploader(s3.NewFromConfig(cfg), bucket, deleteAfter, maxRetries, logger), nil
}

func newUploader(client *s3.Client, bucket string, deleteAfter bool, maxRetries int, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		s3Client:    client,
		bucket:      bucket,
		deleteAfter: deleteAfter,
		maxRetries:  maxRetries,
		logger:      logger.With(slog.String("component", "uploader")),
	}
}

// ScanAndUploadExisting scans a directory for leftover .jsonl files and
// uploads them.
func (u *Uploader) ScanAndUploadExisting(ctx context.Context, outputDir string) error {
	u.logger.Info("scanning for existing files to upload", slog.String("dir", outputDir))

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return fmt.Errorf("read directory: %w", err)
	}

	var filesToUpload []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		filesToUpload = append(filesToUpload, filepath.Join(outputDir, entry.Name()))
	}

	if len(filesToUpload) == 0 {
		u.logger.Info("no existing files found to upload")
		return nil
	}
	u.logger.Info("found existing files to upload", slog.Int("count", len(filesToUpload)))

	for _, filePath := range filesToUpload {
		go u.uploadWithRetry(ctx, filePath)
	}
	return nil
}

// Start begins monitoring for files to upload.
func (u *Uploader) Start(ctx context.Context, fileChan <-chan string) error {
	for {
		select {
		case localPath := <-fileChan:
			go u.uploadWithRetry(ctx, localPath)
		case <-ctx.Done():
			u.logger.Info("uploader shutting down")
			return ctx.Err()
		}
	}
}

func (u *Uploader) uploadWithRetry(ctx context.Context, localPath string) {
	filename := filepath.Base(localPath)

	s3Key, err := generateS3Key(filename)
	if err != nil {
		u.logger.Error("generate S3 key", slog.String("file", filename), slog.Any("err", err))
		return
	}

	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		err := u.uploadFile(ctx, localPath, s3Key)
		if err == nil {
			u.logger.Info("uploaded file",
				slog.String("file", filename),
				slog.String("key", fmt.Sprintf("s3://%s/%s", u.bucket, s3Key)))

			if u.deleteAfter {
				if err := os.Remove(localPath); err != nil {
					u.logger.Error("delete local file", slog.String("file", localPath), slog.Any("err", err))
				}
			}
			return
		}

		if attempt < u.maxRetries {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			u.logger.Warn("upload attempt failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max", u.maxRetries),
				slog.String("file", filename),
				slog.Duration("backoff", backoff),
				slog.Any("err", err))

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
		}
	}

	u.logger.Error("upload failed permanently",
		slog.String("file", filename), slog.Int("attempts", u.maxRetries))
}

func (u *Uploader) uploadFile(ctx context.Context, localPath, s3Key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	_, err = u.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(s3Key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// generateS3Key generates an S3 key from a record filename.
// Input: twitch_ludwig_20251230_1030.jsonl
// Output: 2025/12/30/twitch/ludwig/twitch_ludwig_20251230_1030.jsonl
func generateS3Key(filename string) (string, error) {
	nameWithoutExt := strings.TrimSuffix(filename, ".jsonl")

	// Stream names may contain underscores, so parse from the end: the last
	// two parts are always date and time.
	parts := strings.Split(nameWithoutExt, "_")
	if len(parts) < 4 {
		return "", fmt.Errorf("invalid filename format: %s", filename)
	}

	stream := parts[0]
	dateStr := parts[len(parts)-2] // YYYYMMDD
	timeStr := parts[len(parts)-1] // HHMM
	qualifier := strings.Join(parts[1:len(parts)-2], "_")

	t, err := time.Parse("20060102_1504", dateStr+"_"+timeStr)
	if err != nil {
		return "", fmt.Errorf("parse timestamp: %w", err)
	}

	s3Key := fmt.Sprintf("%04d/%02d/%02d/%s/%s/%s",
		t.Year(), t.Month(), t.Day(), stream, qualifier, filename)
	return s3Key, nil
}
