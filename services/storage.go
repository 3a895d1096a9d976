package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"takedown_app_go/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxScreenshotSize caps a single evidence upload
	MaxScreenshotSize = 10 * 1024 * 1024 // 10MB
	// ScreenshotURLExpiry is how long a signed download link stays valid
	ScreenshotURLExpiry = 5 * time.Minute
)

var (
	// ErrSignedURLUnsupported is returned by providers that serve files directly
	ErrSignedURLUnsupported = errors.New("storage provider does not issue signed urls")
	// ErrInvalidUpload is returned for screenshots that are too large or not images
	ErrInvalidUpload = errors.New("invalid screenshot upload")
)

var allowedScreenshotTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// StorageProvider defines the interface for evidence file storage
type StorageProvider interface {
	UploadReader(ctx context.Context, reader io.Reader, key string, contentType string, size int64) (*StorageResult, error)
	Get(ctx context.Context, key string) (io.ReadCloser, string, error) // Returns reader, content-type, error
	GetSignedURL(ctx context.Context, key string, expiration time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// StorageResult contains information about the stored file
type StorageResult struct {
	Key      string
	FileName string
	FileSize int64
	MimeType string
}

// NewStorageFromConfig returns R2 storage when fully configured and reachable,
// otherwise local disk under UploadDir.
func NewStorageFromConfig(ctx context.Context, cfg *config.Config, log *zap.Logger) StorageProvider {
	if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" {
		log.Info("storage ready (local filesystem)", zap.String("path", cfg.UploadDir))
		return NewLocalStorage(cfg.UploadDir)
	}

	r2, err := NewR2Storage(ctx, cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2SecretAccessKey, cfg.R2BucketName)
	if err != nil {
		log.Warn("failed to initialize R2 storage, falling back to local storage", zap.Error(err))
		return NewLocalStorage(cfg.UploadDir)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := r2.client.HeadBucket(pingCtx, &s3.HeadBucketInput{Bucket: aws.String(cfg.R2BucketName)}); err != nil {
		log.Warn("R2 bucket check failed, falling back to local storage", zap.Error(err))
		return NewLocalStorage(cfg.UploadDir)
	}

	log.Info("storage ready (Cloudflare R2)", zap.String("bucket", cfg.R2BucketName))
	return r2
}

// R2Storage stores screenshots in a Cloudflare R2 bucket through the S3 API
type R2Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

// NewR2Storage creates an R2 client for the account's S3 endpoint
func NewR2Storage(ctx context.Context, accountID, accessKeyID, secretAccessKey, bucket string) (*R2Storage, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	return newS3Storage(ctx, endpoint, accessKeyID, secretAccessKey, bucket)
}

func newS3Storage(ctx context.Context, endpoint, accessKeyID, secretAccessKey, bucket string) (*R2Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
		awsconfig.WithRegion("auto"), // R2 uses "auto" region
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
	}, nil
}

// UploadReader uploads content from a reader to R2
func (r *R2Storage) UploadReader(ctx context.Context, reader io.Reader, key string, contentType string, size int64) (*StorageResult, error) {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          reader,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to R2: %w", err)
	}

	return &StorageResult{Key: key, FileName: filepath.Base(key), FileSize: size, MimeType: contentType}, nil
}

// Get retrieves an object from R2
func (r *R2Storage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	result, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get object from R2: %w", err)
	}

	contentType := "application/octet-stream"
	if result.ContentType != nil {
		contentType = *result.ContentType
	}
	return result.Body, contentType, nil
}

// GetSignedURL generates a presigned URL for temporary access
func (r *R2Storage) GetSignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	presigned, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return presigned.URL, nil
}

// Delete removes an object from R2
func (r *R2Storage) Delete(ctx context.Context, key string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from R2: %w", err)
	}
	return nil
}

// LocalStorage keeps screenshots on disk. Files are streamed by the
// download handler after its ownership check, never served statically.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage creates a new local storage provider
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{baseDir: baseDir}
}

func (l *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(l.baseDir, clean), nil
}

// UploadReader saves content from a reader to local filesystem
func (l *LocalStorage) UploadReader(_ context.Context, reader io.Reader, key string, contentType string, _ int64) (*StorageResult, error) {
	fullPath, err := l.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	return &StorageResult{Key: key, FileName: filepath.Base(key), FileSize: written, MimeType: contentType}, nil
}

// Get opens a stored file, detecting the content type from its extension
func (l *LocalStorage) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	fullPath, err := l.path(key)
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}

	contentType, ok := allowedScreenshotTypes[strings.ToLower(filepath.Ext(key))]
	if !ok {
		contentType = "application/octet-stream"
	}
	return file, contentType, nil
}

// GetSignedURL is not supported locally; callers stream through Get
func (l *LocalStorage) GetSignedURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrSignedURLUnsupported
}

// Delete removes a file from local filesystem
func (l *LocalStorage) Delete(_ context.Context, key string) error {
	fullPath, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GenerateScreenshotKey creates a flat, unique storage key keeping the original extension
func GenerateScreenshotKey(originalFilename string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	return fmt.Sprintf("scr_%s_%d%s", strings.ReplaceAll(uuid.New().String(), "-", ""), time.Now().Unix(), ext)
}

// ValidateScreenshotUpload checks size, extension and sniffed content type,
// returning the content type to store the file with.
func ValidateScreenshotUpload(fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader.Size > MaxScreenshotSize {
		return "", fmt.Errorf("%w: file size exceeds maximum allowed size of 10MB", ErrInvalidUpload)
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	expected, ok := allowedScreenshotTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: only PNG, JPEG, WEBP or GIF images are allowed", ErrInvalidUpload)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file content: %w", err)
	}

	detected := http.DetectContentType(buffer[:n])
	if detected != expected {
		return "", fmt.Errorf("%w: file content is not a valid %s image", ErrInvalidUpload, strings.TrimPrefix(ext, "."))
	}
	return detected, nil
}

// StoreScreenshot validates and uploads an evidence image, returning its key
func StoreScreenshot(ctx context.Context, storage StorageProvider, fileHeader *multipart.FileHeader) (*StorageResult, error) {
	contentType, err := ValidateScreenshotUpload(fileHeader)
	if err != nil {
		return nil, err
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	return storage.UploadReader(ctx, src, GenerateScreenshotKey(fileHeader.Filename), contentType, fileHeader.Size)
}
