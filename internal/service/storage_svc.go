package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"elfbaby/internal/config"
	"elfbaby/pkg/logger"
)

// ErrStorageDisabled 未配置存储桶
var ErrStorageDisabled = errors.New("未配置图片存储 (storage.bucket)")

// ==================== 接口定义 ====================

// StorageProvider 存储提供者接口
type StorageProvider interface {
	// Upload 上传文件，返回公开访问URL
	Upload(ctx context.Context, data []byte, filename string, contentType string) (string, error)
}

// Downloader 下载源图片
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// ==================== StorageService ====================

// StorageService 图片镜像：下载源图并上传到对象存储
type StorageService struct {
	provider   StorageProvider
	downloader Downloader
	log        *zap.Logger
}

// NewStorageService 根据配置选择提供者
// 未配置 bucket 时返回 ErrStorageDisabled；endpoint 以 file:// 开头时写本地目录
func NewStorageService(cfg config.StorageConfig, downloader Downloader, log *zap.Logger) (*StorageService, error) {
	provider, err := NewStorageProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewStorageServiceWithProvider(provider, downloader, log), nil
}

// NewStorageServiceWithProvider 直接注入提供者
func NewStorageServiceWithProvider(provider StorageProvider, downloader Downloader, log *zap.Logger) *StorageService {
	return &StorageService{
		provider:   provider,
		downloader: downloader,
		log:        logger.OrNop(log).Named("storage"),
	}
}

// NewStorageProvider 工厂方法
func NewStorageProvider(cfg config.StorageConfig) (StorageProvider, error) {
	if strings.HasPrefix(cfg.Endpoint, localScheme) {
		return NewLocalStorage(cfg), nil
	}
	if cfg.Bucket == "" {
		return nil, ErrStorageDisabled
	}
	return NewS3Storage(cfg)
}

// UploadFromURL 下载 sourceURL 并上传，name 只用于取扩展名
func (s *StorageService) UploadFromURL(ctx context.Context, sourceURL, name string) (string, error) {
	data, contentType, err := s.downloader.Download(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("下载图片 %s 失败: %w", sourceURL, err)
	}
	if name == "" {
		name = path.Base(stripQuery(sourceURL))
	}

	url, err := s.provider.Upload(ctx, data, name, contentType)
	if err != nil {
		return "", err
	}
	s.log.Info("图片已镜像", zap.String("source", sourceURL), zap.String("url", url))
	return url, nil
}

// MirrorImages 逐个镜像，任一失败即返回
func (s *StorageService) MirrorImages(ctx context.Context, images []string) ([]string, error) {
	out := make([]string, 0, len(images))
	for _, src := range images {
		url, err := s.UploadFromURL(ctx, src, "")
		if err != nil {
			return nil, err
		}
		out = append(out, url)
	}
	return out, nil
}

// ==================== S3 实现 ====================

type S3Storage struct {
	client    *s3.Client
	bucket    string
	region    string
	endpoint  string
	cdnDomain string
	basePath  string
}

// NewS3Storage endpoint 非空时按 S3 兼容服务处理（path-style）
func NewS3Storage(cfg config.StorageConfig) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("加载AWS配置失败: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		endpoint:  endpoint,
		cdnDomain: cfg.CDNDomain,
		basePath:  cfg.BasePath,
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, data []byte, filename string, contentType string) (string, error) {
	key := generateKey(s.basePath, filename, time.Now())

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("上传S3失败: %w", err)
	}

	return s.publicURL(key), nil
}

func (s *S3Storage) publicURL(key string) string {
	switch {
	case s.cdnDomain != "":
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	case s.endpoint != "":
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
	}
}

// ==================== 本地存储 (开发测试用) ====================

const localScheme = "file://"

// LocalStorage 写入本地目录，URL 为 cdn_domain 前缀或文件路径
type LocalStorage struct {
	dir       string
	basePath  string
	cdnDomain string
}

func NewLocalStorage(cfg config.StorageConfig) *LocalStorage {
	return &LocalStorage{
		dir:       strings.TrimPrefix(cfg.Endpoint, localScheme),
		basePath:  cfg.BasePath,
		cdnDomain: cfg.CDNDomain,
	}
}

func (s *LocalStorage) Upload(ctx context.Context, data []byte, filename string, contentType string) (string, error) {
	key := generateKey(s.basePath, filename, time.Now())
	full := filepath.Join(s.dir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("写入文件失败: %w", err)
	}

	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key), nil
	}
	return full, nil
}

// ==================== 工具函数 ====================

// generateKey basePath/yyyy/mm/dd/uuid.ext
func generateKey(basePath, filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}
	newFilename := uuid.New().String() + ext

	datePath := now.Format("2006/01/02")
	if basePath != "" {
		return fmt.Sprintf("%s/%s/%s", strings.Trim(basePath, "/"), datePath, newFilename)
	}
	return fmt.Sprintf("%s/%s", datePath, newFilename)
}

func stripQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
