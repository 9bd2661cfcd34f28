package service

import (
	"context"
	"errors"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elfbaby/internal/config"
)

type fakeDownloader struct {
	files map[string][]byte
	calls []string
}

func (d *fakeDownloader) Download(ctx context.Context, url string) ([]byte, string, error) {
	d.calls = append(d.calls, url)
	data, ok := d.files[url]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return data, "image/jpeg", nil
}

func TestNewStorageProvider(t *testing.T) {
	_, err := NewStorageProvider(config.StorageConfig{})
	assert.ErrorIs(t, err, ErrStorageDisabled)

	p, err := NewStorageProvider(config.StorageConfig{Endpoint: "file://" + t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, p)
}

func TestStorageService_MirrorImages_Local(t *testing.T) {
	dir := t.TempDir()
	dl := &fakeDownloader{files: map[string][]byte{
		"https://shop.test/a.png?w=800": []byte("png-bytes"),
		"https://shop.test/b":           []byte("jpg-bytes"),
	}}
	svc, err := NewStorageService(config.StorageConfig{
		Endpoint:  "file://" + dir,
		BasePath:  "elfbaby",
		CDNDomain: "cdn.elfbaby.test",
	}, dl, nil)
	require.NoError(t, err)

	urls, err := svc.MirrorImages(context.Background(), []string{"https://shop.test/a.png?w=800", "https://shop.test/b"})
	require.NoError(t, err)
	require.Len(t, urls, 2)

	assert.Regexp(t, regexp.MustCompile(`^https://cdn\.elfbaby\.test/elfbaby/\d{4}/\d{2}/\d{2}/[0-9a-f-]{36}\.png$`), urls[0])
	assert.True(t, strings.HasSuffix(urls[1], ".jpg"), "无扩展名时默认 .jpg")

	local := strings.TrimPrefix(urls[0], "https://cdn.elfbaby.test/")
	data, err := os.ReadFile(dir + "/" + local)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestStorageService_MirrorImages_DownloadError(t *testing.T) {
	svc := NewStorageServiceWithProvider(NewLocalStorage(config.StorageConfig{Endpoint: "file://" + t.TempDir()}), &fakeDownloader{}, nil)

	_, err := svc.MirrorImages(context.Background(), []string{"https://shop.test/missing.jpg"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "下载图片")
}

func TestGenerateKey(t *testing.T) {
	now := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	key := generateKey("/elfbaby/", "photo.JPEG", now)
	assert.Regexp(t, `^elfbaby/2024/03/09/[0-9a-f-]{36}\.jpeg$`, key)

	key = generateKey("", "noext", now)
	assert.Regexp(t, `^2024/03/09/[0-9a-f-]{36}\.jpg$`, key)
}

func TestS3Storage_PublicURL(t *testing.T) {
	tests := []struct {
		name string
		s    S3Storage
		want string
	}{
		{"CDN 优先", S3Storage{bucket: "b", region: "eu-west-1", cdnDomain: "cdn.test"}, "https://cdn.test/k.jpg"},
		{"兼容端点", S3Storage{bucket: "b", endpoint: "http://minio:9000"}, "http://minio:9000/b/k.jpg"},
		{"AWS 默认", S3Storage{bucket: "b", region: "eu-west-1"}, "https://b.s3.eu-west-1.amazonaws.com/k.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.publicURL("k.jpg"))
		})
	}
}
