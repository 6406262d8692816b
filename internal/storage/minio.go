package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"resumify/internal/config"
)

// Client 是基于 MinIO 的 Store 实现，内网客户端读写，公网客户端签发直链。
type Client struct {
	internalClient *minio.Client
	publicClient   *minio.Client
	bucketName     string
}

var (
	_ Store     = (*Client)(nil)
	_ Presigner = (*Client)(nil)
)

// NewClient 根据配置初始化 MinIO 客户端，并确保目标 Bucket 存在。
// 内网地址用于读写；签发直链使用 PublicEndpoint，保证浏览器能访问。
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	lookup, err := bucketLookup(cfg.BucketLookup)
	if err != nil {
		return nil, err
	}
	newMinio := func(host string, secure bool) (*minio.Client, error) {
		return minio.New(host, &minio.Options{
			Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			Secure:       secure,
			Region:       cfg.Region,
			BucketLookup: lookup,
		})
	}

	internal, err := newMinio(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("init internal minio client: %w", err)
	}
	host, secure, err := publicHost(cfg)
	if err != nil {
		return nil, err
	}
	public, err := newMinio(host, secure)
	if err != nil {
		return nil, fmt.Errorf("init public minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ensureBucket(ctx, internal, cfg); err != nil {
		return nil, err
	}

	return &Client{
		internalClient: internal,
		publicClient:   public,
		bucketName:     cfg.Bucket,
	}, nil
}

func bucketLookup(mode string) (minio.BucketLookupType, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		return minio.BucketLookupAuto, nil
	case "dns":
		return minio.BucketLookupDNS, nil
	case "path":
		return minio.BucketLookupPath, nil
	}
	return minio.BucketLookupAuto, fmt.Errorf("invalid minio bucket lookup %q", mode)
}

// publicHost 解析直链使用的 host；未配置时沿用内网 Endpoint。
func publicHost(cfg config.MinIOConfig) (string, bool, error) {
	if cfg.PublicEndpoint == "" {
		return cfg.Endpoint, cfg.UseSSL, nil
	}
	u, err := url.Parse(cfg.PublicEndpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse minio public endpoint: %w", err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("minio public endpoint %q has no host", cfg.PublicEndpoint)
	}
	return u.Host, u.Scheme == "https", nil
}

func ensureBucket(ctx context.Context, client *minio.Client, cfg config.MinIOConfig) error {
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if !cfg.AutoCreateBucket {
		return fmt.Errorf("bucket %q does not exist and auto create is off", cfg.Bucket)
	}
	if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		return fmt.Errorf("make bucket %q: %w", cfg.Bucket, err)
	}
	return nil
}

// Save 将对象上传到私有 Bucket。
func (c *Client) Save(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := c.internalClient.PutObject(ctx, c.bucketName, key, reader, size, opts); err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// Open 读取私有 Bucket 中的对象；不存在时返回 ErrNotFound。
func (c *Client) Open(ctx context.Context, key string) (*Object, error) {
	obj, err := c.internalClient.GetObject(ctx, c.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, objectError("get object", key, err)
	}
	// GetObject 是惰性的，Stat 才会真正发起请求。
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, objectError("stat object", key, err)
	}
	return &Object{
		ReadCloser:  obj,
		Size:        info.Size,
		ContentType: info.ContentType,
		ModTime:     info.LastModified,
	}, nil
}

// PresignedURL 生成对象的限时下载链接。
func (c *Client) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	presignedURL, err := c.publicClient.PresignedGetObject(ctx, c.bucketName, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("generate presigned url for %q: %w", key, err)
	}
	return presignedURL.String(), nil
}

// Delete 删除指定对象。
// 若对象不存在会被视为成功（幂等）。
func (c *Client) Delete(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if err := c.internalClient.RemoveObject(ctx, c.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		if errors.Is(objectError("remove object", key, err), ErrNotFound) {
			return nil
		}
		return objectError("remove object", key, err)
	}
	return nil
}
