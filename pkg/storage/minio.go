// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"context"
	"fmt"

	"chag-go/internal/config"
	"chag-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectClient 是 SnapshotStore 用到的 *minio.Client 方法。
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
}

// SnapshotStore 把 learner 保存的模型与分词器文件备份到 MinIO。
type SnapshotStore struct {
	client objectClient
	bucket string
}

// NewSnapshotStore 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewSnapshotStore(ctx context.Context, cfg config.MinIOConfig) (*SnapshotStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")
	return newSnapshotStore(ctx, client, cfg.BucketName)
}

// newSnapshotStore 确保存储桶存在。
func newSnapshotStore(ctx context.Context, client objectClient, bucket string) (*SnapshotStore, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", bucket)
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", bucket)
	}
	return &SnapshotStore{client: client, bucket: bucket}, nil
}

// UploadFile 上传本地文件，objectName 相同则覆盖。
func (s *SnapshotStore) UploadFile(ctx context.Context, objectName, filePath string) error {
	info, err := s.client.FPutObject(ctx, s.bucket, objectName, filePath, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("上传 %s 到 MinIO 失败: %w", objectName, err)
	}
	log.Infof("快照已上传: %s/%s (%d 字节)", s.bucket, objectName, info.Size)
	return nil
}

// DownloadFile 将对象下载到本地路径，用于在本地文件缺失时恢复模型。
func (s *SnapshotStore) DownloadFile(ctx context.Context, objectName, filePath string) error {
	if err := s.client.FGetObject(ctx, s.bucket, objectName, filePath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("从 MinIO 下载 %s 失败: %w", objectName, err)
	}
	return nil
}
