package config

import (
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
)

type StorageConfig struct {
	Type  string      `yaml:"type"` // local | s3 | minio
	Local LocalConfig `yaml:"local"`
	S3    S3Config    `yaml:"s3"`
	Minio MinioConfig `yaml:"minio"`
}

type LocalConfig struct {
	Root string `yaml:"root"`
}

type S3Config struct {
	BucketName string `yaml:"bucket_name"`
	Region     string `yaml:"region"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
}

func (c *S3Config) applyEnv() {
	c.BucketName = getEnv("AWS_S3_BUCKET_NAME", c.BucketName)
	c.Region = getEnv("AWS_REGION", c.Region)
	c.Endpoint = getEnv("AWS_ENDPOINT", c.Endpoint)
	c.AccessKey = getEnv("AWS_ACCESS_KEY", c.AccessKey)
	c.SecretKey = getEnv("AWS_SECRET_KEY", c.SecretKey)
}

type MinioConfig struct {
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Endpoint   string `yaml:"endpoint"`
	UseSSL     bool   `yaml:"use_ssl"`
	Region     string `yaml:"region"`
	BucketName string `yaml:"bucket_name"`
}

func (c *MinioConfig) applyEnv() {
	c.AccessKey = getEnv("MINIO_ACCESS_KEY", c.AccessKey)
	c.SecretKey = getEnv("MINIO_SECRET_KEY", c.SecretKey)
	c.Endpoint = getEnv("MINIO_ENDPOINT", c.Endpoint)
	c.UseSSL = getEnvBool("MINIO_USE_SSL", c.UseSSL)
	c.Region = getEnv("MINIO_REGION", c.Region)
	c.BucketName = getEnv("MINIO_BUCKET_NAME", c.BucketName)
}

func (c StorageConfig) Validate() error {
	switch c.Type {
	case "local":
		if c.Local.Root == "" {
			return apperrors.NewConfigurationError("config.storage", "local root is required")
		}
	case "s3":
		if c.S3.BucketName == "" || c.S3.Region == "" {
			return apperrors.NewConfigurationError("config.storage", "s3 bucket_name and region are required")
		}
	case "minio":
		if c.Minio.Endpoint == "" || c.Minio.BucketName == "" {
			return apperrors.NewConfigurationError("config.storage", "minio endpoint and bucket_name are required")
		}
	default:
		return apperrors.NewConfigurationError("config.storage", "unsupported storage type "+c.Type)
	}
	return nil
}
