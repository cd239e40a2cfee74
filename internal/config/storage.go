package config

import "time"

// StorageConfig configures the S3-compatible bucket that stores avatars.
// Any S3 implementation works (AWS, MinIO, RustFS); set UsePathStyle for
// the self-hosted ones.
type StorageConfig struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
	MaxAvatarBytes    int64
}

// Enabled reports whether enough settings are present to build a client.
func (c StorageConfig) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

func LoadStorageConfig() StorageConfig {
	return StorageConfig{
		Endpoint:          envStr("S3_ENDPOINT", ""),
		Region:            envStr("S3_REGION", "us-east-1"),
		Bucket:            envStr("S3_BUCKET", ""),
		AccessKey:         envStr("S3_ACCESS_KEY", ""),
		SecretKey:         envStr("S3_SECRET_KEY", ""),
		UseSSL:            envBool("S3_USE_SSL", true),
		UsePathStyle:      envBool("S3_USE_PATH_STYLE", false),
		PresignExpiration: envDur("S3_PRESIGN_EXPIRATION", 15*time.Minute),
		MaxAvatarBytes:    int64(envInt("AVATAR_MAX_BYTES", 2<<20)),
	}
}
