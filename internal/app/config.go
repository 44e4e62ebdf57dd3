package app

import (
	"time"

	"github.com/yungbote/treechat-backend/internal/pkg/logger"
	"github.com/yungbote/treechat-backend/internal/services"
	"github.com/yungbote/treechat-backend/internal/utils"
)

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Config struct {
	Port       string
	Storage    StorageConfig
	FileLimits services.FileLimits
}

func LoadConfig(log *logger.Logger) Config {
	def := services.DefaultFileLimits()
	return Config{
		Port: utils.GetEnv("PORT", "8080", log),
		Storage: StorageConfig{
			Endpoint:  utils.GetEnv("STORAGE_ENDPOINT", "", log),
			AccessKey: utils.GetEnv("STORAGE_ACCESS_KEY", "", log),
			SecretKey: utils.GetEnv("STORAGE_SECRET_KEY", "", log),
			Bucket:    utils.GetEnv("STORAGE_BUCKET", "treechat", log),
			UseSSL:    utils.GetEnvAsBool("STORAGE_USE_SSL", false, log),
		},
		FileLimits: services.FileLimits{
			MaxFileSize:              utils.GetEnvAsInt64("FILE_MAX_SIZE_BYTES", def.MaxFileSize, log),
			MaxFilesPerUser:          utils.GetEnvAsInt64("FILE_MAX_COUNT_PER_USER", def.MaxFilesPerUser, log),
			MaxTotalBytesPerUser:     utils.GetEnvAsInt64("FILE_MAX_TOTAL_BYTES_PER_USER", def.MaxTotalBytesPerUser, log),
			MaxAttachmentsPerMessage: utils.GetEnvAsInt("FILE_MAX_PER_MESSAGE", def.MaxAttachmentsPerMessage, log),
			ThumbnailMaxDim:          utils.GetEnvAsInt("THUMBNAIL_MAX_DIM", def.ThumbnailMaxDim, log),
			UploadURLTTL:             time.Duration(utils.GetEnvAsInt("UPLOAD_URL_TTL_SECONDS", int(def.UploadURLTTL/time.Second), log)) * time.Second,
			DownloadURLTTL:           time.Duration(utils.GetEnvAsInt("DOWNLOAD_URL_TTL_SECONDS", int(def.DownloadURLTTL/time.Second), log)) * time.Second,
		},
	}
}
