package internal

import (
	"uploadfast/storage-api/internal/service"
	"uploadfast/storage-api/pkg/security"

	"gorm.io/gorm"
)

type Deps struct {
	DB       *gorm.DB
	Argon    *security.ArgonHash
	Usage    *service.Usage
	Uploader *service.Uploader
	Deleter  *service.Deleter
	Apps     *service.Apps
}
