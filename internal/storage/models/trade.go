// internal/storage/models/trade.go
package models

type Trade struct {
	BaseModel
	Asset           string `gorm:"index;not null;type:varchar(64)"`
	Actor           string `gorm:"index;not null;type:varchar(64)"`
	Side            string `gorm:"not null;type:varchar(4)"`
	BaseAmount      uint64 `gorm:"not null"`
	TokenAmount     uint64 `gorm:"not null"`
	Fee             uint64 `gorm:"not null"`
	VirtualBase     uint64 `gorm:"not null"`
	VirtualToken    uint64 `gorm:"not null"`
	AvailableTokens uint64 `gorm:"not null"`
	CollectedBase   uint64 `gorm:"not null"`
}
