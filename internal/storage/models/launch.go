// internal/storage/models/launch.go
package models

type Launch struct {
	BaseModel
	Asset       string `gorm:"unique;not null;type:varchar(64)"`
	Creator     string `gorm:"index;not null;type:varchar(64)"`
	Name        string `gorm:"not null;type:varchar(100)"`
	Symbol      string `gorm:"not null;type:varchar(20)"`
	TotalSupply uint64 `gorm:"not null"`
	SaleAmount  uint64 `gorm:"not null"`
	LaunchTime  int64
	Status      string `gorm:"index;not null;type:varchar(20)"`
}
