// internal/storage/models/claim.go
package models

type VestingClaim struct {
	BaseModel
	Asset       string `gorm:"index;not null;type:varchar(64)"`
	Beneficiary string `gorm:"index;not null;type:varchar(64)"`
	ScheduleID  uint64 `gorm:"not null"`
	Amount      uint64 `gorm:"not null"`
}
