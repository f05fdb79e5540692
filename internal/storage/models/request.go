// internal/storage/models/request.go
package models

// ConsumedRequest is one consumed creation-request identifier. The unique
// index is the durable half of the replay protection.
type ConsumedRequest struct {
	BaseModel
	RequestID string `gorm:"unique;not null;type:varchar(64)"`
}
