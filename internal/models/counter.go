package models

// Counter is the last sequence number issued for a namespace in a year.
type Counter struct {
	Namespace string `gorm:"primaryKey;size:8"`
	Year      int    `gorm:"primaryKey"`
	Value     int    `gorm:"not null"`
}
