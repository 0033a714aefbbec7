package models

import "time"

// Terminal is a stocking location: a fuel station, depot or the company
// head office. Master-data CRUD for terminals lives outside the costing
// core; the model exists so chains and migrations have a real table to
// reference.
type Terminal struct {
	ID        int       `gorm:"primary_key" json:"id"`
	CompanyId string    `gorm:"size:64;index;not null" json:"company_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
