package domain

import "time"

// Service is a catalog entry customers can request. Prices are in minor units.
type Service struct {
	ID            string
	Code          string
	Name          string
	NameAr        string
	Description   string
	DescriptionAr string
	Category      string
	BasePrice     int64
	Currency      string
	EstimatedDays int
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
