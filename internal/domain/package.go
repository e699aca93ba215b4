package domain

import (
	"context"
	"time"
)

// Package is a purchasable service tier
type Package struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	Name           string    `bson:"name" json:"name" validate:"required,max=100"`
	SpeedMbps      int       `bson:"speed_mbps" json:"speed_mbps" validate:"required,gt=0"`
	DataLimitGB    int       `bson:"data_limit_gb" json:"data_limit_gb" validate:"gte=0"` // 0 means unlimited
	DurationMonths int       `bson:"duration_months" json:"duration_months" validate:"required,gte=1,lte=36"`
	Price          int64     `bson:"price" json:"price" validate:"gte=0"` // Price in the smallest currency unit
	Description    string    `bson:"description,omitempty" json:"description,omitempty" validate:"max=500"`
	IsActive       bool      `bson:"is_active" json:"is_active"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// PackageRepository defines operations for managing packages
type PackageRepository interface {
	Create(ctx context.Context, pkg *Package) error
	GetByID(ctx context.Context, id string) (*Package, error)
	GetByName(ctx context.Context, name string) (*Package, error)
	GetActivePackages(ctx context.Context) ([]*Package, error)
	Update(ctx context.Context, pkg *Package) error
}
