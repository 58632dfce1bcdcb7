package models

import (
	"context"
	"errors"
	"time"

	"github.com/Verba-Org/mini-erp-experienceservice/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization owns products and parties and carries the country that drives
// tax jurisdiction. Provisioned at seed time; never auto-created by lookups.
type Organization struct {
	ID        string    `gorm:"primary_key;size:36" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	NameKey   string    `gorm:"size:255;uniqueIndex;not null" json:"-"`
	Country   string    `gorm:"size:2;not null;default:'IN'" json:"country"`
	TaxId     string    `gorm:"size:100;default:null" json:"tax_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (org *Organization) BeforeCreate(tx *gorm.DB) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	org.NameKey = utils.NormalizeName(org.Name)
	return nil
}

// ResolveOrganizationByName resolves an organization by normalized name.
// Returns nil without error when absent; organizations are provisioned out of
// band and never created on demand.
func ResolveOrganizationByName(ctx context.Context, tx *gorm.DB, name string) (*Organization, error) {
	var org Organization
	err := tx.WithContext(ctx).
		Where("name_key = ?", utils.NormalizeName(name)).
		First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}
