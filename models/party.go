package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Verba-Org/mini-erp-experienceservice/config"
	"github.com/Verba-Org/mini-erp-experienceservice/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Party is a customer or vendor of an organization. Every order references
// exactly one party.
type Party struct {
	ID        string    `gorm:"primary_key;size:36" json:"id"`
	OrgId     string    `gorm:"size:36;index;not null" json:"org_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	NameKey   string    `gorm:"size:255;index;not null" json:"-"`
	Role      PartyRole `gorm:"size:20;not null;default:'CUSTOMER'" json:"role"`
	Phone     string    `gorm:"size:50;default:null" json:"phone"`
	Email     string    `gorm:"size:255;default:null" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Party) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.NameKey = utils.NormalizeName(p.Name)
	return nil
}

func findPartyByName(ctx context.Context, tx *gorm.DB, name string) (*Party, error) {
	var party Party
	err := tx.WithContext(ctx).
		Where("name_key = ?", utils.NormalizeName(name)).
		First(&party).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &party, nil
}

// ResolvePartyByName resolves a party by normalized exact name.
//
// Absent + allowCreate: a new customer is created under the default
// organization with blank contact fields and returned.
// Absent + !allowCreate: the configured default customer is returned instead.
// A missing default customer (or, when creating, a missing default
// organization) is a fatal misconfiguration, not a user error.
func ResolvePartyByName(ctx context.Context, tx *gorm.DB, name string, allowCreate bool, defaults config.Defaults) (*Party, error) {
	party, err := findPartyByName(ctx, tx, name)
	if err != nil {
		return nil, err
	}
	if party != nil {
		return party, nil
	}

	if !allowCreate {
		fallback, err := findPartyByName(ctx, tx, defaults.CustomerName)
		if err != nil {
			return nil, err
		}
		if fallback == nil {
			return nil, fmt.Errorf("%w: default customer %q is missing", utils.ErrorFatalConfig, defaults.CustomerName)
		}
		return fallback, nil
	}

	org, err := ResolveOrganizationByName(ctx, tx, defaults.OrganizationName)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, fmt.Errorf("%w: default organization %q is missing", utils.ErrorFatalConfig, defaults.OrganizationName)
	}

	created := Party{
		OrgId: org.ID,
		Name:  name,
		Role:  PartyRoleCustomer,
	}
	if err := tx.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}
