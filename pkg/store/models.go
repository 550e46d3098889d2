package store

import (
	"time"

	"dormlend/pkg/domain"
)

// AccountModel is the GORM row backing one identity-provider account.
type AccountModel struct {
	UID          string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Username     string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Status       string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (AccountModel) TableName() string { return "accounts" }

func accountToModel(a domain.Account) AccountModel {
	return AccountModel{
		UID:          a.UID,
		Email:        a.Email,
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func accountFromModel(m AccountModel) domain.Account {
	return domain.Account{
		UID:          m.UID,
		Email:        m.Email,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Status:       domain.AccountStatus(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
