package repository

import (
	"errors"

	"voltpay/internal/models"

	"gorm.io/gorm"
)

type ChargingPointRepository struct {
	db *gorm.DB
}

func NewChargingPointRepository(db *gorm.DB) *ChargingPointRepository {
	return &ChargingPointRepository{db: db}
}

func (r *ChargingPointRepository) Upsert(p *models.ChargingPoint) error {
	return r.db.Save(p).Error
}

// GetByID returns nil without error when the point is unknown; sessions
// started against an unregistered point settle with a zero tariff.
func (r *ChargingPointRepository) GetByID(id string) (*models.ChargingPoint, error) {
	var p models.ChargingPoint
	err := r.db.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
