package service

import (
	"context"
	"errors"

	"genmart/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Stats is the back-office dashboard rollup.
type Stats struct {
	Revenue          decimal.Decimal  `json:"revenue"`
	OrdersByStatus   map[string]int64 `json:"orders_by_status"`
	ServicesByStatus map[string]int64 `json:"services_by_status"`
	ListingsByStatus map[string]int64 `json:"listings_by_status"`
	LowStockProducts int64            `json:"low_stock_products"`
}

type StatsService struct {
	db *gorm.DB
}

func NewStatsService(db *gorm.DB) (*StatsService, error) {
	if db == nil {
		return nil, errors.New("stats service: db is required")
	}
	return &StatsService{db: db}, nil
}

type statusCount struct {
	Status string
	N      int64
}

func countByStatus(tx *gorm.DB, m any) (map[string]int64, error) {
	var rows []statusCount
	if err := tx.Model(m).Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// Compute runs the dashboard aggregates. Revenue counts every order that
// was neither cancelled nor refunded.
func (s *StatsService) Compute(ctx context.Context) (Stats, error) {
	db := s.db.WithContext(ctx)
	var st Stats

	var sum struct {
		Revenue decimal.NullDecimal
	}
	err := db.Model(&model.Order{}).
		Where("status NOT IN ?", []model.OrderStatus{model.OrderCancelled, model.OrderRefunded}).
		Select("SUM(total) AS revenue").Scan(&sum).Error
	if err != nil {
		return st, err
	}
	st.Revenue = decimal.Zero
	if sum.Revenue.Valid {
		st.Revenue = sum.Revenue.Decimal
	}

	if st.OrdersByStatus, err = countByStatus(db, &model.Order{}); err != nil {
		return st, err
	}
	if st.ServicesByStatus, err = countByStatus(db, &model.ServiceRequest{}); err != nil {
		return st, err
	}
	if st.ListingsByStatus, err = countByStatus(db, &model.Listing{}); err != nil {
		return st, err
	}
	if st.LowStockProducts, err = countLowStock(db); err != nil {
		return st, err
	}
	return st, nil
}
