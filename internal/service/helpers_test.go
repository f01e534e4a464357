package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"genmart/internal/model"
	"genmart/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

var (
	customer = Actor{UserID: "user-1", Role: RoleCustomer, Email: "ali@example.pk"}
	other    = Actor{UserID: "user-2", Role: RoleCustomer, Email: "sara@example.pk"}
	staff    = Actor{UserID: "staff-1", Role: RoleStaff}
	admin    = Actor{UserID: "admin-1", Role: RoleAdmin}
)

// newTestDB opens a private in-memory database. One connection means
// concurrent transactions queue up instead of failing with SQLITE_BUSY.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

type staticSettings struct{ s Settings }

func (p staticSettings) Get(context.Context) (Settings, error) { return p.s, nil }

type recordingEvents struct {
	mu     sync.Mutex
	events []queue.Event
}

func (r *recordingEvents) Publish(_ context.Context, ev queue.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func seedGenerator(t *testing.T, db *gorm.DB, name string, price int64, stock int64) *model.Generator {
	t.Helper()
	g := &model.Generator{
		ProductFields: model.ProductFields{
			Name:              name,
			Slug:              slugify(name),
			Brand:             "Jasco",
			Price:             decimal.NewFromInt(price),
			Stock:             stock,
			LowStockThreshold: 1,
			IsActive:          true,
		},
		PowerKVA: decimal.NewFromInt(5),
		FuelType: "PETROL",
	}
	require.NoError(t, db.Create(g).Error)
	return g
}

func seedPart(t *testing.T, db *gorm.DB, name string, price int64, stock int64) *model.Part {
	t.Helper()
	p := &model.Part{
		ProductFields: model.ProductFields{
			Name:              name,
			Slug:              slugify(name),
			Brand:             "Generic",
			Price:             decimal.NewFromInt(price),
			Stock:             stock,
			LowStockThreshold: 2,
			IsActive:          true,
		},
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedCoupon(t *testing.T, db *gorm.DB, c model.Coupon) *model.Coupon {
	t.Helper()
	if c.PerUserLimit == 0 {
		c.PerUserLimit = 1
	}
	c.IsActive = true
	if !c.AppliesToParts && !c.AppliesToGenerators {
		c.AppliesToGenerators, c.AppliesToParts = true, true
	}
	require.NoError(t, db.Create(&c).Error)
	return &c
}

func stockOf(t *testing.T, db *gorm.DB, p model.Product) int64 {
	t.Helper()
	fresh := model.NewProduct(p.Kind())
	require.NoError(t, db.First(fresh, p.ProductID()).Error)
	return fresh.Fields().Stock
}

func newOrderService(t *testing.T, db *gorm.DB, deps OrderServiceDeps) *OrderService {
	t.Helper()
	deps.DB = db
	if deps.Settings == nil {
		deps.Settings = staticSettings{DefaultSettings()}
	}
	if deps.Clock == nil {
		deps.Clock = fixedClock
	}
	deps.Logger = zaptest.NewLogger(t)
	svc, err := NewOrderService(deps)
	require.NoError(t, err)
	return svc
}

func testAddress() model.Address {
	return model.Address{
		FullName: "Ali Khan",
		Phone:    "03001234567",
		Line1:    "House 12, Street 4",
		City:     "Lahore",
		Province: "Punjab",
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
