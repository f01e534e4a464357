package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"genmart/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Settings is the merged store configuration used for pricing and payment
// availability. It is resolved once per request and passed down explicitly.
type Settings struct {
	ShippingFee           decimal.Decimal `json:"shipping_fee"`
	FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold"`
	CODEnabled            bool            `json:"cod_enabled"`
	CODFee                decimal.Decimal `json:"cod_fee"`
	CODMaxOrder           decimal.Decimal `json:"cod_max_order"`
	BankTransferEnabled   bool            `json:"bank_transfer_enabled"`
	JazzCashEnabled       bool            `json:"jazzcash_enabled"`
	EasyPaisaEnabled      bool            `json:"easypaisa_enabled"`
	CardEnabled           bool            `json:"card_enabled"`
	StoreName             string          `json:"store_name"`
	SupportPhone          string          `json:"support_phone"`
	SupportEmail          string          `json:"support_email"`
}

// DefaultSettings are the values in force when no row overrides them.
func DefaultSettings() Settings {
	return Settings{
		ShippingFee:           decimal.NewFromInt(500),
		FreeShippingThreshold: decimal.NewFromInt(50000),
		CODEnabled:            true,
		CODFee:                decimal.Zero,
		CODMaxOrder:           decimal.NewFromInt(500000),
		BankTransferEnabled:   true,
		JazzCashEnabled:       true,
		EasyPaisaEnabled:      true,
		CardEnabled:           false,
		StoreName:             "GenMart",
		SupportPhone:          "+92 300 0000000",
		SupportEmail:          "support@genmart.pk",
	}
}

type settingField func(s *Settings, raw string) error

func amountField(get func(*Settings) *decimal.Decimal) settingField {
	return func(s *Settings, raw string) error {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		if d.IsNegative() {
			return errors.New("must not be negative")
		}
		*get(s) = d
		return nil
	}
}

func boolField(get func(*Settings) *bool) settingField {
	return func(s *Settings, raw string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		*get(s) = b
		return nil
	}
}

func textField(get func(*Settings) *string) settingField {
	return func(s *Settings, raw string) error {
		*get(s) = cleanText(raw)
		return nil
	}
}

var settingFields = map[string]settingField{
	"shipping_fee":            amountField(func(s *Settings) *decimal.Decimal { return &s.ShippingFee }),
	"free_shipping_threshold": amountField(func(s *Settings) *decimal.Decimal { return &s.FreeShippingThreshold }),
	"cod_enabled":             boolField(func(s *Settings) *bool { return &s.CODEnabled }),
	"cod_fee":                 amountField(func(s *Settings) *decimal.Decimal { return &s.CODFee }),
	"cod_max_order":           amountField(func(s *Settings) *decimal.Decimal { return &s.CODMaxOrder }),
	"bank_transfer_enabled":   boolField(func(s *Settings) *bool { return &s.BankTransferEnabled }),
	"jazzcash_enabled":        boolField(func(s *Settings) *bool { return &s.JazzCashEnabled }),
	"easypaisa_enabled":       boolField(func(s *Settings) *bool { return &s.EasyPaisaEnabled }),
	"card_enabled":            boolField(func(s *Settings) *bool { return &s.CardEnabled }),
	"store_name":              textField(func(s *Settings) *string { return &s.StoreName }),
	"support_phone":           textField(func(s *Settings) *string { return &s.SupportPhone }),
	"support_email":           textField(func(s *Settings) *string { return &s.SupportEmail }),
}

// Resolve merges rows over the defaults. Unknown keys and values that do not
// parse are skipped and returned so the caller can log them.
func Resolve(rows []model.SettingRow) (Settings, []string) {
	s := DefaultSettings()
	var skipped []string
	for _, row := range rows {
		set, ok := settingFields[row.Key]
		if !ok {
			skipped = append(skipped, row.Key)
			continue
		}
		next := s
		if err := set(&next, row.Value); err != nil {
			skipped = append(skipped, row.Key)
			continue
		}
		s = next
	}
	return s, skipped
}

// PaymentEnabled reports whether customers may choose m.
func (s Settings) PaymentEnabled(m model.PaymentMethod) bool {
	switch m {
	case model.PayCOD:
		return s.CODEnabled
	case model.PayBankTransfer:
		return s.BankTransferEnabled
	case model.PayJazzCash:
		return s.JazzCashEnabled
	case model.PayEasyPaisa:
		return s.EasyPaisaEnabled
	case model.PayCard:
		return s.CardEnabled
	}
	return false
}

// ShippingFor is zero for free-shipping coupons and for subtotals at or
// above the threshold, the flat fee otherwise.
func (s Settings) ShippingFor(subtotal decimal.Decimal, freeShipping bool) decimal.Decimal {
	if freeShipping || subtotal.IsZero() {
		return decimal.Zero
	}
	if s.FreeShippingThreshold.IsPositive() && subtotal.GreaterThanOrEqual(s.FreeShippingThreshold) {
		return decimal.Zero
	}
	return s.ShippingFee
}

// CODFeeFor is the cash-on-delivery surcharge for m.
func (s Settings) CODFeeFor(m model.PaymentMethod) decimal.Decimal {
	if m == model.PayCOD {
		return s.CODFee
	}
	return decimal.Zero
}

// SettingsCache stores the serialised Settings between requests.
type SettingsCache interface {
	Get(ctx context.Context) ([]byte, bool, error)
	Set(ctx context.Context, b []byte, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// SettingsServiceDeps bundles collaborators for the settings service.
type SettingsServiceDeps struct {
	DB     *gorm.DB
	Cache  SettingsCache
	TTL    time.Duration
	Clock  func() time.Time
	Logger *zap.Logger
}

type SettingsService struct {
	db     *gorm.DB
	cache  SettingsCache
	ttl    time.Duration
	clock  func() time.Time
	logger *zap.Logger
}

func NewSettingsService(deps SettingsServiceDeps) (*SettingsService, error) {
	if deps.DB == nil {
		return nil, errors.New("settings service: db is required")
	}
	s := &SettingsService{
		db:     deps.DB,
		cache:  deps.Cache,
		ttl:    deps.TTL,
		clock:  deps.Clock,
		logger: deps.Logger,
	}
	if s.ttl <= 0 {
		s.ttl = 5 * time.Minute
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// Get returns the merged settings, from cache when possible. Cache errors
// fall through to the database.
func (s *SettingsService) Get(ctx context.Context) (Settings, error) {
	if s.cache != nil {
		b, found, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("settings cache read failed", zap.Error(err))
		} else if found {
			var cached Settings
			if err := json.Unmarshal(b, &cached); err == nil {
				return cached, nil
			}
			s.logger.Warn("settings cache holds unreadable value")
		}
	}

	settings, err := s.load(ctx)
	if err != nil {
		return Settings{}, err
	}
	if s.cache != nil {
		if b, err := json.Marshal(settings); err == nil {
			if err := s.cache.Set(ctx, b, s.ttl); err != nil {
				s.logger.Warn("settings cache write failed", zap.Error(err))
			}
		}
	}
	return settings, nil
}

func (s *SettingsService) load(ctx context.Context) (Settings, error) {
	var rows []model.SettingRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings, skipped := Resolve(rows)
	if len(skipped) > 0 {
		s.logger.Warn("ignoring settings rows", zap.Strings("keys", skipped))
	}
	return settings, nil
}

// Update validates and upserts the given keys, then drops the cached copy.
func (s *SettingsService) Update(ctx context.Context, actor Actor, values map[string]string) (Settings, error) {
	if len(values) == 0 {
		return Settings{}, fmt.Errorf("%w: no settings given", ErrInvalidInput)
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	probe := DefaultSettings()
	rows := make([]model.SettingRow, 0, len(keys))
	now := s.clock()
	for _, k := range keys {
		set, ok := settingFields[k]
		if !ok {
			return Settings{}, fmt.Errorf("%w: unknown setting %q", ErrInvalidInput, k)
		}
		if err := set(&probe, values[k]); err != nil {
			return Settings{}, fmt.Errorf("%w: %s: %v", ErrInvalidInput, k, err)
		}
		rows = append(rows, model.SettingRow{Key: k, Value: strings.TrimSpace(values[k]), UpdatedAt: now})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error; err != nil {
			return err
		}
		return writeAudit(tx, now, actor, "settings.update", "settings", "store", values)
	})
	if err != nil {
		return Settings{}, fmt.Errorf("update settings: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("settings cache invalidation failed", zap.Error(err))
		}
	}
	return s.load(ctx)
}
