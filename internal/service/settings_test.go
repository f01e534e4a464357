package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"genmart/internal/model"
	gmredis "genmart/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestResolveMergesOverDefaults(t *testing.T) {
	s, skipped := Resolve([]model.SettingRow{
		{Key: "shipping_fee", Value: " 750 "},
		{Key: "card_enabled", Value: "true"},
		{Key: "cod_fee", Value: "-10"},
		{Key: "jazzcash_enabled", Value: "maybe"},
		{Key: "theme", Value: "dark"},
		{Key: "store_name", Value: "<i>GenMart</i> Lahore"},
	})
	assert.True(t, s.ShippingFee.Equal(dec("750")))
	assert.True(t, s.CardEnabled)
	assert.True(t, s.CODFee.IsZero(), "negative amounts keep the default")
	assert.True(t, s.JazzCashEnabled)
	assert.Equal(t, "GenMart Lahore", s.StoreName)
	assert.ElementsMatch(t, []string{"cod_fee", "jazzcash_enabled", "theme"}, skipped)
}

func TestShippingFor(t *testing.T) {
	s := DefaultSettings()
	assert.True(t, s.ShippingFor(dec("49999.99"), false).Equal(dec("500")))
	assert.True(t, s.ShippingFor(dec("50000"), false).IsZero())
	assert.True(t, s.ShippingFor(dec("100"), true).IsZero())
	assert.True(t, s.ShippingFor(dec("0"), false).IsZero())

	s.FreeShippingThreshold = dec("0")
	assert.True(t, s.ShippingFor(dec("900000"), false).Equal(dec("500")), "zero threshold disables free shipping")
}

func TestPaymentEnabledAndCODFee(t *testing.T) {
	s := DefaultSettings()
	s.CODFee = dec("200")
	assert.True(t, s.PaymentEnabled(model.PayCOD))
	assert.False(t, s.PaymentEnabled(model.PayCard))
	assert.False(t, s.PaymentEnabled("BITCOIN"))
	assert.True(t, s.CODFeeFor(model.PayCOD).Equal(dec("200")))
	assert.True(t, s.CODFeeFor(model.PayJazzCash).IsZero())
}

func TestSettingsServiceCachesAndInvalidates(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc, err := NewSettingsService(SettingsServiceDeps{
		DB:     db,
		Cache:  gmredis.NewSettingsBlob(rdb),
		TTL:    time.Minute,
		Clock:  fixedClock,
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	ctx := context.Background()

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings().StoreName, got.StoreName)
	require.True(t, mr.Exists(gmredis.SettingsKey()))
	assert.Equal(t, time.Minute, mr.TTL(gmredis.SettingsKey()))

	// a row written behind the service's back stays hidden until the cache goes
	require.NoError(t, db.Create(&model.SettingRow{Key: "shipping_fee", Value: "900"}).Error)
	got, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.ShippingFee.Equal(dec("500")))

	updated, err := svc.Update(ctx, admin, map[string]string{"shipping_fee": "650", "cod_enabled": "false"})
	require.NoError(t, err)
	assert.True(t, updated.ShippingFee.Equal(dec("650")))
	assert.False(t, updated.CODEnabled)

	got, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.ShippingFee.Equal(dec("650")))
	assert.False(t, got.PaymentEnabled(model.PayCOD))

	raw, err := mr.Get(gmredis.SettingsKey())
	require.NoError(t, err)
	var cached Settings
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.True(t, cached.ShippingFee.Equal(dec("650")))

	var audits int64
	require.NoError(t, db.Model(&model.AuditLog{}).Where("action = ?", "settings.update").Count(&audits).Error)
	assert.Equal(t, int64(1), audits)
}

func TestSettingsUpdateRejectsBadInput(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewSettingsService(SettingsServiceDeps{DB: db, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	ctx := context.Background()

	for name, values := range map[string]map[string]string{
		"empty":    {},
		"unknown":  {"theme": "dark"},
		"negative": {"shipping_fee": "-1"},
		"not bool": {"card_enabled": "sometimes"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Update(ctx, admin, values)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	var n int64
	require.NoError(t, db.Model(&model.SettingRow{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestSettingsFallBackWhenCacheIsDown(t *testing.T) {
	db := newTestDB(t)
	rdb := rd.NewClient(&rd.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })

	svc, err := NewSettingsService(SettingsServiceDeps{DB: db, Cache: gmredis.NewSettingsBlob(rdb), Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, got.CODEnabled)
}
