package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordersIncrementLabelledCounters(t *testing.T) {
	before := testutil.ToFloat64(couponValidationsTotal.WithLabelValues("applied"))
	RecordCouponValidation("applied")
	RecordCouponValidation("applied")
	assert.Equal(t, before+2, testutil.ToFloat64(couponValidationsTotal.WithLabelValues("applied")))

	before = testutil.ToFloat64(orderRejectionsTotal.WithLabelValues("stock"))
	RecordOrderRejection("stock")
	assert.Equal(t, before+1, testutil.ToFloat64(orderRejectionsTotal.WithLabelValues("stock")))
}

func TestTraceIDWithoutSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}
