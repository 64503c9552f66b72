package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"
)

func TestValidateNAReportQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   NAReportQuery
		wantErr bool
	}{
		{name: "Defaults", query: NAReportQuery{}, wantErr: false},
		{name: "Bounds at limits", query: NAReportQuery{MaxFetch: ptr.Int(1), OrdersBatchSize: ptr.Int(200000)}, wantErr: false},
		{name: "Explicit zero max_fetch", query: NAReportQuery{MaxFetch: ptr.Int(0)}, wantErr: true},
		{name: "max_fetch above limit", query: NAReportQuery{MaxFetch: ptr.Int(1000001)}, wantErr: true},
		{name: "Batch below limit", query: NAReportQuery{OrdersBatchSize: ptr.Int(999)}, wantErr: true},
		{name: "Date only", query: NAReportQuery{FromDate: "2025-01-01", ToDate: "2025-01-31"}, wantErr: false},
		{name: "RFC 3339", query: NAReportQuery{FromDate: "2025-01-01T00:00:00+05:30"}, wantErr: false},
		{name: "Bad date", query: NAReportQuery{ToDate: "31/01/2025"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.ValidateNAReportQuery()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestToNAParams(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	q := NAReportQuery{
		Status:             "captured",
		MaxFetch:           ptr.Int(500),
		FromDate:           "2025-03-01",
		ToDate:             "2025-03-14T23:59:59Z",
		CaseInsensitiveIDs: true,
		NAStatus:           "failed",
	}

	params, err := q.ToNAParams(ist)
	require.NoError(t, err)
	assert.Equal(t, 500, params.MaxFetch)
	assert.Equal(t, 0, params.OrdersBatchSize)
	assert.True(t, params.From.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, ist)))
	assert.True(t, params.To.Equal(time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC)))
	assert.True(t, params.CaseInsensitiveIDs)
	assert.Equal(t, "failed", params.NAStatus)

	empty, err := (&NAReportQuery{}).ToNAParams(ist)
	require.NoError(t, err)
	assert.Nil(t, empty.From)
	assert.Nil(t, empty.To)
}

func TestRequestValidation(t *testing.T) {
	assert.Error(t, (&PaymentDetailsRequest{}).ValidatePaymentDetailsRequest())
	assert.NoError(t, (&PaymentDetailsRequest{IDs: []string{"pay_A"}}).ValidatePaymentDetailsRequest())

	assert.Error(t, (&SignPaymentRequest{OrderID: "order_1"}).ValidateSignPaymentRequest())
	assert.NoError(t, (&SignPaymentRequest{OrderID: "order_1", PaymentID: "pay_1"}).ValidateSignPaymentRequest())

	assert.Error(t, ApprovePrintingRequest{}.ValidateApprovePrintingRequest())
	assert.Error(t, ApprovePrintingRequest{"#1", ""}.ValidateApprovePrintingRequest())
	assert.NoError(t, ApprovePrintingRequest{"#1", "#2"}.ValidateApprovePrintingRequest())
}
