/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package orderflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/printwell/orderflow/database/mocks"
	"github.com/printwell/orderflow/internal/apierror"
	"github.com/printwell/orderflow/model"
)

func payment(id, status string) model.Payment {
	return model.Payment{ID: id, Status: status, Amount: 49900, Currency: "INR"}
}

func TestFindNAPayments(t *testing.T) {
	store := newMemStore(
		model.Order{OrderID: "#1001", TransactionID: "pay_A"},
		model.Order{OrderID: "#1002"},
	)
	e := newTestEngine(store)
	e.gw.payments = []model.Payment{
		payment("pay_A", "captured"),
		payment("pay_B", "captured"),
		payment("pay_C", "failed"),
	}

	report, err := e.FindNAPayments(context.Background(), model.NAParams{})
	require.NoError(t, err)

	assert.Equal(t, []string{"pay_B"}, report.NAPaymentIDs)
	assert.Equal(t, map[string][]string{"captured": {"pay_B"}}, report.NAByStatus)
	assert.Equal(t, 2, report.Summary.TotalOrdersDocsScanned)
	assert.Equal(t, 1, report.Summary.OrdersWithTransactionID)
	assert.Equal(t, 3, report.Summary.TotalPaymentsRows)
	assert.Equal(t, 1, report.Summary.MatchedDistinctPaymentIDs)
	assert.Equal(t, 1, report.Summary.NACount)
	assert.Equal(t, model.AllStatuses, report.Summary.PaymentStatusFilter)
	assert.Equal(t, "captured", report.Summary.NAStatusFilter)
	assert.Equal(t, model.AllTime, report.Summary.DateWindow.FromDate)
	assert.Equal(t, model.AllTime, report.Summary.DateWindow.ToDate)
	assert.Equal(t, 200000, report.Summary.MaxFetch)
	assert.Equal(t, 50000, report.Summary.OrdersBatchSize)
	assert.Equal(t, fixedNow, report.GeneratedAt)
}

func TestFindNAPayments_NormalizesIDs(t *testing.T) {
	store := newMemStore(model.Order{OrderID: "#1", TransactionID: " PAY_b "})
	e := newTestEngine(store)
	e.gw.payments = []model.Payment{payment("pay_B", "Captured")}

	report, err := e.FindNAPayments(context.Background(), model.NAParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{"pay_B"}, report.NAPaymentIDs, "case sensitive by default")

	report, err = e.FindNAPayments(context.Background(), model.NAParams{CaseInsensitiveIDs: true})
	require.NoError(t, err)
	assert.Empty(t, report.NAPaymentIDs)
	assert.Equal(t, 1, report.Summary.MatchedDistinctPaymentIDs)
	assert.True(t, report.Summary.CaseInsensitiveIDs)
}

func TestFindNAPayments_EmptyResultShape(t *testing.T) {
	e := newTestEngine(newMemStore())

	report, err := e.FindNAPayments(context.Background(), model.NAParams{})
	require.NoError(t, err)
	assert.NotNil(t, report.NAPaymentIDs)
	assert.Empty(t, report.NAPaymentIDs)
	assert.NotNil(t, report.NAByStatus)
	assert.Empty(t, report.NAByStatus)
	assert.Equal(t, 0, report.Summary.NACount)
}

func TestFindNAPayments_NAStatusFilter(t *testing.T) {
	e := newTestEngine(newMemStore())
	e.gw.payments = []model.Payment{
		payment("pay_1", "captured"),
		payment("pay_2", "failed"),
		payment("pay_3", "FAILED"),
	}

	report, err := e.FindNAPayments(context.Background(), model.NAParams{NAStatus: "Failed"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pay_2", "pay_3"}, report.NAPaymentIDs)
	assert.Equal(t, map[string][]string{"failed": {"pay_2", "pay_3"}}, report.NAByStatus)
	assert.Equal(t, "failed", report.Summary.NAStatusFilter)
}

func TestFindNAPayments_StatusFilterIsPassedToGateway(t *testing.T) {
	e := newTestEngine(newMemStore())
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	report, err := e.FindNAPayments(context.Background(), model.NAParams{Status: " Captured ", MaxFetch: 10, From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, e.gw.listed, 1)
	assert.Equal(t, "captured", e.gw.listed[0].Status)
	assert.Equal(t, 10, e.gw.listed[0].MaxFetch)
	assert.Equal(t, "captured", report.Summary.PaymentStatusFilter)
	assert.Equal(t, "2025-01-01T00:00:00Z", report.Summary.DateWindow.FromDate)
	assert.Equal(t, "2025-01-31T00:00:00Z", report.Summary.DateWindow.ToDate)
}

func TestFindNAPayments_StreamsOrdersInBatches(t *testing.T) {
	orders := make([]model.Order, 0, 2500)
	payments := make([]model.Payment, 0, 2501)
	for i := 0; i < 2500; i++ {
		id := fmt.Sprintf("pay_%05d", i)
		orders = append(orders, model.Order{OrderID: fmt.Sprintf("#%d", i), TransactionID: id})
		payments = append(payments, payment(id, "captured"))
	}
	payments = append(payments, payment("pay_orphan", "captured"))

	store := newMemStore(orders...)
	e := newTestEngine(store)
	e.gw.payments = payments

	report, err := e.FindNAPayments(context.Background(), model.NAParams{OrdersBatchSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, 3, store.scanCalls)
	assert.Equal(t, 2500, report.Summary.TotalOrdersDocsScanned)
	assert.Equal(t, 2500, report.Summary.MatchedDistinctPaymentIDs)
	assert.Equal(t, []string{"pay_orphan"}, report.NAPaymentIDs)
}

// Every fetched payment in the NA status is either matched or reported, never both.
func TestFindNAPayments_Completeness(t *testing.T) {
	gofakeit.Seed(42)
	var orders []model.Order
	var payments []model.Payment
	linked := map[string]bool{}
	for i := 0; i < 300; i++ {
		id := "pay_" + gofakeit.LetterN(12)
		status := gofakeit.RandomString([]string{"captured", "failed", "authorized"})
		payments = append(payments, payment(id, status))
		if gofakeit.Bool() {
			orders = append(orders, model.Order{OrderID: gofakeit.UUID(), TransactionID: id})
			linked[id] = true
		}
	}
	e := newTestEngine(newMemStore(orders...))
	e.gw.payments = payments

	report, err := e.FindNAPayments(context.Background(), model.NAParams{})
	require.NoError(t, err)

	na := map[string]bool{}
	for _, id := range report.NAPaymentIDs {
		na[id] = true
	}
	for _, p := range payments {
		if p.Status != "captured" {
			assert.False(t, na[p.ID], "non-captured payment %s reported", p.ID)
			continue
		}
		assert.NotEqual(t, linked[p.ID], na[p.ID], "payment %s must be matched xor NA", p.ID)
	}
	assert.IsNonDecreasing(t, report.NAPaymentIDs)

	again, err := e.FindNAPayments(context.Background(), model.NAParams{})
	require.NoError(t, err)
	assert.Equal(t, report.NAPaymentIDs, again.NAPaymentIDs)
	assert.Equal(t, report.Summary, again.Summary)
}

func TestFindNAPayments_GatewayFailure(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)
	e.gw.listErr = errors.New("connection reset")

	report, err := e.FindNAPayments(context.Background(), model.NAParams{})
	assert.Nil(t, report)
	assert.True(t, apierror.HasCode(err, apierror.ErrUpstream))
	assert.Equal(t, 0, store.scanCalls, "orders are not scanned after a gateway failure")
}

func TestFindNAPayments_StoreFailure(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	mockDS.On("ScanOrderCursor", mock.Anything, int64(0), 50000).Return(nil, errors.New("connection refused"))

	e := newTestEngine(newMemStore())
	e.datasource = mockDS
	e.gw.payments = []model.Payment{payment("pay_A", "captured")}

	report, err := e.FindNAPayments(context.Background(), model.NAParams{})
	assert.Nil(t, report)
	assert.True(t, apierror.HasCode(err, apierror.ErrUpstream))
	mockDS.AssertExpectations(t)
}

func TestFindNAPayments_RejectsBadBounds(t *testing.T) {
	e := newTestEngine(newMemStore())
	later := fixedNow.Add(time.Hour)

	tests := []struct {
		name   string
		params model.NAParams
	}{
		{"max fetch too large", model.NAParams{MaxFetch: 1000001}},
		{"max fetch negative", model.NAParams{MaxFetch: -1}},
		{"batch too small", model.NAParams{OrdersBatchSize: 999}},
		{"batch too large", model.NAParams{OrdersBatchSize: 200001}},
		{"inverted window", model.NAParams{From: &later, To: &fixedNow}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.FindNAPayments(context.Background(), tt.params)
			assert.True(t, apierror.HasCode(err, apierror.ErrInvalidInput), "got %v", err)
		})
	}
	assert.Empty(t, e.gw.listed)
}
