package orderflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printwell/orderflow/internal/apierror"
	"github.com/printwell/orderflow/internal/gateway"
	"github.com/printwell/orderflow/model"
)

const sampleJobID = "3f2b8c1e-5d4a-4e6f-9a7b-0c1d2e3f4a5b"

func TestExtractJobID(t *testing.T) {
	tests := []struct {
		name string
		p    model.Payment
		want string
	}{
		{"preferred note key", model.Payment{Notes: model.PaymentNotes{"JobId": "job " + sampleJobID}}, sampleJobID},
		{"any note value", model.Payment{Notes: model.PaymentNotes{"ref": sampleJobID}}, sampleJobID},
		{"description", model.Payment{Description: "Storybook " + sampleJobID + " hardcover"}, sampleJobID},
		{"not a v1-5 uuid", model.Payment{Description: "00000000-0000-0000-0000-000000000000"}, ""},
		{"nothing", model.Payment{Description: "storybook"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJobID(tt.p))
		})
	}
}

func TestCleanPaymentIDs(t *testing.T) {
	assert.Equal(t, []string{"pay_A", "pay_B"}, CleanPaymentIDs([]string{" pay_A", "", "pay_B", "pay_A ", "  "}))
	assert.Empty(t, CleanPaymentIDs(nil))
}

func TestEnrichPayments(t *testing.T) {
	linked := model.Order{OrderID: "#1", JobID: "job-1", TransactionID: "pay_linked", Paid: true, PreviewURL: "https://p/1"}
	byJob := model.Order{OrderID: "#2", JobID: sampleJobID, Paid: false, PreviewURL: "https://p/2"}
	e := newTestEngine(newMemStore(linked, byJob))
	e.gw.payments = []model.Payment{
		{ID: "pay_linked", Amount: 49900, Currency: "INR", Status: "captured", Method: "upi", CreatedAt: fixedNow.Unix(),
			VPA: "priya@okaxis", AcquirerData: model.AcquirerData{RRN: "123456789012"}},
		{ID: "pay_job", Amount: 150, Status: "captured", Notes: model.PaymentNotes{"job_id": sampleJobID}},
		{ID: "pay_loose", Amount: 100000, Status: "captured", Description: "tip"},
	}
	e.gw.getErrs = map[string]error{
		"pay_500": &gateway.StatusError{Code: 500, Body: "upstream exploded"},
		"pay_net": errors.New("dial tcp: i/o timeout"),
	}

	result, err := e.EnrichPayments(context.Background(), []string{"pay_linked", "pay_job", " pay_missing ", "pay_500", "pay_loose", "pay_net", "pay_job"})
	require.NoError(t, err)
	require.Equal(t, 3, result.Count)
	require.Len(t, result.Items, 3)

	first := result.Items[0]
	assert.Equal(t, "pay_linked", first.ID)
	assert.Equal(t, model.LinkTransactionID, first.LinkSource)
	assert.Equal(t, "499.00", *first.AmountDisplay)
	assert.Equal(t, "job-1", *first.JobID)
	assert.True(t, *first.Paid)
	assert.Equal(t, "https://p/1", *first.PreviewURL)
	assert.Equal(t, "priya@okaxis", *first.VPA)
	assert.Equal(t, "123456789012", *first.RRN)
	assert.Equal(t, fixedNow.Format("02/01/2006 15:04:05"), *first.CreatedAt)
	assert.Nil(t, first.Email)

	second := result.Items[1]
	assert.Equal(t, model.LinkJobID, second.LinkSource)
	assert.Equal(t, sampleJobID, *second.JobID)
	assert.False(t, *second.Paid)
	assert.Equal(t, "1.50", *second.AmountDisplay)

	third := result.Items[2]
	assert.Equal(t, model.LinkNone, third.LinkSource)
	assert.Nil(t, third.JobID)
	assert.Nil(t, third.Paid)
	assert.Equal(t, "1000.00", *third.AmountDisplay)

	assert.Equal(t, []model.PaymentError{
		{ID: "pay_missing", Error: model.PaymentErrNotFound},
		{ID: "pay_500", Error: "http_500", Detail: "upstream exploded"},
		{ID: "pay_net", Error: model.PaymentErrNetwork, Detail: "dial tcp: i/o timeout"},
	}, result.Errors)
}

func TestEnrichPaymentsJobIDWithoutOrder(t *testing.T) {
	e := newTestEngine(newMemStore())
	e.gw.payments = []model.Payment{{ID: "pay_job", Status: "captured", Description: "book " + sampleJobID}}

	result, err := e.EnrichPayments(context.Background(), []string{"pay_job"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, model.LinkJobID, result.Items[0].LinkSource)
	assert.Equal(t, sampleJobID, *result.Items[0].JobID)
	assert.Nil(t, result.Items[0].Paid)
}

func TestEnrichPaymentsValidation(t *testing.T) {
	e := newTestEngine(newMemStore())

	_, err := e.EnrichPayments(context.Background(), []string{" ", ""})
	assert.True(t, apierror.HasCode(err, apierror.ErrBadRequest))

	ids := make([]string, MaxEnrichmentIDs+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("pay_%d", i)
	}
	_, err = e.EnrichPayments(context.Background(), ids)
	assert.True(t, apierror.HasCode(err, apierror.ErrTooLarge))
}

func TestEnrichPaymentsCancelled(t *testing.T) {
	e := newTestEngine(newMemStore())
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := e.EnrichPayments(ctx, []string{"pay_A"})
	assert.True(t, apierror.HasCode(err, apierror.ErrUpstream))
}
