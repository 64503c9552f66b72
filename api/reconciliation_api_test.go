package api

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/printwell/orderflow/internal/apierror"
	"github.com/printwell/orderflow/internal/request"
	"github.com/printwell/orderflow/model"
)

func TestGetNAPayments(t *testing.T) {
	router, svc := setupRouter(testConfig())

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	report := &model.NAReport{
		Summary:      model.NASummary{NACount: 1, TotalPaymentsRows: 3, PaymentStatusFilter: "captured"},
		NAPaymentIDs: []string{"pay_B"},
		NAByStatus:   map[string][]string{"captured": {"pay_B"}},
	}
	svc.On("FindNAPayments", mock.Anything, mock.MatchedBy(func(p model.NAParams) bool {
		return p.Status == "captured" && p.MaxFetch == 500 && p.From != nil && p.From.Equal(from) && p.To == nil && p.CaseInsensitiveIDs
	})).Return(report, nil).Once()

	var response model.NAReport
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &response,
		Method:   http.MethodGet,
		Route:    "/reconcile/na-payments?status=captured&max_fetch=500&from_date=2025-03-01&case_insensitive_ids=true",
		Header:   operatorHeader(),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []string{"pay_B"}, response.NAPaymentIDs)
	assert.Equal(t, 1, response.Summary.NACount)
	svc.AssertExpectations(t)
}

func TestGetNAPaymentsRejectsBadQuery(t *testing.T) {
	routes := []string{
		"/reconcile/na-payments?max_fetch=0",
		"/reconcile/na-payments?max_fetch=abc",
		"/reconcile/na-payments?orders_batch_size=10",
		"/reconcile/na-payments?from_date=14-03-2025",
	}
	for _, route := range routes {
		t.Run(route, func(t *testing.T) {
			router, svc := setupRouter(testConfig())
			var response map[string]interface{}
			resp, err := SetUpTestRequest(TestRequest{
				Router:   router,
				Response: &response,
				Method:   http.MethodGet,
				Route:    route,
				Header:   operatorHeader(),
			})
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.NotEmpty(t, response["error"])
			svc.AssertNotCalled(t, "FindNAPayments", mock.Anything, mock.Anything)
		})
	}
}

func TestGetNAPaymentsUpstreamFailure(t *testing.T) {
	router, svc := setupRouter(testConfig())
	svc.On("FindNAPayments", mock.Anything, mock.Anything).
		Return(nil, apierror.NewAPIError(apierror.ErrUpstream, "payment gateway unavailable", nil)).Once()

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &response,
		Method:   http.MethodGet,
		Route:    "/reconcile/na-payments",
		Header:   operatorHeader(),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Equal(t, "payment gateway unavailable", response["error"])
}

func TestGetNAPaymentDetails(t *testing.T) {
	router, svc := setupRouter(testConfig())
	email := "reader@example.com"
	result := &model.EnrichmentResult{
		Count:  1,
		Items:  []model.EnrichedPayment{{ID: "pay_A", Email: &email}},
		Errors: []model.PaymentError{{ID: "pay_Z", Error: "not_found"}},
	}
	svc.On("EnrichPayments", mock.Anything, []string{"pay_A", "pay_Z"}).Return(result, nil).Once()

	payload, err := request.ToJsonReq(map[string]interface{}{"ids": []string{"pay_A", "pay_Z"}})
	require.NoError(t, err)
	var response model.EnrichmentResult
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payload,
		Router:   router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/reconcile/na-payment-details",
		Header:   operatorHeader(),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, response.Count)
	require.Len(t, response.Errors, 1)
	assert.Equal(t, "not_found", response.Errors[0].Error)
}

func TestGetNAPaymentDetailsErrors(t *testing.T) {
	t.Run("empty ids", func(t *testing.T) {
		router, svc := setupRouter(testConfig())
		var response map[string]interface{}
		resp, err := SetUpTestRequest(TestRequest{
			Payload:  bytes.NewBufferString(`{"ids":[]}`),
			Router:   router,
			Response: &response,
			Method:   http.MethodPost,
			Route:    "/reconcile/na-payment-details",
			Header:   operatorHeader(),
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		svc.AssertNotCalled(t, "EnrichPayments", mock.Anything, mock.Anything)
	})

	t.Run("too many ids", func(t *testing.T) {
		router, svc := setupRouter(testConfig())
		svc.On("EnrichPayments", mock.Anything, mock.Anything).
			Return(nil, apierror.NewAPIError(apierror.ErrTooLarge, "too many ids; max 2000 per request", nil)).Once()
		var response map[string]interface{}
		resp, err := SetUpTestRequest(TestRequest{
			Payload:  bytes.NewBufferString(`{"ids":["pay_A"]}`),
			Router:   router,
			Response: &response,
			Method:   http.MethodPost,
			Route:    "/reconcile/na-payment-details",
			Header:   operatorHeader(),
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
	})
}

func TestSignPayment(t *testing.T) {
	router, svc := setupRouter(testConfig())
	svc.On("SignPayment", "order_1", "pay_1").Return("abc123", nil).Once()

	var response map[string]string
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  bytes.NewBufferString(`{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1"}`),
		Router:   router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/reconcile/sign-payment",
		Header:   operatorHeader(),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "abc123", response["razorpay_signature"])

	resp, err = SetUpTestRequest(TestRequest{
		Payload:  bytes.NewBufferString(`{"razorpay_order_id":"order_1"}`),
		Router:   router,
		Response: &response,
		Method:   http.MethodPost,
		Route:    "/reconcile/sign-payment",
		Header:   operatorHeader(),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	svc.AssertNumberOfCalls(t, "SignPayment", 1)
}
