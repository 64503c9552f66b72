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

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/model"
)

type TestRequest struct {
	Payload     io.Reader
	Router      *gin.Engine
	Response    interface{}
	Method      string
	Route       string
	Header      map[string]string
	ContentType string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	contentType := s.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	if s.Response == nil {
		return resp, nil
	}
	err := json.NewDecoder(resp.Body).Decode(&s.Response)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

type mockService struct {
	mock.Mock
}

func (m *mockService) HandlePrintVendorEvent(ctx context.Context, body []byte) (model.WebhookResult, error) {
	args := m.Called(ctx, body)
	return args.Get(0).(model.WebhookResult), args.Error(1)
}

func (m *mockService) HandleCarrierEvent(ctx context.Context, token, contentType string, body []byte) model.WebhookResult {
	args := m.Called(ctx, token, contentType, body)
	return args.Get(0).(model.WebhookResult)
}

func (m *mockService) FindNAPayments(ctx context.Context, params model.NAParams) (*model.NAReport, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.NAReport), args.Error(1)
}

func (m *mockService) EnrichPayments(ctx context.Context, ids []string) (*model.EnrichmentResult, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EnrichmentResult), args.Error(1)
}

func (m *mockService) SignPayment(orderID, paymentID string) (string, error) {
	args := m.Called(orderID, paymentID)
	return args.String(0), args.Error(1)
}

func (m *mockService) ApproveForPrinting(ctx context.Context, orderIDs []string) []model.ApprovalResult {
	args := m.Called(ctx, orderIDs)
	return args.Get(0).([]model.ApprovalResult)
}

func (m *mockService) SendFeedbackEmail(ctx context.Context, jobID string) error {
	return m.Called(ctx, jobID).Error(0)
}

func (m *mockService) SendNudge(ctx context.Context, orderID string) error {
	return m.Called(ctx, orderID).Error(0)
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		ProjectName: "orderflow",
		Timezone:    "UTC",
		Server:      config.ServerConfig{Secure: true, SecretKey: "operator-secret"},
	}
}

func setupRouter(cnf *config.Configuration) (*gin.Engine, *mockService) {
	config.MockConfig(cnf)
	svc := new(mockService)
	router := NewAPI(svc).Router()
	return router, svc
}

func operatorHeader() map[string]string {
	return map[string]string{"X-Orderflow-Key": "operator-secret"}
}
