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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/printwell/orderflow/api/middleware"
	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/model"
)

// Service is the engine surface the HTTP layer drives.
type Service interface {
	HandlePrintVendorEvent(ctx context.Context, body []byte) (model.WebhookResult, error)
	HandleCarrierEvent(ctx context.Context, token, contentType string, body []byte) model.WebhookResult
	FindNAPayments(ctx context.Context, params model.NAParams) (*model.NAReport, error)
	EnrichPayments(ctx context.Context, ids []string) (*model.EnrichmentResult, error)
	SignPayment(orderID, paymentID string) (string, error)
	ApproveForPrinting(ctx context.Context, orderIDs []string) []model.ApprovalResult
	SendFeedbackEmail(ctx context.Context, jobID string) error
	SendNudge(ctx context.Context, orderID string) error
}

type Api struct {
	service Service
	router  *gin.Engine
	secure  bool
}

func (a Api) Router() *gin.Engine {
	router := a.router

	webhooks := router.Group("/api/webhook")
	vendorAuth := middleware.PrintVendorBasicAuth()
	webhooks.POST("/printvendor", vendorAuth, a.PrintVendorWebhook)
	webhooks.POST("/printvendor/", vendorAuth, a.PrintVendorWebhook)
	webhooks.POST("/carrier", a.CarrierWebhook)
	webhooks.POST("/carrier/", a.CarrierWebhook)

	operator := router.Group("/")
	if a.secure {
		operator.Use(middleware.SecretKeyAuthMiddleware())
	}
	operator.GET("/reconcile/na-payments", a.GetNAPayments)
	operator.POST("/reconcile/na-payment-details", a.GetNAPaymentDetails)
	operator.POST("/reconcile/sign-payment", a.SignPayment)

	operator.POST("/orders/approve-printing", a.ApprovePrinting)
	operator.POST("/orders/feedback-email/:job_id", a.SendFeedbackEmail)
	operator.POST("/orders/:order_id/nudge", a.SendNudge)
	return a.router
}

func NewAPI(s Service) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{service: s, router: r, secure: conf.Server.Secure}
}
