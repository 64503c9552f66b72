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
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/printwell/orderflow/model"
)

// maxWebhookBody bounds what a notifier may post.
const maxWebhookBody = 1 << 20

func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
}

// PrintVendorWebhook receives print-vendor item events. A non-2xx answer makes
// the vendor retry, so only store failures return 500.
//
// Responses:
// - 200 OK: applied, duplicate, ignored or orphaned.
// - 400 Bad Request: the body is not valid JSON.
// - 401 Unauthorized: the apikey in the body does not match.
// - 500 Internal Server Error: the event could not be persisted.
func (a Api) PrintVendorWebhook(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "unreadable body"})
		return
	}

	result, err := a.service.HandlePrintVendorEvent(c.Request.Context(), body)
	if err != nil {
		logrus.WithError(err).Error("print vendor webhook failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to process event"})
		return
	}

	switch result.Outcome {
	case model.OutcomeMalformed:
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid JSON"})
	case model.OutcomeUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid API key"})
	default:
		c.JSON(http.StatusOK, result)
	}
}

// CarrierWebhook receives carrier tracking updates. The carrier always gets
// 200 so it never retries or disables the hook; rejections are only logged.
func (a Api) CarrierWebhook(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		logrus.WithError(err).Warn("unreadable carrier body")
		c.JSON(http.StatusOK, model.WebhookResult{Outcome: model.OutcomeMalformed})
		return
	}

	result := a.service.HandleCarrierEvent(c.Request.Context(), c.GetHeader("x-api-key"), c.GetHeader("Content-Type"), body)
	c.JSON(http.StatusOK, result)
}
