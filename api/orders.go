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
	"net/http"

	"github.com/gin-gonic/gin"

	apimodel "github.com/printwell/orderflow/api/model"
)

// ApprovePrinting submits each listed order to the print vendor. The batch
// always returns 200; every id gets its own result row.
func (a Api) ApprovePrinting(c *gin.Context) {
	var req apimodel.ApprovePrintingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateApprovePrintingRequest(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results := a.service.ApproveForPrinting(c.Request.Context(), req)
	c.JSON(http.StatusOK, results)
}

func (a Api) SendFeedbackEmail(c *gin.Context) {
	jobID := c.Param("job_id")
	if err := a.service.SendFeedbackEmail(c.Request.Context(), jobID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

func (a Api) SendNudge(c *gin.Context) {
	orderID := c.Param("order_id")
	if err := a.service.SendNudge(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}
