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
	"strings"

	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/internal/apierror"
	"github.com/printwell/orderflow/internal/gateway"
)

// SignPayment returns the gateway-compatible signature for a manually claimed payment.
// The secret never leaves the server.
func (o *Orderflow) SignPayment(orderID, paymentID string) (string, error) {
	orderID = strings.TrimSpace(orderID)
	paymentID = strings.TrimSpace(paymentID)
	if orderID == "" || paymentID == "" {
		return "", apierror.NewAPIError(apierror.ErrBadRequest, "order id and payment id are required", nil)
	}

	cnf, err := config.Fetch()
	if err != nil {
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "configuration not loaded", err)
	}

	signature, err := gateway.Sign(cnf.Gateway.KeySecret, orderID, paymentID)
	if err != nil {
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "gateway secret is not configured", err)
	}
	return signature, nil
}
