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

// Package gateway is a read-only client for the payment gateway's payment ledger.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("orderflow.gateway")

// ErrNotFound is returned by GetPayment when the gateway has no such payment.
var ErrNotFound = errors.New("payment not found")

// StatusError is a non-2xx gateway response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway responded %d: %s", e.Code, truncate(e.Body, 200))
}

// Detail returns the response body cut to n bytes.
func (e *StatusError) Detail(n int) string {
	return truncate(e.Body, n)
}

// ListParams bounds one ledger fetch.
type ListParams struct {
	// Status keeps only payments in this status. Empty keeps all.
	Status   string
	From     *time.Time
	To       *time.Time
	MaxFetch int
}

type Client struct {
	baseURL       string
	keyID         string
	keySecret     string
	pageSize      int
	listClient    *http.Client
	detailsClient *http.Client
}

func NewClient(cfg config.GatewayConfig) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > config.DefaultGatewayPageSize {
		pageSize = config.DefaultGatewayPageSize
	}
	listTimeout := cfg.TimeoutSec
	if listTimeout <= 0 {
		listTimeout = config.DefaultGatewayTimeoutSec
	}
	detailsTimeout := cfg.DetailsTimeoutSec
	if detailsTimeout <= 0 {
		detailsTimeout = config.DefaultDetailsTimeoutSec
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		pageSize:      pageSize,
		listClient:    &http.Client{Timeout: time.Duration(listTimeout) * time.Second},
		detailsClient: &http.Client{Timeout: time.Duration(detailsTimeout) * time.Second},
	}
}

// Configured reports whether a credential pair is present.
func (c *Client) Configured() bool {
	return c.keyID != "" && c.keySecret != ""
}

// ListPayments pages through the payment collection until a short page is
// returned or MaxFetch rows have been read. Any failed page aborts the whole
// fetch; no partial result is returned.
func (c *Client) ListPayments(ctx context.Context, params ListParams) ([]model.Payment, error) {
	ctx, span := tracer.Start(ctx, "ListPayments")
	defer span.End()

	if !c.Configured() {
		return nil, errors.New("gateway credentials are not configured")
	}

	status := strings.ToLower(strings.TrimSpace(params.Status))
	fetched := 0
	payments := make([]model.Payment, 0)
	for skip := 0; params.MaxFetch <= 0 || fetched < params.MaxFetch; {
		count := c.pageSize
		if params.MaxFetch > 0 && params.MaxFetch-fetched < count {
			count = params.MaxFetch - fetched
		}

		q := url.Values{}
		q.Set("count", strconv.Itoa(count))
		q.Set("skip", strconv.Itoa(skip))
		if params.From != nil {
			q.Set("from", strconv.FormatInt(params.From.Unix(), 10))
		}
		if params.To != nil {
			q.Set("to", strconv.FormatInt(params.To.Unix(), 10))
		}

		var page model.PaymentPage
		if err := c.get(ctx, c.listClient, "/v1/payments?"+q.Encode(), &page); err != nil {
			span.RecordError(err)
			return nil, errors.Wrapf(err, "fetching payments page at skip %d", skip)
		}

		for _, p := range page.Items {
			if status != "" && p.NormalizedStatus() != status {
				continue
			}
			payments = append(payments, p)
		}
		fetched += len(page.Items)
		skip += len(page.Items)

		if len(page.Items) < count {
			break
		}
	}

	span.SetAttributes(attribute.Int("payments.fetched", fetched), attribute.Int("payments.kept", len(payments)))
	logrus.WithFields(logrus.Fields{
		"fetched": fetched,
		"kept":    len(payments),
		"status":  status,
	}).Debug("fetched gateway payments")
	return payments, nil
}

// GetPayment fetches a single payment by id.
func (c *Client) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	ctx, span := tracer.Start(ctx, "GetPayment")
	defer span.End()

	if !c.Configured() {
		return nil, errors.New("gateway credentials are not configured")
	}

	var payment model.Payment
	err := c.get(ctx, c.detailsClient, "/v1/payments/"+url.PathEscape(id), &payment)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	return &payment, nil
}

func (c *Client) get(ctx context.Context, client *http.Client, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "building gateway request")
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling gateway")
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.WithError(err).Error("failed to close gateway response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading gateway response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decoding gateway response")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
