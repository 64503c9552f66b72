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

// Package printvendor submits print orders to the print vendor's order API.
package printvendor

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/printwell/orderflow/config"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("orderflow.printvendor")

const defaultDownloadRetries = 3

type Address struct {
	Type      string `json:"type"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Street1   string `json:"street1"`
	Street2   string `json:"street2"`
	Zip       string `json:"zip"`
	City      string `json:"city"`
	State     string `json:"state"`
	Country   string `json:"country"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type File struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	MD5Sum string `json:"md5sum,omitempty"`
}

type Option struct {
	Type  string `json:"type"`
	Count string `json:"count"`
}

type Item struct {
	Reference     string   `json:"reference"`
	Product       string   `json:"product"`
	ShippingLevel string   `json:"shipping_level"`
	Title         string   `json:"title"`
	Count         string   `json:"count"`
	Files         []File   `json:"files"`
	Options       []Option `json:"options"`
}

// OrderRequest is the vendor's orders/add document.
type OrderRequest struct {
	APIKey    string    `json:"apikey"`
	Reference string    `json:"reference"`
	Email     string    `json:"email"`
	Addresses []Address `json:"addresses"`
	Items     []Item    `json:"items"`
}

// OrderResponse is the subset of the vendor reply we read.
type OrderResponse struct {
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

// RejectedError is a non-2xx reply from the vendor's order API.
type RejectedError struct {
	Code    int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("print vendor rejected order (%d): %s", e.Code, e.Message)
}

type Client struct {
	apiURL          string
	apiKey          string
	httpClient      *http.Client
	downloadRetries uint64
}

func NewClient(cfg config.PrintVendorConfig) *Client {
	timeout := cfg.TimeoutSec
	if timeout <= 0 {
		timeout = 60
	}
	return &Client{
		apiURL:          strings.TrimRight(cfg.APIURL, "/"),
		apiKey:          cfg.APIKey,
		httpClient:      &http.Client{Timeout: time.Duration(timeout) * time.Second},
		downloadRetries: defaultDownloadRetries,
	}
}

func (c *Client) APIKey() string {
	return c.apiKey
}

// Checksum downloads url and returns the hex MD5 of its body. Transient
// failures are retried with exponential backoff; 4xx responses are not.
func (c *Client) Checksum(ctx context.Context, url string) (string, error) {
	ctx, span := tracer.Start(ctx, "Checksum")
	defer span.End()

	var sum string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("downloading %s: status %d", url, resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("downloading %s: status %d", url, resp.StatusCode)
		}

		h := md5.New()
		if _, err := io.Copy(h, resp.Body); err != nil {
			return err
		}
		sum = hex.EncodeToString(h.Sum(nil))
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second
	notify := func(err error, wait time.Duration) {
		logrus.WithError(err).WithField("retry_in", wait).Warn("artifact download failed, retrying")
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.downloadRetries), ctx), notify); err != nil {
		span.RecordError(err)
		return "", errors.Wrap(err, "computing artifact checksum")
	}
	return sum, nil
}

// SubmitOrder posts one order to the vendor. It is attempted once: the
// vendor creates a new order on every accepted call.
func (c *Client) SubmitOrder(ctx context.Context, order OrderRequest) (*OrderResponse, error) {
	ctx, span := tracer.Start(ctx, "SubmitOrder")
	defer span.End()

	if order.APIKey == "" {
		order.APIKey = c.apiKey
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/orders/add", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "calling print vendor")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading print vendor response")
	}

	var out OrderResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg := out.Message
		if msg == "" {
			msg = "Failed to send to printer"
		}
		return nil, &RejectedError{Code: resp.StatusCode, Message: msg}
	}
	return &out, nil
}
