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
package model

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/model"
)

const dateOnlyLayout = "2006-01-02"

// NAReportQuery is the query string of GET /reconcile/na-payments.
// Numeric bounds are pointers so an explicit zero is rejected rather than defaulted.
type NAReportQuery struct {
	Status             string `form:"status"`
	MaxFetch           *int   `form:"max_fetch"`
	FromDate           string `form:"from_date"`
	ToDate             string `form:"to_date"`
	CaseInsensitiveIDs bool   `form:"case_insensitive_ids"`
	OrdersBatchSize    *int   `form:"orders_batch_size"`
	NAStatus           string `form:"na_status"`
}

type PaymentDetailsRequest struct {
	IDs []string `json:"ids"`
}

type SignPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
}

type SignPaymentResponse struct {
	Signature string `json:"razorpay_signature"`
}

// ApprovePrintingRequest is a bare JSON list of order ids.
type ApprovePrintingRequest []string

// ParseDate accepts YYYY-MM-DD, read as midnight in loc, or RFC 3339.
func ParseDate(value string, loc *time.Location) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(dateOnlyLayout, value, loc); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	return nil, errors.New("must be formatted as YYYY-MM-DD or RFC 3339 (e.g. 2025-03-14T00:00:00+05:30)")
}

func dateRule(value interface{}) error {
	s, _ := value.(string)
	_, err := ParseDate(s, time.UTC)
	return err
}

func (q *NAReportQuery) ValidateNAReportQuery() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.MaxFetch, validation.NilOrNotEmpty, validation.Min(config.MinMaxFetch), validation.Max(config.MaxMaxFetch)),
		validation.Field(&q.OrdersBatchSize, validation.NilOrNotEmpty, validation.Min(config.MinOrdersBatchSize), validation.Max(config.MaxOrdersBatchSize)),
		validation.Field(&q.FromDate, validation.By(dateRule)),
		validation.Field(&q.ToDate, validation.By(dateRule)),
	)
}

// ToNAParams converts a validated query into engine parameters.
func (q *NAReportQuery) ToNAParams(loc *time.Location) (model.NAParams, error) {
	from, err := ParseDate(q.FromDate, loc)
	if err != nil {
		return model.NAParams{}, err
	}
	to, err := ParseDate(q.ToDate, loc)
	if err != nil {
		return model.NAParams{}, err
	}
	params := model.NAParams{
		Status:             q.Status,
		From:               from,
		To:                 to,
		CaseInsensitiveIDs: q.CaseInsensitiveIDs,
		NAStatus:           q.NAStatus,
	}
	if q.MaxFetch != nil {
		params.MaxFetch = *q.MaxFetch
	}
	if q.OrdersBatchSize != nil {
		params.OrdersBatchSize = *q.OrdersBatchSize
	}
	return params, nil
}

func (r *PaymentDetailsRequest) ValidatePaymentDetailsRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.IDs, validation.Required.Error("ids must be a non-empty list of payment ids")),
	)
}

func (r *SignPaymentRequest) ValidateSignPaymentRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.OrderID, validation.Required),
		validation.Field(&r.PaymentID, validation.Required),
	)
}

func (r ApprovePrintingRequest) ValidateApprovePrintingRequest() error {
	return validation.Validate([]string(r),
		validation.Required.Error("provide at least one order id"),
		validation.Each(validation.Required),
	)
}
