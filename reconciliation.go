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
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/internal/apierror"
	"github.com/printwell/orderflow/internal/gateway"
	"github.com/printwell/orderflow/internal/normalize"
	"github.com/printwell/orderflow/model"
)

type indexedPayment struct {
	id     string
	status string
}

// normalizeNAParams fills defaults and rejects out of range bounds.
func normalizeNAParams(params model.NAParams) (model.NAParams, error) {
	if params.MaxFetch == 0 {
		params.MaxFetch = config.DefaultMaxFetch
	}
	if params.MaxFetch < config.MinMaxFetch || params.MaxFetch > config.MaxMaxFetch {
		return params, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("max_fetch must be between %d and %d", config.MinMaxFetch, config.MaxMaxFetch), nil)
	}
	if params.OrdersBatchSize == 0 {
		params.OrdersBatchSize = config.DefaultOrdersBatchSize
	}
	if params.OrdersBatchSize < config.MinOrdersBatchSize || params.OrdersBatchSize > config.MaxOrdersBatchSize {
		return params, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("orders_batch_size must be between %d and %d", config.MinOrdersBatchSize, config.MaxOrdersBatchSize), nil)
	}
	if params.From != nil && params.To != nil && params.From.After(*params.To) {
		return params, apierror.NewAPIError(apierror.ErrInvalidInput, "from_date must not be after to_date", nil)
	}
	params.Status = strings.ToLower(strings.TrimSpace(params.Status))
	params.NAStatus = strings.ToLower(strings.TrimSpace(params.NAStatus))
	if params.NAStatus == "" {
		params.NAStatus = config.DefaultNAStatus
	}
	return params, nil
}

// buildPaymentIndex keys payments by normalized id. Payments with an empty id are skipped.
func buildPaymentIndex(payments []model.Payment, caseInsensitive bool) map[string]indexedPayment {
	index := make(map[string]indexedPayment, len(payments))
	for _, p := range payments {
		if p.ID == "" {
			continue
		}
		key := normalize.ID(p.ID, caseInsensitive)
		if key == "" {
			continue
		}
		index[key] = indexedPayment{id: p.ID, status: p.NormalizedStatus()}
	}
	return index
}

func windowLabel(t *time.Time) string {
	if t == nil {
		return model.AllTime
	}
	return t.Format(time.RFC3339)
}

// FindNAPayments reports gateway payments that no order references through its transaction_id.
// Payments are fetched first, then every order is streamed in id order so the store is never
// held in memory. Any gateway or store failure aborts the run and no report is returned.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - params model.NAParams: Window, status filters and scan bounds.
//
// Returns:
// - *model.NAReport: The NA ids sorted by raw id, grouped by status, and a summary.
// - error: An INVALID_INPUT error for bad bounds, an UPSTREAM_FAILURE error otherwise.
func (o *Orderflow) FindNAPayments(ctx context.Context, params model.NAParams) (*model.NAReport, error) {
	ctx, span := tracer.Start(ctx, "FindNAPayments")
	defer span.End()

	params, err := normalizeNAParams(params)
	if err != nil {
		return nil, err
	}

	payments, err := o.gateway.ListPayments(ctx, gateway.ListParams{
		Status:   params.Status,
		From:     params.From,
		To:       params.To,
		MaxFetch: params.MaxFetch,
	})
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrUpstream, "failed to fetch payments from gateway", err)
	}

	index := buildPaymentIndex(payments, params.CaseInsensitiveIDs)
	matched := make(map[string]struct{})

	scanned, withTransaction := 0, 0
	var after int64
	for {
		batch, err := o.datasource.ScanOrderCursor(ctx, after, params.OrdersBatchSize)
		if err != nil {
			span.RecordError(err)
			return nil, apierror.NewAPIError(apierror.ErrUpstream, "failed to scan orders", err)
		}
		if len(batch) == 0 {
			break
		}
		scanned += len(batch)
		for _, row := range batch {
			key := normalize.ID(row.TransactionID, params.CaseInsensitiveIDs)
			if key == "" {
				continue
			}
			withTransaction++
			if _, ok := index[key]; ok {
				matched[key] = struct{}{}
			}
		}
		after = batch[len(batch)-1].ID
		if len(batch) < params.OrdersBatchSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrUpstream, "order scan interrupted", err)
		}
	}

	naIDs := make([]string, 0)
	for key, p := range index {
		if _, ok := matched[key]; ok {
			continue
		}
		if p.status == params.NAStatus {
			naIDs = append(naIDs, p.id)
		}
	}
	sort.Strings(naIDs)

	byStatus := make(map[string][]string)
	if len(naIDs) > 0 {
		byStatus[params.NAStatus] = naIDs
	}

	paymentStatus := params.Status
	if paymentStatus == "" {
		paymentStatus = model.AllStatuses
	}

	report := &model.NAReport{
		Summary: model.NASummary{
			TotalOrdersDocsScanned:    scanned,
			OrdersWithTransactionID:   withTransaction,
			TotalPaymentsRows:         len(payments),
			PaymentStatusFilter:       paymentStatus,
			CaseInsensitiveIDs:        params.CaseInsensitiveIDs,
			MatchedDistinctPaymentIDs: len(matched),
			NACount:                   len(naIDs),
			MaxFetch:                  params.MaxFetch,
			DateWindow: model.DateWindow{
				FromDate: windowLabel(params.From),
				ToDate:   windowLabel(params.To),
			},
			OrdersBatchSize: params.OrdersBatchSize,
			NAStatusFilter:  params.NAStatus,
		},
		NAPaymentIDs: naIDs,
		NAByStatus:   byStatus,
		GeneratedAt:  o.clock().UTC(),
	}

	span.SetAttributes(
		attribute.Int("payments.rows", len(payments)),
		attribute.Int("orders.scanned", scanned),
		attribute.Int("payments.na", len(naIDs)),
	)
	logrus.WithFields(logrus.Fields{
		"payments": len(payments),
		"orders":   scanned,
		"matched":  len(matched),
		"na_count": len(naIDs),
	}).Info("reconciliation run completed")

	return report, nil
}
