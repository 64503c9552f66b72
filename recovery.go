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
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"

	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/internal/apierror"
	"github.com/printwell/orderflow/internal/gateway"
	"github.com/printwell/orderflow/model"
)

const (
	// MaxEnrichmentIDs caps one enrichment request.
	MaxEnrichmentIDs = 2000

	enrichmentWorkers = 8
	errorDetailLimit  = 200
	createdAtLayout   = "02/01/2006 15:04:05"
)

var jobIDPattern = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}\b`)

// preferred note keys, checked before any other note value
var jobIDNoteKeys = []string{"job_id", "JobId", "JOB_ID"}

// ExtractJobID looks for an embedded job id in a payment's notes and then its description.
func ExtractJobID(p model.Payment) string {
	for _, k := range jobIDNoteKeys {
		if v, ok := p.Notes.Lookup(k); ok {
			if id := jobIDPattern.FindString(v); id != "" {
				return id
			}
		}
	}
	for _, v := range p.Notes.StringValues() {
		if id := jobIDPattern.FindString(v); id != "" {
			return id
		}
	}
	return jobIDPattern.FindString(p.Description)
}

// CleanPaymentIDs trims ids, drops blanks and duplicates and keeps first-seen order.
func CleanPaymentIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return ptr.String(s)
}

func amountDisplay(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

func createdAtDisplay(unix int64, loc *time.Location) *string {
	if unix <= 0 {
		return nil
	}
	return ptr.String(time.Unix(unix, 0).In(loc).Format(createdAtLayout))
}

// EnrichPayments fetches each payment by id and links it back to an order, first by
// transaction_id and then by a job id recovered from the payment's metadata.
// Per-id failures are reported in Errors and never abort the batch.
func (o *Orderflow) EnrichPayments(ctx context.Context, ids []string) (*model.EnrichmentResult, error) {
	ctx, span := tracer.Start(ctx, "EnrichPayments")
	defer span.End()

	ids = CleanPaymentIDs(ids)
	if len(ids) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "ids must be a non-empty list of payment ids", nil)
	}
	if len(ids) > MaxEnrichmentIDs {
		return nil, apierror.NewAPIError(apierror.ErrTooLarge, fmt.Sprintf("too many ids; max %d per request", MaxEnrichmentIDs), nil)
	}

	loc := time.UTC
	if cnf, err := config.Fetch(); err == nil {
		loc = cnf.Location()
	}

	type slot struct {
		item *model.EnrichedPayment
		err  *model.PaymentError
	}
	slots := make([]slot, len(ids))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < enrichmentWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				item, perr := o.enrichOne(ctx, ids[i], loc)
				slots[i] = slot{item: item, err: perr}
			}
		}()
	}
	for i := range ids {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrUpstream, "enrichment interrupted", err)
	}

	result := &model.EnrichmentResult{
		Items:  make([]model.EnrichedPayment, 0, len(ids)),
		Errors: make([]model.PaymentError, 0),
	}
	for _, s := range slots {
		if s.err != nil {
			result.Errors = append(result.Errors, *s.err)
			continue
		}
		result.Items = append(result.Items, *s.item)
	}
	result.Count = len(result.Items)

	logrus.WithFields(logrus.Fields{
		"requested": len(ids),
		"enriched":  result.Count,
		"errors":    len(result.Errors),
	}).Info("enriched NA payments")
	return result, nil
}

func (o *Orderflow) enrichOne(ctx context.Context, id string, loc *time.Location) (*model.EnrichedPayment, *model.PaymentError) {
	payment, err := o.gateway.GetPayment(ctx, id)
	if err != nil {
		return nil, paymentError(id, err)
	}
	row := o.projectPayment(ctx, payment, loc)
	return &row, nil
}

func paymentError(id string, err error) *model.PaymentError {
	if errors.Is(err, gateway.ErrNotFound) {
		return &model.PaymentError{ID: id, Error: model.PaymentErrNotFound}
	}
	var statusErr *gateway.StatusError
	if errors.As(err, &statusErr) {
		return &model.PaymentError{ID: id, Error: fmt.Sprintf("http_%d", statusErr.Code), Detail: statusErr.Detail(errorDetailLimit)}
	}
	return &model.PaymentError{ID: id, Error: model.PaymentErrNetwork, Detail: err.Error()}
}

// projectPayment combines gateway fields with what the store knows about the payment.
// Store lookup failures leave the row unlinked.
func (o *Orderflow) projectPayment(ctx context.Context, p *model.Payment, loc *time.Location) model.EnrichedPayment {
	row := model.EnrichedPayment{
		ID:            p.ID,
		Email:         optional(p.Email),
		Contact:       optional(p.Contact),
		Status:        optional(p.Status),
		Method:        optional(p.Method),
		Currency:      optional(p.Currency),
		AmountDisplay: ptr.String(amountDisplay(p.Amount)),
		CreatedAt:     createdAtDisplay(p.CreatedAt, loc),
		OrderID:       optional(p.OrderID),
		Description:   optional(p.Description),
		VPA:           optional(p.PaymentVPA()),
		Flow:          optional(p.Flow()),
		RRN:           optional(p.AcquirerData.RRN),
		ARN:           optional(p.AcquirerData.AuthenticationReferenceNumber),
		AuthCode:      optional(p.AcquirerData.AuthCode),
	}

	order, err := o.datasource.GetOrderByTransactionID(ctx, p.ID)
	switch {
	case err == nil:
		row.LinkSource = model.LinkTransactionID
		linkOrder(&row, order)
		if order.JobID != "" {
			return row
		}
	case !apierror.HasCode(err, apierror.ErrNotFound):
		logrus.WithError(err).WithField("payment_id", p.ID).Warn("order lookup by transaction id failed")
	}

	jobID := ExtractJobID(*p)
	if jobID == "" {
		return row
	}
	row.JobID = ptr.String(jobID)
	row.Paid = nil
	row.PreviewURL = nil
	row.LinkSource = model.LinkJobID

	order, err = o.datasource.GetOrder(ctx, model.ByJobID(jobID))
	if err != nil {
		if !apierror.HasCode(err, apierror.ErrNotFound) {
			logrus.WithError(err).WithField("job_id", jobID).Warn("order lookup by job id failed")
		}
		return row
	}
	linkOrder(&row, order)
	row.JobID = ptr.String(jobID)
	return row
}

func linkOrder(row *model.EnrichedPayment, order *model.Order) {
	row.JobID = optional(order.JobID)
	row.Paid = ptr.Bool(order.Paid)
	row.PreviewURL = optional(order.PreviewURL)
}
