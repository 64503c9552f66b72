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

import "time"

const (
	AllStatuses = "(ALL)"
	AllTime     = "(all-time)"
)

// NAParams configures one reconciliation run.
type NAParams struct {
	// Status filters the gateway fetch. Empty means every status.
	Status             string
	MaxFetch           int
	From               *time.Time
	To                 *time.Time
	CaseInsensitiveIDs bool
	OrdersBatchSize    int
	// NAStatus restricts the reported NA set. Empty means "captured".
	NAStatus string
}

// OrderCursorRow is the projection scanned from the order store during reconciliation.
type OrderCursorRow struct {
	ID            int64
	OrderID       string
	TransactionID string
}

type DateWindow struct {
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

type NASummary struct {
	TotalOrdersDocsScanned    int        `json:"total_orders_docs_scanned"`
	OrdersWithTransactionID   int        `json:"orders_with_transaction_id"`
	TotalPaymentsRows         int        `json:"total_payments_rows"`
	PaymentStatusFilter       string     `json:"payment_status_filter"`
	CaseInsensitiveIDs        bool       `json:"case_insensitive_ids"`
	MatchedDistinctPaymentIDs int        `json:"matched_distinct_payment_ids"`
	NACount                   int        `json:"na_count"`
	MaxFetch                  int        `json:"max_fetch"`
	DateWindow                DateWindow `json:"date_window"`
	OrdersBatchSize           int        `json:"orders_batch_size"`
	NAStatusFilter            string     `json:"na_status_filter"`
}

// NAReport lists gateway payments that no order references.
type NAReport struct {
	Summary      NASummary           `json:"summary"`
	NAPaymentIDs []string            `json:"na_payment_ids"`
	NAByStatus   map[string][]string `json:"na_by_status"`
	GeneratedAt  time.Time           `json:"generated_at"`
}

// LinkSource tells how an enriched payment was tied back to an order.
type LinkSource string

const (
	LinkNone          LinkSource = ""
	LinkTransactionID LinkSource = "transaction_id"
	LinkJobID         LinkSource = "job_id"
)

// EnrichedPayment is a gateway payment joined with what the order store knows about it.
// Nil pointers serialize as null.
type EnrichedPayment struct {
	ID            string     `json:"id"`
	Email         *string    `json:"email"`
	Contact       *string    `json:"contact"`
	Status        *string    `json:"status"`
	Method        *string    `json:"method"`
	Currency      *string    `json:"currency"`
	AmountDisplay *string    `json:"amount_display"`
	CreatedAt     *string    `json:"created_at"`
	OrderID       *string    `json:"order_id"`
	Description   *string    `json:"description"`
	VPA           *string    `json:"vpa"`
	Flow          *string    `json:"flow"`
	RRN           *string    `json:"rrn"`
	ARN           *string    `json:"arn"`
	AuthCode      *string    `json:"auth_code"`
	JobID         *string    `json:"job_id"`
	Paid          *bool      `json:"paid"`
	PreviewURL    *string    `json:"preview_url"`
	LinkSource    LinkSource `json:"link_source,omitempty"`
}

// PaymentError is a per-id enrichment failure.
type PaymentError struct {
	ID     string `json:"id"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

const (
	PaymentErrNotFound = "not_found"
	PaymentErrNetwork  = "network"
)

type EnrichmentResult struct {
	Count  int               `json:"count"`
	Items  []EnrichedPayment `json:"items"`
	Errors []PaymentError    `json:"errors"`
}
