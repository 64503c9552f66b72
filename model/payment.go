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
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Payment is a gateway ledger entry. It is only held in memory for the
// duration of a reconciliation or enrichment run.
type Payment struct {
	ID           string       `json:"id"`
	Entity       string       `json:"entity"`
	Amount       int64        `json:"amount"`
	Currency     string       `json:"currency"`
	Status       string       `json:"status"`
	Method       string       `json:"method"`
	OrderID      string       `json:"order_id"`
	Description  string       `json:"description"`
	Email        string       `json:"email"`
	Contact      string       `json:"contact"`
	VPA          string       `json:"vpa"`
	UPI          *PaymentUPI  `json:"upi,omitempty"`
	AcquirerData AcquirerData `json:"acquirer_data"`
	Notes        PaymentNotes `json:"notes"`
	CreatedAt    int64        `json:"created_at"`
}

type PaymentUPI struct {
	VPA  string `json:"vpa"`
	Flow string `json:"flow"`
}

type AcquirerData struct {
	RRN                           string `json:"rrn"`
	AuthCode                      string `json:"auth_code"`
	AuthenticationReferenceNumber string `json:"authentication_reference_number"`
}

// NormalizedStatus is the gateway status, trimmed and lower-cased.
func (p Payment) NormalizedStatus() string {
	return strings.ToLower(strings.TrimSpace(p.Status))
}

// PaymentVPA returns the payer VPA from either the payment or its UPI block.
func (p Payment) PaymentVPA() string {
	if p.VPA != "" {
		return p.VPA
	}
	if p.UPI != nil {
		return p.UPI.VPA
	}
	return ""
}

func (p Payment) Flow() string {
	if p.UPI != nil {
		return p.UPI.Flow
	}
	return ""
}

// PaymentNotes holds free-form merchant notes. The gateway sends an empty
// JSON array instead of an object when no notes are set, so both are accepted.
type PaymentNotes map[string]interface{}

func (n *PaymentNotes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || trimmed[0] == '[' {
		*n = PaymentNotes{}
		return nil
	}
	m := map[string]interface{}{}
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	*n = m
	return nil
}

// Lookup returns the note under key when it holds a string.
func (n PaymentNotes) Lookup(key string) (string, bool) {
	v, ok := n[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StringValues returns every string valued note ordered by key.
func (n PaymentNotes) StringValues() []string {
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		if s, ok := n[k].(string); ok {
			values = append(values, s)
		}
	}
	return values
}

// PaymentPage is one page of the gateway's payment collection.
type PaymentPage struct {
	Entity string    `json:"entity"`
	Count  int       `json:"count"`
	Items  []Payment `json:"items"`
}
