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
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString accepts a JSON string, number or bool and keeps its text form.
// Carrier payloads switch between "6" and 6 for the same field.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexString(strconv.FormatBool(b))
		return nil
	}
	// objects and arrays are kept verbatim rather than rejected
	*f = FlexString(strings.TrimSpace(string(data)))
	return nil
}

func (f FlexString) String() string { return strings.TrimSpace(string(f)) }

// PrintVendorEvent is a print-vendor webhook delivery. Fields the vendor adds
// beyond the known set are kept verbatim in Extra.
type PrintVendorEvent struct {
	APIKey         string     `json:"apikey"`
	Type           string     `json:"type"`
	OrderReference FlexString `json:"order_reference"`
	Order          FlexString `json:"order"`
	Item           FlexString `json:"item"`
	ItemReference  FlexString `json:"item_reference"`
	Tracking       FlexString `json:"tracking"`
	ShippingOption FlexString `json:"shipping_option"`
	Datetime       FlexString `json:"datetime"`
	Message        FlexString `json:"message"`

	Extra map[string]json.RawMessage `json:"-"`
}

var printVendorEventFields = []string{
	"apikey", "type", "order_reference", "order", "item", "item_reference",
	"tracking", "shipping_option", "datetime", "message",
}

type printVendorEventAlias PrintVendorEvent

func (e *PrintVendorEvent) UnmarshalJSON(data []byte) error {
	var known printVendorEventAlias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, name := range printVendorEventFields {
		delete(all, name)
	}
	known.Extra = nil
	if len(all) > 0 {
		known.Extra = all
	}
	*e = PrintVendorEvent(known)
	return nil
}

// Record renders the delivery for storage on the order. The apikey is dropped.
func (e PrintVendorEvent) Record() (json.RawMessage, error) {
	known := printVendorEventAlias(e)
	known.APIKey = ""
	raw, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	record := make(map[string]json.RawMessage, len(printVendorEventFields)+len(e.Extra))
	for name, value := range e.Extra {
		record[name] = value
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for name, value := range fields {
		if name == "apikey" || string(value) == `""` {
			continue
		}
		record[name] = value
	}
	return json.Marshal(record)
}

const (
	PrintVendorItemProduced = "ItemProduced"
	PrintVendorItemShipped  = "ItemShipped"
	PrintVendorItemError    = "ItemError"
	PrintVendorItemCanceled = "ItemCanceled"
)

// CarrierScanPayload is a scan entry as the carrier sends it.
type CarrierScanPayload struct {
	Date     FlexString `json:"date"`
	Activity FlexString `json:"activity"`
	Location FlexString `json:"location"`
	Status   FlexString `json:"sr-status-label"`
}

// CarrierEvent is a carrier tracking webhook delivery. Unknown fields are ignored.
type CarrierEvent struct {
	AWB              FlexString           `json:"awb"`
	CourierName      FlexString           `json:"courier_name"`
	CurrentStatus    FlexString           `json:"current_status"`
	CurrentStatusID  FlexString           `json:"current_status_id"`
	ShipmentStatus   FlexString           `json:"shipment_status"`
	ShipmentStatusID FlexString           `json:"shipment_status_id"`
	CurrentTimestamp FlexString           `json:"current_timestamp"`
	OrderID          FlexString           `json:"order_id"`
	SROrderID        FlexString           `json:"sr_order_id"`
	ETD              FlexString           `json:"etd"`
	PODStatus        FlexString           `json:"pod_status"`
	POD              FlexString           `json:"pod"`
	IsReturn         FlexString           `json:"is_return"`
	Scans            []CarrierScanPayload `json:"scans"`
}

// WebhookOutcome is what a webhook handler did with a delivery.
type WebhookOutcome string

const (
	OutcomeApplied      WebhookOutcome = "applied"
	OutcomeDuplicate    WebhookOutcome = "duplicate"
	OutcomeIgnored      WebhookOutcome = "ignored"
	OutcomeOrphan       WebhookOutcome = "orphan"
	OutcomeUnauthorized WebhookOutcome = "unauthorized"
	OutcomeMalformed    WebhookOutcome = "malformed"
	OutcomeFailed       WebhookOutcome = "failed"
)

// WebhookResult is returned by the webhook handlers to the transport layer.
type WebhookResult struct {
	Outcome WebhookOutcome `json:"status"`
	OrderID string         `json:"order_id,omitempty"`
	Status  PrintStatus    `json:"print_status,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}
