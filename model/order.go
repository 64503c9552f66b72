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
	"time"
)

type PrintStatus string

const (
	PrintStatusUnset         PrintStatus = ""
	PrintStatusSentToPrinter PrintStatus = "sent_to_printer"
	PrintStatusProduced      PrintStatus = "produced"
	PrintStatusShipped       PrintStatus = "shipped"
	PrintStatusDelivered     PrintStatus = "delivered"
	PrintStatusError         PrintStatus = "error"
)

// Stage is the lifecycle position of an order. The first three stages are
// derived from the paid and approved flags, the rest from print_status.
type Stage string

const (
	StageCreated       Stage = "created"
	StagePaid          Stage = "paid"
	StageApproved      Stage = "approved"
	StageSentToPrinter Stage = "sent_to_printer"
	StageProduced      Stage = "produced"
	StageShipped       Stage = "shipped"
	StageDelivered     Stage = "delivered"
	StageError         Stage = "error"
)

// ClaimFlag names a one-shot boolean column on the orders table.
// Only the values declared here may reach SQL.
type ClaimFlag string

const (
	ClaimShippedEmail    ClaimFlag = "shipped_email_sent"
	ClaimProductionEmail ClaimFlag = "production_email_sent"
	ClaimFeedbackEmail   ClaimFlag = "feedback_email"
	ClaimNudge           ClaimFlag = "nudge_sent"
)

func (f ClaimFlag) Valid() bool {
	switch f {
	case ClaimShippedEmail, ClaimProductionEmail, ClaimFeedbackEmail, ClaimNudge:
		return true
	}
	return false
}

// RefKind is the column an OrderRef resolves against.
type RefKind string

const (
	RefOrderID      RefKind = "order_id"
	RefJobID        RefKind = "job_id"
	RefTrackingCode RefKind = "tracking_code"
)

// OrderRef identifies a single order by one of its external keys.
type OrderRef struct {
	Kind  RefKind
	Value string
}

func ByOrderID(id string) OrderRef { return OrderRef{Kind: RefOrderID, Value: id} }
func ByJobID(id string) OrderRef { return OrderRef{Kind: RefJobID, Value: id} }
func ByTrackingCode(c string) OrderRef { return OrderRef{Kind: RefTrackingCode, Value: c} }

func (r OrderRef) String() string {
	return string(r.Kind) + "=" + r.Value
}

type ShippingAddress struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

type Order struct {
	ID                  int64           `json:"-"`
	OrderID             string          `json:"order_id"`
	JobID               string          `json:"job_id"`
	TransactionID       string          `json:"transaction_id,omitempty"`
	Paid                bool            `json:"paid"`
	Approved            bool            `json:"approved"`
	PrintStatus         PrintStatus     `json:"print_status,omitempty"`
	Name                string          `json:"name,omitempty"`
	UserName            string          `json:"user_name,omitempty"`
	Email               string          `json:"email,omitempty"`
	BookStyle           string          `json:"book_style,omitempty"`
	BookURL             string          `json:"book_url,omitempty"`
	CoverURL            string          `json:"cover_url,omitempty"`
	PreviewURL          string          `json:"preview_url,omitempty"`
	PageCount           int             `json:"page_count,omitempty"`
	ShippingAddress     ShippingAddress `json:"shipping_address"`
	PrinterReference    string          `json:"printer_reference,omitempty"`
	TrackingCode        string          `json:"tracking_code,omitempty"`
	ShippingOption      string          `json:"shipping_option,omitempty"`
	CourierPartner      string          `json:"courier_partner,omitempty"`
	CarrierStatus       *CarrierStatus  `json:"carrier_status,omitempty"`
	PrinterEvent        json.RawMessage `json:"printer_event,omitempty"`
	ProcessedAt         *time.Time      `json:"processed_at,omitempty"`
	ApprovedAt          *time.Time      `json:"approved_at,omitempty"`
	PrintSentAt         *time.Time      `json:"print_sent_at,omitempty"`
	ProducedAt          *time.Time      `json:"produced_at,omitempty"`
	ShippedAt           *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt         *time.Time      `json:"delivered_at,omitempty"`
	ShippedEmailSent    bool            `json:"shipped_email_sent"`
	ProductionEmailSent bool            `json:"production_email_sent"`
	FeedbackEmail       bool            `json:"feedback_email"`
	NudgeSent           bool            `json:"nudge_sent"`
	CreatedAt           time.Time       `json:"created_at"`
}

// Stage derives the lifecycle position of the order.
func (o *Order) Stage() Stage {
	switch o.PrintStatus {
	case PrintStatusUnset:
	case PrintStatusError:
		return StageError
	default:
		return Stage(o.PrintStatus)
	}
	if o.Approved {
		return StageApproved
	}
	if o.Paid {
		return StagePaid
	}
	return StageCreated
}

// OrderUpdate is a partial update document. Nil fields are left untouched
// in the store; they are never written as NULL.
//
// Status, together with the status-bound timestamps, is applied only when
// the stored print_status is one of AllowedFrom. Every other field is
// applied unconditionally once the row matches.
type OrderUpdate struct {
	Event       OrderEvent
	Status      *PrintStatus
	AllowedFrom []PrintStatus

	PrintSentAt *time.Time
	ProducedAt  *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time

	PrinterReference *string
	TrackingCode     *string
	ShippingOption   *string
	CourierPartner   *string
	CarrierStatus    *CarrierStatus
	// PrinterEvent is the last print vendor delivery, stored verbatim.
	PrinterEvent json.RawMessage
}

// Empty reports whether the update carries no field at all.
func (u OrderUpdate) Empty() bool {
	return u.Status == nil && u.PrinterReference == nil && u.TrackingCode == nil &&
		u.ShippingOption == nil && u.CourierPartner == nil && u.CarrierStatus == nil &&
		len(u.PrinterEvent) == 0
}

// ApplyResult reports what a conditional update did to the matched row.
type ApplyResult struct {
	OrderID  string
	JobID    string
	Email    string
	Name     string
	UserName string
	Previous PrintStatus
	Current  PrintStatus
}

// Transitioned reports whether the stored status changed.
func (r ApplyResult) Transitioned() bool {
	return r.Previous != r.Current
}

// CarrierScan is a single checkpoint reported by the carrier.
type CarrierScan struct {
	Date     string `json:"date,omitempty"`
	Activity string `json:"activity,omitempty"`
	Location string `json:"location,omitempty"`
	Status   string `json:"status,omitempty"`
}

// CarrierStatus is the latest carrier notification recorded against an order.
type CarrierStatus struct {
	AWB              string          `json:"awb,omitempty"`
	CourierName      string          `json:"courier_name,omitempty"`
	CurrentStatus    string          `json:"current_status,omitempty"`
	CurrentStatusID  string          `json:"current_status_id,omitempty"`
	ShipmentStatus   string          `json:"shipment_status,omitempty"`
	ShipmentStatusID string          `json:"shipment_status_id,omitempty"`
	CurrentTimestamp *time.Time      `json:"current_timestamp,omitempty"`
	RawTimestamp     string          `json:"current_timestamp_raw,omitempty"`
	ETD              string          `json:"etd,omitempty"`
	PODStatus        string          `json:"pod_status,omitempty"`
	POD              string          `json:"pod,omitempty"`
	IsReturn         bool            `json:"is_return"`
	Scans            []CarrierScan   `json:"scans,omitempty"`
	Raw              json.RawMessage `json:"raw,omitempty"`
	ReceivedAt       time.Time       `json:"received_at"`
}
