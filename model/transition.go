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
	"fmt"
	"time"
)

// OrderEvent is a normalized lifecycle event, independent of which party reported it.
type OrderEvent string

const (
	EventSubmittedToPrinter OrderEvent = "submitted_to_printer"
	EventItemProduced       OrderEvent = "item_produced"
	EventItemShipped        OrderEvent = "item_shipped"
	EventItemFailed         OrderEvent = "item_failed"
	EventCarrierShipped     OrderEvent = "carrier_shipped"
	EventCarrierDelivered   OrderEvent = "carrier_delivered"
	EventCarrierUpdate      OrderEvent = "carrier_update"
)

// Transition is one row of the order state machine.
type Transition struct {
	From []PrintStatus
	To   PrintStatus
	// Stamp is the status-bound timestamp written together with To.
	Stamp func(u *OrderUpdate, at time.Time)
}

// transitions is the complete order state machine. An event missing from the
// table, or a current status missing from From, leaves print_status as is.
// delivered and error accept no further event.
var transitions = map[OrderEvent]Transition{
	EventSubmittedToPrinter: {
		From:  []PrintStatus{PrintStatusUnset},
		To:    PrintStatusSentToPrinter,
		Stamp: func(u *OrderUpdate, at time.Time) { u.PrintSentAt = &at },
	},
	EventItemProduced: {
		From:  []PrintStatus{PrintStatusUnset, PrintStatusSentToPrinter},
		To:    PrintStatusProduced,
		Stamp: func(u *OrderUpdate, at time.Time) { u.ProducedAt = &at },
	},
	EventItemShipped: {
		From:  []PrintStatus{PrintStatusUnset, PrintStatusSentToPrinter, PrintStatusProduced},
		To:    PrintStatusShipped,
		Stamp: func(u *OrderUpdate, at time.Time) { u.ShippedAt = &at },
	},
	EventCarrierShipped: {
		From:  []PrintStatus{PrintStatusUnset, PrintStatusSentToPrinter, PrintStatusProduced},
		To:    PrintStatusShipped,
		Stamp: func(u *OrderUpdate, at time.Time) { u.ShippedAt = &at },
	},
	EventCarrierDelivered: {
		From:  []PrintStatus{PrintStatusUnset, PrintStatusSentToPrinter, PrintStatusProduced, PrintStatusShipped},
		To:    PrintStatusDelivered,
		Stamp: func(u *OrderUpdate, at time.Time) { u.DeliveredAt = &at },
	},
	EventItemFailed: {
		From: []PrintStatus{PrintStatusSentToPrinter, PrintStatusProduced},
		To:   PrintStatusError,
	},
}

// Allows reports whether the transition accepts an order currently in status.
func (t Transition) Allows(status PrintStatus) bool {
	for _, s := range t.From {
		if s == status {
			return true
		}
	}
	return false
}

// NewTransitionUpdate builds the conditional update document for event.
// The returned update carries no status when the event has no transition.
func NewTransitionUpdate(event OrderEvent, at time.Time) (OrderUpdate, error) {
	update := OrderUpdate{Event: event}
	if event == EventCarrierUpdate {
		return update, nil
	}
	t, ok := transitions[event]
	if !ok {
		return update, fmt.Errorf("unknown order event %q", event)
	}
	to := t.To
	update.Status = &to
	update.AllowedFrom = append([]PrintStatus(nil), t.From...)
	if t.Stamp != nil {
		t.Stamp(&update, at)
	}
	return update, nil
}

// Next returns the status an order in current would hold after event.
// It mirrors the guarded update the store applies.
func Next(current PrintStatus, event OrderEvent) PrintStatus {
	t, ok := transitions[event]
	if !ok || !t.Allows(current) {
		return current
	}
	return t.To
}
