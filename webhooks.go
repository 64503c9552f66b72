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
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"mime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/internal/apierror"
	"github.com/printwell/orderflow/internal/mailer"
	"github.com/printwell/orderflow/model"
)

const (
	NotifierPrintVendor = "printvendor"
	NotifierCarrier     = "carrier"
)

// carrier timestamps arrive day-first without a zone, or as ISO-8601
var carrierTimeLayouts = []string{
	"02 01 2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// SecretsEqual compares two secrets in constant time. Both sides are hashed
// first so the comparison does not leak the expected length.
func SecretsEqual(given, expected string) bool {
	a := sha256.Sum256([]byte(given))
	b := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// printVendorEvents maps vendor event types onto lifecycle events.
// Types missing here are acknowledged and ignored.
var printVendorEvents = map[string]model.OrderEvent{
	model.PrintVendorItemProduced: model.EventItemProduced,
	model.PrintVendorItemShipped:  model.EventItemShipped,
	model.PrintVendorItemError:    model.EventItemFailed,
	model.PrintVendorItemCanceled: model.EventItemFailed,
}

var carrierShippedStatuses = map[string]bool{
	"SHIPPED":                    true,
	"PICKED UP":                  true,
	"IN TRANSIT":                 true,
	"OUT FOR DELIVERY":           true,
	"REACHED AT DESTINATION HUB": true,
}

// ParseEventTime accepts RFC 3339 or one of the carrier layouts, read in loc.
func ParseEventTime(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, strings.Replace(raw, " ", "T", 1)); err == nil {
		return t, true
	}
	for _, layout := range carrierTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func location() *time.Location {
	cnf, err := config.Fetch()
	if err != nil {
		return time.UTC
	}
	return cnf.Location()
}

func (o *Orderflow) seen(ctx context.Context, notifier, fingerprint string) bool {
	if o.dedup == nil {
		return false
	}
	seen, err := o.dedup.Seen(ctx, notifier, fingerprint)
	if err != nil {
		logrus.WithError(err).WithField("notifier", notifier).Warn("dedup lookup failed")
		return false
	}
	return seen
}

func (o *Orderflow) remember(ctx context.Context, notifier, fingerprint string) {
	if o.dedup == nil {
		return
	}
	if err := o.dedup.Remember(ctx, notifier, fingerprint); err != nil {
		logrus.WithError(err).WithField("notifier", notifier).Warn("failed to remember event fingerprint")
	}
}

// HandlePrintVendorEvent authenticates and applies one print-vendor delivery.
// Unauthorized and malformed deliveries are reported through the outcome; an error is
// returned only when the store failed and the vendor should retry.
func (o *Orderflow) HandlePrintVendorEvent(ctx context.Context, body []byte) (model.WebhookResult, error) {
	ctx, span := tracer.Start(ctx, "HandlePrintVendorEvent", trace.WithAttributes(attribute.String("notifier", NotifierPrintVendor)))
	defer span.End()

	var evt model.PrintVendorEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		logrus.WithField("notifier", NotifierPrintVendor).WithField("size", len(body)).Warn("invalid JSON")
		return model.WebhookResult{Outcome: model.OutcomeMalformed, Reason: "invalid JSON"}, nil
	}

	cnf, err := config.Fetch()
	if err != nil {
		return model.WebhookResult{Outcome: model.OutcomeFailed}, err
	}
	expected := cnf.PrintVendor.WebhookKey
	if expected == "" || !SecretsEqual(evt.APIKey, expected) {
		logrus.WithFields(logrus.Fields{
			"notifier":  NotifierPrintVendor,
			"order_ref": evt.OrderReference.String(),
		}).Warn("bad webhook apikey")
		return model.WebhookResult{Outcome: model.OutcomeUnauthorized}, nil
	}

	orderRef := evt.OrderReference.String()
	logger := logrus.WithFields(logrus.Fields{
		"notifier":  NotifierPrintVendor,
		"order_ref": orderRef,
		"event":     evt.Type,
	})

	event, ok := printVendorEvents[evt.Type]
	if !ok {
		logger.Info("ignoring print vendor event")
		return model.WebhookResult{Outcome: model.OutcomeIgnored, OrderID: orderRef, Reason: "unhandled event type"}, nil
	}
	if orderRef == "" {
		logger.Warn("print vendor event without order reference")
		return model.WebhookResult{Outcome: model.OutcomeIgnored, Reason: "missing order_reference"}, nil
	}

	fingerprint := model.Fingerprint(evt.Type, orderRef, evt.ItemReference.String(), evt.Tracking.String(), evt.Datetime.String())
	if o.seen(ctx, NotifierPrintVendor, fingerprint) {
		logger.Info("duplicate print vendor event")
		return model.WebhookResult{Outcome: model.OutcomeDuplicate, OrderID: orderRef}, nil
	}

	at, ok := ParseEventTime(evt.Datetime.String(), location())
	if !ok {
		at = o.clock()
	}
	update, err := model.NewTransitionUpdate(event, at)
	if err != nil {
		return model.WebhookResult{Outcome: model.OutcomeFailed}, err
	}
	if record, err := evt.Record(); err != nil {
		logger.WithError(err).Warn("print vendor event not recorded")
	} else {
		update.PrinterEvent = record
	}
	if event == model.EventItemShipped {
		if tracking := evt.Tracking.String(); tracking != "" {
			update.TrackingCode = &tracking
		}
		if option := evt.ShippingOption.String(); option != "" {
			update.ShippingOption = &option
		}
	}

	result, err := o.datasource.ApplyOrderUpdate(ctx, model.ByOrderID(orderRef), update)
	if apierror.HasCode(err, apierror.ErrNotFound) {
		logger.Warn("orphaned print vendor event")
		o.remember(ctx, NotifierPrintVendor, fingerprint)
		return model.WebhookResult{Outcome: model.OutcomeOrphan, OrderID: orderRef}, nil
	}
	if err != nil {
		span.RecordError(err)
		logger.WithError(err).Error("failed to apply print vendor event")
		return model.WebhookResult{Outcome: model.OutcomeFailed, OrderID: orderRef}, err
	}
	o.remember(ctx, NotifierPrintVendor, fingerprint)

	logger.WithFields(logrus.Fields{
		"previous": result.Previous,
		"current":  result.Current,
	}).Info("print vendor event applied")

	switch {
	case event == model.EventItemShipped && (result.Current == model.PrintStatusShipped || result.Current == model.PrintStatusDelivered):
		shippedAt := evt.Datetime.String()
		if shippedAt == "" {
			shippedAt = at.Format(time.RFC3339)
		}
		o.dispatchShipped(ctx, result, evt.ShippingOption.String(), evt.Tracking.String(), shippedAt)
	case event == model.EventItemFailed:
		logger.WithField("message", evt.Message.String()).Warn("print vendor reported an item failure")
	}

	return model.WebhookResult{Outcome: model.OutcomeApplied, OrderID: result.OrderID, Status: result.Current}, nil
}

// dispatchShipped claims the shipped milestone and queues its email. Both
// notifiers can move an order to shipped, so either may win the claim.
func (o *Orderflow) dispatchShipped(ctx context.Context, result *model.ApplyResult, shippingOption, tracking, shippedAt string) {
	if result.Current != model.PrintStatusShipped && result.Current != model.PrintStatusDelivered {
		return
	}
	o.dispatchMilestone(ctx, model.ByOrderID(result.OrderID), model.ClaimShippedEmail, EmailTask{
		Kind:    mailer.KindShipped,
		OrderID: result.OrderID,
		To:      result.Email,
		Data: mailer.TemplateData{
			OrderID:        result.OrderID,
			JobID:          result.JobID,
			UserName:       result.UserName,
			ChildName:      result.Name,
			ShippingOption: shippingOption,
			TrackingCode:   tracking,
			TrackingURL:    mailer.TrackingLink(shippingOption, tracking),
			ShippedAt:      shippedAt,
		},
	})
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.EqualFold(mediaType, "application/json")
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// carrierEventFor classifies a carrier notification. Returns and unknown
// statuses only refresh the carrier blob.
func carrierEventFor(evt model.CarrierEvent) model.OrderEvent {
	if isTruthy(evt.IsReturn.String()) {
		return model.EventCarrierUpdate
	}
	status := strings.ToUpper(evt.CurrentStatus.String())
	if status == "" {
		status = strings.ToUpper(evt.ShipmentStatus.String())
	}
	if status == "DELIVERED" {
		return model.EventCarrierDelivered
	}
	if carrierShippedStatuses[status] {
		return model.EventCarrierShipped
	}
	return model.EventCarrierUpdate
}

func carrierStatus(evt model.CarrierEvent, raw []byte, loc *time.Location, receivedAt time.Time) *model.CarrierStatus {
	status := &model.CarrierStatus{
		AWB:              evt.AWB.String(),
		CourierName:      evt.CourierName.String(),
		CurrentStatus:    evt.CurrentStatus.String(),
		CurrentStatusID:  evt.CurrentStatusID.String(),
		ShipmentStatus:   evt.ShipmentStatus.String(),
		ShipmentStatusID: evt.ShipmentStatusID.String(),
		RawTimestamp:     evt.CurrentTimestamp.String(),
		ETD:              evt.ETD.String(),
		PODStatus:        evt.PODStatus.String(),
		POD:              evt.POD.String(),
		IsReturn:         isTruthy(evt.IsReturn.String()),
		Raw:              json.RawMessage(raw),
		ReceivedAt:       receivedAt.UTC(),
	}
	if t, ok := ParseEventTime(status.RawTimestamp, loc); ok {
		status.CurrentTimestamp = &t
	}
	for _, s := range evt.Scans {
		status.Scans = append(status.Scans, model.CarrierScan{
			Date:     s.Date.String(),
			Activity: s.Activity.String(),
			Location: s.Location.String(),
			Status:   s.Status.String(),
		})
	}
	return status
}

// HandleCarrierEvent applies one carrier delivery. The carrier always gets an
// acknowledgement, so every failure is logged and folded into the outcome.
func (o *Orderflow) HandleCarrierEvent(ctx context.Context, token, contentType string, body []byte) model.WebhookResult {
	ctx, span := tracer.Start(ctx, "HandleCarrierEvent", trace.WithAttributes(attribute.String("notifier", NotifierCarrier)))
	defer span.End()

	logger := logrus.WithField("notifier", NotifierCarrier)

	cnf, err := config.Fetch()
	if err != nil {
		logger.WithError(err).Error("configuration not loaded")
		return model.WebhookResult{Outcome: model.OutcomeFailed}
	}
	expected := cnf.Carrier.WebhookToken
	if expected == "" || !SecretsEqual(strings.TrimSpace(token), expected) {
		logger.Warn("token mismatch; ignoring payload")
		return model.WebhookResult{Outcome: model.OutcomeUnauthorized}
	}

	if !isJSONContentType(contentType) {
		logger.WithField("content_type", contentType).Info("non-JSON delivery dropped")
		return model.WebhookResult{Outcome: model.OutcomeIgnored, Reason: "non-JSON content type"}
	}

	var evt model.CarrierEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		logger.WithError(err).Warn("malformed carrier payload")
		return model.WebhookResult{Outcome: model.OutcomeMalformed, Reason: "invalid JSON"}
	}

	awb := evt.AWB.String()
	var ref model.OrderRef
	switch {
	case evt.OrderID.String() != "":
		ref = model.ByOrderID(evt.OrderID.String())
	case awb != "":
		ref = model.ByTrackingCode(awb)
	default:
		logger.Warn("carrier event without order id or awb")
		return model.WebhookResult{Outcome: model.OutcomeIgnored, Reason: "no order reference"}
	}
	logger = logger.WithField("order_ref", ref.String())

	fingerprint := model.Fingerprint(ref.String(), awb, evt.CurrentStatusID.String(), evt.CurrentTimestamp.String())
	if o.seen(ctx, NotifierCarrier, fingerprint) {
		logger.Info("duplicate carrier event")
		return model.WebhookResult{Outcome: model.OutcomeDuplicate}
	}

	loc := cnf.Location()
	now := o.clock()
	event := carrierEventFor(evt)
	logger = logger.WithField("event", event)

	at, ok := ParseEventTime(evt.CurrentTimestamp.String(), loc)
	if !ok {
		at = now
	}
	update, err := model.NewTransitionUpdate(event, at)
	if err != nil {
		logger.WithError(err).Error("no transition for carrier event")
		return model.WebhookResult{Outcome: model.OutcomeFailed}
	}
	update.CarrierStatus = carrierStatus(evt, body, loc, now)
	if courier := evt.CourierName.String(); courier != "" {
		update.CourierPartner = &courier
	}
	if awb != "" && ref.Kind == model.RefOrderID {
		update.TrackingCode = &awb
	}

	result, err := o.datasource.ApplyOrderUpdate(ctx, ref, update)
	if apierror.HasCode(err, apierror.ErrNotFound) {
		logger.Warn("orphaned carrier event")
		o.remember(ctx, NotifierCarrier, fingerprint)
		return model.WebhookResult{Outcome: model.OutcomeOrphan}
	}
	if err != nil {
		span.RecordError(err)
		logger.WithError(err).Error("failed to apply carrier event")
		return model.WebhookResult{Outcome: model.OutcomeFailed}
	}
	o.remember(ctx, NotifierCarrier, fingerprint)

	logger.WithFields(logrus.Fields{
		"previous": result.Previous,
		"current":  result.Current,
	}).Info("carrier event applied")

	if event == model.EventCarrierShipped || event == model.EventCarrierDelivered {
		o.dispatchShipped(ctx, result, evt.CourierName.String(), awb, at.In(loc).Format(time.RFC3339))
	}
	return model.WebhookResult{Outcome: model.OutcomeApplied, OrderID: result.OrderID, Status: result.Current}
}
