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
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/internal/mailer"
	"github.com/printwell/orderflow/model"
)

const approvedAtLayout = "02 Jan, 2006"

// dispatchMilestone claims flag on the order and, when this caller wins, queues task.
// It reports whether an email was queued. Failures are logged and never
// propagate to the state change that triggered them.
func (o *Orderflow) dispatchMilestone(ctx context.Context, ref model.OrderRef, flag model.ClaimFlag, task EmailTask) bool {
	logger := logrus.WithFields(logrus.Fields{
		"order_ref": ref.String(),
		"flag":      string(flag),
	})
	if task.To == "" {
		logger.Info("order has no email; milestone email skipped")
		return false
	}

	won, err := o.Claim(ctx, ref, flag)
	if err != nil {
		logger.WithError(err).Error("milestone claim failed")
		return false
	}
	if !won {
		logger.Debug("milestone email already claimed")
		return false
	}

	if err := o.enqueue(ctx, task); err != nil {
		logger.WithError(err).Error("failed to queue milestone email")
		return false
	}
	return true
}

func (o *Orderflow) enqueue(ctx context.Context, task EmailTask) error {
	if o.queue == nil {
		return fmt.Errorf("email queue is not configured")
	}
	return o.queue.EnqueueEmail(ctx, task)
}

// ProcessEmailTask renders and sends a queued milestone email.
// Payloads that can never render are not retried.
func (o *Orderflow) ProcessEmailTask(ctx context.Context, t *asynq.Task) error {
	ctx, span := tracer.Start(ctx, "ProcessEmailTask")
	defer span.End()

	var task EmailTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("unmarshal email task: %v: %w", err, asynq.SkipRetry)
	}
	msg, err := mailer.Render(task.Kind, task.Data)
	if err != nil {
		return fmt.Errorf("render %s email: %v: %w", task.Kind, err, asynq.SkipRetry)
	}
	msg.To = task.To

	if err := o.mailer.Send(ctx, msg); err != nil {
		span.RecordError(err)
		logrus.WithError(err).WithFields(logrus.Fields{
			"order_id": task.OrderID,
			"kind":     task.Kind,
		}).Warn("email delivery failed")
		return err
	}
	logrus.WithFields(logrus.Fields{
		"order_id": task.OrderID,
		"kind":     task.Kind,
	}).Info("email sent")
	return nil
}

// previewURL prefers the stored preview link and otherwise builds one from the job id.
func previewURL(order *model.Order, base string) string {
	if order.PreviewURL != "" {
		return order.PreviewURL
	}
	if base == "" || order.JobID == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(order.JobID)
}

func approvedAtDisplay(at *time.Time, loc *time.Location) string {
	if at == nil {
		return ""
	}
	return at.In(loc).Format(approvedAtLayout)
}

// orderTemplateData fills the template fields every milestone shares.
func orderTemplateData(order *model.Order) mailer.TemplateData {
	data := mailer.TemplateData{
		OrderID:        order.OrderID,
		JobID:          order.JobID,
		UserName:       order.UserName,
		ChildName:      order.Name,
		ShippingOption: order.ShippingOption,
		TrackingCode:   order.TrackingCode,
		TrackingURL:    mailer.TrackingLink(order.ShippingOption, order.TrackingCode),
	}
	cnf, err := config.Fetch()
	if err != nil {
		data.PreviewURL = order.PreviewURL
		return data
	}
	data.PreviewURL = previewURL(order, cnf.Email.PreviewBaseURL)
	data.FeedbackURL = cnf.Email.FeedbackURL
	data.ApprovedAt = approvedAtDisplay(order.ApprovedAt, cnf.Location())
	return data
}
