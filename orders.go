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
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/internal/apierror"
	"github.com/printwell/orderflow/internal/mailer"
	"github.com/printwell/orderflow/internal/printvendor"
	"github.com/printwell/orderflow/model"
)

func approvalError(orderID string, step model.ApprovalStep, message string) model.ApprovalResult {
	return model.ApprovalResult{OrderID: orderID, Status: model.ApprovalError, Message: message, Step: step}
}

// ApproveForPrinting submits each order to the print vendor and moves it to
// sent_to_printer. Every order gets its own result row; one failure never
// stops the batch.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - orderIDs []string: The orders to submit.
//
// Returns:
// - []model.ApprovalResult: One row per order id, in request order.
func (o *Orderflow) ApproveForPrinting(ctx context.Context, orderIDs []string) []model.ApprovalResult {
	ctx, span := tracer.Start(ctx, "ApproveForPrinting")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		results := make([]model.ApprovalResult, 0, len(orderIDs))
		for _, id := range orderIDs {
			results = append(results, approvalError(id, model.StepDatabaseLookup, "configuration not loaded"))
		}
		return results
	}

	results := make([]model.ApprovalResult, 0, len(orderIDs))
	for _, id := range orderIDs {
		result := o.approveOne(ctx, cnf, strings.TrimSpace(id))
		logrus.WithFields(logrus.Fields{
			"order_id": result.OrderID,
			"status":   result.Status,
			"step":     result.Step,
		}).Info(result.Message)
		results = append(results, result)
	}
	return results
}

func (o *Orderflow) approveOne(ctx context.Context, cnf *config.Configuration, orderID string) model.ApprovalResult {
	if orderID == "" {
		return approvalError(orderID, model.StepDatabaseLookup, "order id is required")
	}

	order, err := o.datasource.GetOrder(ctx, model.ByOrderID(orderID))
	if err != nil {
		if apierror.HasCode(err, apierror.ErrNotFound) {
			return approvalError(orderID, model.StepDatabaseLookup, "Order not found")
		}
		return approvalError(orderID, model.StepDatabaseLookup, err.Error())
	}

	if !order.Paid {
		return approvalError(orderID, model.StepPrecondition, "Order is not paid")
	}
	if order.PrintStatus != model.PrintStatusUnset {
		return model.ApprovalResult{
			OrderID:          orderID,
			Status:           model.ApprovalSkipped,
			Message:          fmt.Sprintf("Order already has print status %q", order.PrintStatus),
			Step:             model.StepPrecondition,
			PrinterReference: order.PrinterReference,
		}
	}

	request, err := o.buildPrintOrder(ctx, cnf, order)
	if err != nil {
		return approvalError(orderID, model.StepArtifacts, err.Error())
	}

	response, err := o.vendor.SubmitOrder(ctx, request)
	if err != nil {
		var rejected *printvendor.RejectedError
		if errors.As(err, &rejected) {
			return approvalError(orderID, model.StepPrintVendorAPI, rejected.Message)
		}
		return approvalError(orderID, model.StepPrintVendorAPI, err.Error())
	}

	update, err := model.NewTransitionUpdate(model.EventSubmittedToPrinter, o.clock())
	if err != nil {
		return approvalError(orderID, model.StepStatusUpdate, err.Error())
	}
	update.PrinterReference = &response.Reference

	applied, err := o.datasource.ApplyOrderUpdate(ctx, model.ByOrderID(orderID), update)
	if err != nil {
		res := approvalError(orderID, model.StepStatusUpdate, "Sent to printer but status update failed: "+err.Error())
		res.PrinterReference = response.Reference
		return res
	}
	if applied.Current != model.PrintStatusSentToPrinter {
		res := approvalError(orderID, model.StepStatusUpdate,
			fmt.Sprintf("Sent to printer but order moved to %q concurrently", applied.Current))
		res.PrinterReference = response.Reference
		return res
	}

	data := orderTemplateData(order)
	o.dispatchMilestone(ctx, model.ByOrderID(orderID), model.ClaimProductionEmail, EmailTask{
		Kind:    mailer.KindProduction,
		OrderID: orderID,
		To:      order.Email,
		Data:    data,
	})

	return model.ApprovalResult{
		OrderID:          orderID,
		Status:           model.ApprovalSuccess,
		Message:          "Successfully sent to printer",
		Step:             model.StepCompleted,
		PrinterReference: response.Reference,
	}
}

// buildPrintOrder downloads both print files to checksum them and assembles
// the vendor's order document.
func (o *Orderflow) buildPrintOrder(ctx context.Context, cnf *config.Configuration, order *model.Order) (printvendor.OrderRequest, error) {
	if order.CoverURL == "" || order.BookURL == "" {
		return printvendor.OrderRequest{}, errors.New("order is missing cover_url or book_url")
	}
	coverSum, err := o.vendor.Checksum(ctx, order.CoverURL)
	if err != nil {
		return printvendor.OrderRequest{}, errors.Wrap(err, "cover")
	}
	bookSum, err := o.vendor.Checksum(ctx, order.BookURL)
	if err != nil {
		return printvendor.OrderRequest{}, errors.Wrap(err, "interior")
	}

	pages := order.PageCount
	if pages <= 0 {
		pages = cnf.PrintVendor.DefaultPageCount
	}
	if pages <= 0 {
		pages = config.DefaultPageCount
	}
	shippingLevel := cnf.PrintVendor.ShippingLevel
	if shippingLevel == "" {
		shippingLevel = config.DefaultShippingLevel
	}

	name := order.Name
	if name == "" {
		name = "Book"
	}
	reference, product := printvendor.Product(order.BookStyle)
	addr := order.ShippingAddress
	first, last := printvendor.SplitFullName(addr.Name)

	return printvendor.OrderRequest{
		Reference: order.OrderID,
		Email:     cnf.PrintVendor.ContactEmail,
		Addresses: []printvendor.Address{{
			Type:      "delivery",
			FirstName: first,
			LastName:  last,
			Street1:   addr.Address1,
			Street2:   addr.Address2,
			Zip:       addr.Zip,
			City:      addr.City,
			State:     addr.Province,
			Country:   printvendor.CountryCode(addr.Country),
			Email:     order.Email,
			Phone:     addr.Phone,
		}},
		Items: []printvendor.Item{{
			Reference:     reference,
			Product:       product,
			ShippingLevel: shippingLevel,
			Title:         order.OrderID + "_" + name,
			Count:         "1",
			Files: []printvendor.File{
				{Type: "cover", URL: order.CoverURL, MD5Sum: coverSum},
				{Type: "book", URL: order.BookURL, MD5Sum: bookSum},
			},
			Options: []printvendor.Option{
				{Type: "total_pages", Count: strconv.Itoa(pages)},
			},
		}},
	}, nil
}

// SendFeedbackEmail queues the feedback request for the order with jobID.
// The email goes out at most once per order.
func (o *Orderflow) SendFeedbackEmail(ctx context.Context, jobID string) error {
	ctx, span := tracer.Start(ctx, "SendFeedbackEmail")
	defer span.End()

	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return apierror.NewAPIError(apierror.ErrBadRequest, "job id is required", nil)
	}
	order, err := o.datasource.GetOrder(ctx, model.ByJobID(jobID))
	if err != nil {
		return err
	}
	if order.Email == "" {
		return apierror.NewAPIError(apierror.ErrBadRequest, "order has no email address", nil)
	}
	return o.sendOnce(ctx, order, model.ByJobID(jobID), model.ClaimFeedbackEmail, mailer.KindFeedback,
		"feedback email already sent")
}

// SendNudge reminds the customer that their preview is waiting for approval.
func (o *Orderflow) SendNudge(ctx context.Context, orderID string) error {
	ctx, span := tracer.Start(ctx, "SendNudge")
	defer span.End()

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return apierror.NewAPIError(apierror.ErrBadRequest, "order id is required", nil)
	}
	order, err := o.datasource.GetOrder(ctx, model.ByOrderID(orderID))
	if err != nil {
		return err
	}
	if order.Approved || order.PrintStatus != model.PrintStatusUnset {
		return apierror.NewAPIError(apierror.ErrConflict, "order is already approved", nil)
	}
	if order.Email == "" {
		return apierror.NewAPIError(apierror.ErrBadRequest, "order has no email address", nil)
	}
	return o.sendOnce(ctx, order, model.ByOrderID(orderID), model.ClaimNudge, mailer.KindNudge,
		"reminder already sent")
}

func (o *Orderflow) sendOnce(ctx context.Context, order *model.Order, ref model.OrderRef, flag model.ClaimFlag, kind mailer.Kind, conflict string) error {
	won, err := o.Claim(ctx, ref, flag)
	if err != nil {
		return err
	}
	if !won {
		return apierror.NewAPIError(apierror.ErrConflict, conflict, nil)
	}
	task := EmailTask{
		Kind:    kind,
		OrderID: order.OrderID,
		To:      order.Email,
		Data:    orderTemplateData(order),
	}
	if err := o.enqueue(ctx, task); err != nil {
		logrus.WithError(err).WithField("order_id", order.OrderID).Error("failed to queue email")
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to queue email", err)
	}
	return nil
}
