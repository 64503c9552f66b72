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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"github.com/printwell/orderflow/internal/apierror"
	"github.com/printwell/orderflow/model"
)

const orderColumns = `id, order_id, COALESCE(job_id, ''), COALESCE(transaction_id, ''), paid, approved,
	COALESCE(print_status, ''), COALESCE(name, ''), COALESCE(user_name, ''), COALESCE(email, ''),
	COALESCE(book_style, ''), COALESCE(book_url, ''), COALESCE(cover_url, ''), COALESCE(preview_url, ''),
	COALESCE(page_count, 0), shipping_address, COALESCE(printer_reference, ''), COALESCE(tracking_code, ''),
	COALESCE(shipping_option, ''), COALESCE(courier_partner, ''), carrier_status, printer_event,
	processed_at, approved_at, print_sent_at, produced_at, shipped_at, delivered_at,
	COALESCE(shipped_email_sent, FALSE), COALESCE(production_email_sent, FALSE),
	COALESCE(feedback_email, FALSE), COALESCE(nudge_sent, FALSE), created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// refColumn maps an order reference onto its column. Only these names reach SQL.
func refColumn(kind model.RefKind) (string, error) {
	switch kind {
	case model.RefOrderID:
		return "order_id", nil
	case model.RefJobID:
		return "job_id", nil
	case model.RefTrackingCode:
		return "tracking_code", nil
	}
	return "", apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("unsupported order reference %q", kind), nil)
}

func scanOrder(row rowScanner) (*model.Order, error) {
	order := &model.Order{}
	var printStatus string
	var shippingAddress, carrierStatus, printerEvent []byte
	var processedAt, approvedAt, printSentAt, producedAt, shippedAt, deliveredAt sql.NullTime

	err := row.Scan(
		&order.ID, &order.OrderID, &order.JobID, &order.TransactionID, &order.Paid, &order.Approved,
		&printStatus, &order.Name, &order.UserName, &order.Email,
		&order.BookStyle, &order.BookURL, &order.CoverURL, &order.PreviewURL,
		&order.PageCount, &shippingAddress, &order.PrinterReference, &order.TrackingCode,
		&order.ShippingOption, &order.CourierPartner, &carrierStatus, &printerEvent,
		&processedAt, &approvedAt, &printSentAt, &producedAt, &shippedAt, &deliveredAt,
		&order.ShippedEmailSent, &order.ProductionEmailSent,
		&order.FeedbackEmail, &order.NudgeSent, &order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.PrintStatus = model.PrintStatus(printStatus)
	if len(shippingAddress) > 0 {
		if err := json.Unmarshal(shippingAddress, &order.ShippingAddress); err != nil {
			return nil, fmt.Errorf("failed to unmarshal shipping address: %w", err)
		}
	}
	if len(carrierStatus) > 0 {
		order.CarrierStatus = &model.CarrierStatus{}
		if err := json.Unmarshal(carrierStatus, order.CarrierStatus); err != nil {
			return nil, fmt.Errorf("failed to unmarshal carrier status: %w", err)
		}
	}
	if len(printerEvent) > 0 {
		order.PrinterEvent = json.RawMessage(printerEvent)
	}
	order.ProcessedAt = nullTime(processedAt)
	order.ApprovedAt = nullTime(approvedAt)
	order.PrintSentAt = nullTime(printSentAt)
	order.ProducedAt = nullTime(producedAt)
	order.ShippedAt = nullTime(shippedAt)
	order.DeliveredAt = nullTime(deliveredAt)
	return order, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (d Datasource) getOrderWhere(ctx context.Context, column, value string) (*model.Order, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE `+column+` = $1
		ORDER BY id
		LIMIT 1
	`, value)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("order with %s '%s' not found", column, value), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve order", err)
	}
	return order, nil
}

// GetOrder retrieves the first order matching ref.
func (d Datasource) GetOrder(ctx context.Context, ref model.OrderRef) (*model.Order, error) {
	ctx, span := otel.Tracer("Orders").Start(ctx, "Fetching order from db")
	defer span.End()

	column, err := refColumn(ref.Kind)
	if err != nil {
		return nil, err
	}
	return d.getOrderWhere(ctx, column, ref.Value)
}

// GetOrderByTransactionID retrieves the order whose payment link equals transactionID.
// When several orders share the id the oldest wins.
func (d Datasource) GetOrderByTransactionID(ctx context.Context, transactionID string) (*model.Order, error) {
	ctx, span := otel.Tracer("Orders").Start(ctx, "Fetching order by transaction id")
	defer span.End()

	return d.getOrderWhere(ctx, "transaction_id", transactionID)
}

// ScanOrderCursor returns up to limit rows with id greater than afterID in id order.
// Only the columns the reconciliation engine needs are read.
func (d Datasource) ScanOrderCursor(ctx context.Context, afterID int64, limit int) ([]model.OrderCursorRow, error) {
	ctx, span := otel.Tracer("Orders").Start(ctx, "Scanning order cursor")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, order_id, COALESCE(transaction_id, '')
		FROM orders
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan orders", err)
	}
	defer rows.Close()

	batch := make([]model.OrderCursorRow, 0, limit)
	for rows.Next() {
		var r model.OrderCursorRow
		if err := rows.Scan(&r.ID, &r.OrderID, &r.TransactionID); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan order row", err)
		}
		batch = append(batch, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan orders", err)
	}
	return batch, nil
}

// buildApplyQuery renders update as a single UPDATE over the first row matching column.
// The row is locked in the prev CTE so the status guard and the returned previous
// status describe the same version of the row.
func buildApplyQuery(column, value string, update model.OrderUpdate) (string, []interface{}, error) {
	args := []interface{}{value}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var sets []string
	if update.Status != nil {
		from := make([]string, len(update.AllowedFrom))
		for i, s := range update.AllowedFrom {
			from[i] = string(s)
		}
		guard := fmt.Sprintf("prev.print_status = ANY(%s::text[])", arg(pq.Array(from)))
		sets = append(sets, fmt.Sprintf("print_status = CASE WHEN %s THEN %s ELSE o.print_status END", guard, arg(string(*update.Status))))

		stamps := []struct {
			column string
			at     *time.Time
		}{
			{"print_sent_at", update.PrintSentAt},
			{"produced_at", update.ProducedAt},
			{"shipped_at", update.ShippedAt},
			{"delivered_at", update.DeliveredAt},
		}
		for _, s := range stamps {
			if s.at == nil {
				continue
			}
			sets = append(sets, fmt.Sprintf("%s = CASE WHEN %s THEN %s ELSE o.%s END", s.column, guard, arg(*s.at), s.column))
		}
	}

	fields := []struct {
		column string
		value  *string
	}{
		{"printer_reference", update.PrinterReference},
		{"tracking_code", update.TrackingCode},
		{"shipping_option", update.ShippingOption},
		{"courier_partner", update.CourierPartner},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", f.column, arg(*f.value)))
	}

	if update.CarrierStatus != nil {
		blob, err := json.Marshal(update.CarrierStatus)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, fmt.Sprintf("carrier_status = %s::jsonb", arg(string(blob))))
	}
	if len(update.PrinterEvent) > 0 {
		sets = append(sets, fmt.Sprintf("printer_event = %s::jsonb", arg(string(update.PrinterEvent))))
	}

	if len(sets) == 0 {
		return "", nil, apierror.NewAPIError(apierror.ErrInvalidInput, "empty order update", nil)
	}

	query := `
		WITH prev AS (
			SELECT id, COALESCE(print_status, '') AS print_status
			FROM orders
			WHERE ` + column + ` = $1
			ORDER BY id
			LIMIT 1
			FOR UPDATE
		)
		UPDATE orders AS o
		SET ` + strings.Join(sets, ",\n\t\t\t") + `
		FROM prev
		WHERE o.id = prev.id
		RETURNING o.order_id, COALESCE(o.job_id, ''), COALESCE(o.email, ''), COALESCE(o.name, ''),
			COALESCE(o.user_name, ''), prev.print_status, COALESCE(o.print_status, '')
	`
	return query, args, nil
}

// ApplyOrderUpdate applies update to the order matching ref in one statement.
// An update with no fields degrades to a read. A missing order yields a NOT_FOUND error.
func (d Datasource) ApplyOrderUpdate(ctx context.Context, ref model.OrderRef, update model.OrderUpdate) (*model.ApplyResult, error) {
	ctx, span := otel.Tracer("Orders").Start(ctx, "Applying order update")
	defer span.End()

	column, err := refColumn(ref.Kind)
	if err != nil {
		return nil, err
	}

	if update.Empty() {
		order, err := d.getOrderWhere(ctx, column, ref.Value)
		if err != nil {
			return nil, err
		}
		return &model.ApplyResult{
			OrderID:  order.OrderID,
			JobID:    order.JobID,
			Email:    order.Email,
			Name:     order.Name,
			UserName: order.UserName,
			Previous: order.PrintStatus,
			Current:  order.PrintStatus,
		}, nil
	}

	query, args, err := buildApplyQuery(column, ref.Value, update)
	if err != nil {
		return nil, err
	}

	result := &model.ApplyResult{}
	var previous, current string
	err = d.Conn.QueryRowContext(ctx, query, args...).Scan(
		&result.OrderID, &result.JobID, &result.Email, &result.Name,
		&result.UserName, &previous, &current,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("order with %s not found", ref), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to update order", err)
	}
	result.Previous = model.PrintStatus(previous)
	result.Current = model.PrintStatus(current)
	return result, nil
}

// ClaimFlag sets flag on the order matching ref if it is not already true.
// It returns true only for the single caller whose update flipped the flag.
// A missing order reports false, the same as an already claimed flag.
func (d Datasource) ClaimFlag(ctx context.Context, ref model.OrderRef, flag model.ClaimFlag) (bool, error) {
	ctx, span := otel.Tracer("Orders").Start(ctx, "Claiming order flag")
	defer span.End()

	if !flag.Valid() {
		return false, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("unknown claim flag %q", flag), nil)
	}
	column, err := refColumn(ref.Kind)
	if err != nil {
		return false, err
	}

	res, err := d.Conn.ExecContext(ctx, `
		UPDATE orders SET `+string(flag)+` = TRUE
		WHERE id = (SELECT id FROM orders WHERE `+column+` = $1 ORDER BY id LIMIT 1)
		AND `+string(flag)+` IS NOT TRUE
	`, ref.Value)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "failed to claim order flag", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "failed to claim order flag", err)
	}
	return affected == 1, nil
}
