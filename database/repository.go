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

	"github.com/printwell/orderflow/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	orders // Interface for order-related operations
	claims // Interface for one-shot side effect flags
}

// orders defines methods for reading and mutating orders.
type orders interface {
	GetOrder(ctx context.Context, ref model.OrderRef) (*model.Order, error)                                         // Retrieves an order by one of its external keys
	GetOrderByTransactionID(ctx context.Context, transactionID string) (*model.Order, error)                        // Retrieves the order linked to a gateway payment id
	ScanOrderCursor(ctx context.Context, afterID int64, limit int) ([]model.OrderCursorRow, error)                  // Scans order ids and payment links in primary key order
	ApplyOrderUpdate(ctx context.Context, ref model.OrderRef, update model.OrderUpdate) (*model.ApplyResult, error) // Applies a partial, status guarded update in one statement
}

// claims defines the idempotent side-effect claimer.
type claims interface {
	ClaimFlag(ctx context.Context, ref model.OrderRef, flag model.ClaimFlag) (bool, error) // Flips a one-shot flag from not-true to true, reporting whether this call won
}
