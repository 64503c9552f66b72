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
package mocks

import (
	"context"

	"github.com/printwell/orderflow/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Order methods

func (m *MockDataSource) GetOrder(ctx context.Context, ref model.OrderRef) (*model.Order, error) {
	args := m.Called(ctx, ref)
	order, _ := args.Get(0).(*model.Order)
	return order, args.Error(1)
}

func (m *MockDataSource) GetOrderByTransactionID(ctx context.Context, transactionID string) (*model.Order, error) {
	args := m.Called(ctx, transactionID)
	order, _ := args.Get(0).(*model.Order)
	return order, args.Error(1)
}

func (m *MockDataSource) ScanOrderCursor(ctx context.Context, afterID int64, limit int) ([]model.OrderCursorRow, error) {
	args := m.Called(ctx, afterID, limit)
	rows, _ := args.Get(0).([]model.OrderCursorRow)
	return rows, args.Error(1)
}

func (m *MockDataSource) ApplyOrderUpdate(ctx context.Context, ref model.OrderRef, update model.OrderUpdate) (*model.ApplyResult, error) {
	args := m.Called(ctx, ref, update)
	result, _ := args.Get(0).(*model.ApplyResult)
	return result, args.Error(1)
}

// Claim methods

func (m *MockDataSource) ClaimFlag(ctx context.Context, ref model.OrderRef, flag model.ClaimFlag) (bool, error) {
	args := m.Called(ctx, ref, flag)
	return args.Bool(0), args.Error(1)
}
