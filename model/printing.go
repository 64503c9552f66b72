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

// ApprovalStep names where approve-for-printing stopped for an order.
type ApprovalStep string

const (
	StepDatabaseLookup ApprovalStep = "database_lookup"
	StepPrecondition   ApprovalStep = "precondition"
	StepArtifacts      ApprovalStep = "artifacts"
	StepPrintVendorAPI ApprovalStep = "print_vendor_api"
	StepStatusUpdate   ApprovalStep = "status_update"
	StepCompleted      ApprovalStep = "completed"
)

// ApprovalResult is the per-order outcome of an approve-for-printing batch.
type ApprovalResult struct {
	OrderID          string       `json:"order_id"`
	Status           string       `json:"status"`
	Message          string       `json:"message"`
	Step             ApprovalStep `json:"step"`
	PrinterReference string       `json:"printer_reference,omitempty"`
}

const (
	ApprovalSuccess = "success"
	ApprovalError   = "error"
	ApprovalSkipped = "skipped"
)
