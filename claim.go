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

	"github.com/sirupsen/logrus"

	"github.com/printwell/orderflow/model"
)

// Claim flips a one-shot flag on the order and reports whether this call won.
// It is a single conditional update; callers dispatch the side effect only on true.
func (o *Orderflow) Claim(ctx context.Context, ref model.OrderRef, flag model.ClaimFlag) (bool, error) {
	ctx, span := tracer.Start(ctx, "Claim")
	defer span.End()

	won, err := o.datasource.ClaimFlag(ctx, ref, flag)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	logrus.WithFields(logrus.Fields{
		"order_ref": ref.String(),
		"flag":      string(flag),
		"won":       won,
	}).Debug("claim attempted")
	return won, nil
}
