/*
Copyright 2025 WagerOps Authors.

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
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/wagerops/p2pqueue"
	"github.com/wagerops/p2pqueue/model"
)

// SubmitQueueItem is the ingress payload for a new withdrawal or deposit.
type SubmitQueueItem struct {
	Kind           string                 `json:"kind"`
	CustomerID     string                 `json:"customer_id"`
	Amount         float64                `json:"amount"`
	PaymentType    string                 `json:"payment_type"`
	PaymentDetails map[string]interface{} `json:"payment_details"`
	Priority       int                    `json:"priority"`
}

func (s *SubmitQueueItem) ValidateSubmitQueueItem() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Kind, validation.Required, validation.In(string(model.KindWithdrawal), string(model.KindDeposit))),
		validation.Field(&s.CustomerID, validation.Required),
		validation.Field(&s.Amount, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&s.PaymentType, validation.Required),
		validation.Field(&s.Priority, validation.By(priorityValidation(s))),
	)
}

func priorityValidation(s *SubmitQueueItem) validation.RuleFunc {
	return func(value interface{}) error {
		if s.Priority == 0 {
			return nil // defaulted by the engine
		}
		if !model.Priority(s.Priority).Valid() {
			return errors.New("priority must be between 1 (low) and 5 (critical)")
		}
		return nil
	}
}

// ToSubmitRequest converts the payload into an engine submission.
func (s *SubmitQueueItem) ToSubmitRequest() *p2pqueue.SubmitRequest {
	return &p2pqueue.SubmitRequest{
		Kind:           model.ItemKind(s.Kind),
		CustomerID:     s.CustomerID,
		Amount:         decimal.NewFromFloat(s.Amount),
		PaymentType:    s.PaymentType,
		PaymentDetails: s.PaymentDetails,
		Priority:       model.Priority(s.Priority),
	}
}

// SettlementResult is posted by the settlement service once it has processed
// a match.
type SettlementResult struct {
	Settled *bool  `json:"settled"`
	Reason  string `json:"reason"`
}

func (r *SettlementResult) ValidateSettlementResult() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Settled, validation.NotNil),
	)
}
