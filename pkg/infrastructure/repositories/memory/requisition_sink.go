package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

// RequisitionSink numbers requisitions sequentially and keeps them for inspection
type RequisitionSink struct {
	mu      sync.Mutex
	created []entities.PurchaseRequisition
}

func NewRequisitionSink() *RequisitionSink {
	return &RequisitionSink{}
}

var _ repositories.RequisitionSink = (*RequisitionSink)(nil)

func (s *RequisitionSink) Create(_ context.Context, req entities.PurchaseRequisition) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.created = append(s.created, req)
	return fmt.Sprintf("PR-%06d", len(s.created)), nil
}

// Created returns everything handed to the sink so far
func (s *RequisitionSink) Created() []entities.PurchaseRequisition {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]entities.PurchaseRequisition(nil), s.created...)
}
