package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"nyumbani/rental/internal/models"
	"nyumbani/rental/internal/services"
	"nyumbani/rental/internal/utils"
)

// MockInquiryService
type MockInquiryService struct {
	mock.Mock
}

func (m *MockInquiryService) Create(ctx context.Context, actor models.Actor, in services.CreateInquiryInput) (*models.Inquiry, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) GetByID(ctx context.Context, actor models.Actor, inquiryID utils.SixID) (*models.Inquiry, error) {
	args := m.Called(ctx, actor, inquiryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) List(ctx context.Context, actor models.Actor, filter services.InquiryFilter, page, limit int, sort string) ([]models.Inquiry, int64, error) {
	args := m.Called(ctx, actor, filter, page, limit, sort)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Inquiry), args.Get(1).(int64), args.Error(2)
}

func (m *MockInquiryService) Reply(ctx context.Context, actor models.Actor, inquiryID utils.SixID, message string) (*models.Inquiry, error) {
	args := m.Called(ctx, actor, inquiryID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) ScheduleViewing(ctx context.Context, actor models.Actor, inquiryID utils.SixID, in services.ScheduleViewingInput) (*models.Inquiry, error) {
	args := m.Called(ctx, actor, inquiryID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) ConfirmViewing(ctx context.Context, actor models.Actor, inquiryID utils.SixID) (*models.Inquiry, error) {
	args := m.Called(ctx, actor, inquiryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) SetStatus(ctx context.Context, actor models.Actor, inquiryID utils.SixID, status models.InquiryStatus) (*models.Inquiry, error) {
	args := m.Called(ctx, actor, inquiryID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
