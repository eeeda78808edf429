package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/target/eligibility-api/internal/domain/model"
	"github.com/target/eligibility-api/internal/mocks"
)

func TestAuditService_Record(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(repo, nil)

	repo.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, e *model.AuditEntry) error {
			assert.NoError(t, ctx.Err())
			assert.Equal(t, "/v1/eligibility/check", e.Route)
			assert.JSONEq(t, `{"naics":"541511"}`, string(e.Payload))
			assert.JSONEq(t, `{"eligible":true}`, string(e.Response))
			return nil
		})

	// A cancelled request context must not prevent the write.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Record(ctx, "/v1/eligibility/check", map[string]string{"naics": "541511"}, map[string]bool{"eligible": true})
}

func TestAuditService_RecordSwallowsFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(repo, nil)

	repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	svc.Record(context.Background(), "/v1/eligibility/check", struct{}{}, struct{}{})

	// Unencodable payloads never reach the repository.
	svc.Record(context.Background(), "/v1/eligibility/check", make(chan int), struct{}{})
}

func TestAuditService_NilIsNoop(t *testing.T) {
	var svc *AuditService
	assert.Nil(t, NewAuditService(nil, nil))
	svc.Record(context.Background(), "/x", nil, nil)
}
