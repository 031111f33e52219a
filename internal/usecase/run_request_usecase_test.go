package usecase_test

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	pkgerrors "github.com/landscape-rescale/internal/pkg/errors"
	"github.com/landscape-rescale/internal/usecase"
	"github.com/landscape-rescale/internal/usecase/dto"
)

func TestRunRequestUseCase_Submit(t *testing.T) {
	ctx := context.Background()
	streams := &MockStreamRepository{}
	uc := usecase.NewRunRequestUseCase(streams, zap.NewNop())

	var published domain.RescaleRequestEvent
	streams.On("PublishToStream", ctx, domain.StreamRescaleRequest, mock.AnythingOfType("domain.RescaleRequestEvent")).
		Run(func(args mock.Arguments) {
			published = args.Get(2).(domain.RescaleRequestEvent)
		}).
		Return(nil).Once()

	resp, err := uc.Submit(ctx, dto.SubmitRunRequest{Indicators: []string{"acacia", "triodia", "acacia"}})
	require.NoError(t, err)

	assert.Equal(t, usecase.RunStatusQueued, resp.Status)
	assert.Equal(t, 2, resp.Indicators)
	assert.Equal(t, published.RunID.String(), resp.RunID)
	assert.NotEqual(t, uuid.Nil, published.RunID)
	assert.Equal(t, []string{"acacia", "triodia"}, published.Indicators)
	streams.AssertExpectations(t)
}

func TestRunRequestUseCase_SubmitValidation(t *testing.T) {
	tooMany := make([]string, 501)
	for i := range tooMany {
		tooMany[i] = "ind" + strings.Repeat("x", i%5)
	}

	tests := []struct {
		name       string
		indicators []string
	}{
		{name: "empty", indicators: nil},
		{name: "blank name", indicators: []string{"acacia", ""}},
		{name: "path traversal", indicators: []string{"../secret"}},
		{name: "too many", indicators: tooMany},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			streams := &MockStreamRepository{}
			uc := usecase.NewRunRequestUseCase(streams, zap.NewNop())

			_, err := uc.Submit(context.Background(), dto.SubmitRunRequest{Indicators: tt.indicators})
			assert.ErrorIs(t, err, pkgerrors.ErrInvalidRequest)
			streams.AssertNotCalled(t, "PublishToStream", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRunRequestUseCase_PublishFailure(t *testing.T) {
	streams := &MockStreamRepository{}
	uc := usecase.NewRunRequestUseCase(streams, zap.NewNop())

	streams.On("PublishToStream", mock.Anything, mock.Anything, mock.Anything).Return(stderrors.New("redis down"))

	_, err := uc.Submit(context.Background(), dto.SubmitRunRequest{Indicators: []string{"acacia"}})
	assert.ErrorIs(t, err, pkgerrors.ErrStreamError)
}
