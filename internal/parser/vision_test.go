package parser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-ai/page-reader/internal/domain"
	"github.com/lectern-ai/page-reader/internal/observability"
)

type stubRasterizer struct {
	images []domain.PageImage
	err    error
}

func (s stubRasterizer) Rasterize(context.Context, []byte) ([]domain.PageImage, error) {
	return s.images, s.err
}

type stubModel struct {
	responses []string
	errs      []error
	calls     int
}

func (s *stubModel) Invoke(context.Context, []domain.ChatMessage) (string, error) {
	call := s.calls
	s.calls++
	if call < len(s.errs) && s.errs[call] != nil {
		return "", s.errs[call]
	}
	if call < len(s.responses) {
		return s.responses[call], nil
	}
	return s.responses[len(s.responses)-1], nil
}

func (s *stubModel) Stream(context.Context, []domain.ChatMessage) (<-chan domain.Fragment, error) {
	panic("not used")
}

type stubResolver struct {
	model domain.ChatModel
	err   error
	role  domain.Role
}

func (s *stubResolver) Resolve(_ context.Context, role domain.Role, _ int) (domain.ChatModel, error) {
	s.role = role
	return s.model, s.err
}

func newTestVision(rasterizer domain.Rasterizer, resolver domain.ModelResolver) (*Vision, *[]time.Duration) {
	v := NewVision(rasterizer, resolver, 4096, observability.NopLogger())
	slept := &[]time.Duration{}
	v.retry.Sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return v, slept
}

func onePage() []domain.PageImage {
	return []domain.PageImage{{PageNumber: 1, PNG: []byte("fake-png"), Width: 100, Height: 140}}
}

func TestVisionRetriesTransientErrorsWithBackoff(t *testing.T) {
	model := &stubModel{
		errs:      []error{domain.TransientError("rate limited", nil), domain.TransientError("rate limited", nil)},
		responses: []string{"", "", "  transcribed text  "},
	}
	resolver := &stubResolver{model: model}
	vision, slept := newTestVision(stubRasterizer{images: onePage()}, resolver)

	got, err := vision.ProduceText(context.Background(), []byte("%PDF-"))
	require.NoError(t, err)

	assert.Equal(t, "transcribed text", got)
	assert.Equal(t, 3, model.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
	assert.Equal(t, domain.RoleParsing, resolver.role)
}

func TestVisionAbortsImmediatelyOnRequestError(t *testing.T) {
	model := &stubModel{
		errs:      []error{domain.RequestError("malformed image payload", nil)},
		responses: []string{""},
	}
	vision, slept := newTestVision(stubRasterizer{images: onePage()}, &stubResolver{model: model})

	_, err := vision.ProduceText(context.Background(), []byte("%PDF-"))
	require.Error(t, err)

	assert.True(t, domain.IsRequest(err))
	assert.Equal(t, 1, model.calls)
	assert.Empty(t, *slept)
}

func TestVisionExhaustsRetriesAndFails(t *testing.T) {
	transient := domain.TransientError("rate limited", nil)
	model := &stubModel{errs: []error{transient, transient, transient}, responses: []string{""}}
	vision, _ := newTestVision(stubRasterizer{images: onePage()}, &stubResolver{model: model})

	_, err := vision.ProduceText(context.Background(), []byte("%PDF-"))
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	assert.Equal(t, 3, model.calls)
}

func TestVisionEmptyPageImageIsNotFatal(t *testing.T) {
	model := &stubModel{responses: []string{"whatever the model sees"}}
	empty := []domain.PageImage{{PageNumber: 1, PNG: nil}}
	vision, _ := newTestVision(stubRasterizer{images: empty}, &stubResolver{model: model})

	got, err := vision.ProduceText(context.Background(), []byte("%PDF-"))
	require.NoError(t, err)
	assert.Equal(t, "whatever the model sees", got)
	assert.Equal(t, 1, model.calls)
}

func TestVisionPropagatesRasterizationFailure(t *testing.T) {
	vision, _ := newTestVision(
		stubRasterizer{err: domain.ParseError("broken PDF", nil)},
		&stubResolver{model: &stubModel{responses: []string{""}}},
	)

	_, err := vision.ProduceText(context.Background(), []byte("not a pdf"))
	require.Error(t, err)
	assert.True(t, domain.IsParse(err))
}

func TestVisionUsesFirstPageOnly(t *testing.T) {
	model := &stubModel{responses: []string{"page one text"}}
	pages := []domain.PageImage{
		{PageNumber: 1, PNG: []byte("first")},
		{PageNumber: 2, PNG: []byte("second")},
	}
	vision, _ := newTestVision(stubRasterizer{images: pages}, &stubResolver{model: model})

	got, err := vision.ProduceText(context.Background(), []byte("%PDF-"))
	require.NoError(t, err)
	assert.Equal(t, "page one text", got)
	assert.Equal(t, 1, model.calls)
}
