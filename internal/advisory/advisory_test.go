package advisory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/observability/metrics"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordRequest(service, status string, d time.Duration) {
	m.Called(service, status, d)
}

func TestDiseaseInfo_SendsPromptAndReturnsText(t *testing.T) {
	gen := &mockGenerator{}
	want := "Provide comprehensive details about Tomato___Late_blight. Include introduction, causes, " +
		"prevention methods, danger level, recommended pesticides, and any images if available."
	gen.On("Generate", mock.Anything, want).Return("Late blight is caused by...", nil).Once()

	rec := &mockRecorder{}
	rec.On("RecordRequest", metrics.ServiceGemini, metrics.StatusSuccess, mock.AnythingOfType("time.Duration")).Once()

	s := NewService(gen, time.Second, rec)
	text, err := s.DiseaseInfo(t.Context(), "Tomato___Late_blight")
	require.NoError(t, err)
	assert.Equal(t, "Late blight is caused by...", text)

	gen.AssertExpectations(t)
	rec.AssertExpectations(t)
}

func TestDiseaseInfo_EmptyNameIsValidationError(t *testing.T) {
	s := NewService(&mockGenerator{}, time.Second, nil)
	_, err := s.DiseaseInfo(t.Context(), "  ")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestHealthyAdvice_UsesFixedPrompt(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything,
		"My crop is healthy. How can I ensure it remains healthy and prevent diseases?").
		Return("Rotate crops.", nil).Once()

	s := NewService(gen, 0, nil)
	text, err := s.HealthyAdvice(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "Rotate crops.", text)
	gen.AssertExpectations(t)
}

func TestChat_PrefixesSystemPreamble(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return p == SystemPreamble+"\nUser: When should I sow wheat?"
	})).Return("In November.", nil).Once()

	s := NewService(gen, time.Second, nil)
	text, err := s.Chat(t.Context(), "When should I sow wheat?")
	require.NoError(t, err)
	assert.Equal(t, "In November.", text)
	gen.AssertExpectations(t)
}

func TestChat_EmptyPromptIsValidationError(t *testing.T) {
	gen := &mockGenerator{}
	s := NewService(gen, time.Second, nil)

	_, err := s.Chat(t.Context(), "")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerate_UpstreamFailure(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("", fmt.Errorf("quota exceeded")).Once()

	rec := &mockRecorder{}
	rec.On("RecordRequest", metrics.ServiceGemini, metrics.StatusError, mock.AnythingOfType("time.Duration")).Once()

	s := NewService(gen, time.Second, rec)
	_, err := s.HealthyAdvice(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryUpstream))
	assert.Contains(t, err.Error(), "quota exceeded")
	rec.AssertExpectations(t)
}

func TestGenerate_TimeoutIsApplied(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
		}).
		Return("", context.DeadlineExceeded).Once()

	s := NewService(gen, 20*time.Millisecond, nil)
	_, err := s.HealthyAdvice(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))
}

func TestGenerate_NotConfigured(t *testing.T) {
	s := NewService(nil, time.Second, nil)
	_, err := s.Chat(t.Context(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.True(t, errors.IsCategory(err, errors.CategoryUpstream))
}

func TestRecommendedStoreType_HealthySkipsModel(t *testing.T) {
	gen := &mockGenerator{}
	s := NewService(gen, time.Second, nil)

	store, err := s.RecommendedStoreType(t.Context(), "Apple___healthy")
	require.NoError(t, err)
	assert.Equal(t, DefaultStoreType, store)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRecommendedStoreType_ParsesAnswer(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return assert.Contains(t, p, "Tomato - Early blight")
	})).Return("\n**Pesticide Store.**\nThey sell fungicides.", nil).Once()

	s := NewService(gen, time.Second, nil)
	store, err := s.RecommendedStoreType(t.Context(), "Tomato___Early_blight")
	require.NoError(t, err)
	assert.Equal(t, "pesticide store", store)
}

func TestParseStoreType(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{"plain", "fertilizer store", "fertilizer store"},
		{"quoted", "\"Pesticide shop\"", "pesticide shop"},
		{"list marker", "- agro chemical dealer\n- nursery", "agro chemical dealer"},
		{"empty", "", DefaultStoreType},
		{"whitespace only", "  \n\t\n", DefaultStoreType},
		{"too long", "You should visit a store that sells a wide range of fungicides and other crop protection products", DefaultStoreType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseStoreType(tt.answer))
		})
	}
}

func TestResponseText(t *testing.T) {
	t.Run("joins text parts", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("Hello, "), genai.Text("farmer")}},
			}},
		}
		text, err := responseText(resp)
		require.NoError(t, err)
		assert.Equal(t, "Hello, farmer", text)
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := responseText(&genai.GenerateContentResponse{})
		assert.Error(t, err)
	})

	t.Run("blocked prompt", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety},
		}
		_, err := responseText(resp)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "blocked")
	})

	t.Run("candidate without text", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{}}},
		}
		_, err := responseText(resp)
		assert.Error(t, err)
	})
}

func TestNewGeminiGenerator_RequiresKey(t *testing.T) {
	_, err := NewGeminiGenerator(t.Context(), "", "gemini-2.0-flash-exp")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
