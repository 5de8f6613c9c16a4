package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/perlindqvist/tolka/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	ret := m.Called(ctx, system, prompt)
	return ret.String(0), ret.Error(1)
}

func testConfig() Config {
	return Config{
		TargetLang:   "Swedish",
		SourceALabel: "Ukrainian",
		SourceBLabel: "English",
		BasePrompt:   "You are a drama script translator.",
		Retry:        retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
}

func TestTranslateOnePromptShape(t *testing.T) {
	llmMock := &MockLLM{}
	e := New(llmMock, testConfig())

	llmMock.On("Complete", mock.Anything,
		mock.MatchedBy(func(system string) bool {
			return containsAll(system,
				"You are a drama script translator.",
				"Episode synopsis (if any):\n(none)",
				"Recent speakers:")
		}),
		mock.MatchedBy(func(user string) bool {
			return containsAll(user,
				"into Swedish",
				"Character: Ann",
				"Ukrainian: Привіт",
				"English: (empty)")
		}),
	).Return("  Hej  \n", nil).Once()

	out, err := e.TranslateOne(context.Background(),
		Item{Speaker: "Ann", SourceA: "Привіт"},
		"Recent speakers:\n- Ann", "")
	require.NoError(t, err)
	assert.Equal(t, "Hej", out)
	llmMock.AssertExpectations(t)
}

func TestTranslateOneRetriesTransportErrors(t *testing.T) {
	llmMock := &MockLLM{}
	e := New(llmMock, testConfig())

	llmMock.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("timeout")).Twice()
	llmMock.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("Hej", nil).Once()

	out, err := e.TranslateOne(context.Background(), Item{SourceB: "Hi"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Hej", out)
	llmMock.AssertExpectations(t)
}

func TestTranslateOneExhaustsRetries(t *testing.T) {
	llmMock := &MockLLM{}
	e := New(llmMock, testConfig())

	llmMock.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("unreachable")).Times(3)

	_, err := e.TranslateOne(context.Background(), Item{SourceB: "Hi"}, "", "")
	require.Error(t, err)
	llmMock.AssertExpectations(t)
}

func TestTranslateBatchNumberedResponse(t *testing.T) {
	llmMock := &MockLLM{}
	e := New(llmMock, testConfig())

	llmMock.On("Complete", mock.Anything, mock.Anything,
		mock.MatchedBy(func(user string) bool {
			return containsAll(user,
				"Translate the following 3 lines into Swedish.",
				"1) Character: Ann / Ukrainian: Один / English: One",
				"2) Character: (unknown) / Ukrainian: Два / English: (empty)",
				"3) ")
		}),
	).Return("1) Ett\n2) Två\n3) Tre", nil).Once()

	items := []Item{
		{Speaker: "Ann", SourceA: "Один", SourceB: "One"},
		{SourceA: "Два"},
		{SourceA: "Три", SourceB: "Three"},
	}
	out, err := e.TranslateBatch(context.Background(), items, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ett", "Två", "Tre"}, out)
	llmMock.AssertExpectations(t)
}

func TestTranslateBatchRetriesParseFailures(t *testing.T) {
	llmMock := &MockLLM{}
	e := New(llmMock, testConfig())

	// Unparseable for 2 expected items: one block, one line.
	llmMock.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("garbled", nil).Times(3)

	items := []Item{{SourceA: "a"}, {SourceA: "b"}}
	_, err := e.TranslateBatch(context.Background(), items, "", "")
	assert.ErrorIs(t, err, ErrBatchParse)
	llmMock.AssertExpectations(t)
}

func TestTranslateBatchOfOneUsesSingleMode(t *testing.T) {
	llmMock := &MockLLM{}
	e := New(llmMock, testConfig())

	llmMock.On("Complete", mock.Anything, mock.Anything,
		mock.MatchedBy(func(user string) bool {
			return containsAll(user, "Translate the following line into Swedish.")
		}),
	).Return("Hej", nil).Once()

	out, err := e.TranslateBatch(context.Background(), []Item{{SourceA: "Привіт"}}, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hej"}, out)
	llmMock.AssertExpectations(t)
}

func TestTranslateBatchEmpty(t *testing.T) {
	e := New(&MockLLM{}, testConfig())
	out, err := e.TranslateBatch(context.Background(), nil, "", "")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
