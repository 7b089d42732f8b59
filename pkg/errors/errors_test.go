package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// New / Wrap
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal", errors.ErrCodeInternal, "unexpected failure"},
		{"registry", errors.ErrCodeRegistryUnavailable, "clinicaltrials.gov returned 503"},
		{"cohort", errors.ErrCodeCohortTooSmall, "phase PHASE4 has 3 protocols"},
		{"rate limit", errors.ErrCodeTooManyRequests, "too many requests"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)
			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.NotEmpty(t, ae.Stack)
		})
	}
}

func TestNewf_FormatsMessage(t *testing.T) {
	t.Parallel()

	ae := errors.Newf(errors.ErrCodeCohortTooSmall, "cohort %s has %d protocols", "PHASE2", 4)
	assert.Equal(t, "cohort PHASE2 has 4 protocols", ae.Message)
}

func TestError_Format(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeArtifactWrite, "write failed")
	assert.Equal(t, "[ART_001] write failed", ae.Error())

	withDetail := ae.WithDetail("key=dataset.json")
	assert.Equal(t, "[ART_001] write failed: key=dataset.json", withDetail.Error())
	assert.Empty(t, ae.Detail, "WithDetail must not mutate the receiver")
}

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.Wrap(nil, errors.ErrCodeInternal, "ignored"))
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	root := stderrors.New("connection reset")
	ae := errors.Wrap(root, errors.ErrCodeRegistryUnavailable, "fetch page")

	require.NotNil(t, ae)
	assert.True(t, stderrors.Is(ae, root))
	assert.Equal(t, root, stderrors.Unwrap(ae))
}

func TestWrap_UnknownCodePreservesOriginal(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeCorpusNotLoaded, "no dataset")
	outer := errors.Wrap(inner, errors.CodeUnknown, "benchmark")
	assert.Equal(t, errors.ErrCodeCorpusNotLoaded, outer.Code)
}

func TestWithCause_NilReceiver(t *testing.T) {
	t.Parallel()

	var ae *errors.AppError
	assert.Nil(t, ae.WithCause(stderrors.New("x")))
	assert.Nil(t, ae.WithDetail("x"))
}

// ─────────────────────────────────────────────────────────────────────────────
// Chain inspection
// ─────────────────────────────────────────────────────────────────────────────

func TestIsCode_TraversesFmtWrapping(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeRegistryRateLimited, "429")
	wrapped := fmt.Errorf("page 3: %w", ae)

	assert.True(t, errors.IsCode(wrapped, errors.ErrCodeRegistryRateLimited))
	assert.False(t, errors.IsCode(wrapped, errors.ErrCodeInternal))
	assert.False(t, errors.IsCode(nil, errors.ErrCodeInternal))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsNotFound(errors.NotFound("x")))
	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeCohortTooSmall, "x")))
	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeArtifactNotFound, "x")))
	assert.False(t, errors.IsNotFound(errors.Internal("x")))
	assert.False(t, errors.IsNotFound(stderrors.New("plain")))
}

func TestIsValidation(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsValidation(errors.InvalidParam("text is required")))
	assert.False(t, errors.IsValidation(errors.Internal("x")))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeTooManyRequests, errors.GetCode(errors.RateLimit("slow down")))
	assert.Equal(t, errors.ErrCodeServiceUnavailable, errors.GetCode(errors.Unavailable("down")))
}

// ─────────────────────────────────────────────────────────────────────────────
// Code catalogue
// ─────────────────────────────────────────────────────────────────────────────

func TestHTTPStatusOf(t *testing.T) {
	t.Parallel()

	cases := map[errors.ErrorCode]int{
		errors.ErrCodeBadRequest:          http.StatusBadRequest,
		errors.ErrCodeCohortTooSmall:      http.StatusNotFound,
		errors.ErrCodeCorpusNotLoaded:     http.StatusServiceUnavailable,
		errors.ErrCodeRegistryRateLimited: http.StatusTooManyRequests,
		errors.ErrCodeDocumentUnreadable:  http.StatusBadRequest,
		errors.ErrorCode("NOPE"):          http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, errors.HTTPStatusOf(code), string(code))
	}
	assert.Equal(t, http.StatusNotFound, errors.NotFound("x").HTTPStatus())
}

func TestEveryCodeHasMessage(t *testing.T) {
	t.Parallel()

	for code := range errors.ErrorCodeHTTPStatus {
		assert.NotEqual(t, "unknown error", errors.DefaultMessage(code), string(code))
	}
}
