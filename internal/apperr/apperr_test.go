package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"classdoc-go/internal/apperr"

	"github.com/stretchr/testify/require"
)

func TestErrorMatchesSentinelOfItsKind(t *testing.T) {
	// given
	cause := errors.New("connection refused")
	err := fmt.Errorf("upload: %w", apperr.Wrap(apperr.KindIndexing, "Upload", cause, "process failed"))

	// then
	require.ErrorIs(t, err, apperr.ErrIndexing)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, apperr.ErrBlobWrite)
	require.Equal(t, apperr.KindIndexing, apperr.KindOf(err))
	require.Equal(t, "process failed", apperr.Message(err))
}

func TestMessageFallsBackToCause(t *testing.T) {
	err := apperr.Wrap(apperr.KindCatalog, "", errors.New("duplicate entry"), "")

	require.Equal(t, "duplicate entry", apperr.Message(err))
	require.Equal(t, "catalog: duplicate entry", err.Error())
	require.Equal(t, apperr.Kind(""), apperr.KindOf(errors.New("plain")))
}

func TestValidationFormatsDetail(t *testing.T) {
	err := apperr.Validation("Evaluate", "question is required (got %q)", " ")

	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Equal(t, `Evaluate: validation: question is required (got " ")`, err.Error())
}
