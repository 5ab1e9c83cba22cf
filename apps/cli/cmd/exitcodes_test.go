package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitErrorCarriesCode(t *testing.T) {
	underlying := fmt.Errorf("bad config")
	err := fmt.Errorf("run: %w", &exitError{code: ExitConfigError, err: underlying})

	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, ExitConfigError, ee.code)
	assert.Equal(t, "bad config", ee.Error())
	assert.ErrorIs(t, err, underlying)
}

func TestExitErrorWithoutCause(t *testing.T) {
	err := &exitError{code: ExitTestFailure}
	assert.Equal(t, "exit status 1", err.Error())
	assert.Nil(t, err.Unwrap())
}
