package errclass_test

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfidattend/internal/errclass"
)

func TestError_Message(t *testing.T) {
	assert.Equal(t, "E_NOT_FOUND", errclass.ErrNotFound.Error())
	assert.Equal(t, "E_NOT_FOUND: tag X", errclass.ErrNotFound.WithMessage("tag X").Error())
	assert.Equal(t, "E_INVALID_DATE: month 13", errclass.ErrInvalidDate.WithMessagef("month %d", 13).Error())
}

func TestError_IsMatchesCodeOnly(t *testing.T) {
	err := errclass.ErrAlreadyExists.WithMessage("dup")
	require.ErrorIs(t, err, errclass.ErrAlreadyExists)
	require.False(t, errors.Is(err, errclass.ErrNotFound))
	assert.Empty(t, errclass.ErrAlreadyExists.Message, "base class must stay untouched")
}

func TestPersistence_WrapsBoth(t *testing.T) {
	err := errclass.Persistence("save ledger", io.ErrShortWrite)
	require.ErrorIs(t, err, errclass.ErrPersistence)
	require.ErrorIs(t, err, io.ErrShortWrite)
	assert.Contains(t, err.Error(), "save ledger")
}
