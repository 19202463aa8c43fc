package faults

import (
	stderrors "errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
		code string
	}{
		{"invalid path", InvalidPath("../x.zip", "/data"), IsInvalidPath, "INVALID_PATH"},
		{"io failure", IOFailure(fs.ErrPermission, "open", "a.zip"), IsIOFailure, "IO_FAILURE"},
		{"not found", NotFound("archive %s", "a.zip"), IsNotFound, "NOT_FOUND"},
		{"invalid input", InvalidInput("count must be positive"), IsInvalidInput, "INVALID_INPUT"},
		{"config", Config("cache size %d", 0), IsConfig, "INVALID_CONFIGURATION"},
		{"wrapped config", WrapConfig(fs.ErrNotExist, "missing root"), IsConfig, "INVALID_CONFIGURATION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.is(tt.err))
			assert.Equal(t, tt.code, Code(tt.err))
		})
	}
}

func TestIOFailureKeepsCause(t *testing.T) {
	err := IOFailure(fs.ErrPermission, "open", "a.zip")
	assert.True(t, stderrors.Is(err, fs.ErrPermission))
	assert.Contains(t, err.Error(), "open failed for a.zip")
}

func TestNilWrapping(t *testing.T) {
	assert.NoError(t, IOFailure(nil, "open", "a.zip"))
	assert.NoError(t, WrapConfig(nil, "x"))
	assert.False(t, IsIOFailure(nil))
}
