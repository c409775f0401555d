//go:build !cgo || !unix

package ffi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Unsupported(t *testing.T) {
	lib, err := Open("/plugins/libanything.so")
	assert.Nil(t, lib)
	assert.ErrorIs(t, err, ErrUnsupported)

	var oe *OpenError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "/plugins/libanything.so", oe.Path)
	assert.Contains(t, oe.Error(), ErrUnsupported.Error())
}
