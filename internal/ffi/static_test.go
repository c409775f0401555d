package ffi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo() Handler {
	return HandlerFunc(func(req []byte) ([]byte, error) {
		return append([]byte("echo:"), req...), nil
	})
}

func TestStatic_CreateCallDestroy(t *testing.T) {
	lib := NewStatic("builtin:echo", echo)
	assert.Equal(t, "builtin:echo", lib.Path())

	inst, err := lib.Create()
	require.NoError(t, err)
	assert.NotZero(t, inst)

	out, err := lib.Call(inst, []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, []byte("echo:hi"), out)

	lib.Destroy(inst)
	assert.Equal(t, []Instance{inst}, lib.Destroyed())

	_, err = lib.Call(inst, []byte("hi"))
	var ce *CallError
	require.ErrorAs(t, err, &ce)
}

func TestStatic_CallCopiesBuffers(t *testing.T) {
	var seen []byte
	lib := NewStatic("builtin:keep", func() Handler {
		return HandlerFunc(func(req []byte) ([]byte, error) {
			seen = req
			return req, nil
		})
	})
	inst, err := lib.Create()
	require.NoError(t, err)

	req := []byte("abc")
	out, err := lib.Call(inst, req)
	require.NoError(t, err)

	req[0] = 'x'
	out[1] = 'y'
	assert.Equal(t, []byte("abc"), seen)
}

func TestStatic_NilFactory(t *testing.T) {
	lib := NewStatic("builtin:nil", func() Handler { return nil })
	_, err := lib.Create()
	assert.ErrorIs(t, err, ErrCreateFailed)
}

func TestStatic_FactoryPanics(t *testing.T) {
	lib := NewStatic("builtin:panic", func() Handler { panic("nope") })
	_, err := lib.Create()
	assert.ErrorIs(t, err, ErrCreateFailed)
}

func TestStatic_HandlerPanicBecomesCallError(t *testing.T) {
	lib := NewStatic("builtin:panic", func() Handler {
		return HandlerFunc(func([]byte) ([]byte, error) { panic("kaboom") })
	})
	inst, err := lib.Create()
	require.NoError(t, err)

	var out []byte
	assert.NotPanics(t, func() {
		out, err = lib.Call(inst, nil)
	})
	assert.Nil(t, out)
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int32(-1), ce.Status)
	assert.Contains(t, ce.Error(), "kaboom")
}

func TestStatic_HandlerError(t *testing.T) {
	boom := errors.New("boom")
	lib := NewStatic("builtin:err", func() Handler {
		return HandlerFunc(func([]byte) ([]byte, error) { return nil, boom })
	})
	inst, err := lib.Create()
	require.NoError(t, err)

	_, err = lib.Call(inst, nil)
	assert.ErrorIs(t, err, boom)
}

func TestStatic_Closed(t *testing.T) {
	lib := NewStatic("builtin:echo", echo)
	inst, err := lib.Create()
	require.NoError(t, err)

	require.NoError(t, lib.Close())
	assert.True(t, lib.Closed())

	_, err = lib.Call(inst, nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = lib.Create()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenError_Unwrap(t *testing.T) {
	err := error(&OpenError{Path: "/p/lib.so", Err: ErrUnsupported})
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, "open /p/lib.so: "+ErrUnsupported.Error(), err.Error())

	err = &OpenError{Path: "/p/lib.so", Reason: "invalid ELF header"}
	assert.NotErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, "open /p/lib.so: invalid ELF header", err.Error())
}
