package plugin

import (
	"errors"
	"testing"

	"github.com/soyeahso/lla/internal/ffi"
	"github.com/soyeahso/lla/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replying builds a handle whose plugin answers every request with reply.
func replying(t *testing.T, reply func([]byte) ([]byte, error)) *Handle {
	t.Helper()
	h, err := NewLoader(nil, testLog()).Attach(ffi.NewStatic("builtin:raw", func() ffi.Handler {
		return ffi.HandlerFunc(reply)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func encoded(t *testing.T, m wire.Message) []byte {
	t.Helper()
	b, err := wire.Encode(m)
	require.NoError(t, err)
	return b
}

func TestDispatch_Failures(t *testing.T) {
	tests := []struct {
		name  string
		reply func([]byte) ([]byte, error)
		kind  DispatchErrorKind
	}{
		{"malformed", func([]byte) ([]byte, error) { return []byte{0x0a, 0xff}, nil }, MalformedResponse},
		{"wrong variant", func([]byte) ([]byte, error) { return encoded(t, wire.DescriptionResponse{Description: "x"}), nil }, UnexpectedVariant},
		{"request echoed", func(req []byte) ([]byte, error) { return req, nil }, UnexpectedVariant},
		{"plugin error", func([]byte) ([]byte, error) { return encoded(t, wire.ErrorResponse{Message: "nope"}), nil }, PluginFailure},
		{"call failed", func([]byte) ([]byte, error) { return nil, errors.New("transport") }, CallFailed},
		{"panic", func([]byte) ([]byte, error) { panic("inside plugin") }, CallFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := replying(t, tt.reply)
			d := NewDispatcher(NewRegistry(nil, testLog()), testLog())

			var err error
			assert.NotPanics(t, func() {
				_, err = d.Name(h)
			})
			var de *DispatchError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.kind, de.Kind)
			assert.Equal(t, wire.TagGetName, de.Request)
		})
	}
}

func TestDispatch_PluginErrorMessage(t *testing.T) {
	h := replying(t, func([]byte) ([]byte, error) {
		return encoded(t, wire.ErrorResponse{Message: "disk on fire"}), nil
	})
	d := NewDispatcher(NewRegistry(nil, testLog()), testLog())

	_, err := d.Description(h)
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "disk on fire", de.Message)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestDispatch_EncodeErrorIsHostDefect(t *testing.T) {
	r := newRig()
	p := newTestPlugin("enc")
	h := r.admit(t, p)
	before := h.Calls()

	bad := wire.NewEntry("/x", wire.Metadata{Kind: wire.Kind(200)})
	_, err := r.disp.Decorate(h, bad)

	var ee *wire.EncodeError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, before, h.Calls(), "nothing reaches the plugin")
}

func TestDispatch_CallChecksRegistry(t *testing.T) {
	r := newRig()
	r.admit(t, newTestPlugin("a"))

	_, err := r.disp.Call("missing", wire.GetName{})
	assert.True(t, IsKind(err, UnknownPlugin))

	_, err = r.disp.Call("a", wire.GetName{})
	assert.True(t, IsKind(err, Disabled))

	require.NoError(t, r.reg.Enable("a"))
	resp, err := r.disp.Call("a", wire.GetName{})
	require.NoError(t, err)
	assert.Equal(t, wire.NameResponse{Name: "a"}, resp)

	require.NoError(t, r.reg.Disable("a"))
	_, err = r.disp.Call("a", wire.GetDescription{})
	assert.True(t, IsKind(err, Disabled))
}

func TestDispatch_DecorateMerges(t *testing.T) {
	r := newRig()
	p := newTestPlugin("git")
	p.fields = map[string]string{"status": "M", "branch": "main"}
	h := r.admit(t, p)

	e := wire.NewEntry("/repo/a.go", wire.Metadata{Kind: wire.KindFile, Size: 10})
	e.CustomFields["status"] = "old"
	e.CustomFields["owner"] = "me"

	got, err := r.disp.Decorate(h, e)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"status": "M", "branch": "main", "owner": "me"}, got.CustomFields)
	assert.Equal(t, "old", e.CustomFields["status"], "input entry untouched")
	assert.Equal(t, e.Metadata, got.Metadata)
}

func TestDispatch_TypedHelpers(t *testing.T) {
	r := newRig()
	p := newTestPlugin("helper")
	p.column = "[x]"
	h := r.admit(t, p)

	desc, err := r.disp.Description(h)
	require.NoError(t, err)
	assert.Equal(t, "helper test plugin", desc)

	formats, err := r.disp.SupportedFormats(h)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "long"}, formats)

	field, ok, err := r.disp.FormatField(h, wire.NewEntry("/x", wire.Metadata{}), "long")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[x]", field)

	args, err := r.disp.CliArgs(h)
	require.NoError(t, err)
	assert.Empty(t, args)

	resp, err := r.disp.PerformAction(h, "fail", nil)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "action failed", resp.Error)
}
