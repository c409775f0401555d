// Package pluginsdk helps write lla plugins in Go. An Adapter turns a
// Plugin into the request handler the host calls through lla_plugin_call:
// it decodes the request, routes it to the plugin and encodes the reply,
// turning every failure into an ErrorResponse.
package pluginsdk

import (
	"fmt"

	"github.com/soyeahso/lla/pkg/wire"
)

// Plugin is the minimum every plugin implements.
type Plugin interface {
	Name() string
	Version() string
	Description() string
}

// EntryDecorator adds custom fields to entries. Decorate may modify e in
// place; the host merges the returned fields over its own.
type EntryDecorator interface {
	SupportedFormats() []string
	Decorate(e *wire.Entry) error
}

// FieldFormatter renders a plugin column for an entry.
type FieldFormatter interface {
	FormatField(e wire.Entry, format string) (string, bool)
}

// ActionPerformer runs named actions invoked with `lla plugin`.
type ActionPerformer interface {
	PerformAction(action string, args []string) error
}

// CliArgProvider declares the command line arguments a plugin understands.
type CliArgProvider interface {
	CliArgs() []wire.CliArg
}

// Adapter serves a Plugin over the encoded protocol.
type Adapter struct {
	plugin Plugin
	// ProtocolVersion is reported in VersionResponse.
	ProtocolVersion uint32
}

// NewAdapter wraps p.
func NewAdapter(p Plugin) *Adapter {
	return &Adapter{plugin: p, ProtocolVersion: wire.ProtocolVersion}
}

// Handle processes one encoded request. The returned error is reserved for
// replies that cannot be encoded; everything else is answered in-band.
func (a *Adapter) Handle(request []byte) ([]byte, error) {
	msg, err := wire.Decode(request)
	if err != nil {
		return wire.Encode(wire.ErrorResponse{Message: "invalid request: " + err.Error()})
	}
	req, ok := msg.(wire.Request)
	if !ok {
		return wire.Encode(wire.ErrorResponse{Message: fmt.Sprintf("%s is not a request", msg.Tag())})
	}

	resp := a.Respond(req)
	out, err := wire.Encode(resp)
	if err != nil {
		return wire.Encode(wire.ErrorResponse{Message: "encode response: " + err.Error()})
	}
	return out, nil
}

// Respond answers a decoded request. Panics in the plugin become an
// ErrorResponse.
func (a *Adapter) Respond(req wire.Request) (resp wire.Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = wire.ErrorResponse{Message: fmt.Sprintf("plugin %s panicked: %v", a.plugin.Name(), r)}
		}
	}()

	switch req := req.(type) {
	case wire.GetName:
		return wire.NameResponse{Name: a.plugin.Name()}
	case wire.GetVersion:
		return wire.VersionResponse{Version: a.plugin.Version(), ProtocolVersion: a.ProtocolVersion}
	case wire.GetDescription:
		return wire.DescriptionResponse{Description: a.plugin.Description()}
	case wire.GetSupportedFormats:
		var formats []string
		if d, ok := a.plugin.(EntryDecorator); ok {
			formats = d.SupportedFormats()
		}
		return wire.FormatsResponse{Formats: formats}
	case wire.GetCliArgs:
		var args []wire.CliArg
		if p, ok := a.plugin.(CliArgProvider); ok {
			args = p.CliArgs()
		}
		return wire.CliArgsResponse{Args: args}
	case wire.Decorate:
		e := req.Entry.Clone()
		if d, ok := a.plugin.(EntryDecorator); ok {
			if err := d.Decorate(&e); err != nil {
				return wire.ErrorResponse{Message: err.Error()}
			}
		}
		return wire.DecoratedResponse{Entry: e}
	case wire.FormatField:
		if f, ok := a.plugin.(FieldFormatter); ok {
			if v, ok := f.FormatField(req.Entry, req.Format); ok {
				return wire.Field(v)
			}
		}
		return wire.FieldResponse{}
	case wire.PerformAction:
		p, ok := a.plugin.(ActionPerformer)
		if !ok {
			return wire.ActionResponse{Error: fmt.Sprintf("plugin %s has no actions", a.plugin.Name())}
		}
		if err := p.PerformAction(req.Action, req.Args); err != nil {
			return wire.ActionResponse{Error: err.Error()}
		}
		return wire.ActionResponse{Success: true}
	}
	return wire.ErrorResponse{Message: fmt.Sprintf("unsupported request %s", req.Tag())}
}
