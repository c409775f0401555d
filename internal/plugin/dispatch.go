package plugin

import (
	"errors"

	"github.com/soyeahso/lla/internal/logging"
	"github.com/soyeahso/lla/pkg/wire"
)

// Dispatcher sends requests to plugins and checks that each answer is the
// variant the request calls for.
type Dispatcher struct {
	reg *Registry
	log *logging.Logger
}

// NewDispatcher creates a dispatcher resolving names through reg.
func NewDispatcher(reg *Registry, log *logging.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, log: log.Sub("dispatch")}
}

// Send performs one request/response exchange with h. A request the host
// cannot encode is a host defect and comes back as *wire.EncodeError;
// everything the plugin does wrong is a *DispatchError.
func (d *Dispatcher) Send(h *Handle, req wire.Request) (wire.Response, error) {
	in, err := wire.Encode(req)
	if err != nil {
		d.log.Error().Err(err).Str("plugin", h.label()).Stringer("request", req.Tag()).Msg("encode request")
		return nil, err
	}

	fail := func(kind DispatchErrorKind, err error) *DispatchError {
		return &DispatchError{Plugin: h.label(), Request: req.Tag(), Kind: kind, Err: err}
	}

	out, err := h.call(in)
	if err != nil {
		if errors.Is(err, ErrUnloaded) {
			return nil, fail(Unloaded, err)
		}
		return nil, fail(CallFailed, err)
	}

	msg, err := wire.Decode(out)
	if err != nil {
		return nil, fail(MalformedResponse, err)
	}
	resp, ok := msg.(wire.Response)
	if !ok {
		de := fail(UnexpectedVariant, nil)
		de.Got = msg.Tag()
		return nil, de
	}
	if er, ok := resp.(wire.ErrorResponse); ok {
		de := fail(PluginFailure, nil)
		de.Message = er.Message
		return nil, de
	}
	if want, _ := wire.Expected(req.Tag()); resp.Tag() != want {
		de := fail(UnexpectedVariant, nil)
		de.Got = resp.Tag()
		return nil, de
	}
	return resp, nil
}

// Call sends req to the plugin registered as name. The enabled flag is
// checked before the request goes out.
func (d *Dispatcher) Call(name string, req wire.Request) (wire.Response, error) {
	h, enabled, ok := d.reg.lookup(name)
	if !ok {
		return nil, &DispatchError{Plugin: name, Request: req.Tag(), Kind: UnknownPlugin}
	}
	if !enabled {
		return nil, &DispatchError{Plugin: name, Request: req.Tag(), Kind: Disabled}
	}
	return d.Send(h, req)
}

func send[T wire.Response](d *Dispatcher, h *Handle, req wire.Request) (T, error) {
	var zero T
	resp, err := d.Send(h, req)
	if err != nil {
		return zero, err
	}
	typed, ok := resp.(T)
	if !ok {
		return zero, &DispatchError{Plugin: h.label(), Request: req.Tag(), Kind: UnexpectedVariant, Got: resp.Tag()}
	}
	return typed, nil
}

func (d *Dispatcher) Name(h *Handle) (string, error) {
	r, err := send[wire.NameResponse](d, h, wire.GetName{})
	return r.Name, err
}

func (d *Dispatcher) Version(h *Handle) (wire.VersionResponse, error) {
	return send[wire.VersionResponse](d, h, wire.GetVersion{})
}

func (d *Dispatcher) Description(h *Handle) (string, error) {
	r, err := send[wire.DescriptionResponse](d, h, wire.GetDescription{})
	return r.Description, err
}

func (d *Dispatcher) SupportedFormats(h *Handle) ([]string, error) {
	r, err := send[wire.FormatsResponse](d, h, wire.GetSupportedFormats{})
	return r.Formats, err
}

func (d *Dispatcher) CliArgs(h *Handle) ([]wire.CliArg, error) {
	r, err := send[wire.CliArgsResponse](d, h, wire.GetCliArgs{})
	return r.Args, err
}

// Decorate sends a copy of e to h and returns e with the plugin's custom
// fields merged in. Keys the plugin returns overwrite existing ones; keys it
// drops are kept. e itself is never modified.
func (d *Dispatcher) Decorate(h *Handle, e wire.Entry) (wire.Entry, error) {
	r, err := send[wire.DecoratedResponse](d, h, wire.Decorate{Entry: e.Clone()})
	if err != nil {
		return e, err
	}
	out := e.Clone()
	out.Merge(r.Entry.CustomFields)
	return out, nil
}

// FormatField asks h for its column value for e; ok is false when the
// plugin has nothing to show.
func (d *Dispatcher) FormatField(h *Handle, e wire.Entry, format string) (field string, ok bool, err error) {
	r, err := send[wire.FieldResponse](d, h, wire.FormatField{Entry: e.Clone(), Format: format})
	if err != nil {
		return "", false, err
	}
	field, ok = r.Value()
	return field, ok, nil
}

func (d *Dispatcher) PerformAction(h *Handle, action string, args []string) (wire.ActionResponse, error) {
	return send[wire.ActionResponse](d, h, wire.PerformAction{Action: action, Args: args})
}
