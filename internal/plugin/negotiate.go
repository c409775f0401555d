package plugin

import (
	"errors"
	"slices"

	"github.com/soyeahso/lla/pkg/wire"
)

// Negotiator checks that a freshly loaded plugin speaks a protocol version
// the host understands. It sends exactly one GetVersion request.
type Negotiator struct {
	dispatch  *Dispatcher
	supported []uint32
}

// NewNegotiator creates a negotiator accepting the given protocol versions.
// An empty list means wire.SupportedProtocolVersions.
func NewNegotiator(d *Dispatcher, supported []uint32) *Negotiator {
	if len(supported) == 0 {
		supported = wire.SupportedProtocolVersions
	}
	return &Negotiator{dispatch: d, supported: slices.Clone(supported)}
}

// Negotiate records the plugin's versions on h, or returns *VersionError.
// A rejected handle must be closed by the caller without further requests.
func (n *Negotiator) Negotiate(h *Handle) error {
	resp, err := n.dispatch.Version(h)
	if err != nil {
		var ee *wire.EncodeError
		if errors.As(err, &ee) {
			return err
		}
		return &VersionError{Plugin: h.label(), Supported: n.supported, Err: err}
	}
	if !slices.Contains(n.supported, resp.ProtocolVersion) {
		return &VersionError{
			Plugin:        h.label(),
			PluginVersion: resp.ProtocolVersion,
			Supported:     n.supported,
		}
	}
	h.version = resp.Version
	h.protocol = resp.ProtocolVersion
	return nil
}
