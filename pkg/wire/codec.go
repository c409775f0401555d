package wire

import (
	"fmt"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the sub-messages in lla_plugin.proto.
const (
	metaSize        protowire.Number = 1
	metaModified    protowire.Number = 2
	metaAccessed    protowire.Number = 3
	metaCreated     protowire.Number = 4
	metaIsDir       protowire.Number = 5
	metaIsFile      protowire.Number = 6
	metaIsSymlink   protowire.Number = 7
	metaPermissions protowire.Number = 8
	metaUID         protowire.Number = 9
	metaGID         protowire.Number = 10

	entryPath     protowire.Number = 1
	entryMetadata protowire.Number = 2
	entryFields   protowire.Number = 3

	mapKey   protowire.Number = 1
	mapValue protowire.Number = 2

	formatFieldEntry  protowire.Number = 1
	formatFieldFormat protowire.Number = 2

	actionName protowire.Number = 1
	actionArgs protowire.Number = 2

	versionVersion  protowire.Number = 1
	versionProtocol protowire.Number = 2

	formatsList protowire.Number = 1

	fieldValue protowire.Number = 1

	actionSuccess protowire.Number = 1
	actionError   protowire.Number = 2

	cliArgsList protowire.Number = 1

	cliName       protowire.Number = 1
	cliShort      protowire.Number = 2
	cliLong       protowire.Number = 3
	cliHelp       protowire.Number = 4
	cliTakesValue protowire.Number = 5
)

// Encode serializes m. The same logical message always produces the same
// bytes: map keys are written in sorted order and zero scalars are omitted.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, &EncodeError{Reason: "nil message"}
	}
	num := protowire.Number(m.Tag())
	var b []byte

	switch v := m.(type) {
	case GetName, GetVersion, GetDescription, GetSupportedFormats, GetCliArgs:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))

	case Decorate:
		body, err := appendEntry(nil, v.Entry)
		if err != nil {
			return nil, &EncodeError{Tag: v.Tag(), Reason: err.Error()}
		}
		b = appendMessage(b, num, body)

	case FormatField:
		entry, err := appendEntry(nil, v.Entry)
		if err != nil {
			return nil, &EncodeError{Tag: v.Tag(), Reason: err.Error()}
		}
		body := appendMessage(nil, formatFieldEntry, entry)
		body = appendString(body, formatFieldFormat, v.Format)
		b = appendMessage(b, num, body)

	case PerformAction:
		body := appendString(nil, actionName, v.Action)
		for _, arg := range v.Args {
			body = protowire.AppendTag(body, actionArgs, protowire.BytesType)
			body = protowire.AppendString(body, arg)
		}
		b = appendMessage(b, num, body)

	case NameResponse:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, v.Name)

	case VersionResponse:
		body := appendString(nil, versionVersion, v.Version)
		body = appendVarint(body, versionProtocol, uint64(v.ProtocolVersion))
		b = appendMessage(b, num, body)

	case DescriptionResponse:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, v.Description)

	case FormatsResponse:
		var body []byte
		for _, f := range v.Formats {
			body = protowire.AppendTag(body, formatsList, protowire.BytesType)
			body = protowire.AppendString(body, f)
		}
		b = appendMessage(b, num, body)

	case DecoratedResponse:
		body, err := appendEntry(nil, v.Entry)
		if err != nil {
			return nil, &EncodeError{Tag: v.Tag(), Reason: err.Error()}
		}
		b = appendMessage(b, num, body)

	case FieldResponse:
		var body []byte
		if v.Field != nil {
			body = protowire.AppendTag(body, fieldValue, protowire.BytesType)
			body = protowire.AppendString(body, *v.Field)
		}
		b = appendMessage(b, num, body)

	case ActionResponse:
		body := appendBool(nil, actionSuccess, v.Success)
		body = appendString(body, actionError, v.Error)
		b = appendMessage(b, num, body)

	case CliArgsResponse:
		var body []byte
		for _, arg := range v.Args {
			body = appendMessage(body, cliArgsList, appendCliArg(nil, arg))
		}
		b = appendMessage(b, num, body)

	case ErrorResponse:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, v.Message)

	default:
		return nil, &EncodeError{Reason: fmt.Sprintf("unsupported message type %T", m)}
	}
	return b, nil
}

func appendEntry(b []byte, e Entry) ([]byte, error) {
	if !e.Metadata.Kind.valid() {
		return nil, fmt.Errorf("invalid entry kind %d", e.Metadata.Kind)
	}
	b = appendString(b, entryPath, e.Path)
	b = appendMessage(b, entryMetadata, appendMetadata(nil, e.Metadata))

	keys := make([]string, 0, len(e.CustomFields))
	for k := range e.CustomFields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		var kv []byte
		kv = protowire.AppendTag(kv, mapKey, protowire.BytesType)
		kv = protowire.AppendString(kv, k)
		kv = protowire.AppendTag(kv, mapValue, protowire.BytesType)
		kv = protowire.AppendString(kv, e.CustomFields[k])
		b = appendMessage(b, entryFields, kv)
	}
	return b, nil
}

func appendMetadata(b []byte, m Metadata) []byte {
	b = appendVarint(b, metaSize, m.Size)
	b = appendVarint(b, metaModified, m.Modified)
	b = appendVarint(b, metaAccessed, m.Accessed)
	b = appendVarint(b, metaCreated, m.Created)
	b = appendBool(b, metaIsDir, m.Kind == KindDir)
	b = appendBool(b, metaIsFile, m.Kind == KindFile)
	b = appendBool(b, metaIsSymlink, m.Kind == KindSymlink)
	b = appendVarint(b, metaPermissions, uint64(m.Permissions))
	b = appendVarint(b, metaUID, uint64(m.UID))
	b = appendVarint(b, metaGID, uint64(m.GID))
	return b
}

func appendCliArg(b []byte, a CliArg) []byte {
	b = appendString(b, cliName, a.Name)
	b = appendString(b, cliShort, a.Short)
	b = appendString(b, cliLong, a.Long)
	b = appendString(b, cliHelp, a.Help)
	b = appendBool(b, cliTakesValue, a.TakesValue)
	return b
}

func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

// appendString, appendVarint and appendBool omit zero values, as proto3 does
// for implicit-presence scalars.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(true))
}
