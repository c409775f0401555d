package wire

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Decode parses one Message from b. Unknown fields are skipped so newer
// writers stay readable; any structural problem yields a *DecodeError.
func Decode(b []byte) (Message, error) {
	r := &reader{b: b}
	var msg Message
	for !r.done() {
		at := r.off
		num, typ, err := r.tag()
		if err != nil {
			return nil, err
		}
		tag := Tag(num)
		if _, known := tagNames[tag]; !known {
			if err := r.skip(num, typ); err != nil {
				return nil, err
			}
			continue
		}
		if msg != nil {
			return nil, &DecodeError{Offset: at, Field: tagField(tag), Err: ErrMultipleVariants}
		}
		if msg, err = r.variant(tag, typ); err != nil {
			return nil, err
		}
	}
	if msg == nil {
		return nil, &DecodeError{Offset: len(b), Err: ErrUnknownVariant}
	}
	return msg, nil
}

// tagField returns the proto field name for a variant, used in error paths.
func tagField(t Tag) string {
	switch t {
	case TagGetName:
		return "get_name"
	case TagGetVersion:
		return "get_version"
	case TagGetDescription:
		return "get_description"
	case TagGetSupportedFormats:
		return "get_supported_formats"
	case TagDecorate:
		return "decorate"
	case TagFormatField:
		return "format_field"
	case TagPerformAction:
		return "action"
	case TagNameResponse:
		return "name_response"
	case TagVersionResponse:
		return "version_response"
	case TagDescriptionResponse:
		return "description_response"
	case TagFormatsResponse:
		return "formats_response"
	case TagDecoratedResponse:
		return "decorated_response"
	case TagFieldResponse:
		return "field_response"
	case TagActionResponse:
		return "action_response"
	case TagErrorResponse:
		return "error_response"
	case TagGetCliArgs:
		return "get_cli_args"
	case TagCliArgsResponse:
		return "cli_args_response"
	}
	return t.String()
}

func (r *reader) variant(tag Tag, typ protowire.Type) (Message, error) {
	name := tagField(tag)
	switch tag {
	case TagGetName, TagGetVersion, TagGetDescription, TagGetSupportedFormats, TagGetCliArgs:
		r.path = name
		if _, err := r.varint(typ); err != nil {
			return nil, err
		}
		r.path = ""
		switch tag {
		case TagGetName:
			return GetName{}, nil
		case TagGetVersion:
			return GetVersion{}, nil
		case TagGetDescription:
			return GetDescription{}, nil
		case TagGetSupportedFormats:
			return GetSupportedFormats{}, nil
		default:
			return GetCliArgs{}, nil
		}

	case TagNameResponse, TagDescriptionResponse, TagErrorResponse:
		r.path = name
		s, err := r.str(typ)
		if err != nil {
			return nil, err
		}
		r.path = ""
		switch tag {
		case TagNameResponse:
			return NameResponse{Name: s}, nil
		case TagDescriptionResponse:
			return DescriptionResponse{Description: s}, nil
		default:
			return ErrorResponse{Message: s}, nil
		}
	}

	sub, err := r.sub(typ, name)
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagDecorate:
		e, err := sub.entry()
		if err != nil {
			return nil, err
		}
		return Decorate{Entry: e}, nil
	case TagDecoratedResponse:
		e, err := sub.entry()
		if err != nil {
			return nil, err
		}
		return DecoratedResponse{Entry: e}, nil
	case TagFormatField:
		return sub.formatField()
	case TagPerformAction:
		return sub.performAction()
	case TagVersionResponse:
		return sub.versionResponse()
	case TagFormatsResponse:
		return sub.formatsResponse()
	case TagFieldResponse:
		return sub.fieldResponse()
	case TagActionResponse:
		return sub.actionResponse()
	case TagCliArgsResponse:
		return sub.cliArgsResponse()
	}
	return nil, &DecodeError{Offset: r.off, Field: name, Err: ErrUnknownVariant}
}

func (r *reader) entry() (Entry, error) {
	e := Entry{CustomFields: make(map[string]string)}
	for !r.done() {
		num, typ, err := r.tag()
		if err != nil {
			return Entry{}, err
		}
		switch num {
		case entryPath:
			e.Path, err = r.str(typ)
		case entryMetadata:
			var sub *reader
			if sub, err = r.sub(typ, "metadata"); err == nil {
				e.Metadata, err = sub.metadata()
			}
		case entryFields:
			var sub *reader
			if sub, err = r.sub(typ, "custom_fields"); err == nil {
				var k, v string
				if k, v, err = sub.mapEntry(); err == nil {
					e.CustomFields[k] = v
				}
			}
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return Entry{}, err
		}
	}
	return e, nil
}

func (r *reader) metadata() (Metadata, error) {
	var m Metadata
	var isDir, isFile, isSymlink bool
	for !r.done() {
		num, typ, err := r.tag()
		if err != nil {
			return Metadata{}, err
		}
		switch num {
		case metaSize:
			m.Size, err = r.varint(typ)
		case metaModified:
			m.Modified, err = r.varint(typ)
		case metaAccessed:
			m.Accessed, err = r.varint(typ)
		case metaCreated:
			m.Created, err = r.varint(typ)
		case metaIsDir:
			isDir, err = r.bool(typ)
		case metaIsFile:
			isFile, err = r.bool(typ)
		case metaIsSymlink:
			isSymlink, err = r.bool(typ)
		case metaPermissions:
			m.Permissions, err = r.uint32(typ)
		case metaUID:
			m.UID, err = r.uint32(typ)
		case metaGID:
			m.GID, err = r.uint32(typ)
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return Metadata{}, err
		}
	}
	switch {
	case isSymlink:
		m.Kind = KindSymlink
	case isDir:
		m.Kind = KindDir
	case isFile:
		m.Kind = KindFile
	}
	return m, nil
}

func (r *reader) mapEntry() (string, string, error) {
	var k, v string
	for !r.done() {
		num, typ, err := r.tag()
		if err != nil {
			return "", "", err
		}
		switch num {
		case mapKey:
			k, err = r.str(typ)
		case mapValue:
			v, err = r.str(typ)
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return "", "", err
		}
	}
	return k, v, nil
}

func (r *reader) formatField() (Message, error) {
	out := FormatField{Entry: Entry{CustomFields: make(map[string]string)}}
	for !r.done() {
		num, typ, err := r.tag()
		if err != nil {
			return nil, err
		}
		switch num {
		case formatFieldEntry:
			var sub *reader
			if sub, err = r.sub(typ, "entry"); err == nil {
				out.Entry, err = sub.entry()
			}
		case formatFieldFormat:
			out.Format, err = r.str(typ)
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *reader) performAction() (Message, error) {
	var out PerformAction
	for !r.done() {
		num, typ, err := r.tag()
		if err != nil {
			return nil, err
		}
		switch num {
		case actionName:
			out.Action, err = r.str(typ)
		case actionArgs:
			var arg string
			if arg, err = r.str(typ); err == nil {
				out.Args = append(out.Args, arg)
			}
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *reader) versionResponse() (Message, error) {
	var out VersionResponse
	for !r.done() {
		num, typ, err := r.tag()
		if err != nil {
			return nil, err
		}
		switch num {
		case versionVersion:
			out.Version, err = r.str(typ)
		case versionProtocol:
			out.ProtocolVersion, err = r.uint32(typ)
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *reader) formatsResponse() (Message, error) {
	var out FormatsResponse
	for !r.done() {
		num, typ, err := r.tag()
		if err != nil {
			return nil, err
		}
		if num == formatsList {
			var f string
			if f, err = r.str(typ); err == nil {
				out.Formats = append(out.Formats, f)
			}
		} else {
			err = r.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *reader) fieldResponse() (Message, error) {
	var out FieldResponse
	for !r.done() {
		num, typ, err := r.tag()
		if err != nil {
			return nil, err
		}
		if num == fieldValue {
			var s string
			if s, err = r.str(typ); err == nil {
				out.Field = &s
			}
		} else {
			err = r.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *reader) actionResponse() (Message, error) {
	var out ActionResponse
	for !r.done() {
		num, typ, err := r.tag()
		if err != nil {
			return nil, err
		}
		switch num {
		case actionSuccess:
			out.Success, err = r.bool(typ)
		case actionError:
			out.Error, err = r.str(typ)
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *reader) cliArgsResponse() (Message, error) {
	var out CliArgsResponse
	for !r.done() {
		num, typ, err := r.tag()
		if err != nil {
			return nil, err
		}
		if num == cliArgsList {
			var sub *reader
			if sub, err = r.sub(typ, "args"); err == nil {
				var arg CliArg
				if arg, err = sub.cliArg(); err == nil {
					out.Args = append(out.Args, arg)
				}
			}
		} else {
			err = r.skip(num, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *reader) cliArg() (CliArg, error) {
	var a CliArg
	for !r.done() {
		num, typ, err := r.tag()
		if err != nil {
			return CliArg{}, err
		}
		switch num {
		case cliName:
			a.Name, err = r.str(typ)
		case cliShort:
			a.Short, err = r.str(typ)
		case cliLong:
			a.Long, err = r.str(typ)
		case cliHelp:
			a.Help, err = r.str(typ)
		case cliTakesValue:
			a.TakesValue, err = r.bool(typ)
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return CliArg{}, err
		}
	}
	return a, nil
}

// reader walks protobuf fields while tracking the absolute offset into the
// outermost buffer for error reporting.
type reader struct {
	b    []byte
	off  int
	path string
}

func (r *reader) done() bool { return len(r.b) == 0 }

func (r *reader) fail(err error) error {
	return &DecodeError{Offset: r.off, Field: r.path, Err: err}
}

func (r *reader) advance(n int) {
	r.b = r.b[n:]
	r.off += n
}

func (r *reader) tag() (protowire.Number, protowire.Type, error) {
	num, typ, n := protowire.ConsumeTag(r.b)
	if n < 0 {
		return 0, 0, r.fail(protowire.ParseError(n))
	}
	r.advance(n)
	return num, typ, nil
}

func (r *reader) varint(typ protowire.Type) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, r.fail(ErrWireType)
	}
	v, n := protowire.ConsumeVarint(r.b)
	if n < 0 {
		return 0, r.fail(protowire.ParseError(n))
	}
	r.advance(n)
	return v, nil
}

// uint32 rejects values wider than 32 bits instead of truncating them.
func (r *reader) uint32(typ protowire.Type) (uint32, error) {
	v, err := r.varint(typ)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, r.fail(ErrOverflow)
	}
	return uint32(v), nil
}

func (r *reader) bool(typ protowire.Type) (bool, error) {
	v, err := r.varint(typ)
	return protowire.DecodeBool(v), err
}

func (r *reader) bytes(typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, r.fail(ErrWireType)
	}
	v, n := protowire.ConsumeBytes(r.b)
	if n < 0 {
		return nil, 0, r.fail(protowire.ParseError(n))
	}
	start := r.off + n - len(v)
	r.advance(n)
	return v, start, nil
}

func (r *reader) str(typ protowire.Type) (string, error) {
	v, _, err := r.bytes(typ)
	return string(v), err
}

func (r *reader) sub(typ protowire.Type, name string) (*reader, error) {
	v, start, err := r.bytes(typ)
	if err != nil {
		return nil, err
	}
	path := name
	if r.path != "" {
		path = r.path + "." + name
	}
	return &reader{b: v, off: start, path: path}, nil
}

func (r *reader) skip(num protowire.Number, typ protowire.Type) error {
	n := protowire.ConsumeFieldValue(num, typ, r.b)
	if n < 0 {
		return r.fail(protowire.ParseError(n))
	}
	r.advance(n)
	return nil
}
