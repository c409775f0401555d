// Package wire defines the messages exchanged between the lla host and its
// plugins and their byte encoding.
//
// A Message is a tagged union: exactly one variant is populated per buffer.
// The encoding is the protobuf wire format of PluginMessage in
// lla_plugin.proto, so plugins written in any language with a protobuf
// runtime can speak it. Neither side ever interprets the other's in-memory
// layout.
package wire

import "fmt"

// ProtocolVersion is the schema revision this package implements.
const ProtocolVersion uint32 = 1

// SupportedProtocolVersions lists the plugin protocol revisions the host
// accepts. It is an allow-list, not a lower bound.
var SupportedProtocolVersions = []uint32{ProtocolVersion}

// Tag identifies a message variant. Its value is the field number of the
// variant inside the PluginMessage oneof.
type Tag uint32

const (
	TagGetName             Tag = 1
	TagGetVersion          Tag = 2
	TagGetDescription      Tag = 3
	TagGetSupportedFormats Tag = 4
	TagDecorate            Tag = 5
	TagFormatField         Tag = 6
	TagPerformAction       Tag = 7
	TagNameResponse        Tag = 8
	TagVersionResponse     Tag = 9
	TagDescriptionResponse Tag = 10
	TagFormatsResponse     Tag = 11
	TagDecoratedResponse   Tag = 12
	TagFieldResponse       Tag = 13
	TagActionResponse      Tag = 14
	TagErrorResponse       Tag = 15
	TagGetCliArgs          Tag = 16
	TagCliArgsResponse     Tag = 17
)

var tagNames = map[Tag]string{
	TagGetName:             "GetName",
	TagGetVersion:          "GetVersion",
	TagGetDescription:      "GetDescription",
	TagGetSupportedFormats: "GetSupportedFormats",
	TagDecorate:            "Decorate",
	TagFormatField:         "FormatField",
	TagPerformAction:       "PerformAction",
	TagNameResponse:        "NameResponse",
	TagVersionResponse:     "VersionResponse",
	TagDescriptionResponse: "DescriptionResponse",
	TagFormatsResponse:     "FormatsResponse",
	TagDecoratedResponse:   "DecoratedResponse",
	TagFieldResponse:       "FieldResponse",
	TagActionResponse:      "ActionResponse",
	TagErrorResponse:       "ErrorResponse",
	TagGetCliArgs:          "GetCliArgs",
	TagCliArgsResponse:     "CliArgsResponse",
}

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Tag(%d)", uint32(t))
}

// expected maps each request tag to the response tag that answers it.
var expected = map[Tag]Tag{
	TagGetName:             TagNameResponse,
	TagGetVersion:          TagVersionResponse,
	TagGetDescription:      TagDescriptionResponse,
	TagGetSupportedFormats: TagFormatsResponse,
	TagDecorate:            TagDecoratedResponse,
	TagFormatField:         TagFieldResponse,
	TagPerformAction:       TagActionResponse,
	TagGetCliArgs:          TagCliArgsResponse,
}

// Expected returns the response tag that answers the request tag req.
// ErrorResponse is an acceptable answer to every request in addition.
func Expected(req Tag) (Tag, bool) {
	t, ok := expected[req]
	return t, ok
}

// Message is implemented by every request and response variant and by
// nothing else. Variants are passed by value.
type Message interface {
	Tag() Tag
	isMessage()
}

// Request is a message sent from the host to a plugin.
type Request interface {
	Message
	isRequest()
}

// Response is a message sent from a plugin back to the host.
type Response interface {
	Message
	isResponse()
}

type request struct{}

func (request) isMessage() {}
func (request) isRequest() {}

type response struct{}

func (response) isMessage()  {}
func (response) isResponse() {}

// Requests.

type GetName struct{ request }

func (GetName) Tag() Tag { return TagGetName }

type GetVersion struct{ request }

func (GetVersion) Tag() Tag { return TagGetVersion }

type GetDescription struct{ request }

func (GetDescription) Tag() Tag { return TagGetDescription }

type GetSupportedFormats struct{ request }

func (GetSupportedFormats) Tag() Tag { return TagGetSupportedFormats }

type GetCliArgs struct{ request }

func (GetCliArgs) Tag() Tag { return TagGetCliArgs }

// Decorate asks a plugin to add custom fields to Entry.
type Decorate struct {
	request
	Entry Entry
}

func (Decorate) Tag() Tag { return TagDecorate }

// FormatField asks a plugin to render a single column for Entry in the
// named output format.
type FormatField struct {
	request
	Entry  Entry
	Format string
}

func (FormatField) Tag() Tag { return TagFormatField }

// PerformAction runs a named plugin action with free-form arguments.
type PerformAction struct {
	request
	Action string
	Args   []string
}

func (PerformAction) Tag() Tag { return TagPerformAction }

// Responses.

type NameResponse struct {
	response
	Name string
}

func (NameResponse) Tag() Tag { return TagNameResponse }

// VersionResponse carries the plugin's own semantic version and the
// protocol revision it was built against.
type VersionResponse struct {
	response
	Version         string
	ProtocolVersion uint32
}

func (VersionResponse) Tag() Tag { return TagVersionResponse }

type DescriptionResponse struct {
	response
	Description string
}

func (DescriptionResponse) Tag() Tag { return TagDescriptionResponse }

type FormatsResponse struct {
	response
	Formats []string
}

func (FormatsResponse) Tag() Tag { return TagFormatsResponse }

type DecoratedResponse struct {
	response
	Entry Entry
}

func (DecoratedResponse) Tag() Tag { return TagDecoratedResponse }

// FieldResponse carries an optional rendered column. A nil Field means the
// plugin has nothing to show for the entry.
type FieldResponse struct {
	response
	Field *string
}

func (FieldResponse) Tag() Tag { return TagFieldResponse }

// Value returns the rendered field and whether one was present.
func (r FieldResponse) Value() (string, bool) {
	if r.Field == nil {
		return "", false
	}
	return *r.Field, true
}

type ActionResponse struct {
	response
	Success bool
	Error   string
}

func (ActionResponse) Tag() Tag { return TagActionResponse }

// CliArg declares a command-line argument a plugin understands.
type CliArg struct {
	Name       string
	Short      string
	Long       string
	Help       string
	TakesValue bool
}

type CliArgsResponse struct {
	response
	Args []CliArg
}

func (CliArgsResponse) Tag() Tag { return TagCliArgsResponse }

// ErrorResponse reports a plugin-side failure for any request.
type ErrorResponse struct {
	response
	Message string
}

func (ErrorResponse) Tag() Tag { return TagErrorResponse }

// Field returns a FieldResponse holding s.
func Field(s string) FieldResponse { return FieldResponse{Field: &s} }
