package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Content types understood on the wire.
const (
	ContentTypeMsgpack  = "application/msgpack"
	ContentTypeXMsgpack = "application/x-msgpack"
	ContentTypeJSON     = "application/json"
	ContentTypeCBOR     = "application/cbor"
)

// Codec turns message bodies into Go values and back.
// All codecs read and write the `json` struct tags so one set of tags
// describes the wire shape regardless of encoding.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// CodecFor picks the codec for a delivery's content type.
// Empty means msgpack, which is what the chat frontend publishes.
func CodecFor(contentType string) (Codec, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	switch ct {
	case "", ContentTypeMsgpack, ContentTypeXMsgpack:
		return Msgpack, nil
	case ContentTypeJSON:
		return JSON, nil
	case ContentTypeCBOR:
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
}

var (
	Msgpack Codec = msgpackCodec{}
	JSON    Codec = jsonCodec{}
	CBOR    Codec = newCBORCodec()
)

type msgpackCodec struct{}

func (msgpackCodec) ContentType() string { return ContentTypeMsgpack }

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

type jsonCodec struct{}

func (jsonCodec) ContentType() string { return ContentTypeJSON }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal keeps numbers as json.Number so 64-bit user ids survive.
func (jsonCodec) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("message: CBOR encoder initialization failed: " + err.Error())
	}
	// any-typed targets (nested objects) must come out as map[string]any,
	// not the CBOR default map[interface{}]interface{}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("message: CBOR decoder initialization failed: " + err.Error())
	}
	return cborCodec{enc: enc, dec: dec}
}

func (cborCodec) ContentType() string { return ContentTypeCBOR }

func (c cborCodec) Marshal(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c cborCodec) Unmarshal(data []byte, v any) error {
	return c.dec.Unmarshal(data, v)
}
