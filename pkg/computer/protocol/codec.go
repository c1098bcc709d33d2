package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Codec converts values to and from a wire format.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSON is the codec used by browser clients.
var JSON Codec = jsonCodec{}

// CBOR is a compact binary codec. Output uses core deterministic encoding,
// so equal messages always produce identical bytes.
var CBOR Codec = cborCodec{}

// CodecByName looks up a codec by its Name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case JSON.Name():
		return JSON, nil
	case CBOR.Name():
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("protocol: CBOR encoder initialization failed: " + err.Error())
	}

	// Event arguments decode into any. Clients only ever send string keys,
	// so give them the same map type encoding/json would.
	cborDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("protocol: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborCodec struct{}

func (cborCodec) Name() string                       { return "cbor" }
func (cborCodec) Marshal(v any) ([]byte, error)      { return cborEncMode.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return cborDecMode.Unmarshal(data, v) }

type envelopeOut struct {
	Kind Kind    `json:"kind" cbor:"kind"`
	Data Message `json:"data" cbor:"data"`
}

type envelopeHeader struct {
	Kind Kind `json:"kind" cbor:"kind"`
}

// Encode wraps msg in an envelope and marshals it with codec.
func Encode(codec Codec, msg Message) ([]byte, error) {
	data, err := codec.Marshal(envelopeOut{Kind: msg.Kind(), Data: msg})
	if err != nil {
		return nil, fmt.Errorf("encoding %s as %s: %w", msg.Kind(), codec.Name(), err)
	}
	return data, nil
}

// Decode reads an envelope produced by Encode and returns the message it
// holds. The result is always a pointer, such as *Action.
func Decode(codec Codec, data []byte) (Message, error) {
	var header envelopeHeader
	if err := codec.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("decoding %s envelope: %w", codec.Name(), err)
	}

	var msg Message
	var err error
	switch header.Kind {
	case KindOpenComputer:
		msg, err = decodeAs[OpenComputer](codec, data)
	case KindSyncTerminal:
		msg, err = decodeAs[SyncTerminal](codec, data)
	case KindQueueEvent:
		msg, err = decodeAs[QueueEvent](codec, data)
	case KindAction:
		msg, err = decodeAs[Action](codec, data)
	default:
		return nil, fmt.Errorf("%q: %w", header.Kind, ErrUnknownKind)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s %s: %w", codec.Name(), header.Kind, err)
	}
	return msg, nil
}

func decodeAs[T any, PT interface {
	*T
	Message
}](codec Codec, data []byte) (Message, error) {
	var envelope struct {
		Data PT `json:"data" cbor:"data"`
	}
	envelope.Data = new(T)
	if err := codec.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	if envelope.Data == nil {
		return nil, errors.New("missing data")
	}
	return envelope.Data, nil
}
