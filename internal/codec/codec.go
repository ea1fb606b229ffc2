package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
)

// Codec encodes values of type T into bus payloads and back.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// Func adapts a pair of functions into a Codec
type Func[T any] struct {
	EncodeFunc func(T) ([]byte, error)
	DecodeFunc func([]byte) (T, error)
}

func (f Func[T]) Encode(v T) ([]byte, error)    { return f.EncodeFunc(v) }
func (f Func[T]) Decode(data []byte) (T, error) { return f.DecodeFunc(data) }

// Bytes passes payloads through unchanged
func Bytes() Codec[[]byte] {
	return Func[[]byte]{
		EncodeFunc: func(v []byte) ([]byte, error) { return v, nil },
		DecodeFunc: func(data []byte) ([]byte, error) { return data, nil },
	}
}

// String carries text payloads
func String() Codec[string] {
	return Func[string]{
		EncodeFunc: func(v string) ([]byte, error) { return []byte(v), nil },
		DecodeFunc: func(data []byte) (string, error) { return string(data), nil },
	}
}

// JSON encodes values with sonic
func JSON[T any]() Codec[T] {
	return Func[T]{
		EncodeFunc: func(v T) ([]byte, error) {
			data, err := sonic.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("json encode: %w", err)
			}
			return data, nil
		},
		DecodeFunc: func(data []byte) (T, error) {
			var v T
			if err := sonic.Unmarshal(data, &v); err != nil {
				return v, fmt.Errorf("json decode: %w", err)
			}
			return v, nil
		},
	}
}

// MsgPack encodes values with MessagePack
func MsgPack[T any]() Codec[T] {
	return Func[T]{
		EncodeFunc: func(v T) ([]byte, error) {
			data, err := msgpack.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("msgpack encode: %w", err)
			}
			return data, nil
		},
		DecodeFunc: func(data []byte) (T, error) {
			var v T
			if err := msgpack.Unmarshal(data, &v); err != nil {
				return v, fmt.Errorf("msgpack decode: %w", err)
			}
			return v, nil
		},
	}
}

// Proto encodes protobuf messages. newMsg allocates the message decoded into.
func Proto[T proto.Message](newMsg func() T) Codec[T] {
	return Func[T]{
		EncodeFunc: func(v T) ([]byte, error) {
			data, err := proto.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("proto encode: %w", err)
			}
			return data, nil
		},
		DecodeFunc: func(data []byte) (T, error) {
			v := newMsg()
			if err := proto.Unmarshal(data, v); err != nil {
				return v, fmt.Errorf("proto decode: %w", err)
			}
			return v, nil
		},
	}
}

// Binary encodes fixed-size values (numbers, arrays and structs of them)
// in little-endian layout. The encoded length is always binary.Size(v).
func Binary[T any]() Codec[T] {
	return Func[T]{
		EncodeFunc: func(v T) ([]byte, error) {
			data, err := binary.Append(nil, binary.LittleEndian, v)
			if err != nil {
				return nil, fmt.Errorf("binary encode: %w", err)
			}
			return data, nil
		},
		DecodeFunc: func(data []byte) (T, error) {
			var v T
			if _, err := binary.Decode(data, binary.LittleEndian, &v); err != nil {
				return v, fmt.Errorf("binary decode: %w", err)
			}
			return v, nil
		},
	}
}

// Frame errors
var (
	ErrFrameTooLarge = errors.New("encoded value exceeds frame capacity")
	ErrCorruptFrame  = errors.New("corrupt frame")
)

// FrameHeader is the length prefix written by Fixed
const FrameHeader = 4

// Fixed wraps inner so every payload is exactly capacity bytes: a 4-byte
// big-endian length followed by the encoded value and zero padding.
func Fixed[T any](inner Codec[T], capacity int) Codec[T] {
	return Func[T]{
		EncodeFunc: func(v T) ([]byte, error) {
			data, err := inner.Encode(v)
			if err != nil {
				return nil, err
			}
			if FrameHeader+len(data) > capacity {
				return nil, fmt.Errorf("%d bytes in a %d byte frame: %w", len(data), capacity, ErrFrameTooLarge)
			}
			frame := make([]byte, capacity)
			binary.BigEndian.PutUint32(frame, uint32(len(data)))
			copy(frame[FrameHeader:], data)
			return frame, nil
		},
		DecodeFunc: func(frame []byte) (T, error) {
			var zero T
			if len(frame) < FrameHeader {
				return zero, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptFrame, len(frame))
			}
			n := binary.BigEndian.Uint32(frame)
			if uint64(n) > uint64(len(frame)-FrameHeader) {
				return zero, fmt.Errorf("%w: length %d exceeds %d byte frame", ErrCorruptFrame, n, len(frame))
			}
			return inner.Decode(frame[FrameHeader : FrameHeader+int(n)])
		},
	}
}

// Zstd compresses the output of inner. The result varies in length, so
// combine it with Fixed when publishing to a sized segment.
func Zstd[T any](inner Codec[T]) (Codec[T], error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return Func[T]{
		EncodeFunc: func(v T) ([]byte, error) {
			data, err := inner.Encode(v)
			if err != nil {
				return nil, err
			}
			return enc.EncodeAll(data, nil), nil
		},
		DecodeFunc: func(data []byte) (T, error) {
			raw, err := dec.DecodeAll(data, nil)
			if err != nil {
				var zero T
				return zero, fmt.Errorf("zstd decode: %w", err)
			}
			return inner.Decode(raw)
		},
	}, nil
}
