// Package daemon implements the single-host server of §4.6: a length-
// prefixed msgpack RPC endpoint, a JSON project registry, per-project
// fsnotify watchers, client liveness tracking, and idle shutdown.
package daemon

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/taku25/unlscan/internal/model"
)

// Frame kinds, mirrored from model.Msg{Request,Response,Notification}.
const (
	frameRequest      = model.MsgRequest
	frameResponse     = model.MsgResponse
	frameNotification = model.MsgNotification
)

// readFrame reads one `u32-be length || msgpack payload` frame (§4.6). io.EOF
// propagates unchanged so callers can treat it as a clean connection close.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("daemon: read frame payload: %w", err)
	}
	return payload, nil
}

// writeFrame writes payload with its big-endian u32 length prefix.
func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("daemon: write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("daemon: write frame payload: %w", err)
	}
	return nil
}

// incomingRequest is the decoded form of a `[0, msgid, method, params]`
// frame. Clients only ever send requests on this wire (§4.6 Methods).
type incomingRequest struct {
	MsgID  uint64
	Method string
	Params map[string]any
}

// decodeRequest unmarshals one frame's payload into its (msgid, method,
// params) components. A malformed frame (wrong tuple shape, wrong msgType)
// is a protocol error.
func decodeRequest(payload []byte) (incomingRequest, error) {
	var tuple [4]any
	if err := msgpack.Unmarshal(payload, &tuple); err != nil {
		return incomingRequest{}, fmt.Errorf("%w: decode frame: %v", model.ErrProtocol, err)
	}
	msgType, ok := asInt(tuple[0])
	if !ok || msgType != frameRequest {
		return incomingRequest{}, fmt.Errorf("%w: unexpected frame type %v", model.ErrProtocol, tuple[0])
	}
	msgid, ok := asInt(tuple[1])
	if !ok {
		return incomingRequest{}, fmt.Errorf("%w: non-integer msgid", model.ErrProtocol)
	}
	method, ok := tuple[2].(string)
	if !ok {
		return incomingRequest{}, fmt.Errorf("%w: non-string method", model.ErrProtocol)
	}
	params, _ := tuple[3].(map[string]any)
	return incomingRequest{MsgID: uint64(msgid), Method: method, Params: params}, nil
}

// encodeResponse builds a `[1, msgid, error, result]` frame payload. errMsg
// is empty on success.
func encodeResponse(msgid uint64, errMsg string, result any) ([]byte, error) {
	var errVal any
	if errMsg != "" {
		errVal = errMsg
	}
	return msgpack.Marshal([4]any{frameResponse, msgid, errVal, result})
}

// encodeNotification builds a `[2, method, params]` frame payload, used for
// refresh progress (§4.6 "streams progress notifications").
func encodeNotification(method string, params any) ([]byte, error) {
	return msgpack.Marshal([3]any{frameNotification, method, params})
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
