package transfer

import "github.com/diesing/rt-share/internal/transport"

func transportBinary(data []byte) transport.Message {
	return transport.Message{Data: data}
}
