// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package rpc defines the wire protocol between a Shared-State Coordinator
// and its Proxies: a single bidirectional gRPC stream per Proxy, carrying
// Request/Response frames marshaled by a gob-based grpc.Codec instead of
// protobuf — there is no .proto file or generated stub anywhere in this
// package, since the frames are plain Go structs the external Serializer
// already knows how to encode at the payload level.
package rpc

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype every Coordinator/Proxy call forces via
// grpc.CallContentSubtype, selecting gobCodec instead of gRPC's default
// protobuf codec.
const CodecName = "gob"

type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}
