// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the gRPC service path every Proxy dials and every
// Coordinator registers, hand-written instead of protoc-generated.
const ServiceName = "suitkaise.share.Coordinator"

// SessionMethod is the single bidirectional-streaming RPC both sides speak:
// one stream per Proxy, carrying Request frames one way and Response
// frames the other, always in issuing order.
const SessionMethod = "/" + ServiceName + "/Session"

var sessionStreamDesc = grpc.StreamDesc{
	StreamName:    "Session",
	ServerStreams: true,
	ClientStreams: true,
}

// SessionHandler processes one Proxy's Session stream for the lifetime of
// the connection.
type SessionHandler func(stream grpc.ServerStream) error

// NewServiceDesc builds the grpc.ServiceDesc a Coordinator registers,
// wired to handler. There is no generated server interface: grpc.ServiceDesc
// is a plain struct and Streams entries can be constructed by hand.
func NewServiceDesc(handler SessionHandler) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Streams: []grpc.StreamDesc{
			{
				StreamName: sessionStreamDesc.StreamName,
				Handler: func(_ any, stream grpc.ServerStream) error {
					return handler(stream)
				},
				ServerStreams: sessionStreamDesc.ServerStreams,
				ClientStreams: sessionStreamDesc.ClientStreams,
			},
		},
	}
}

// OpenSession opens a new Session stream to the Coordinator behind conn,
// forcing CodecName instead of gRPC's default protobuf codec.
func OpenSession(ctx context.Context, conn *grpc.ClientConn) (grpc.ClientStream, error) {
	return conn.NewStream(ctx, &sessionStreamDesc, SessionMethod, grpc.CallContentSubtype(CodecName))
}
