// Package grpcapi exposes connector.AdminServiceClient and
// connector.ScabbardClient over gRPC. No protoc toolchain runs in this
// module, so instead of generated .pb.go message types this package
// registers a JSON codec under gRPC's default codec name ("proto"): a
// request with an empty content-subtype header resolves to this codec the
// same way it would resolve to the protobuf codec in a generated client,
// grounded on the teacher's grpcutils.NewServer/Dial plumbing.
package grpcapi

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "proto"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
