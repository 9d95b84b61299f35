// Package mobilealertsv1 holds the gRPC stubs of mobilealerts.v1.SensorService.
// All messages are protobuf well-known types.
package mobilealertsv1

//go:generate protoc -I ../.. --go_out=../.. --go_opt=paths=source_relative --go-grpc_out=../.. --go-grpc_opt=paths=source_relative mobilealerts/v1/sensor_service.proto
