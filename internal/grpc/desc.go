// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-databox.
//
// go-databox is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "databox.v1.SecretSharing"

// Full method names, as seen by interceptors.
const (
	SplitMethod       = "/" + ServiceName + "/Split"
	CombineMethod     = "/" + ServiceName + "/Combine"
	ListSchemesMethod = "/" + ServiceName + "/ListSchemes"
)

// SecretSharingServer is the server API for the SecretSharing service.
type SecretSharingServer interface {
	Split(context.Context, *SplitRequest) (*SplitResponse, error)
	Combine(context.Context, *CombineRequest) (*CombineResponse, error)
	ListSchemes(context.Context, *ListSchemesRequest) (*ListSchemesResponse, error)
}

// SecretSharingServiceDesc describes the service to grpc.Server.
var SecretSharingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SecretSharingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Split", Handler: splitHandler},
		{MethodName: "Combine", Handler: combineHandler},
		{MethodName: "ListSchemes", Handler: listSchemesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "databox/v1/secretsharing",
}

// RegisterSecretSharingServer registers srv with s.
func RegisterSecretSharingServer(s grpc.ServiceRegistrar, srv SecretSharingServer) {
	s.RegisterService(&SecretSharingServiceDesc, srv)
}

func splitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SplitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SecretSharingServer).Split(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SplitMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SecretSharingServer).Split(ctx, req.(*SplitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func combineHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CombineRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SecretSharingServer).Combine(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CombineMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SecretSharingServer).Combine(ctx, req.(*CombineRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listSchemesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListSchemesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SecretSharingServer).ListSchemes(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListSchemesMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SecretSharingServer).ListSchemes(ctx, req.(*ListSchemesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// SecretSharingClient calls the SecretSharing service using the JSON codec.
type SecretSharingClient struct {
	cc grpc.ClientConnInterface
}

// NewSecretSharingClient creates a client on cc.
func NewSecretSharingClient(cc grpc.ClientConnInterface) *SecretSharingClient {
	return &SecretSharingClient{cc: cc}
}

func (c *SecretSharingClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

// Split splits a secret.
func (c *SecretSharingClient) Split(ctx context.Context, in *SplitRequest, opts ...grpc.CallOption) (*SplitResponse, error) {
	out := new(SplitResponse)
	if err := c.invoke(ctx, SplitMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Combine recovers a secret.
func (c *SecretSharingClient) Combine(ctx context.Context, in *CombineRequest, opts ...grpc.CallOption) (*CombineResponse, error) {
	out := new(CombineResponse)
	if err := c.invoke(ctx, CombineMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSchemes lists the server's schemes.
func (c *SecretSharingClient) ListSchemes(ctx context.Context, in *ListSchemesRequest, opts ...grpc.CallOption) (*ListSchemesResponse, error) {
	out := new(ListSchemesResponse)
	if err := c.invoke(ctx, ListSchemesMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
