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

	"github.com/jeremyhahn/go-databox/pkg/adapters/logger"
	"github.com/jeremyhahn/go-databox/pkg/correlation"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// correlationUnaryInterceptor attaches a correlation ID to the call
// context. x-request-id wins over x-correlation-id; a new ID is generated
// when neither is usable. The ID is returned in both response header keys.
func (s *Server) correlationUnaryInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.MD{}
	}

	id := correlation.FromMetadata(md)
	ctx = correlation.WithCorrelationID(ctx, id)

	outMD := metadata.Pairs(
		correlation.GRPCRequestIDKey, id,
		correlation.GRPCCorrelationIDKey, id,
	)
	if err := grpc.SetHeader(ctx, outMD); err != nil {
		s.logger.Warn("Failed to set correlation ID in response metadata",
			logger.String("method", info.FullMethod),
			logger.Error(err))
	}

	return handler(ctx, req)
}
