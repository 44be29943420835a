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

	"github.com/jeremyhahn/go-databox/pkg/crypto/secure"
	"github.com/jeremyhahn/go-databox/pkg/threshold"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Service implements SecretSharingServer over a threshold.Service.
type Service struct {
	sharing *threshold.Service
}

var _ SecretSharingServer = (*Service)(nil)

// NewService creates a new gRPC service.
func NewService(sharing *threshold.Service) *Service {
	return &Service{sharing: sharing}
}

// Split splits req.Secret. The request buffer is zeroed afterwards.
func (s *Service) Split(ctx context.Context, req *SplitRequest) (*SplitResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	defer secure.Wipe(req.Secret)

	result, err := s.sharing.Split(ctx, threshold.SplitRequest{
		Secret:    req.Secret,
		Threshold: int(req.Threshold),
		Shares:    int(req.Shares),
		Scheme:    req.Scheme,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return &SplitResponse{
		Shares:    result.Shares,
		Threshold: int32(result.Threshold),
		Count:     int32(result.Count),
		Scheme:    result.Scheme,
		Version:   int32(result.Version),
	}, nil
}

// Combine recovers a secret from req.Shares.
func (s *Service) Combine(ctx context.Context, req *CombineRequest) (*CombineResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	result, err := s.sharing.Combine(ctx, req.Shares)
	if err != nil {
		return nil, toStatus(err)
	}

	return &CombineResponse{
		Secret: result.Secret,
		Scheme: result.Scheme,
	}, nil
}

// ListSchemes describes the registered schemes.
func (s *Service) ListSchemes(ctx context.Context, req *ListSchemesRequest) (*ListSchemesResponse, error) {
	return &ListSchemesResponse{
		Schemes: s.sharing.Schemes(),
		Default: s.sharing.DefaultScheme(),
	}, nil
}

// toStatus maps service errors to gRPC status codes. Internal errors are
// not echoed to the caller.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch threshold.ErrorKind(err) {
	case threshold.KindSecretTooLarge:
		return status.Error(codes.OutOfRange, err.Error())
	case threshold.KindTimeout:
		return status.Error(codes.DeadlineExceeded, err.Error())
	case threshold.KindCanceled:
		return status.Error(codes.Canceled, err.Error())
	}
	if threshold.IsClientError(err) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}
