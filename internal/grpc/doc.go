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

// Package grpc exposes the secret sharing service over gRPC.
//
// The service is registered as databox.v1.SecretSharing with three unary
// methods: Split, Combine and ListSchemes. Messages are plain Go structs
// carried by a JSON codec registered under the "json" content subtype, so
// no generated stubs are needed. Clients select it per call:
//
//	conn, _ := grpc.NewClient(addr,
//	    grpc.WithTransportCredentials(insecure.NewCredentials()),
//	    grpc.WithDefaultCallOptions(grpc.CallContentSubtype(grpc.CodecName)))
//	client := grpc.NewSecretSharingClient(conn)
//	resp, _ := client.Split(ctx, &grpc.SplitRequest{
//	    Secret: []byte("hunter2"), Threshold: 2, Shares: 3,
//	})
//
// Every call passes through correlation, metrics, rate limiting,
// authentication, logging, recovery and error mapping interceptors. Engine
// errors map to InvalidArgument, SecretTooLarge to OutOfRange, failed
// authentication to Unauthenticated and rate limiting to ResourceExhausted.
package grpc
