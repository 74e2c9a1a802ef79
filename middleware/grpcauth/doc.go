// Package grpcauth authenticates gRPC calls with the session engine.
//
// Credentials are read from incoming metadata: "authorization" for bearer
// credentials and "cookie" for session cookies forwarded by a gateway.
// Calls with forwarded cookies must echo the CSRF cookie in "x-csrf-token"
// metadata unless their method is registered with WithReadOnlyMethods.
// Failures map to codes.Unauthenticated, CSRF rejections to
// codes.PermissionDenied, and store outages to codes.Unavailable. The resolution is stored in the context and can be read
// with middleware.ResolutionFromContext.
package grpcauth
