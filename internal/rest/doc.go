// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keyutils.
//
// go-keyutils is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package rest provides the REST API server for keyringd.
//
// The API exposes the kernel key retention service of the host the
// daemon runs on: resolving keyrings, adding and requesting keys,
// searching, listing keyring links, and key lifecycle operations. All
// keyring access happens with the daemon's own credentials, so the
// daemon sees the keyrings of the user it runs as.
//
// # Server Setup
//
//	import (
//	    "github.com/jeremyhahn/go-keyutils/internal/rest"
//	)
//
//	server, _ := rest.NewServer(&rest.Config{
//	    Host:    "localhost",
//	    Port:    8443,
//	    Version: "1.0.0",
//	})
//
//	go server.Start()
//
//	// Graceful shutdown
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	server.Stop(ctx)
//
// # API Endpoints
//
// Health:
//   - GET /healthz - Returns server health status
//   - GET /healthz/live - Liveness probe
//   - GET /healthz/ready - Readiness probe
//   - GET /healthz/startup - Startup probe
//
// Keyrings:
//   - GET /api/v1/keyrings/{ring} - Resolve a keyring and return its metadata
//   - GET /api/v1/keyrings/{ring}/links?max=N - List the keyring's links
//   - POST /api/v1/keyrings/{ring}/keys - Add a key to the keyring
//   - DELETE /api/v1/keyrings/{ring}/keys - Clear the keyring
//   - GET /api/v1/keyrings/{ring}/search?description=D - Search the keyring tree
//   - POST /api/v1/keyrings/{ring}/links - Link a key into the keyring
//   - DELETE /api/v1/keyrings/{ring}/links/{id} - Unlink a key from the keyring
//
// Keys:
//   - GET /api/v1/keys/{id} - Get key metadata
//   - GET /api/v1/keys/{id}/payload - Read the key payload
//   - PUT /api/v1/keys/{id} - Update the key payload
//   - DELETE /api/v1/keys/{id}?mode=revoke|invalidate - Revoke or invalidate
//   - PUT /api/v1/keys/{id}/timeout - Set the key's expiry timeout
//   - PUT /api/v1/keys/{id}/permissions - Replace the key's permission mask
//
// The {ring} path parameter accepts the keyctl-style special keyring
// aliases (@t, @p, @s, @u, @us, @g) or a decimal serial number. Special
// aliases are resolved to the real keyring once per request.
//
// # Request/Response Format
//
// All requests and responses use JSON. Key payloads are base64 strings
// in JSON bodies. Permission masks are hexadecimal strings such as
// "0x3f030000".
//
// Example add request:
//
//	POST /api/v1/keyrings/@s/keys
//	{
//	  "description": "service:token",
//	  "payload": "c2VjcmV0"
//	}
//
// # Error Handling
//
// Kernel key errors map onto HTTP status codes:
//   - 400 Bad Request - Invalid identifiers, descriptions, or arguments
//   - 403 Forbidden - The daemon lacks permission on the key
//   - 404 Not Found - No matching key or keyring
//   - 409 Conflict - A link would create a cycle or exceed nesting depth
//   - 410 Gone - The key was revoked, expired, or negatively instantiated
//   - 507 Insufficient Storage - The user's key quota is exhausted
//   - 500 Internal Server Error - Unclassified kernel errors
//
// Error responses include a JSON body with the correlation ID of the
// failed request:
//
//	{
//	  "error": "keyutils: key not found",
//	  "code": 404,
//	  "correlation_id": "d8f7..."
//	}
//
// # Middleware
//
// The server includes the following middleware:
//   - Recovery - Recovers from panics and returns 500 errors
//   - Correlation - Propagates or generates X-Correlation-ID headers
//   - Logging - Logs all HTTP requests with timing
//   - Metrics - Records Prometheus request counters and durations
//   - Rate limiting - Optional per-client token buckets
//   - CORS - Adds CORS headers for cross-origin requests
//
// # Security Considerations
//
// The API carries no authentication of its own and operates with the
// daemon's credentials against the daemon's keyrings. Bind it to
// localhost or put it behind an authenticating reverse proxy; anyone
// who can reach it can read every key payload the daemon can read.
package rest
