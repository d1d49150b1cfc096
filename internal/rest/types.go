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

package rest

import (
	"fmt"

	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// KeyInfo describes a key or keyring as the kernel reports it. The
// permission mask is rendered as a hexadecimal string.
type KeyInfo struct {
	ID          int32  `json:"id"`
	Type        string `json:"type"`
	UID         int    `json:"uid"`
	GID         int    `json:"gid"`
	Permissions string `json:"permissions"`
	Description string `json:"description"`
}

// newKeyInfo builds a KeyInfo from a serial number and its metadata.
func newKeyInfo(id types.ID, meta types.Metadata) KeyInfo {
	return KeyInfo{
		ID:          int32(id),
		Type:        meta.Type.String(),
		UID:         meta.UID,
		GID:         meta.GID,
		Permissions: fmt.Sprintf("0x%08x", meta.Permissions.Mask()),
		Description: meta.Description,
	}
}

// LinkInfo represents one entry in a keyring's link list.
type LinkInfo struct {
	ID          int32  `json:"id"`
	Kind        string `json:"kind"`
	Type        string `json:"type"`
	UID         int    `json:"uid"`
	GID         int    `json:"gid"`
	Permissions string `json:"permissions"`
	Description string `json:"description"`
}

// ListLinksResponse represents the response for listing a keyring's links.
type ListLinksResponse struct {
	Ring  int32      `json:"ring"`
	Count int        `json:"count"`
	Links []LinkInfo `json:"links"`
}

// AddKeyRequest represents a request to add a key to a keyring.
// Payload is base64 in JSON.
type AddKeyRequest struct {
	Description string `json:"description"`
	Payload     []byte `json:"payload,omitempty"`
}

// AddKeyResponse represents the response for adding a key.
type AddKeyResponse struct {
	ID          int32  `json:"id"`
	Description string `json:"description"`
}

// LinkRequest represents a request to link a key into a keyring.
type LinkRequest struct {
	ID int32 `json:"id"`
}

// UpdateKeyRequest represents a request to replace a key's payload.
type UpdateKeyRequest struct {
	Payload []byte `json:"payload"`
}

// PayloadResponse represents a key payload read back from the kernel.
type PayloadResponse struct {
	ID      int32  `json:"id"`
	Payload []byte `json:"payload"`
}

// TimeoutRequest represents a request to set a key's expiry timeout.
// Zero clears any existing timeout.
type TimeoutRequest struct {
	Seconds uint32 `json:"seconds"`
}

// PermissionsRequest represents a request to replace a key's permission
// mask. The mask is a hexadecimal string, with or without a 0x prefix.
type PermissionsRequest struct {
	Permissions string `json:"permissions"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	Code          int    `json:"code,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// SuccessResponse represents a generic success response.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
