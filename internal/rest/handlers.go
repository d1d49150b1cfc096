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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-keyutils/pkg/health"
	"github.com/jeremyhahn/go-keyutils/pkg/keyring"
	"github.com/jeremyhahn/go-keyutils/pkg/metrics"
	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

const (
	// defaultMaxLinks bounds a links listing when the request does not
	// say how many entries it wants.
	defaultMaxLinks = 512

	// maxLinksCap bounds the read buffer a links listing may ask for.
	maxLinksCap = 65536
)

// HandlerContext holds dependencies for REST handlers.
type HandlerContext struct {
	// Version is the API version
	Version string
	// HealthChecker manages health check probes
	HealthChecker HealthChecker
}

// HealthChecker defines the interface for health checking.
type HealthChecker interface {
	Live(ctx context.Context) health.CheckResult
	Ready(ctx context.Context) []health.CheckResult
	Startup(ctx context.Context) health.CheckResult
}

// NewHandlerContext creates a new handler context. The handlers operate
// on the kernel keyrings of the process through pkg/keyring.
func NewHandlerContext(version string) *HandlerContext {
	return &HandlerContext{
		Version: version,
	}
}

// SetHealthChecker sets the health checker for the handler context.
func (h *HandlerContext) SetHealthChecker(checker HealthChecker) {
	h.HealthChecker = checker
}

// HealthHandler handles GET /healthz requests.
func (h *HandlerContext) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: h.Version,
	}
	writeJSON(w, resp, http.StatusOK)
}

// resolveRing turns the {ring} path parameter into a keyring handle,
// pinning special aliases to the real keyring of the daemon's context.
// Mutating handlers pass create so a per-context keyring instantiates
// on first use, the same lookup the corresponding syscall performs;
// read-only handlers leave an uninstantiated keyring unresolved.
func resolveRing(ref string, create bool) (keyring.Keyring, error) {
	if spec, err := types.ParseSpecialID(ref); err == nil {
		return keyring.FromSpecial(spec, create)
	}
	id, err := types.ParseID(ref)
	if err != nil {
		return keyring.Keyring{}, err
	}
	return keyring.FromID(id)
}

// pathKeyID parses the {id} path parameter as a key serial.
func pathKeyID(r *http.Request) (types.ID, error) {
	return types.ParseID(chi.URLParam(r, "id"))
}

// failOp records an operation error metric and writes the error response.
func failOp(w http.ResponseWriter, r *http.Request, op string, err error) {
	metrics.RecordError(op, errorLabel(err))
	handleError(w, r, err)
}

// GetKeyringHandler handles GET /api/v1/keyrings/{ring} requests. It
// resolves the keyring reference and returns the keyring's metadata.
func (h *HandlerContext) GetKeyringHandler(w http.ResponseWriter, r *http.Request) {
	timer := metrics.NewTimer(metrics.OpResolve)
	ring, err := resolveRing(chi.URLParam(r, "ring"), false)
	var meta types.Metadata
	if err == nil {
		meta, err = ring.Metadata()
	}
	timer.Observe(err)
	if err != nil {
		failOp(w, r, metrics.OpResolve, err)
		return
	}

	writeJSON(w, newKeyInfo(ring.ID(), meta), http.StatusOK)
}

// ListLinksHandler handles GET /api/v1/keyrings/{ring}/links requests.
// The max query parameter bounds how many entries are read; entries
// beyond it are left out, matching the kernel's whole-entries-only
// buffer behavior.
func (h *HandlerContext) ListLinksHandler(w http.ResponseWriter, r *http.Request) {
	maxEntries := defaultMaxLinks
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: max must be an integer", ErrInvalidRequest), http.StatusBadRequest)
			return
		}
		if n > maxLinksCap {
			writeError(w, r, fmt.Errorf("%w: max exceeds the limit of %d entries", ErrInvalidRequest, maxLinksCap), http.StatusBadRequest)
			return
		}
		maxEntries = n
	}

	timer := metrics.NewTimer(metrics.OpListLinks)
	ring, err := resolveRing(chi.URLParam(r, "ring"), false)
	var links keyring.Links
	if err == nil {
		links, err = ring.Links(maxEntries)
	}
	timer.Observe(err)
	if err != nil {
		failOp(w, r, metrics.OpListLinks, err)
		return
	}

	nodes := links.Nodes()
	resp := ListLinksResponse{
		Ring:  int32(ring.ID()),
		Count: len(nodes),
		Links: make([]LinkInfo, 0, len(nodes)),
	}
	for _, node := range nodes {
		meta := node.Metadata()
		resp.Links = append(resp.Links, LinkInfo{
			ID:          int32(node.ID()),
			Kind:        string(node.Kind()),
			Type:        meta.Type.String(),
			UID:         meta.UID,
			GID:         meta.GID,
			Permissions: fmt.Sprintf("0x%08x", meta.Permissions.Mask()),
			Description: meta.Description,
		})
	}

	writeJSON(w, resp, http.StatusOK)
}

// AddKeyHandler handles POST /api/v1/keyrings/{ring}/keys requests. If
// the keyring already holds a user key with the same description the
// kernel updates it in place and the existing serial comes back.
func (h *HandlerContext) AddKeyHandler(w http.ResponseWriter, r *http.Request) {
	var req AddKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	timer := metrics.NewTimer(metrics.OpAddKey)
	ring, err := resolveRing(chi.URLParam(r, "ring"), true)
	var key keyring.Key
	if err == nil {
		key, err = ring.AddKey(req.Description, req.Payload)
	}
	timer.Observe(err)
	if err != nil {
		failOp(w, r, metrics.OpAddKey, err)
		return
	}

	resp := AddKeyResponse{
		ID:          int32(key.ID()),
		Description: req.Description,
	}
	writeJSON(w, resp, http.StatusCreated)
}

// SearchHandler handles GET /api/v1/keyrings/{ring}/search requests,
// performing the kernel's breadth-first search from the keyring.
func (h *HandlerContext) SearchHandler(w http.ResponseWriter, r *http.Request) {
	description := r.URL.Query().Get("description")
	if description == "" {
		writeError(w, r, fmt.Errorf("%w: description query parameter is required", ErrInvalidRequest), http.StatusBadRequest)
		return
	}

	timer := metrics.NewTimer(metrics.OpSearch)
	ring, err := resolveRing(chi.URLParam(r, "ring"), false)
	var key keyring.Key
	var meta types.Metadata
	if err == nil {
		key, err = ring.Search(description)
	}
	if err == nil {
		meta, err = key.Metadata()
	}
	timer.Observe(err)
	if err != nil {
		failOp(w, r, metrics.OpSearch, err)
		return
	}

	writeJSON(w, newKeyInfo(key.ID(), meta), http.StatusOK)
}

// LinkHandler handles POST /api/v1/keyrings/{ring}/links requests.
func (h *HandlerContext) LinkHandler(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	timer := metrics.NewTimer(metrics.OpLink)
	ring, err := resolveRing(chi.URLParam(r, "ring"), true)
	var key keyring.Key
	if err == nil {
		key, err = keyring.KeyFromID(types.ID(req.ID))
	}
	if err == nil {
		err = ring.LinkKey(key)
	}
	timer.Observe(err)
	if err != nil {
		failOp(w, r, metrics.OpLink, err)
		return
	}

	writeJSON(w, SuccessResponse{Success: true, Message: "Key linked"}, http.StatusOK)
}

// UnlinkHandler handles DELETE /api/v1/keyrings/{ring}/links/{id} requests.
func (h *HandlerContext) UnlinkHandler(w http.ResponseWriter, r *http.Request) {
	timer := metrics.NewTimer(metrics.OpUnlink)
	ring, err := resolveRing(chi.URLParam(r, "ring"), false)
	var id types.ID
	if err == nil {
		id, err = pathKeyID(r)
	}
	var key keyring.Key
	if err == nil {
		key, err = keyring.KeyFromID(id)
	}
	if err == nil {
		err = ring.UnlinkKey(key)
	}
	timer.Observe(err)
	if err != nil {
		failOp(w, r, metrics.OpUnlink, err)
		return
	}

	writeJSON(w, SuccessResponse{Success: true, Message: "Key unlinked"}, http.StatusOK)
}

// ClearHandler handles DELETE /api/v1/keyrings/{ring}/keys requests,
// atomically removing every link from the keyring.
func (h *HandlerContext) ClearHandler(w http.ResponseWriter, r *http.Request) {
	timer := metrics.NewTimer(metrics.OpClear)
	ring, err := resolveRing(chi.URLParam(r, "ring"), true)
	if err == nil {
		err = ring.Clear()
	}
	timer.Observe(err)
	if err != nil {
		failOp(w, r, metrics.OpClear, err)
		return
	}

	writeJSON(w, SuccessResponse{Success: true, Message: "Keyring cleared"}, http.StatusOK)
}

// GetKeyHandler handles GET /api/v1/keys/{id} requests.
func (h *HandlerContext) GetKeyHandler(w http.ResponseWriter, r *http.Request) {
	timer := metrics.NewTimer(metrics.OpDescribe)
	id, err := pathKeyID(r)
	var key keyring.Key
	if err == nil {
		key, err = keyring.KeyFromID(id)
	}
	var meta types.Metadata
	if err == nil {
		meta, err = key.Metadata()
	}
	timer.Observe(err)
	if err != nil {
		failOp(w, r, metrics.OpDescribe, err)
		return
	}

	writeJSON(w, newKeyInfo(key.ID(), meta), http.StatusOK)
}

// ReadKeyHandler handles GET /api/v1/keys/{id}/payload requests.
func (h *HandlerContext) ReadKeyHandler(w http.ResponseWriter, r *http.Request) {
	timer := metrics.NewTimer(metrics.OpRead)
	id, err := pathKeyID(r)
	var key keyring.Key
	if err == nil {
		key, err = keyring.KeyFromID(id)
	}
	var payload []byte
	if err == nil {
		payload, err = key.Read()
	}
	timer.Observe(err)
	if err != nil {
		failOp(w, r, metrics.OpRead, err)
		return
	}

	writeJSON(w, PayloadResponse{ID: int32(key.ID()), Payload: payload}, http.StatusOK)
}

// UpdateKeyHandler handles PUT /api/v1/keys/{id} requests, replacing
// the key's payload.
func (h *HandlerContext) UpdateKeyHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	timer := metrics.NewTimer(metrics.OpUpdate)
	id, err := pathKeyID(r)
	var key keyring.Key
	if err == nil {
		key, err = keyring.KeyFromID(id)
	}
	if err == nil {
		err = key.Update(req.Payload)
	}
	timer.Observe(err)
	if err != nil {
		failOp(w, r, metrics.OpUpdate, err)
		return
	}

	writeJSON(w, SuccessResponse{Success: true, Message: "Key updated"}, http.StatusOK)
}

// DeleteKeyHandler handles DELETE /api/v1/keys/{id} requests. The mode
// query parameter selects revocation (default) or invalidation.
func (h *HandlerContext) DeleteKeyHandler(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "revoke"
	}

	var op, message string
	switch mode {
	case "revoke":
		op = metrics.OpRevoke
		message = "Key revoked"
	case "invalidate":
		op = metrics.OpInvalidate
		message = "Key invalidated"
	default:
		writeError(w, r, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, mode), http.StatusBadRequest)
		return
	}

	timer := metrics.NewTimer(op)
	id, err := pathKeyID(r)
	var key keyring.Key
	if err == nil {
		key, err = keyring.KeyFromID(id)
	}
	if err == nil {
		if mode == "revoke" {
			err = key.Revoke()
		} else {
			err = key.Invalidate()
		}
	}
	timer.Observe(err)
	if err != nil {
		failOp(w, r, op, err)
		return
	}

	writeJSON(w, SuccessResponse{Success: true, Message: message}, http.StatusOK)
}

// TimeoutHandler handles PUT /api/v1/keys/{id}/timeout requests. A
// timeout of zero seconds clears any existing expiry.
func (h *HandlerContext) TimeoutHandler(w http.ResponseWriter, r *http.Request) {
	var req TimeoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	timer := metrics.NewTimer(metrics.OpSetTimeout)
	id, err := pathKeyID(r)
	var key keyring.Key
	if err == nil {
		key, err = keyring.KeyFromID(id)
	}
	if err == nil {
		err = key.SetTimeout(time.Duration(req.Seconds) * time.Second)
	}
	timer.Observe(err)
	if err != nil {
		failOp(w, r, metrics.OpSetTimeout, err)
		return
	}

	writeJSON(w, SuccessResponse{Success: true, Message: "Timeout set"}, http.StatusOK)
}

// PermissionsHandler handles PUT /api/v1/keys/{id}/permissions
// requests, replacing the key's permission mask.
func (h *HandlerContext) PermissionsHandler(w http.ResponseWriter, r *http.Request) {
	var req PermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	perm, err := types.ParsePermissions(req.Permissions)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	timer := metrics.NewTimer(metrics.OpSetPerm)
	id, err := pathKeyID(r)
	var key keyring.Key
	if err == nil {
		key, err = keyring.KeyFromID(id)
	}
	if err == nil {
		err = key.SetPermissions(perm)
	}
	timer.Observe(err)
	if err != nil {
		failOp(w, r, metrics.OpSetPerm, err)
		return
	}

	writeJSON(w, SuccessResponse{Success: true, Message: "Permissions set"}, http.StatusOK)
}
