// ABOUTME: HTTP API handlers: connect, qr, status, send-message, tenants.
// ABOUTME: Translates tenant requests into supervisor calls and JSON responses.

package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/conversia/flow-gateway/internal/session"
	"github.com/conversia/flow-gateway/internal/transport"
)

// ConnectResponse is the JSON response for /connect.
type ConnectResponse struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
}

// QRResponse is the JSON response for /qr. QR is a base64 PNG without a
// data-URI prefix, or null when no pairing is pending.
type QRResponse struct {
	QR *string `json:"qr"`
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Ready bool `json:"ready"`
}

// SendMessageRequest is the JSON request body for POST /send-message.
type SendMessageRequest struct {
	ClientID string `json:"client_id,omitempty"`
	To       string `json:"to"`
	Message  string `json:"message"`
}

// TenantInfo is one entry in the /tenants listing.
type TenantInfo struct {
	ClientID string `json:"client_id"`
	State    string `json:"state"`
	Ready    bool   `json:"ready"`
}

// qrPNGSize is the pixel size of the generated QR image.
const qrPNGSize = 256

// clientID resolves the tenant for a request, falling back to the
// configured default when client_id is absent.
func (g *Gateway) clientID(r *http.Request) string {
	if id := r.URL.Query().Get("client_id"); id != "" {
		return id
	}
	return g.config.Sessions.DefaultClientID
}

// handleConnect handles /connect. Any method is accepted; the WordPress
// plugin family issues both GET and POST. Starting an already-active tenant
// is a no-op reported as its current status.
func (g *Gateway) handleConnect(w http.ResponseWriter, r *http.Request) {
	clientID := g.clientID(r)

	created, err := g.supervisor.Start(r.Context(), clientID)
	if err != nil {
		g.logger.Error("connect failed", "client_id", clientID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	// Registry write is best-effort: the session is already up.
	if err := g.tenants.SaveTenant(r.Context(), clientID); err != nil {
		g.logger.Error("persisting tenant failed", "client_id", clientID, "error", err)
	}

	status := "pending"
	switch {
	case g.supervisor.State(clientID) == session.StateReady:
		status = "active"
	case created:
		status = "starting"
	}

	g.writeJSON(w, http.StatusOK, ConnectResponse{Status: status, ClientID: clientID})
}

// handleQR handles GET /qr. An unknown tenant or a session past pairing
// returns {"qr": null}, never an error.
func (g *Gateway) handleQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	clientID := g.clientID(r)
	code := g.supervisor.PairingArtifact(clientID)
	if code == "" {
		g.writeJSON(w, http.StatusOK, QRResponse{QR: nil})
		return
	}

	png, err := qrcode.Encode(code, qrcode.Medium, qrPNGSize)
	if err != nil {
		g.logger.Error("encoding qr failed", "client_id", clientID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to encode qr")
		return
	}

	img := base64.StdEncoding.EncodeToString(png)
	g.writeJSON(w, http.StatusOK, QRResponse{QR: &img})
}

// handleStatus handles GET /status.
func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	clientID := g.clientID(r)
	g.writeJSON(w, http.StatusOK, StatusResponse{
		Ready: g.supervisor.State(clientID) == session.StateReady,
	})
}

// handleSendMessage handles POST /send-message. Missing fields are a 400;
// a tenant without a connected session is a 404 and no transport call is
// attempted.
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.To == "" || req.Message == "" {
		g.sendJSONError(w, http.StatusBadRequest, "to and message are required")
		return
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = g.config.Sessions.DefaultClientID
	}

	recipient, ok := normalizeRecipient(req.To, g.config.Sessions.RecipientSuffix)
	if !ok {
		g.sendJSONError(w, http.StatusBadRequest, "invalid recipient")
		return
	}

	err := g.supervisor.Send(r.Context(), clientID, recipient, transport.OutboundMessage{Text: req.Message})
	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, transport.ErrNotConnected):
		g.sendJSONError(w, http.StatusNotFound, "client not connected")
		return
	case err != nil:
		g.logger.Error("send failed", "client_id", clientID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	g.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleDisconnect handles POST /disconnect. Stops the tenant's session,
// releases its transport handle, and unregisters the tenant so it is not
// restored on the next boot.
func (g *Gateway) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	clientID := g.clientID(r)
	if err := g.supervisor.Stop(clientID); err != nil {
		g.sendJSONError(w, http.StatusNotFound, "client not connected")
		return
	}

	if err := g.tenants.DeleteTenant(r.Context(), clientID); err != nil {
		g.logger.Error("removing tenant from registry", "client_id", clientID, "error", err)
	}

	g.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleTenants handles GET /tenants: every tenant with a session record
// and its lifecycle state.
func (g *Gateway) handleTenants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ids := g.supervisor.Store().ListIDs()
	out := make([]TenantInfo, 0, len(ids))
	for _, id := range ids {
		state := g.supervisor.State(id)
		out = append(out, TenantInfo{
			ClientID: id,
			State:    state.String(),
			Ready:    state == session.StateReady,
		})
	}
	g.writeJSON(w, http.StatusOK, out)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// normalizeRecipient turns raw recipient input into a platform address.
// Anything already containing "@" passes through untouched; otherwise
// non-digit characters are stripped and the domain suffix appended.
func normalizeRecipient(raw, suffix string) (string, bool) {
	if strings.Contains(raw, "@") {
		return raw, true
	}

	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return "", false
	}
	return digits.String() + suffix, true
}

// writeJSON writes a JSON response with the given status code.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("encoding response failed", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, msg string) {
	g.writeJSON(w, status, map[string]string{"error": msg})
}
