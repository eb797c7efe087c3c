// Package controlapi is the thinnest possible HTTP embedding of the
// Client Facade (spec §4.14): POST /tunnels, GET /tunnels,
// DELETE /tunnels/{id}, and GET /healthz. It is a convenience wrapper
// for local tooling, grounded on the teacher's internal/api server and
// internal/httputil JSON helpers — not a substitute for embedding the
// facade directly in Go.
package controlapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tunnelkit/tunnelkit/internal/client"
	"github.com/tunnelkit/tunnelkit/internal/errs"
	"github.com/tunnelkit/tunnelkit/internal/httputil"
	"github.com/tunnelkit/tunnelkit/internal/model"
	"github.com/tunnelkit/tunnelkit/internal/values"
)

// Handler adapts a *client.Client to net/http.
type Handler struct {
	client *client.Client
}

func New(c *client.Client) *Handler {
	return &Handler{client: c}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /tunnels", h.handleExpose)
	mux.HandleFunc("GET /tunnels", h.handleList)
	mux.HandleFunc("DELETE /tunnels/{id}", h.handleClose)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

type exposeRequest struct {
	Kind          string   `json:"kind"` // "http" or "tcp"
	LocalPort     int      `json:"local_port"`
	Path          string   `json:"path,omitempty"`
	CustomDomains []string `json:"custom_domains,omitempty"`
	RemotePort    *int     `json:"remote_port,omitempty"`
}

func (h *Handler) handleExpose(w http.ResponseWriter, r *http.Request) {
	var req exposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	localPort, err := values.PortOf(req.LocalPort)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	switch req.Kind {
	case "http":
		path, err := values.PathOf(req.Path)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		domains := make([]values.Domain, 0, len(req.CustomDomains))
		for _, d := range req.CustomDomains {
			domain, err := values.DomainOf(d)
			if err != nil {
				httputil.BadRequest(w, err.Error())
				return
			}
			domains = append(domains, domain)
		}
		tun, err := h.client.ExposeHTTP(r.Context(), localPort, path, domains, model.DefaultHTTPSpecOptions())
		if err != nil {
			errs.HTTPResponse(w, err)
			return
		}
		httputil.JSON(w, http.StatusCreated, tunnelView(tun))

	case "tcp":
		var remotePort *values.Port
		if req.RemotePort != nil {
			p, err := values.PortOf(*req.RemotePort)
			if err != nil {
				httputil.BadRequest(w, err.Error())
				return
			}
			remotePort = &p
		}
		tun, err := h.client.ExposeTCP(r.Context(), localPort, remotePort)
		if err != nil {
			errs.HTTPResponse(w, err)
			return
		}
		httputil.JSON(w, http.StatusCreated, tunnelView(tun))

	default:
		httputil.BadRequest(w, "kind must be \"http\" or \"tcp\"")
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tunnels := h.client.ListTunnels()
	views := make([]tunnelResponse, 0, len(tunnels))
	for _, tun := range tunnels {
		views = append(views, tunnelView(tun))
	}
	httputil.OK(w, views)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	id, err := values.TunnelIDOf(r.PathValue("id"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := h.client.CloseTunnel(r.Context(), id); err != nil {
		errs.HTTPResponse(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status":       "ok",
		"degraded":     h.client.Degraded(),
		"tunnel_count": len(h.client.ListTunnels()),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

type tunnelResponse struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

func tunnelView(tun model.Tunnel) tunnelResponse {
	view := tunnelResponse{
		ID:     tun.Spec().ID().String(),
		Status: tun.Status().String(),
	}
	if httpSpec, ok := tun.Spec().AsHTTP(); ok {
		view.Kind = "http"
		view.URL = httpSpec.URL()
		return view
	}
	view.Kind = "tcp"
	return view
}
