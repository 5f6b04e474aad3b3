// Copyright 2025 Open E-Line Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mgmtapi implements the controller's management API: circuit CRUD,
// topology administration and the inbound hooks other control plane
// applications call.
package mgmtapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/open-eline/eline/eline"
	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/eline/topology"
	"github.com/open-eline/eline/pkg/log"
)

// Server serves the management API.
type Server struct {
	Controller *eline.Controller
}

// Router builds the API routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/v2/evc", func(r chi.Router) {
		r.Get("/", s.listCircuits)
		r.Post("/", s.createCircuit)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getCircuit)
			r.Patch("/", s.updateCircuit)
			r.Delete("/", s.deleteCircuit)
			r.Patch("/redeploy", s.redeployCircuit)
			r.Get("/metadata", s.getMetadata)
			r.Post("/metadata", s.addMetadata)
			r.Delete("/metadata/{key}", s.deleteMetadata)
		})
	})
	r.Route("/v2/topology", func(r chi.Router) {
		r.Get("/links", s.listLinks)
		r.Post("/links", s.addLink)
		r.Put("/links/{id}/status", s.setLinkStatus)
	})
	r.Post("/v2/hooks/flow_removed", s.flowRemoved)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) listCircuits(w http.ResponseWriter, r *http.Request) {
	evcs := s.Controller.Registry.All()
	out := make(map[string]circuit.Record, len(evcs))
	for _, evc := range evcs {
		out[evc.ID] = evc.Record()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createCircuit(w http.ResponseWriter, r *http.Request) {
	var req circuitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	params, err := req.toParams(s.Controller.Topology)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	evc, err := s.Controller.CreateCircuit(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"circuit_id": evc.ID})
}

// lookup returns the non-archived circuit addressed by the request, writing
// a 404 when there is none.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *circuit.EVC {
	id := chi.URLParam(r, "id")
	evc := s.Controller.Registry.Get(id)
	if evc == nil || evc.IsArchived() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "circuit not found"})
		return nil
	}
	return evc
}

func (s *Server) getCircuit(w http.ResponseWriter, r *http.Request) {
	evc := s.lookup(w, r)
	if evc == nil {
		return
	}
	writeJSON(w, http.StatusOK, evc.Record())
}

func (s *Server) updateCircuit(w http.ResponseWriter, r *http.Request) {
	evc := s.lookup(w, r)
	if evc == nil {
		return
	}
	var req circuitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	patch, err := req.toPatch(s.Controller.Topology)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := s.Controller.UpdateCircuit(r.Context(), evc.ID, patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, evc.Record())
}

func (s *Server) deleteCircuit(w http.ResponseWriter, r *http.Request) {
	evc := s.lookup(w, r)
	if evc == nil {
		return
	}
	if err := s.Controller.DeleteCircuit(r.Context(), evc.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "circuit deleted"})
}

func (s *Server) redeployCircuit(w http.ResponseWriter, r *http.Request) {
	evc := s.lookup(w, r)
	if evc == nil {
		return
	}
	if err := s.Controller.RedeployCircuit(r.Context(), evc.ID); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"result": "circuit redeployed"})
}

func (s *Server) getMetadata(w http.ResponseWriter, r *http.Request) {
	evc := s.lookup(w, r)
	if evc == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metadata": evc.Metadata()})
}

func (s *Server) addMetadata(w http.ResponseWriter, r *http.Request) {
	evc := s.lookup(w, r)
	if evc == nil {
		return
	}
	var md map[string]any
	if err := json.NewDecoder(r.Body).Decode(&md); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	evc.MergeMetadata(md)
	evc.Touch()
	s.Controller.Engine.Sync(r.Context(), evc)
	writeJSON(w, http.StatusCreated, map[string]string{"result": "metadata added"})
}

func (s *Server) deleteMetadata(w http.ResponseWriter, r *http.Request) {
	evc := s.lookup(w, r)
	if evc == nil {
		return
	}
	evc.DeleteMetadata(chi.URLParam(r, "key"))
	evc.Touch()
	s.Controller.Engine.Sync(r.Context(), evc)
	writeJSON(w, http.StatusOK, map[string]string{"result": "metadata deleted"})
}

func (s *Server) listLinks(w http.ResponseWriter, r *http.Request) {
	links := s.Controller.Topology.Links()
	out := make([]linkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, linkResponse{
			ID:        l.ID,
			EndpointA: interfaceDTO{Switch: l.EndpointA.Switch.ID, Port: l.EndpointA.Port},
			EndpointB: interfaceDTO{Switch: l.EndpointB.Switch.ID, Port: l.EndpointB.Port},
			Status:    l.Status().String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) addLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	topo := s.Controller.Topology
	a := topo.AddInterface(req.EndpointA.Switch, req.EndpointA.Port)
	b := topo.AddInterface(req.EndpointB.Switch, req.EndpointB.Port)
	lo := req.TagRangeFirst
	hi := req.TagRangeLast
	if lo == 0 {
		lo = s.Controller.Cfg.Eline.TagRangeFirst
	}
	if hi == 0 {
		hi = s.Controller.Cfg.Eline.TagRangeLast
	}
	link := topology.NewLinkWithTagRange(req.ID, a, b, lo, hi)
	if err := topo.AddLink(link); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"result": "link added"})
}

func (s *Server) setLinkStatus(w http.ResponseWriter, r *http.Request) {
	var req linkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var status topology.Status
	switch req.Status {
	case "up", "UP":
		status = topology.StatusUp
	case "down", "DOWN":
		status = topology.StatusDown
	default:
		writeJSON(w, http.StatusBadRequest,
			map[string]string{"error": "status must be up or down"})
		return
	}
	if err := s.Controller.Topology.SetLinkStatus(chi.URLParam(r, "id"), status); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "status updated"})
}

func (s *Server) flowRemoved(w http.ResponseWriter, r *http.Request) {
	var req flowRemovedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.Controller.HandleFlowRemoved(r.Context(), req.Cookie)
	log.FromCtx(r.Context()).Debug("Flow removed hook", "cookie", req.Cookie)
	writeJSON(w, http.StatusOK, map[string]string{"result": "acknowledged"})
}
