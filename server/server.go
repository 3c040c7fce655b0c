/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package server exposes sketches over an HTTP JSON API. Sketches live in a
// Registry that caches decoded sketches over a store.Store.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/count"
	"github.com/streamsketch/sketches-go/fm"
	"github.com/streamsketch/sketches-go/store"
)

type JSON map[string]any

// Server routes API requests to a Registry.
type Server struct {
	reg          *Registry
	logger       *slog.Logger
	router       *mux.Router
	maxBodyBytes int64
}

// New builds the router. maxBodyBytes caps request bodies; zero means 32 MiB.
func New(reg *Registry, logger *slog.Logger, maxBodyBytes int64) *Server {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 32 << 20
	}
	s := &Server{reg: reg, logger: logger, router: mux.NewRouter(), maxBodyBytes: maxBodyBytes}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.logRequests)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	r.HandleFunc("/v1/sketches", s.createSketch).Methods(http.MethodPost)
	r.HandleFunc("/v1/sketches", s.listSketches).Methods(http.MethodGet)
	r.HandleFunc("/v1/sketches/{id}", s.getSketch).Methods(http.MethodGet)
	r.HandleFunc("/v1/sketches/{id}", s.deleteSketch).Methods(http.MethodDelete)
	r.HandleFunc("/v1/sketches/{id}/data", s.getData).Methods(http.MethodGet)
	r.HandleFunc("/v1/sketches/{id}/values", s.insertValues).Methods(http.MethodPost)
	r.HandleFunc("/v1/sketches/{id}/merge", s.mergeSketch).Methods(http.MethodPost)

	// Queries
	r.HandleFunc("/v1/sketches/{id}/count", s.pointCount).Methods(http.MethodGet)
	r.HandleFunc("/v1/sketches/{id}/range", s.rangeCount).Methods(http.MethodGet)
	r.HandleFunc("/v1/sketches/{id}/centile", s.centile).Methods(http.MethodGet)
	r.HandleFunc("/v1/sketches/{id}/histogram", s.histogram).Methods(http.MethodGet)
	r.HandleFunc("/v1/sketches/{id}/estimate", s.estimate).Methods(http.MethodGet)
	r.HandleFunc("/v1/sketches/{id}/top", s.top).Methods(http.MethodGet)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", id,
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrDimensionMismatch):
		return http.StatusConflict
	case errors.Is(err, common.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrDomain), errors.Is(err, common.ErrFormat),
		errors.Is(err, common.ErrIndex), errors.Is(err, common.ErrConfig):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, JSON{"error": err.Error()})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %v: %w", err, common.ErrFormat)
	}
	return nil
}

func queryInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("query parameter %s: %v: %w", name, err, common.ErrDomain)
	}
	return v, nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	v, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
	if err != nil {
		return 0, fmt.Errorf("query parameter %s: %v: %w", name, err, common.ErrDomain)
	}
	return v, nil
}

// normalizeValue turns a decoded JSON value into a scalar the sketches accept.
func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("value %s: %w", x, common.ErrFormat)
		}
		return f, nil
	case string, bool:
		return x, nil
	}
	return nil, fmt.Errorf("value %v (%T) is not a scalar: %w", v, v, common.ErrFormat)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int64(x), nil
		}
	}
	return 0, fmt.Errorf("%v is not an integer: %w", v, common.ErrDomain)
}

func unsupported(family, op string) error {
	return fmt.Errorf("%s sketches do not answer %s queries: %w", family, op, common.ErrDomain)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, JSON{"status": "ok"})
}

type createRequest struct {
	Name   string `json:"name"`
	Family string `json:"family"`
}

func (s *Server) createSketch(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.reg.Create(r.Context(), req.Name, req.Family)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) listSketches(w http.ResponseWriter, r *http.Request) {
	recs, err := s.reg.List(r.Context(), r.URL.Query().Get("family"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	writeJSON(w, http.StatusOK, JSON{"sketches": recs})
}

func (s *Server) getSketch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	data, err := s.reg.Data(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var summary any
	err = s.reg.With(r.Context(), id, func(rec store.Record, sketch any) error {
		var err error
		switch sketch.(type) {
		case *fm.DistinctCountSketch:
			summary, err = fm.Describe(data)
		default:
			summary, err = count.Describe(data)
		}
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, JSON{"sketch": rec, "summary": summary})
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
	}
}

func (s *Server) deleteSketch(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getData(w http.ResponseWriter, r *http.Request) {
	data, err := s.reg.Data(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type insertRequest struct {
	Values []any `json:"values"`
}

func (s *Server) insertValues(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	values := make([]any, len(req.Values))
	for i, v := range req.Values {
		var err error
		if values[i], err = normalizeValue(v); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	rec, err := s.reg.Insert(r.Context(), mux.Vars(r)["id"], values)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, JSON{"sketch": rec, "inserted": len(values)})
}

type mergeRequest struct {
	Source string `json:"source"`
}

func (s *Server) mergeSketch(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.reg.Merge(r.Context(), mux.Vars(r)["id"], req.Source)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, JSON{"sketch": rec})
}

// query runs fn on the sketch named in the path and writes its result.
func (s *Server) query(w http.ResponseWriter, r *http.Request, fn func(rec store.Record, sketch any) (any, error)) {
	var out any
	err := s.reg.With(r.Context(), mux.Vars(r)["id"], func(rec store.Record, sketch any) error {
		var err error
		out, err = fn(rec, sketch)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) pointCount(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, func(rec store.Record, sketch any) (any, error) {
		switch sk := sketch.(type) {
		case *count.FrequencySketch:
			v, err := queryInt(r, "value")
			if err != nil {
				return nil, err
			}
			n, err := sk.PointQuery(v)
			return JSON{"value": v, "count": n}, err
		case *count.MostFrequentSketch:
			v := r.URL.Query().Get("value")
			return JSON{"value": v, "count": sk.Estimate([]byte(v))}, nil
		}
		return nil, unsupported(rec.Family, "count")
	})
}

func (s *Server) rangeCount(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, func(rec store.Record, sketch any) (any, error) {
		sk, ok := sketch.(*count.FrequencySketch)
		if !ok {
			return nil, unsupported(rec.Family, "range")
		}
		lo, err := queryInt(r, "lo")
		if err != nil {
			return nil, err
		}
		hi, err := queryInt(r, "hi")
		if err != nil {
			return nil, err
		}
		n, err := sk.RangeQuery(lo, hi)
		return JSON{"lo": lo, "hi": hi, "count": n}, err
	})
}

func (s *Server) centile(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, func(rec store.Record, sketch any) (any, error) {
		sk, ok := sketch.(*count.FrequencySketch)
		if !ok {
			return nil, unsupported(rec.Family, "centile")
		}
		p, err := queryFloat(r, "p")
		if err != nil {
			return nil, err
		}
		v, err := sk.Centile(p)
		return JSON{"p": p, "value": v}, err
	})
}

func (s *Server) histogram(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, func(rec store.Record, sketch any) (any, error) {
		sk, ok := sketch.(*count.FrequencySketch)
		if !ok {
			return nil, unsupported(rec.Family, "histogram")
		}
		buckets, err := queryInt(r, "buckets")
		if err != nil {
			return nil, err
		}
		var hist []count.HistogramBucket
		switch kind := r.URL.Query().Get("kind"); kind {
		case "", "equal":
			hist, err = sk.Histogram(int(buckets))
		case "depth":
			hist, err = sk.DepthHistogram(int(buckets))
		case "width":
			var lo, hi int64
			if lo, err = queryInt(r, "min"); err != nil {
				return nil, err
			}
			if hi, err = queryInt(r, "max"); err != nil {
				return nil, err
			}
			hist, err = sk.WidthHistogram(lo, hi, int(buckets))
		default:
			return nil, fmt.Errorf("unknown histogram kind %q: %w", kind, common.ErrDomain)
		}
		return JSON{"buckets": hist}, err
	})
}

func (s *Server) estimate(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, func(rec store.Record, sketch any) (any, error) {
		switch sk := sketch.(type) {
		case *fm.DistinctCountSketch:
			n, err := sk.Estimate()
			return JSON{"estimate": n, "mode": sk.Mode().String()}, err
		case *count.FrequencySketch:
			return JSON{"estimate": sk.Total()}, nil
		}
		return nil, unsupported(rec.Family, "estimate")
	})
}

type topEntry struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

func (s *Server) top(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, func(rec store.Record, sketch any) (any, error) {
		sk, ok := sketch.(*count.MostFrequentSketch)
		if !ok {
			return nil, unsupported(rec.Family, "top")
		}
		items := sk.Top()
		out := make([]topEntry, 0, len(items))
		for _, it := range items {
			out = append(out, topEntry{Value: string(it.Value), Count: it.Count})
		}
		return JSON{"top": out}, nil
	})
}
