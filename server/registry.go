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

package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streamsketch/sketches-go/aggregate"
	"github.com/streamsketch/sketches-go/common"
	"github.com/streamsketch/sketches-go/count"
	"github.com/streamsketch/sketches-go/fm"
	"github.com/streamsketch/sketches-go/internal"
	"github.com/streamsketch/sketches-go/store"
)

var (
	familyCountMin     = internal.FamilyName(internal.FamilyEnum.CountMin.Id)
	familyDistinct     = internal.FamilyName(internal.FamilyEnum.FlajoletMartin.Id)
	familyMostFrequent = internal.FamilyName(internal.FamilyEnum.MostFrequent.Id)
)

// Settings shapes the sketches the registry creates.
type Settings struct {
	CountMin     count.Config
	Distinct     fm.Config
	MostFrequent count.MostFrequentConfig
}

type entry struct {
	mu     sync.Mutex
	rec    store.Record
	sketch any // *count.FrequencySketch, *fm.DistinctCountSketch or *count.MostFrequentSketch
}

func (e *entry) serialize() []byte {
	switch s := e.sketch.(type) {
	case *count.FrequencySketch:
		return s.ToSlice()
	case *fm.DistinctCountSketch:
		return s.ToSlice()
	case *count.MostFrequentSketch:
		return s.ToSlice()
	}
	return nil
}

// Registry caches decoded sketches over a store.Store. Every mutation is
// written back to the store before it returns.
type Registry struct {
	store    store.Store
	cm       aggregate.CountMinAggregate
	distinct aggregate.DistinctAggregate
	mfv      aggregate.MostFrequentAggregate

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry(st store.Store, settings Settings) *Registry {
	return &Registry{
		store:    st,
		cm:       aggregate.CountMinAggregate{Config: settings.CountMin},
		distinct: aggregate.DistinctAggregate{Config: settings.Distinct},
		mfv:      aggregate.MostFrequentAggregate{Config: settings.MostFrequent},
		entries:  make(map[string]*entry),
	}
}

func (r *Registry) newSketch(family string) (any, error) {
	switch family {
	case familyCountMin:
		return count.NewFrequencySketchFromConfig(r.cm.Config)
	case familyDistinct:
		return fm.NewDistinctCountSketchFromConfig(r.distinct.Config)
	case familyMostFrequent:
		return count.NewMostFrequentSketchFromConfig(r.mfv.Config)
	}
	return nil, fmt.Errorf("unknown sketch family %q: %w", family, common.ErrConfig)
}

func decode(family string, data []byte) (any, error) {
	switch family {
	case familyCountMin:
		return count.NewFrequencySketchFromSlice(data)
	case familyDistinct:
		return fm.NewDistinctCountSketchFromSlice(data)
	case familyMostFrequent:
		return count.NewMostFrequentSketchFromSlice(data)
	}
	return nil, fmt.Errorf("unknown sketch family %q: %w", family, common.ErrFormat)
}

// Create makes an empty sketch of family and persists it.
func (r *Registry) Create(ctx context.Context, name, family string) (store.Record, error) {
	sk, err := r.newSketch(family)
	if err != nil {
		return store.Record{}, err
	}
	e := &entry{
		rec:    store.Record{ID: uuid.NewString(), Name: name, Family: family},
		sketch: sk,
	}
	if err := r.persist(ctx, e); err != nil {
		return store.Record{}, err
	}
	r.mu.Lock()
	r.entries[e.rec.ID] = e
	r.mu.Unlock()
	return e.rec, nil
}

// persist writes e to the store. The caller holds e.mu or owns e exclusively.
func (r *Registry) persist(ctx context.Context, e *entry) error {
	e.rec.Data = e.serialize()
	e.rec.UpdatedAt = time.Now().UTC()
	err := r.store.Put(ctx, e.rec)
	e.rec.Data = nil
	return err
}

// get returns the cached entry for id, loading it from the store on a miss.
func (r *Registry) get(ctx context.Context, id string) (*entry, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if ok {
		return e, nil
	}
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sk, err := decode(rec.Family, rec.Data)
	if err != nil {
		return nil, err
	}
	rec.Data = nil
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return e, nil
	}
	e = &entry{rec: rec, sketch: sk}
	r.entries[id] = e
	return e, nil
}

// With runs fn on the sketch id under its lock.
func (r *Registry) With(ctx context.Context, id string, fn func(rec store.Record, sketch any) error) error {
	e, err := r.get(ctx, id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.rec, e.sketch)
}

// Insert folds values into the sketch id and persists it. The batch is applied
// to a copy, so a failing value leaves the sketch unchanged.
func (r *Registry) Insert(ctx context.Context, id string, values []any) (store.Record, error) {
	e, err := r.get(ctx, id)
	if err != nil {
		return store.Record{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var next any
	switch s := e.sketch.(type) {
	case *count.FrequencySketch:
		cp := s.Clone()
		for _, v := range values {
			var x int64
			if x, err = toInt64(v); err != nil {
				break
			}
			if cp, err = r.cm.Transition(ctx, cp, x); err != nil {
				break
			}
		}
		next = cp
	case *fm.DistinctCountSketch:
		cp := s.Clone()
		for _, v := range values {
			if cp, err = r.distinct.Transition(ctx, cp, v); err != nil {
				break
			}
		}
		next = cp
	case *count.MostFrequentSketch:
		cp := s.Clone()
		for _, v := range values {
			if cp, err = r.mfv.Transition(ctx, cp, v); err != nil {
				break
			}
		}
		next = cp
	}
	if err != nil {
		return store.Record{}, err
	}
	prev := e.sketch
	e.sketch = next
	if err := r.persist(ctx, e); err != nil {
		e.sketch = prev
		return store.Record{}, err
	}
	return e.rec, nil
}

// Merge folds the sketch source into target and persists target.
func (r *Registry) Merge(ctx context.Context, target, source string) (store.Record, error) {
	dst, err := r.get(ctx, target)
	if err != nil {
		return store.Record{}, err
	}
	src, err := r.get(ctx, source)
	if err != nil {
		return store.Record{}, err
	}

	// lock in id order so concurrent opposite merges cannot deadlock
	first, second := dst, src
	if source < target {
		first, second = src, dst
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	if second != first {
		second.mu.Lock()
		defer second.mu.Unlock()
	}

	if dst.rec.Family != src.rec.Family {
		return store.Record{}, fmt.Errorf("cannot merge %s into %s: %w", src.rec.Family, dst.rec.Family, common.ErrDimensionMismatch)
	}
	var next any
	switch s := dst.sketch.(type) {
	case *count.FrequencySketch:
		next, err = r.cm.Merge(s, src.sketch.(*count.FrequencySketch))
	case *fm.DistinctCountSketch:
		next, err = r.distinct.Merge(s, src.sketch.(*fm.DistinctCountSketch))
	case *count.MostFrequentSketch:
		next, err = r.mfv.Merge(s, src.sketch.(*count.MostFrequentSketch))
	}
	if err != nil {
		return store.Record{}, err
	}
	prev := dst.sketch
	dst.sketch = next
	if err := r.persist(ctx, dst); err != nil {
		dst.sketch = prev
		return store.Record{}, err
	}
	return dst.rec, nil
}

// Delete removes the sketch id from the store and the cache.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
	return nil
}

// List returns the stored records of family, or all of them, without data.
func (r *Registry) List(ctx context.Context, family string) ([]store.Record, error) {
	recs, err := r.store.List(ctx, family)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		recs[i].Data = nil
	}
	return recs, nil
}

// Data returns the serialized image of the sketch id.
func (r *Registry) Data(ctx context.Context, id string) ([]byte, error) {
	e, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.serialize(), nil
}
