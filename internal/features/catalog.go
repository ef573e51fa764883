package features

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrUnknownFeature is returned when a feature name does not resolve.
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrInvalidDefinition is returned for definitions with max <= min or duplicates.
	ErrInvalidDefinition = errors.New("invalid feature definition")

	// ErrInvalidSelection is returned for empty, duplicate or unknown chosen features.
	ErrInvalidSelection = errors.New("invalid feature selection")
)

// DataType is the declared storage type of a feature.
type DataType string

const (
	Integer DataType = "int"
	Real    DataType = "float"
)

// Definition describes a feature's type, declared range and whether
// raw values are already on the [0,1] scale.
type Definition struct {
	Feature    Feature
	DataType   DataType
	Min        float64
	Max        float64
	Normalized bool
}

// Name returns the canonical feature name.
func (d Definition) Name() string {
	return d.Feature.String()
}

// Contains reports whether v lies inside the declared range.
func (d Definition) Contains(v float64) bool {
	return v >= d.Min && v <= d.Max
}

// DefaultDefinitions returns the definitions for Spotify audio features.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Feature: Popularity, DataType: Integer, Min: 0, Max: 100},
		{Feature: Acousticness, DataType: Real, Min: 0, Max: 1, Normalized: true},
		{Feature: Danceability, DataType: Real, Min: 0, Max: 1, Normalized: true},
		{Feature: Energy, DataType: Real, Min: 0, Max: 1, Normalized: true},
		{Feature: Instrumentalness, DataType: Real, Min: 0, Max: 1, Normalized: true},
		{Feature: Key, DataType: Integer, Min: 0, Max: 11},
		{Feature: Liveness, DataType: Real, Min: 0, Max: 1, Normalized: true},
		{Feature: Loudness, DataType: Real, Min: -60, Max: 0},
		{Feature: Mode, DataType: Integer, Min: 0, Max: 1, Normalized: true},
		{Feature: Speechiness, DataType: Real, Min: 0, Max: 1, Normalized: true},
		{Feature: Tempo, DataType: Real, Min: 0, Max: 250},
		{Feature: TimeSignature, DataType: Integer, Min: 3, Max: 7},
		{Feature: Valence, DataType: Real, Min: 0, Max: 1, Normalized: true},
	}
}

// Catalog is an immutable set of feature definitions.
// It is safe for concurrent use.
type Catalog struct {
	defs  [numFeatures]Definition
	known [numFeatures]bool
	order []Feature
}

// NewCatalog validates defs and builds a catalog. Every definition must
// name a known feature at most once and declare max > min.
func NewCatalog(defs []Definition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no definitions", ErrInvalidDefinition)
	}

	c := &Catalog{}
	for _, d := range defs {
		if !d.Feature.Valid() {
			return nil, fmt.Errorf("%w: %v", ErrUnknownFeature, d.Feature)
		}
		if c.known[d.Feature] {
			return nil, fmt.Errorf("%w: %s defined twice", ErrInvalidDefinition, d.Feature)
		}
		if !(d.Max > d.Min) {
			return nil, fmt.Errorf("%w: %s has range [%v,%v]", ErrInvalidDefinition, d.Feature, d.Min, d.Max)
		}
		c.defs[d.Feature] = d
		c.known[d.Feature] = true
	}

	for f := range numFeatures {
		if c.known[f] {
			c.order = append(c.order, f)
		}
	}
	return c, nil
}

// Default returns a catalog of DefaultDefinitions.
func Default() *Catalog {
	c, err := NewCatalog(DefaultDefinitions())
	if err != nil {
		panic(err)
	}
	return c
}

// Features returns the cataloged features in canonical order.
func (c *Catalog) Features() []Feature {
	out := make([]Feature, len(c.order))
	copy(out, c.order)
	return out
}

// Definitions returns the definitions in canonical order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.order))
	for i, f := range c.order {
		out[i] = c.defs[f]
	}
	return out
}

// Definition returns the definition of f.
func (c *Catalog) Definition(f Feature) (Definition, bool) {
	if !f.Valid() || !c.known[f] {
		return Definition{}, false
	}
	return c.defs[f], true
}

// Has reports whether f is part of the catalog.
func (c *Catalog) Has(f Feature) bool {
	return f.Valid() && c.known[f]
}

// Len returns the number of cataloged features.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Normalize maps a raw value of f onto [0,1]. Values of features flagged
// as already normalized are returned unchanged. f must be cataloged.
func (c *Catalog) Normalize(f Feature, value float64) float64 {
	d := c.defs[f]
	if d.Normalized {
		return value
	}
	return Normalize(value, d.Min, d.Max)
}

// Vector returns the normalized values of every cataloged feature in
// canonical order, or nil when v is nil.
func (c *Catalog) Vector(v *Values) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(c.order))
	for i, f := range c.order {
		out[i] = c.Normalize(f, v[f])
	}
	return out
}

// ValidateSelection checks a caller-chosen feature subset: it must be
// non-empty, cataloged and free of duplicates.
func (c *Catalog) ValidateSelection(chosen []Feature) error {
	if len(chosen) == 0 {
		return fmt.Errorf("%w: no features chosen", ErrInvalidSelection)
	}
	var seen [numFeatures]bool
	for _, f := range chosen {
		if !c.Has(f) {
			return fmt.Errorf("%w: %v is not cataloged", ErrInvalidSelection, f)
		}
		if seen[f] {
			return fmt.Errorf("%w: %s chosen twice", ErrInvalidSelection, f)
		}
		seen[f] = true
	}
	return nil
}

// Fill expands named values into a full vector. Cataloged features missing
// from named take their declared minimum, which normalizes to zero.
func (c *Catalog) Fill(named Named) Values {
	var v Values
	for _, f := range c.order {
		v[f] = c.defs[f].Min
	}
	for f, value := range named {
		if f.Valid() {
			v[f] = value
		}
	}
	return v
}

// ValidateValues checks that every cataloged value of v lies in its declared range.
func (c *Catalog) ValidateValues(v *Values) error {
	for _, f := range c.order {
		d := c.defs[f]
		if !d.Contains(v[f]) {
			return fmt.Errorf("%s = %v outside [%v,%v]", f, v[f], d.Min, d.Max)
		}
	}
	return nil
}

// Normalize maps value linearly from [min,max] onto [0,1] without clamping.
// min == max is a configuration error and panics.
func Normalize(value, min, max float64) float64 {
	if max == min {
		panic(fmt.Sprintf("features: normalize with empty range [%v,%v]", min, max))
	}
	return (value - min) / (max - min)
}
