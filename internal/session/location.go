// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "slices"

// Location is the jurisdiction a session asks about.
type Location struct {
	State string `json:"state" toml:"state"`
	City  string `json:"city" toml:"city"`
}

// Region lists the cities offered for one state.
type Region struct {
	State  string
	Cities []string
}

var catalog = []Region{
	{"California", []string{"Los Angeles", "San Francisco", "San Diego", "San Jose", "Sacramento"}},
	{"Texas", []string{"Houston", "Dallas", "Austin", "San Antonio", "Fort Worth"}},
	{"Florida", []string{"Miami", "Orlando", "Tampa", "Jacksonville", "Tallahassee"}},
	{"Illinois", []string{"Chicago", "Aurora", "Naperville", "Joliet", "Rockford"}},
	{"Pennsylvania", []string{"Philadelphia", "Pittsburgh", "Allentown", "Erie", "Reading"}},
	{"Ohio", []string{"Columbus", "Cleveland", "Cincinnati", "Toledo", "Akron"}},
	{"Georgia", []string{"Atlanta", "Augusta", "Savannah", "Athens", "Macon"}},
	{"Michigan", []string{"Detroit", "Grand Rapids", "Warren", "Sterling Heights", "Ann Arbor"}},
	{"Virginia", []string{"Virginia Beach", "Norfolk", "Chesapeake", "Richmond", "Newport News"}},
}

// DefaultLocation is California / Los Angeles.
func DefaultLocation() Location {
	return Location{State: "California", City: "Los Angeles"}
}

// Catalog returns a copy of every known state and its cities.
func Catalog() []Region {
	out := make([]Region, len(catalog))
	for i, r := range catalog {
		out[i] = Region{State: r.State, Cities: slices.Clone(r.Cities)}
	}
	return out
}

// States returns the known state names in catalog order.
func States() []string {
	out := make([]string, len(catalog))
	for i, r := range catalog {
		out[i] = r.State
	}
	return out
}

// Cities returns the cities of state, or nil for an unknown state.
func Cities(state string) []string {
	i := stateIndex(state)
	if i < 0 {
		return nil
	}
	return slices.Clone(catalog[i].Cities)
}

func stateIndex(state string) int {
	return slices.IndexFunc(catalog, func(r Region) bool { return r.State == state })
}

// String renders "State / City", or just the state when the city is empty.
func (l Location) String() string {
	switch {
	case l.State == "":
		return ""
	case l.City == "":
		return l.State
	default:
		return l.State + " / " + l.City
	}
}

// Known reports whether both state and city are in the catalog.
func (l Location) Known() bool {
	return slices.Contains(Cities(l.State), l.City)
}

// WithState changes the state and resets the city to its first city. An
// unknown state leaves the city empty.
func (l Location) WithState(state string) Location {
	city := ""
	if cities := Cities(state); len(cities) > 0 {
		city = cities[0]
	}
	return Location{State: state, City: city}
}

// WithCity changes the city only.
func (l Location) WithCity(city string) Location {
	l.City = city
	return l
}

// NextState moves to the following state in catalog order, wrapping.
func (l Location) NextState() Location {
	next := (stateIndex(l.State) + 1) % len(catalog)
	return l.WithState(catalog[next].State)
}

// NextCity moves to the following city of the current state, wrapping. An
// unknown state is left unchanged.
func (l Location) NextCity() Location {
	cities := Cities(l.State)
	if len(cities) == 0 {
		return l
	}
	next := (slices.Index(cities, l.City) + 1) % len(cities)
	return l.WithCity(cities[next])
}
