package transform

import "strings"

// defaultStationDistance is used for station pairs not in the matrix (meters).
const defaultStationDistance = 30.0

// stationPair keys the distance matrix.
type stationPair struct {
	from, to string
}

// stationDistances holds known walking distances between stations (meters).
// TODO: move to the machines database once the floor plan is surveyed.
var stationDistances = map[stationPair]float64{
	{"Warehouse", "Saw1"}:     30.0,
	{"Saw1", "Milling1"}:      25.0,
	{"Saw1", "Milling2"}:      35.0,
	{"Saw1", "Lathe1"}:        40.0,
	{"Milling1", "Warehouse"}: 45.0,
	{"Milling2", "Warehouse"}: 50.0,
	{"Lathe1", "Warehouse"}:   55.0,
}

// stationDistance estimates the distance between two stations, trying
// both directions before falling back to the default.
func stationDistance(from, to string) float64 {
	if d, ok := stationDistances[stationPair{from, to}]; ok {
		return d
	}
	if d, ok := stationDistances[stationPair{to, from}]; ok {
		return d
	}
	return defaultStationDistance
}

// pieceMaterial derives the material from the piece ID series. Returns
// "" for unrecognized series; the material tag is then omitted.
func pieceMaterial(pieceID string) string {
	switch {
	case strings.HasPrefix(pieceID, "PZ00"):
		return "steel"
	case strings.HasPrefix(pieceID, "PZ01"):
		return "alu"
	default:
		return ""
	}
}
