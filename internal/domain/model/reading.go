package model

import (
	"math"
	"strconv"
	"time"
)

// mgdlPerMmol converts between mg/dL and mmol/L for glucose.
const mgdlPerMmol = 18.0182

// Reading is a single glucose sample. Readings are immutable once produced.
type Reading struct {
	ID         string
	Value      int     // mg/dL
	MmolL      float64 // mmol/L, one decimal
	Timestamp  time.Time
	Trend      string // Human description, e.g. "steady", "rising".
	TrendArrow string
}

// ReadingID derives the reading identity from its source timestamp.
func ReadingID(ts time.Time) string {
	return "g-" + strconv.FormatInt(ts.UnixMilli(), 10)
}

// NewReading builds a Reading with its derived ID and mmol/L value.
func NewReading(mgdl int, ts time.Time, trend, arrow string) Reading {
	ts = ts.UTC()
	return Reading{
		ID:         ReadingID(ts),
		Value:      mgdl,
		MmolL:      MgdlToMmol(mgdl),
		Timestamp:  ts,
		Trend:      trend,
		TrendArrow: arrow,
	}
}

// MgdlToMmol converts mg/dL to mmol/L rounded to one decimal place.
func MgdlToMmol(mgdl int) float64 {
	return math.Round(float64(mgdl)/mgdlPerMmol*10) / 10
}
