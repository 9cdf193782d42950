package share

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ericfisherdev/diasync/internal/domain/model"
)

// trendInfo is one entry of the vendor trend table.
type trendInfo struct {
	name  string
	desc  string
	arrow string
}

// trends is indexed by the vendor's numeric trend value.
var trends = []trendInfo{
	{"None", "", ""},
	{"DoubleUp", "rising quickly", "↑↑"},
	{"SingleUp", "rising", "↑"},
	{"FortyFiveUp", "rising slightly", "↗"},
	{"Flat", "steady", "→"},
	{"FortyFiveDown", "falling slightly", "↘"},
	{"SingleDown", "falling", "↓"},
	{"DoubleDown", "falling quickly", "↓↓"},
	{"NotComputable", "unable to determine trend", "?"},
	{"RateOutOfRange", "trend unavailable", "-"},
}

// vendorDate matches "Date(1691455258000)", "/Date(1691455258000-0400)/" and similar.
var vendorDate = regexp.MustCompile(`Date\((-?\d+)`)

// parseReadings decodes a readings body. Two record shapes are accepted:
//
//	{"trend":{"name":"Flat","desc":"steady","arrow":"→"},"mgdl":120,"mmol":6.7,"time":"2026-03-01T08:30:00Z"}
//	{"WT":"Date(1772371800000)","ST":"Date(1772371800000)","DT":"Date(1772371800000-0500)","Value":120,"Trend":"Flat"}
//
// Any record missing a value or timestamp makes the whole body malformed.
func parseReadings(body []byte) ([]model.Reading, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not JSON", model.ErrMalformedResponse)
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("%w: expected array, got %s", model.ErrMalformedResponse, parsed.Type)
	}

	records := parsed.Array()
	readings := make([]model.Reading, 0, len(records))
	for i, rec := range records {
		r, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", model.ErrMalformedResponse, i, err)
		}
		readings = append(readings, r)
	}

	return readings, nil
}

func parseRecord(rec gjson.Result) (model.Reading, error) {
	if !rec.IsObject() {
		return model.Reading{}, fmt.Errorf("expected object, got %s", rec.Type)
	}

	value := firstField(rec, "mgdl", "Value", "value")
	if value.Type != gjson.Number || value.Int() <= 0 {
		return model.Reading{}, fmt.Errorf("missing or invalid glucose value")
	}

	ts, err := parseTimestamp(firstField(rec, "time", "WT", "ST", "DT"))
	if err != nil {
		return model.Reading{}, err
	}

	info := parseTrend(firstField(rec, "trend", "Trend"))

	return model.NewReading(int(value.Int()), ts, info.desc, info.arrow), nil
}

// parseTimestamp accepts epoch milliseconds, vendor Date(...) strings and RFC 3339.
func parseTimestamp(v gjson.Result) (time.Time, error) {
	switch v.Type {
	case gjson.Number:
		return time.UnixMilli(v.Int()).UTC(), nil
	case gjson.String:
		if m := vendorDate.FindStringSubmatch(v.Str); m != nil {
			ms, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return time.Time{}, fmt.Errorf("invalid timestamp %q", v.Str)
			}
			return time.UnixMilli(ms).UTC(), nil
		}
		t, err := time.Parse(time.RFC3339Nano, v.Str)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", v.Str)
		}
		return t.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
}

// parseTrend accepts a {name,desc,arrow} object, a trend name, or a numeric
// trend index. Unknown values produce an empty trend rather than an error.
func parseTrend(v gjson.Result) trendInfo {
	switch v.Type {
	case gjson.JSON:
		info := trendInfo{
			name:  v.Get("name").String(),
			desc:  v.Get("desc").String(),
			arrow: v.Get("arrow").String(),
		}
		if info.desc == "" {
			if known, ok := trendByName(info.name); ok {
				return known
			}
		}
		return info
	case gjson.Number:
		idx := int(v.Int())
		if idx >= 0 && idx < len(trends) {
			return trends[idx]
		}
	case gjson.String:
		if known, ok := trendByName(v.Str); ok {
			return known
		}
		return trendInfo{desc: v.Str}
	}
	return trendInfo{}
}

func trendByName(name string) (trendInfo, bool) {
	for _, t := range trends {
		if strings.EqualFold(t.name, name) {
			return t, true
		}
	}
	return trendInfo{}, false
}

// firstField returns the first of the given keys present on obj.
func firstField(obj gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := obj.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func firstString(obj gjson.Result, keys ...string) string {
	return firstField(obj, keys...).String()
}
