package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/timmy/adnreport/internal/domain"
)

// reportEnvelope is the outer response object. Results is normally a JSON
// string that itself holds the row array.
type reportEnvelope struct {
	Results json.RawMessage `json:"results"`
}

// Normalize decodes a report payload into raw rows tagged with sdkKey.
// Missing ctr, revenue and ecpm become 0; missing impressions and clicks
// stay nil; missing text fields become empty strings.
// Returns a KindNoData error when results is absent or blank, and a
// KindParseFailed error for malformed payloads.
func Normalize(payload []byte, sdkKey string) ([]domain.RawReportRow, error) {
	var env reportEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, domain.WrapTaskError(domain.KindParseFailed, err, "parse report response error")
	}

	items, err := resultsArray(env.Results)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(items))
	dec.UseNumber()
	var objs []map[string]interface{}
	if err := dec.Decode(&objs); err != nil {
		return nil, domain.WrapTaskError(domain.KindParseFailed, err, "parse report results error")
	}

	rows := make([]domain.RawReportRow, 0, len(objs))
	for i, obj := range objs {
		row, err := normalizeRow(obj)
		if err != nil {
			return nil, domain.WrapTaskError(domain.KindParseFailed, err, "parse report row %d error", i)
		}
		row.SdkKey = sdkKey
		rows = append(rows, row)
	}
	return rows, nil
}

// resultsArray unwraps the results field down to the raw row array.
func resultsArray(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, domain.NewTaskError(domain.KindNoData, "response results is null")
	}

	switch trimmed[0] {
	case '[':
		return trimmed, nil
	case '"':
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, domain.WrapTaskError(domain.KindParseFailed, err, "parse report results error")
		}
		if strings.TrimSpace(inner) == "" {
			return nil, domain.NewTaskError(domain.KindNoData, "response results is null")
		}
		return []byte(inner), nil
	default:
		return nil, domain.NewTaskError(domain.KindParseFailed, "parse report results error, msg:results is not an array")
	}
}

func normalizeRow(obj map[string]interface{}) (domain.RawReportRow, error) {
	row := domain.RawReportRow{
		Day:         text(obj, "day"),
		Hour:        text(obj, "hour"),
		Country:     text(obj, "country"),
		Platform:    text(obj, "platform"),
		Application: text(obj, "application"),
		PackageName: text(obj, "package_name"),
		Placement:   text(obj, "placement"),
		AdType:      text(obj, "ad_type"),
		DeviceType:  text(obj, "device_type"),
		IsHidden:    text(obj, "application_is_hidden"),
		Zone:        text(obj, "zone"),
		ZoneID:      text(obj, "zone_id"),
		Size:        text(obj, "size"),
	}

	var err error
	if row.Impressions, err = optionalCount(obj, "impressions"); err != nil {
		return row, err
	}
	if row.Clicks, err = optionalCount(obj, "clicks"); err != nil {
		return row, err
	}
	if row.Ctr, err = amountOrZero(obj, "ctr"); err != nil {
		return row, err
	}
	if row.Revenue, err = amountOrZero(obj, "revenue"); err != nil {
		return row, err
	}
	if row.Ecpm, err = amountOrZero(obj, "ecpm"); err != nil {
		return row, err
	}
	return row, nil
}

// field returns obj[key] with json.Number flattened to its string form and
// blank strings treated as absent.
func field(obj map[string]interface{}, key string) (interface{}, bool) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, false
	}
	switch t := v.(type) {
	case json.Number:
		return t.String(), true
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, false
		}
	}
	return v, true
}

func text(obj map[string]interface{}, key string) string {
	v, ok := field(obj, key)
	if !ok {
		return ""
	}
	return cast.ToString(v)
}

func optionalCount(obj map[string]interface{}, key string) (*int64, error) {
	v, ok := field(obj, key)
	if !ok {
		return nil, nil
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		// exponent or decimal notation, e.g. "1e3"; fractions are rejected
		d, derr := decimal.NewFromString(cast.ToString(v))
		if derr != nil || !d.IsInteger() {
			return nil, fmt.Errorf("invalid %s %v: not a whole count", key, v)
		}
		n = d.IntPart()
	}
	return &n, nil
}

func amountOrZero(obj map[string]interface{}, key string) (float64, error) {
	v, ok := field(obj, key)
	if !ok {
		return 0, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %v: %w", key, v, err)
	}
	return f, nil
}
