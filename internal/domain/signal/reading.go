// Package signal describes how each rubric signal was obtained for an attempt.
package signal

import (
	"sort"

	"github.com/okian/internos/internal/domain/rubric"
)

// Status tells whether a value was measured or substituted.
type Status string

const (
	StatusMeasured  Status = "measured"
	StatusDefaulted Status = "defaulted"
)

// Reason explains a defaulted reading.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonToolTimeout  Reason = "tool_timeout"
	ReasonToolFailure  Reason = "tool_failure"
	ReasonParseFailure Reason = "parse_failure"
	ReasonNoData       Reason = "no_data"
)

// Reading is the outcome of obtaining one signal.
type Reading struct {
	Key    string         `json:"key"`
	Value  float64        `json:"value"`
	Status Status         `json:"status"`
	Reason Reason         `json:"reason,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Measured builds a successful reading.
func Measured(key string, value float64, detail map[string]any) Reading {
	return Reading{Key: key, Value: value, Status: StatusMeasured, Detail: detail}
}

// Defaulted builds a reading that carries the rubric default for key.
func Defaulted(key string, reason Reason, detail map[string]any) Reading {
	v, _ := rubric.Default(key)
	return Reading{Key: key, Value: v, Status: StatusDefaulted, Reason: reason, Detail: detail}
}

// IsDefaulted reports whether the value is a substitute.
func (r Reading) IsDefaulted() bool { return r.Status == StatusDefaulted }

// Extra returns the detail plus status fields, as persisted next to the value.
func (r Reading) Extra() map[string]any {
	out := make(map[string]any, len(r.Detail)+2)
	for k, v := range r.Detail {
		out[k] = v
	}
	out["status"] = string(r.Status)
	if r.Reason != ReasonNone {
		out["reason"] = string(r.Reason)
	}
	return out
}

// Collect folds readings into a signal map. Later readings for the same key win.
func Collect(readings []Reading) rubric.Signals {
	out := make(rubric.Signals, len(readings))
	for _, r := range readings {
		out[r.Key] = r.Value
	}
	return out
}

// DefaultedKeys returns the sorted keys of defaulted readings.
func DefaultedKeys(readings []Reading) []string {
	var keys []string
	for _, r := range readings {
		if r.IsDefaulted() {
			keys = append(keys, r.Key)
		}
	}
	sort.Strings(keys)
	return keys
}
