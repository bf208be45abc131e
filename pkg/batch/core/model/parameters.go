package model

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// JobParameters is the immutable set of parameters identifying a job run.
// Two runs with equal parameters belong to the same job instance.
type JobParameters struct {
	Params map[string]interface{} `json:"params"`
}

// NewJobParameters creates an empty JobParameters.
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]interface{})}
}

// Put sets a parameter value.
func (jp JobParameters) Put(key string, value interface{}) {
	jp.Params[key] = value
}

// Get retrieves a parameter value.
func (jp JobParameters) Get(key string) (interface{}, bool) {
	v, ok := jp.Params[key]
	return v, ok
}

// GetString retrieves a parameter value as a string.
func (jp JobParameters) GetString(key string) (string, bool) {
	v, ok := jp.Params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Hash returns a stable SHA-256 digest of the parameters. Keys are sorted
// and each value is JSON-encoded so logically equal parameter sets always
// hash identically regardless of map iteration order.
func (jp JobParameters) Hash() string {
	keys := make([]string, 0, len(jp.Params))
	for k := range jp.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		data, err := json.Marshal(jp.Params[k])
		if err != nil {
			sb.WriteString(fmt.Sprintf("%v", jp.Params[k]))
		} else {
			sb.Write(data)
		}
		sb.WriteByte(';')
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Equal reports whether two parameter sets are logically identical.
func (jp JobParameters) Equal(other JobParameters) bool {
	return jp.Hash() == other.Hash()
}

// Value implements driver.Valuer, serializing the parameters as JSON.
func (jp JobParameters) Value() (driver.Value, error) {
	data, err := json.Marshal(jp.Params)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner, deserializing the parameters from JSON.
func (jp *JobParameters) Scan(value interface{}) error {
	jp.Params = make(map[string]interface{})
	if value == nil {
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for JobParameters: %T", value)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, &jp.Params); err != nil {
		return fmt.Errorf("failed to unmarshal JobParameters JSON: %w", err)
	}
	return nil
}
