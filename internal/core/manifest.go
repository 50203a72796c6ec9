package core

// manifest.go decodes the root dataset manifest into a typed value.
//
// Decoding is all-or-nothing on the required fields: either every required
// field is present and well-typed and a *Manifest is returned, or a
// FieldErrors listing every problem is returned. The optional episode and
// frame counts never fail decoding; a wrong type falls back to 0 and adds a
// warning.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Manifest is the decoded root metadata file of a dataset.
type Manifest struct {
	CodebaseVersion string
	RobotType       string
	FPS             float64
	Features        map[string]json.RawMessage
	TotalEpisodes   int
	TotalFrames     int
}

// Manifest field names.
const (
	fieldCodebaseVersion = "codebase_version"
	fieldVersionAlias    = "version"
	fieldRobotType       = "robot_type"
	fieldFPS             = "fps"
	fieldFeatures        = "features"
	fieldTotalEpisodes   = "total_episodes"
	fieldTotalFrames     = "total_frames"
)

// DecodeManifest parses raw manifest bytes.
//
// A syntax error is returned as a plain error. Missing or invalid required
// fields are returned together as FieldErrors. Warnings describe optional
// fields that were ignored.
func DecodeManifest(data []byte) (*Manifest, []string, error) {
	data = stripBOM(data)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("invalid manifest JSON: %w", err)
	}
	if raw == nil {
		return nil, nil, fmt.Errorf("invalid manifest JSON: top level must be an object")
	}

	var (
		m        Manifest
		errs     FieldErrors
		warnings []string
	)

	versionField := fieldCodebaseVersion
	if !present(raw[fieldCodebaseVersion]) && present(raw[fieldVersionAlias]) {
		versionField = fieldVersionAlias
	}
	if v, fe := requiredString(raw, versionField); fe != nil {
		fe.Field = fieldCodebaseVersion
		errs = append(errs, *fe)
	} else {
		m.CodebaseVersion = v
	}

	if v, fe := requiredString(raw, fieldRobotType); fe != nil {
		errs = append(errs, *fe)
	} else {
		m.RobotType = v
	}

	if v, fe := requiredPositive(raw, fieldFPS); fe != nil {
		errs = append(errs, *fe)
	} else {
		m.FPS = v
	}

	if v, fe := requiredObject(raw, fieldFeatures); fe != nil {
		errs = append(errs, *fe)
	} else {
		m.Features = v
	}

	if len(errs) > 0 {
		return nil, nil, errs
	}

	var w string
	m.TotalEpisodes, w = optionalCount(raw, fieldTotalEpisodes)
	if w != "" {
		warnings = append(warnings, w)
	}
	m.TotalFrames, w = optionalCount(raw, fieldTotalFrames)
	if w != "" {
		warnings = append(warnings, w)
	}

	return &m, warnings, nil
}

// Duration returns TotalFrames/FPS in seconds, or 0 when FPS is not positive.
func (m *Manifest) Duration() float64 {
	if m.FPS <= 0 {
		return 0
	}
	return float64(m.TotalFrames) / m.FPS
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// stripBOM drops a leading UTF-8 byte order mark. Windows editors add one;
// neither encoding/json nor a JSONB column accepts it.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

// present treats both an absent key and an explicit null as missing.
func present(v json.RawMessage) bool {
	return len(v) > 0 && !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func requiredString(raw map[string]json.RawMessage, field string) (string, *FieldError) {
	v := raw[field]
	if !present(v) {
		return "", &FieldError{Field: field, Message: "is required"}
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil || s == "" {
		return "", &FieldError{Field: field, Message: "must be a non-empty string"}
	}
	return s, nil
}

func requiredPositive(raw map[string]json.RawMessage, field string) (float64, *FieldError) {
	v := raw[field]
	if !present(v) {
		return 0, &FieldError{Field: field, Message: "is required"}
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, &FieldError{Field: field, Message: "must be a number"}
	}
	if f <= 0 {
		return 0, &FieldError{Field: field, Message: "must be positive"}
	}
	return f, nil
}

func requiredObject(raw map[string]json.RawMessage, field string) (map[string]json.RawMessage, *FieldError) {
	v := raw[field]
	if !present(v) {
		return nil, &FieldError{Field: field, Message: "is required"}
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(v, &obj); err != nil {
		return nil, &FieldError{Field: field, Message: "must be an object"}
	}
	if len(obj) == 0 {
		return nil, &FieldError{Field: field, Message: "must not be empty"}
	}
	return obj, nil
}

// optionalCount reads a non-negative integer. Absent yields 0 silently;
// anything else that is not a whole non-negative number yields 0 and a warning.
func optionalCount(raw map[string]json.RawMessage, field string) (int, string) {
	v := raw[field]
	if !present(v) {
		return 0, ""
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil || f < 0 || f != math.Trunc(f) || f > 1<<53 {
		return 0, fmt.Sprintf("%s is not a non-negative integer; using 0", field)
	}
	return int(f), ""
}
