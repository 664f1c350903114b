package sdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ilpi-dev/ilpi-store/pkg/schema"
)

// ParseImport turns a raw import blob into a patch. The blob must be a JSON
// object with an employees array; shifts, vacations, version and lastUpdate
// are optional and any other field is rejected. Every collection present is
// validated before the patch is returned.
func ParseImport(raw []byte) (schema.Patch, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return schema.Patch{}, fmt.Errorf("%w: not a JSON object: %w", ErrMalformedImport, err)
	}
	employees, ok := probe["employees"]
	if !ok || !isArray(employees) {
		return schema.Patch{}, fmt.Errorf("%w: expected a JSON object with an employees array", ErrMalformedImport)
	}

	var p schema.Patch
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return schema.Patch{}, fmt.Errorf("%w: decode: %w", ErrMalformedImport, err)
	}
	if err := schema.ValidatePatch(p); err != nil {
		return schema.Patch{}, err
	}
	return p, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Export renders env the way the backup file is written: two-space indent.
func Export(env schema.Envelope) ([]byte, error) {
	return json.MarshalIndent(env.Normalize(), "", "  ")
}

// ExportFileName names a backup of env taken at now, dated in UTC.
func ExportFileName(env schema.Envelope, now time.Time) string {
	return fmt.Sprintf("ilpi_db_v%d_%s.json", env.Version, now.UTC().Format(schema.DateLayout))
}
