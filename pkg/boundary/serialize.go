// Package boundary polices what may cross from tools back into an agent's
// context. Everything crossing must be flat and serializable; oversized
// payloads are spilled into the handle store and replaced by their handle.
package boundary

import (
	"encoding/json"

	"github.com/substratehq/strata/pkg/errors"
)

// CheckSerializable verifies a value can cross the boundary. The check is
// fail-closed: anything json cannot round-trip is rejected rather than
// passed through opaquely.
func CheckSerializable(v interface{}) error {
	if _, err := json.Marshal(v); err != nil {
		return errors.Wrap(err, errors.SerializationFailed, "value cannot cross the boundary")
	}
	return nil
}

// MarshalResult serializes a boundary-crossing value, failing closed on
// anything json cannot represent.
func MarshalResult(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.SerializationFailed, "failed to serialize boundary result")
	}
	return data, nil
}
