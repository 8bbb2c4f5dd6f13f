package export

import "encoding/json"

// ToJSON renders any payload as two-space indented JSON.
func ToJSON(data any) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}
