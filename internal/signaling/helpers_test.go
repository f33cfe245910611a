package signaling

import "encoding/json"

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}

func quote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
