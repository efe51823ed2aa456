package httpclient

import "testing"

type stringerID int

func (s stringerID) String() string { return "id-" + string(rune('0'+int(s))) }

func TestAddParams(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		params  map[string]any
		want    string
	}{
		{"no params", "http://host:8080", nil, "http://host:8080"},
		{"empty map", "http://host:8080/a", map[string]any{}, "http://host:8080/a"},
		{"space is percent encoded", "http://host", map[string]any{"q": "a b"}, "http://host?q=a%20b"},
		{"reserved characters", "http://host", map[string]any{"f": "x&y=z/?"}, "http://host?f=x%26y%3Dz%2F%3F"},
		{"plus stays a literal", "http://host", map[string]any{"p": "1+1"}, "http://host?p=1%2B1"},
		{"keys sorted and kept verbatim", "http://host", map[string]any{"b_Key": 2, "aKey": true}, "http://host?aKey=true&b_Key=2"},
		{"existing query", "http://host/?x=1", map[string]any{"y": "2"}, "http://host/?x=1&y=2"},
		{"trailing question mark", "http://host/?", map[string]any{"y": "2"}, "http://host/?y=2"},
		{"stringer value", "http://host", map[string]any{"id": stringerID(7)}, "http://host?id=id-7"},
		{"nil value", "http://host", map[string]any{"n": nil}, "http://host?n="},
		{"unicode value", "http://host", map[string]any{"city": "Москва"}, "http://host?city=%D0%9C%D0%BE%D1%81%D0%BA%D0%B2%D0%B0"},
		{"base url not re-encoded", "http://host/a%2Fb", map[string]any{"k": "v"}, "http://host/a%2Fb?k=v"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddParams(tt.baseURL, tt.params)
			if got != tt.want {
				t.Errorf("AddParams(%q, %v) = %q, want %q", tt.baseURL, tt.params, got, tt.want)
			}
		})
	}
}
