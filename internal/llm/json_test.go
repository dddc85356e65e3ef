package llm

import "testing"

func TestDecodeJSON(t *testing.T) {
	type preFilter struct {
		SearchType string `json:"search_type"`
		Query      string `json:"query"`
	}

	tests := []struct {
		name    string
		raw     string
		want    preFilter
		wantErr bool
	}{
		{
			name: "plain object",
			raw:  `{"search_type": "similarity", "query": "react hooks"}`,
			want: preFilter{SearchType: "similarity", Query: "react hooks"},
		},
		{
			name: "think block and fence",
			raw:  "<think>classify it</think>\n```json\n{\"search_type\": \"simple_lookup\"}\n```",
			want: preFilter{SearchType: "simple_lookup"},
		},
		{
			name: "single quotes and trailing comma",
			raw:  `{'search_type': 'direct_answer',}`,
			want: preFilter{SearchType: "direct_answer"},
		},
		{
			name:    "blank",
			raw:     "  \n ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got preFilter
			err := DecodeJSON(tt.raw, &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("DecodeJSON() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
