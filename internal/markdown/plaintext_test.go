package markdown

import "testing"

func TestExtractor_PlainText(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "empty",
			src:  "   \n",
			want: "",
		},
		{
			name: "plain text passes through",
			src:  "useState 활용",
			want: "useState 활용",
		},
		{
			name: "headings and emphasis",
			src:  "# React Hooks 기본\n\nHooks let you use **state** in _function_ components.",
			want: "React Hooks 기본\nHooks let you use state in function components.",
		},
		{
			name: "links keep label only",
			src:  "See [the docs](https://react.dev/reference) for details.",
			want: "See the docs for details.",
		},
		{
			name: "lists",
			src:  "- first\n- second",
			want: "first\nsecond",
		},
		{
			name: "fenced code is kept",
			src:  "Example:\n\n```go\nfmt.Println(\"hi\")\n```\n",
			want: "Example:\nfmt.Println(\"hi\")",
		},
		{
			name: "raw html dropped",
			src:  "before <span>inline</span> after",
			want: "before inline after",
		},
		{
			name: "table cells",
			src:  "| a | b |\n|---|---|\n| 1 | 2 |\n",
			want: "a | b\n1 | 2",
		},
	}

	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.PlainText(tt.src); got != tt.want {
				t.Errorf("PlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}
