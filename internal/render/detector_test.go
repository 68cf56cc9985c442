package render

import (
	"strings"
	"testing"
)

func TestDetectorNeedsRender(t *testing.T) {
	t.Parallel()

	pad := strings.Repeat("<p>padding</p>", 20)
	d := NewDetector(50, []string{".jobs-list"}, []string{"__NEXT_DATA__", "loading..."})

	tests := []struct {
		name string
		body string
		want bool
	}{
		{name: "tiny shell triggers", body: "<div></div>", want: true},
		{name: "framework marker triggers", body: pad + `<script id="__NEXT_DATA__"></script>`, want: true},
		{name: "loading placeholder triggers", body: pad + "<span>Loading...</span>", want: true},
		{name: "empty listing container triggers", body: pad + `<div class="jobs-list">  </div>`, want: true},
		{name: "populated listing passes", body: pad + `<div class="jobs-list"><a>Engineer</a></div>`, want: false},
		{name: "no container no marker passes", body: pad, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.NeedsRender([]byte(tt.body)); got != tt.want {
				t.Fatalf("expected %v got %v", tt.want, got)
			}
		})
	}
}

func TestNilDetectorNeverRenders(t *testing.T) {
	t.Parallel()

	var d *Detector
	if d.NeedsRender([]byte("x")) {
		t.Fatal("nil detector must not request renders")
	}
}
