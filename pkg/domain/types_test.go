package domain

import (
	"encoding/json"
	"testing"
)

func TestYearUnmarshal(t *testing.T) {
	cases := []struct {
		raw  string
		want Year
	}{
		{`1999`, 1999},
		{`"1999"`, 1999},
		{`" 2001 "`, 2001},
		{`2001.0`, 2001},
		{`null`, 0},
		{`""`, 0},
		{`"  "`, 0},
		{`"abc"`, InvalidYear},
		{`1999.5`, InvalidYear},
		{`true`, InvalidYear},
	}
	for _, tc := range cases {
		var y Year
		if err := json.Unmarshal([]byte(tc.raw), &y); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if y != tc.want {
			t.Fatalf("unmarshal %s: got %d, want %d", tc.raw, y, tc.want)
		}
	}
}

func TestBookInputDecodesBadYear(t *testing.T) {
	var in BookInput
	body := `{"title":"T","author":"A","publishedYear":"abc","genre":"Other"}`
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if in.PublishedYear != InvalidYear || in.Title != "T" {
		t.Fatalf("unexpected input %+v", in)
	}
}
