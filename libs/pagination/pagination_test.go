package pagination

import (
	"net/url"
	"testing"
)

func TestFromQuery(t *testing.T) {
	cases := map[string]int{
		"":    1,
		"0":   1,
		"-3":  1,
		"abc": 1,
		"2":   2,
		" 7 ": 7,

		"1000001":               MaxPage,
		"9223372036854775807":   MaxPage,
		"99999999999999999999":  MaxPage,
		"-99999999999999999999": 1,
	}
	for in, want := range cases {
		r := FromQuery(url.Values{"page": {in}})
		if r.Page != want || r.Limit != DefaultLimit {
			t.Errorf("FromQuery(%q) = %+v, want page %d", in, r, want)
		}
	}
}

func TestOffset(t *testing.T) {
	if got := (Request{Page: 3, Limit: 10}).Offset(); got != 20 {
		t.Fatalf("offset = %d, want 20", got)
	}
}

func TestOffsetNeverNegative(t *testing.T) {
	huge := FromQuery(url.Values{"page": {"9223372036854775807"}})
	if got := huge.Offset(); got < 0 || got != (MaxPage-1)*DefaultLimit {
		t.Fatalf("offset = %d, want %d", got, (MaxPage-1)*DefaultLimit)
	}
	cases := []Request{
		{Page: 1 << 62, Limit: 10},
		{Page: -5, Limit: 10},
		{Page: 0, Limit: 10},
		{Page: 4, Limit: 0},
	}
	for _, r := range cases {
		if got := r.Offset(); got < 0 {
			t.Errorf("%+v: negative offset %d", r, got)
		}
	}
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		count, limit, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{95, 10, 10},
		{5, 0, 0},
	}
	for _, c := range cases {
		if got := TotalPages(c.count, c.limit); got != c.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", c.count, c.limit, got, c.want)
		}
	}
}

func TestPageNeverOvershootsCount(t *testing.T) {
	for count := 0; count <= 57; count++ {
		pages := TotalPages(count, DefaultLimit)
		for page := 1; page <= pages; page++ {
			if page*DefaultLimit > count+DefaultLimit {
				t.Fatalf("count=%d page=%d overshoots", count, page)
			}
		}
	}
}

func TestBuild(t *testing.T) {
	p := Build(Request{Page: 2, Limit: 10}, 25)
	if p.TotalPages != 3 || !p.HasPrev || !p.HasNext {
		t.Fatalf("unexpected page %+v", p)
	}
	last := Build(Request{Page: 3, Limit: 10}, 25)
	if last.HasNext {
		t.Fatalf("last page should not have next: %+v", last)
	}
}
