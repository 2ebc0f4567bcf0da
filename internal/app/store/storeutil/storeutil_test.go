package storeutil

import "testing"

func TestNewPage(t *testing.T) {
	tests := []struct {
		name              string
		number, size      int
		wantNum, wantSize int
	}{
		{"defaults", 0, 0, 1, 50},
		{"negative", -3, -1, 1, 50},
		{"kept", 3, 20, 3, 20},
		{"capped", 2, 1000, 2, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPage(tt.number, tt.size, 50, 200)
			if p.Number != tt.wantNum || p.Size != tt.wantSize {
				t.Errorf("NewPage(%d, %d) = %+v, want {%d %d}", tt.number, tt.size, p, tt.wantNum, tt.wantSize)
			}
		})
	}
}

func TestPageSkipAndTotal(t *testing.T) {
	p := Page{Number: 3, Size: 20}
	if got := p.Skip(); got != 40 {
		t.Errorf("Skip() = %d, want 40", got)
	}
	opts := p.Paginate()
	if opts.Skip == nil || *opts.Skip != 40 || opts.Limit == nil || *opts.Limit != 20 {
		t.Errorf("Paginate() skip/limit = %v/%v, want 40/20", opts.Skip, opts.Limit)
	}

	totals := map[int64]int{0: 1, 1: 1, 20: 1, 21: 2, 100: 5}
	for total, want := range totals {
		if got := p.TotalPages(total); got != want {
			t.Errorf("TotalPages(%d) = %d, want %d", total, got, want)
		}
	}
}
