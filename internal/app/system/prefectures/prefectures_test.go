package prefectures

import "testing"

func TestAll(t *testing.T) {
	if len(All) != 47 {
		t.Fatalf("len(All) = %d, want 47", len(All))
	}
	seen := map[string]bool{}
	for _, p := range All {
		if seen[p] {
			t.Errorf("duplicate prefecture %q", p)
		}
		seen[p] = true
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"東京都", true},
		{"北海道", true},
		{"東京", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValid(tt.in); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOrder(t *testing.T) {
	if Order("北海道") != 0 {
		t.Errorf("Order(北海道) = %d, want 0", Order("北海道"))
	}
	if Order("沖縄県") != 46 {
		t.Errorf("Order(沖縄県) = %d, want 46", Order("沖縄県"))
	}
	if Order("unknown") != 47 {
		t.Errorf("Order(unknown) = %d, want 47", Order("unknown"))
	}
}

func TestFromAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"東京都新宿区西新宿2-8-1", "東京都"},
		{"神奈川県横浜市中区", "神奈川県"},
		{" 京都府京都市", "京都府"},
		{"新宿区西新宿", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FromAddress(tt.in); got != tt.want {
			t.Errorf("FromAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
