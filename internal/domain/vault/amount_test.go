package vault

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1000", want: "1000"},
		{in: " 42 ", want: "42"},
		{in: "1e3", want: "1000"},
		{in: "115792089237316195423570985008687907853269984665640564039457584007913129639935", want: "115792089237316195423570985008687907853269984665640564039457584007913129639935"},
		{in: "", wantErr: true},
		{in: "1.5", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseAmount(%q): expected error, got %s", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseAmount(%q): want=%s got=%s", tc.in, tc.want, got)
		}
	}
}

func TestMulDivRounding(t *testing.T) {
	a, b, c := NewAmount(10), NewAmount(1), NewAmount(3)
	if got := MulDivFloor(a, b, c); !got.Equal(NewAmount(3)) {
		t.Fatalf("floor: want=3 got=%s", got)
	}
	if got := MulDivCeil(a, b, c); !got.Equal(NewAmount(4)) {
		t.Fatalf("ceil: want=4 got=%s", got)
	}
	if got := MulDivCeil(NewAmount(9), b, c); !got.Equal(NewAmount(3)) {
		t.Fatalf("exact ceil: want=3 got=%s", got)
	}
	if got := Bps(NewAmount(1000), 50); !got.Equal(NewAmount(5)) {
		t.Fatalf("bps: want=5 got=%s", got)
	}
}
