package methods

import "testing"

func TestConvertToInitials(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"测量", "cl"},
		{"三角网", "sjw"},
		{"TIN成果", "tincg"},
		{"1号地块", "hdk1"},
		{"工程（一期）", "gcyq"},
	}
	for _, tc := range cases {
		if got := ConvertToInitials(tc.in); got != tc.want {
			t.Errorf("ConvertToInitials(%q) = %q, 期望 %q", tc.in, got, tc.want)
		}
	}
}

func TestCamelCaseToUnderscore(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"VertexCount", "vertex_count"},
		{"BSM", "bsm"},
		{"TinBSM", "tin_bsm"},
		{"MinZ", "min_z"},
	}
	for _, tc := range cases {
		if got := CamelCaseToUnderscore(tc.in); got != tc.want {
			t.Errorf("CamelCaseToUnderscore(%q) = %q, 期望 %q", tc.in, got, tc.want)
		}
	}
}
