package version

import (
	"strings"
	"testing"
)

func TestInfoFieldsAreSet(t *testing.T) {
	v, c, d := Info()
	for name, value := range map[string]string{"version": v, "commit": c, "date": d} {
		if value == "" {
			t.Errorf("%s should not be empty", name)
		}
	}
}

func TestGetVersionMatchesInfo(t *testing.T) {
	v, _, _ := Info()
	if got := GetVersion(); got != v {
		t.Errorf("GetVersion (%s) should match Info version (%s)", got, v)
	}
}

func TestStringMentionsAllFields(t *testing.T) {
	s := String()
	for _, field := range []string{"version=", "commit=", "date="} {
		if !strings.Contains(s, field) {
			t.Errorf("String should contain %q, got %q", field, s)
		}
	}
}
