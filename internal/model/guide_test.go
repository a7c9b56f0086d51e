package model

import (
	"reflect"
	"testing"
)

func TestParseTags(t *testing.T) {
	got := ParseTags(" vpn, email ,, vpn,Wi-Fi ")
	want := Tags{"Wi-Fi", "email", "vpn"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseTags = %v, want %v", got, want)
	}
	if got.String() != "Wi-Fi, email, vpn" {
		t.Errorf("String() = %q", got.String())
	}
}

func TestTagSetOperations(t *testing.T) {
	base := NewTags("vpn", "email")

	union := base.Union(Tags{"printing", "vpn"})
	if !reflect.DeepEqual(union, Tags{"email", "printing", "vpn"}) {
		t.Errorf("Union = %v", union)
	}

	diff := union.Difference(Tags{"email", "missing"})
	if !reflect.DeepEqual(diff, Tags{"printing", "vpn"}) {
		t.Errorf("Difference = %v", diff)
	}

	if !diff.Contains("VPN") {
		t.Error("Contains should be case-insensitive")
	}
}

func TestSummaryHasNoBody(t *testing.T) {
	typ := reflect.TypeOf(GuideSummary{})
	for _, name := range []string{"Body", "Document", "Content"} {
		if _, ok := typ.FieldByName(name); ok {
			t.Errorf("GuideSummary has field %s", name)
		}
	}
}
