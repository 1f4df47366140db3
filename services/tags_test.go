package services

import (
	"reflect"
	"testing"
)

func TestParseTags(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{" , ,", []string{}},
		{"akiz", []string{"akiz"}},
		{" akiz , 2021/07 ,izumi ", []string{"akiz", "2021/07", "izumi"}},
		{"a,b,a,,b,c", []string{"a", "b", "c"}},
		{"Aki,aki", []string{"Aki", "aki"}},
	}
	for _, c := range cases {
		got := ParseTags(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("ParseTags(%q) = %#v, want %#v", c.in, got, c.want)
		}
	}
}

func TestNormalizeTagsNeverNil(t *testing.T) {
	if got := NormalizeTags(nil); got == nil {
		t.Fatal("NormalizeTags(nil) returned nil")
	}
}

func TestDistinctTagsKeepsDiscoveryOrder(t *testing.T) {
	got := distinctTags([][]string{{"b", "a"}, {}, {"a", "c"}, {"b"}})
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("distinctTags = %v, want %v", got, want)
	}
}
