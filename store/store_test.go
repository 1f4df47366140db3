package store

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"komugigallery.com/gallery/models"
)

func TestMatchTag(t *testing.T) {
	tags := []string{"Akiz", "2021/07"}
	cases := map[string]bool{
		"":        true,
		"aki":     true,
		"AKIZ":    true,
		"2021":    true,
		"/07":     true,
		"izumi":   false,
		"akiz ":   false,
		"2021/08": false,
	}
	for filter, want := range cases {
		if got := MatchTag(tags, filter); got != want {
			t.Errorf("MatchTag(%q) = %v, want %v", filter, got, want)
		}
	}
	if MatchTag(nil, "a") {
		t.Error("MatchTag(nil, a) = true")
	}
}

func TestPage(t *testing.T) {
	posts := make([]models.Post, 5)
	for i := range posts {
		posts[i].ID = string(rune('a' + i))
	}
	ids := func(ps []models.Post) string {
		s := ""
		for _, p := range ps {
			s += p.ID
		}
		return s
	}

	cases := []struct {
		skip, limit int
		want        string
	}{
		{0, 2, "ab"},
		{2, 2, "cd"},
		{4, 2, "e"},
		{5, 2, ""},
		{9, 2, ""},
		{-1, 0, "abcde"},
	}
	for _, c := range cases {
		got := page(posts, c.skip, c.limit)
		if ids(got) != c.want || got == nil {
			t.Errorf("page(skip=%d, limit=%d) = %q, want %q", c.skip, c.limit, ids(got), c.want)
		}
	}
}

func TestMongoTagFilterEscapesRegex(t *testing.T) {
	if got := tagFilter(""); len(got) != 0 {
		t.Fatalf("tagFilter(\"\") = %v, want empty", got)
	}

	got := tagFilter("a.b")
	want := bson.M{"tags": bson.M{"$elemMatch": bson.M{"$regex": `a\.b`, "$options": "i"}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tagFilter(a.b) = %v, want %v", got, want)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("escapeLike = %q", got)
	}
}
