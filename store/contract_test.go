package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"komugigallery.com/gallery/database"
	"komugigallery.com/gallery/models"
	"komugigallery.com/gallery/store"
)

type backend interface {
	store.PostStore
	store.UserStore
}

func backends(t *testing.T) map[string]backend {
	t.Helper()
	dir := t.TempDir()

	db, err := database.ConnectDB("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("ConnectDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]backend{
		"file":    store.NewFileStore(filepath.Join(dir, "data.json"), filepath.Join(dir, "users.json")),
		"sqlite3": store.NewSQLStore(db),
	}
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s store.PostStore, tagSets ...[]string) []string {
	t.Helper()
	ids := make([]string, len(tagSets))
	for i, tags := range tagSets {
		p := &models.Post{
			ImageURLs:      []string{"/uploads/a.jpg"},
			ImagePublicIDs: []string{"a.jpg"},
			Tags:           tags,
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
			CreatedBy:      "u1",
		}
		if err := s.Insert(context.Background(), p); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if p.ID == "" {
			t.Fatal("Insert did not assign an id")
		}
		ids[i] = p.ID
	}
	return ids
}

func postIDs(posts []models.Post) []string {
	out := []string{}
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestPostStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ids := seed(t, s,
				[]string{"akiz", "2021/07"},
				[]string{"izumi"},
				[]string{"Akiyoshi", "100%"},
				[]string{},
			)

			all, err := s.Find(ctx, store.PostQuery{})
			if err != nil {
				t.Fatal(err)
			}
			if want := []string{ids[3], ids[2], ids[1], ids[0]}; !reflect.DeepEqual(postIDs(all), want) {
				t.Fatalf("Find order = %v, want %v", postIDs(all), want)
			}

			pg, err := s.Find(ctx, store.PostQuery{Skip: 1, Limit: 2})
			if err != nil {
				t.Fatal(err)
			}
			if want := []string{ids[2], ids[1]}; !reflect.DeepEqual(postIDs(pg), want) {
				t.Fatalf("Find page = %v, want %v", postIDs(pg), want)
			}

			filtered, err := s.Find(ctx, store.PostQuery{Tag: "AKI"})
			if err != nil {
				t.Fatal(err)
			}
			if want := []string{ids[2], ids[0]}; !reflect.DeepEqual(postIDs(filtered), want) {
				t.Fatalf("Find AKI = %v, want %v", postIDs(filtered), want)
			}

			literal, err := s.Find(ctx, store.PostQuery{Tag: "%"})
			if err != nil {
				t.Fatal(err)
			}
			if want := []string{ids[2]}; !reflect.DeepEqual(postIDs(literal), want) {
				t.Fatalf("Find %% = %v, want %v", postIDs(literal), want)
			}

			if n, err := s.Count(ctx, ""); err != nil || n != 4 {
				t.Fatalf("Count = %d, %v", n, err)
			}
			if n, err := s.Count(ctx, "aki"); err != nil || n != 2 {
				t.Fatalf("Count(aki) = %d, %v", n, err)
			}

			got, err := s.FindByID(ctx, ids[0])
			if err != nil {
				t.Fatal(err)
			}
			if !got.CreatedAt.Equal(base) || got.CreatedBy != "u1" || !reflect.DeepEqual(got.ImagePublicIDs, []string{"a.jpg"}) {
				t.Fatalf("FindByID = %+v", got)
			}
			empty, err := s.FindByID(ctx, ids[3])
			if err != nil {
				t.Fatal(err)
			}
			if empty.Tags == nil || len(empty.Tags) != 0 {
				t.Fatalf("tags of untagged post = %#v", empty.Tags)
			}

			if err := s.UpdateTags(ctx, ids[1], []string{"kotori", "2022年"}); err != nil {
				t.Fatal(err)
			}
			if n, _ := s.Count(ctx, "izumi"); n != 0 {
				t.Fatalf("old tag still matches %d posts", n)
			}
			if n, _ := s.Count(ctx, "kotori"); n != 1 {
				t.Fatalf("new tag matches %d posts", n)
			}

			sets, err := s.TagSets(ctx)
			if err != nil {
				t.Fatal(err)
			}
			wantSets := [][]string{{"akiz", "2021/07"}, {"kotori", "2022年"}, {"Akiyoshi", "100%"}, {}}
			if !reflect.DeepEqual(sets, wantSets) {
				t.Fatalf("TagSets = %v, want %v", sets, wantSets)
			}

			if err := s.Delete(ctx, ids[0]); err != nil {
				t.Fatal(err)
			}
			if _, err := s.FindByID(ctx, ids[0]); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("FindByID after delete: %v", err)
			}
			if n, _ := s.Count(ctx, "akiz"); n != 0 {
				t.Fatalf("deleted post still matches")
			}

			for _, id := range []string{"", "missing", ids[0]} {
				if err := s.Delete(ctx, id); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("Delete(%q) = %v, want ErrNotFound", id, err)
				}
				if err := s.UpdateTags(ctx, id, []string{"x"}); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("UpdateTags(%q) = %v, want ErrNotFound", id, err)
				}
			}
		})
	}
}

func TestUserStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.FindByUsername(ctx, "alice"); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("unknown user: %v", err)
			}

			u := &models.User{Username: "alice", PasswordHash: "h1"}
			if err := s.SaveUser(ctx, u); err != nil {
				t.Fatal(err)
			}
			if u.ID == "" {
				t.Fatal("SaveUser did not assign an id")
			}
			id := u.ID

			if err := s.SaveUser(ctx, &models.User{Username: "alice", PasswordHash: "h2", IsAdmin: true}); err != nil {
				t.Fatal(err)
			}
			got, err := s.FindByUsername(ctx, "alice")
			if err != nil {
				t.Fatal(err)
			}
			if got.ID != id || got.PasswordHash != "h2" || !got.IsAdmin {
				t.Fatalf("after replace = %+v (id was %s)", got, id)
			}
		})
	}
}
