package models

import (
	"testing"
	"time"
)

func TestBookPatchApplyKeepsUnsetFields(t *testing.T) {
	pages := 412
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := Book{
		Title:        "Dune",
		Author:       "Herbert",
		Genres:       []string{"Sci-Fi"},
		PageCount:    &pages,
		CoverImageID: "65a0c0ffee0000000000beef",
		HasCover:     true,
		Chapters:     []Chapter{{Title: "One", Order: 1}, {Title: "Two", Order: 2}},
		Timestamps:   Timestamps{CreatedAt: created, UpdatedAt: created},
	}
	title := "Dune Messiah"
	later := created.Add(time.Hour)
	p := BookPatch{Title: &title, UpdatedAt: later}
	p.Apply(&b)

	if b.Title != "Dune Messiah" {
		t.Errorf("Title = %q", b.Title)
	}
	if b.Author != "Herbert" || b.CoverImageID == "" || !b.HasCover {
		t.Errorf("unset fields changed: %+v", b)
	}
	if b.PageCount == nil || *b.PageCount != 412 {
		t.Errorf("PageCount = %v", b.PageCount)
	}
	if len(b.Chapters) != 2 || b.Chapters[1].Title != "Two" {
		t.Errorf("Chapters = %+v", b.Chapters)
	}
	if !b.CreatedAt.Equal(created) || !b.UpdatedAt.Equal(later) {
		t.Errorf("timestamps = %v / %v", b.CreatedAt, b.UpdatedAt)
	}
}

func TestPatchApplyCopiesPointers(t *testing.T) {
	var v Video
	d := 90
	p := VideoPatch{Duration: &d}
	p.Apply(&v)
	d = 10
	if *v.Duration != 90 {
		t.Errorf("Duration aliased patch value: %d", *v.Duration)
	}
}

func TestOwnedBlob(t *testing.T) {
	id, ok := OwnedBlob(FileURL("65a0c0ffee0000000000beef"))
	if !ok || id != "65a0c0ffee0000000000beef" {
		t.Errorf("OwnedBlob = %q, %v", id, ok)
	}
	for _, ref := range []string{"", "/api/files/", "https://cdn.example.com/a.png"} {
		if _, ok := OwnedBlob(ref); ok {
			t.Errorf("OwnedBlob(%q) should not be owned", ref)
		}
	}
}

func TestUserPublicDropsHash(t *testing.T) {
	u := User{Name: "Ada", PasswordHash: "$2a$10$x"}
	if u.Public().PasswordHash != "" {
		t.Error("Public kept the password hash")
	}
	if u.PasswordHash == "" {
		t.Error("Public mutated the receiver")
	}
}
