package expert

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/testdb"
)

func ptr[T any](v T) *T { return &v }

func TestPublishRequiresRate(t *testing.T) {
	db := testdb.New(t)
	s := New(db)
	ctx := context.Background()

	u := testdb.User(t, db, schema.RoleExpert)
	if err := db.Create(&schema.ExpertProfile{UserID: u.ID, Currency: "dkk", Tags: []string{}}).Error; err != nil {
		t.Fatalf("create profile: %v", err)
	}

	if _, err := s.Publish(ctx, u.ID); !errors.Is(err, ErrRateRequired) {
		t.Errorf("Expected ErrRateRequired, got %v", err)
	}

	if _, err := s.UpsertProfile(ctx, u.ID, UpsertProfileRequest{HourlyRateMinor: ptr(int64(0))}); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("Expected ErrInvalidRate, got %v", err)
	}

	p, err := s.UpsertProfile(ctx, u.ID, UpsertProfileRequest{
		Headline:        ptr("Go mentor"),
		Tags:            []string{" Go ", "go", "", "Kubernetes"},
		HourlyRateMinor: ptr(int64(75000)),
	})
	if err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "go" || p.Tags[1] != "kubernetes" {
		t.Errorf("Expected normalized tags, got %v", p.Tags)
	}

	p, err = s.Publish(ctx, u.ID)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !p.IsPublished {
		t.Error("Expected profile to be published")
	}

	p, err = s.Unpublish(ctx, u.ID)
	if err != nil || p.IsPublished {
		t.Errorf("Expected profile to be unpublished, got %v, %v", p, err)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := New(testdb.New(t))
	if _, err := s.Get(context.Background(), uuid.New()); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Expected ErrProfileNotFound, got %v", err)
	}
}

func TestListPublished(t *testing.T) {
	db := testdb.New(t)
	s := New(db)
	ctx := context.Background()

	testdb.Expert(t, db, 50000) // tagged "go"
	_, p2 := testdb.Expert(t, db, 60000)
	db.Model(p2).Update("tags", `["design"]`)
	_, p3 := testdb.Expert(t, db, 70000)
	db.Model(p3).Update("is_published", false)

	all, err := s.ListPublished(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("ListPublished failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 published experts, got %d", len(all))
	}

	tagged, _ := s.ListPublished(ctx, ListFilter{Tag: "GO"})
	if len(tagged) != 1 {
		t.Errorf("Expected 1 expert tagged go, got %d", len(tagged))
	}

	page2, _ := s.ListPublished(ctx, ListFilter{Page: 2, PerPage: 1})
	if len(page2) != 1 {
		t.Errorf("Expected 1 expert on page 2, got %d", len(page2))
	}
}
