package remote

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
)

// ProfileStore keeps profiles in the users/{uid} document.
type ProfileStore struct {
	client *firestore.Client
}

// NewProfileStore creates a ProfileStore.
func NewProfileStore(client *firestore.Client) *ProfileStore {
	return &ProfileStore{client: client}
}

type profileDoc struct {
	Name      string    `firestore:"name"`
	Email     string    `firestore:"email"`
	Bio       string    `firestore:"bio"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// Get returns the profile, or nil when none exists yet.
func (s *ProfileStore) Get(ctx context.Context, uid string) (*models.Profile, error) {
	if uid == "" {
		return nil, ErrNoUser
	}
	snap, err := s.client.Collection("users").Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var d profileDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &models.Profile{
		Name:      d.Name,
		Email:     d.Email,
		Bio:       d.Bio,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

// Save merges the profile into the user document, leaving other fields
// (and the invoices subcollection) untouched.
func (s *ProfileStore) Save(ctx context.Context, uid string, p models.Profile) error {
	if uid == "" {
		return ErrNoUser
	}
	fields := map[string]any{
		"name":      p.Name,
		"email":     p.Email,
		"bio":       p.Bio,
		"createdAt": p.CreatedAt,
		"updatedAt": p.UpdatedAt,
	}
	if _, err := s.client.Collection("users").Doc(uid).Set(ctx, fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
