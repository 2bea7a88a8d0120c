package books

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bookshelf/backend/internal/models"
)

// MinPublishedYear is the earliest accepted publication year. The upper bound
// is the current calendar year.
const MinPublishedYear = 1000

// Store defines the persistence the service needs. Implementations must apply
// the owner filter inside the same query as the id lookup.
type Store interface {
	Insert(ctx context.Context, book *models.Book) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Book, error)
	GetOwned(ctx context.Context, ownerID, id string) (*models.Book, error)
	UpdateOwned(ctx context.Context, ownerID, id string, patch models.UpdateBookRequest) (*models.Book, error)
	DeleteOwned(ctx context.Context, ownerID, id string) error
}

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Service implements owner-scoped book operations.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) List(ctx context.Context, ownerID string) ([]models.Book, error) {
	books, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []models.Book{}
	}
	return books, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (*models.Book, error) {
	return s.store.GetOwned(ctx, ownerID, id)
}

func (s *Service) Create(ctx context.Context, ownerID string, req models.CreateBookRequest) (*models.Book, error) {
	book := &models.Book{
		Title:         strings.TrimSpace(req.Title),
		Author:        strings.TrimSpace(req.Author),
		Description:   strings.TrimSpace(req.Description),
		PublishedYear: req.PublishedYear,
		OwnerID:       ownerID,
	}
	if err := requireText("title", book.Title); err != nil {
		return nil, err
	}
	if err := requireText("author", book.Author); err != nil {
		return nil, err
	}
	if err := s.checkYear(book.PublishedYear); err != nil {
		return nil, err
	}

	if err := s.store.Insert(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// Update merges the supplied fields into the owner's book. An empty patch
// returns the book unchanged.
func (s *Service) Update(ctx context.Context, ownerID, id string, patch models.UpdateBookRequest) (*models.Book, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if err := requireText("title", title); err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if patch.Author != nil {
		author := strings.TrimSpace(*patch.Author)
		if err := requireText("author", author); err != nil {
			return nil, err
		}
		patch.Author = &author
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		patch.Description = &desc
	}
	if err := s.checkYear(patch.PublishedYear); err != nil {
		return nil, err
	}

	if patch.Empty() {
		return s.store.GetOwned(ctx, ownerID, id)
	}
	return s.store.UpdateOwned(ctx, ownerID, id, patch)
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	return s.store.DeleteOwned(ctx, ownerID, id)
}

func (s *Service) checkYear(year *int) error {
	if year == nil {
		return nil
	}
	if *year < MinPublishedYear {
		return &ValidationError{Field: "publishedYear", Message: fmt.Sprintf("published year must be at least %d", MinPublishedYear)}
	}
	if *year > s.now().Year() {
		return &ValidationError{Field: "publishedYear", Message: "published year cannot be in the future"}
	}
	return nil
}

func requireText(field, v string) error {
	if v == "" {
		return &ValidationError{Field: field, Message: field + " is required"}
	}
	return nil
}
