package books

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bookshelf/backend/internal/common"
	"github.com/bookshelf/backend/internal/models"
)

// memStore is an in-memory Store that keeps the owner filter semantics of
// the Mongo implementation.
type memStore struct {
	mu    sync.Mutex
	order []primitive.ObjectID
	books map[primitive.ObjectID]models.Book
	err   error
}

func newMemStore() *memStore {
	return &memStore{books: map[primitive.ObjectID]models.Book{}}
}

func (m *memStore) Insert(_ context.Context, book *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	book.ID = primitive.NewObjectID()
	book.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	m.books[book.ID] = *book
	m.order = append(m.order, book.ID)
	return nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID string) ([]models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Book
	for _, id := range m.order {
		if b, ok := m.books[id]; ok && b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) lookup(ownerID, id string) (primitive.ObjectID, models.Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return oid, models.Book{}, common.ErrNotFound
	}
	b, ok := m.books[oid]
	if !ok || b.OwnerID != ownerID {
		return oid, models.Book{}, common.ErrNotFound
	}
	return oid, b, nil
}

func (m *memStore) GetOwned(_ context.Context, ownerID, id string) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	_, b, err := m.lookup(ownerID, id)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (m *memStore) UpdateOwned(_ context.Context, ownerID, id string, patch models.UpdateBookRequest) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	oid, b, err := m.lookup(ownerID, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		b.Title = *patch.Title
	}
	if patch.Author != nil {
		b.Author = *patch.Author
	}
	if patch.Description != nil {
		b.Description = *patch.Description
	}
	if patch.PublishedYear != nil {
		y := *patch.PublishedYear
		b.PublishedYear = &y
	}
	m.books[oid] = b
	return &b, nil
}

func (m *memStore) DeleteOwned(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	oid, _, err := m.lookup(ownerID, id)
	if err != nil {
		return err
	}
	delete(m.books, oid)
	return nil
}

var errStoreDown = errors.New("store down")
