package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Book is a single catalog entry stored in MongoDB. OwnerID and CreatedAt
// are set once at insert and never rewritten.
type Book struct {
	ID            primitive.ObjectID `json:"_id"                     bson:"_id,omitempty"`
	Title         string             `json:"title"                   bson:"title"`
	Author        string             `json:"author"                  bson:"author"`
	Description   string             `json:"description"             bson:"description"`
	PublishedYear *int               `json:"publishedYear,omitempty" bson:"published_year,omitempty"`
	OwnerID       string             `json:"userId"                  bson:"user_id"`
	CreatedAt     time.Time          `json:"createdAt"               bson:"created_at"`
}

// CreateBookRequest is the JSON body for POST /api/books.
type CreateBookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	Description   string `json:"description"`
	PublishedYear *int   `json:"publishedYear"`
}

// UpdateBookRequest is the JSON body for PUT /api/books/{id}. Nil fields are
// left untouched.
type UpdateBookRequest struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	Description   *string `json:"description"`
	PublishedYear *int    `json:"publishedYear"`
}

// Empty reports whether the patch carries no fields.
func (r UpdateBookRequest) Empty() bool {
	return r.Title == nil && r.Author == nil && r.Description == nil && r.PublishedYear == nil
}

// MessageResponse is the generic {"message": ...} body used for errors and
// acknowledgements.
type MessageResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}
