package domain

import (
	"context"
	"time"
)

// PersonalInfo holds a customer's identity and contact details
type PersonalInfo struct {
	Name     string `bson:"name" json:"name" validate:"required,max=100"`
	CNIC     string `bson:"cnic" json:"cnic" validate:"required,numeric,len=13"`
	Phone    string `bson:"phone" json:"phone" validate:"required,min=10,max=15"`
	Email    string `bson:"email" json:"email" validate:"required,email"`
	Address  string `bson:"address" json:"address" validate:"required"`
	Landmark string `bson:"landmark" json:"landmark" validate:"required"`
}

// Document is an uploaded customer file stored in object storage
type Document struct {
	Filename     string    `bson:"filename" json:"filename"`
	OriginalName string    `bson:"original_name" json:"original_name"`
	URL          string    `bson:"url" json:"url"`
	MimeType     string    `bson:"mimetype" json:"mimetype"`
	Size         int64     `bson:"size" json:"size"`
	UploadedAt   time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

// Customer is a subscriber registered at one branch
type Customer struct {
	ID           string       `bson:"_id,omitempty" json:"id"`
	BranchID     string       `bson:"branch_id" json:"branch_id"`
	PersonalInfo PersonalInfo `bson:"personal_info" json:"personal_info"`
	PasswordHash string       `bson:"password_hash" json:"-"`
	Documents    []Document   `bson:"documents" json:"documents"`
	CreatedAt    time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `bson:"updated_at" json:"updated_at"`
}

// CustomerFilter narrows customer listings
type CustomerFilter struct {
	Search string // case-insensitive name match
	Page   int64
	Limit  int64
}

// MaxDocumentsPerUpload caps files accepted by one upload request
const MaxDocumentsPerUpload = 5

// CustomerRepository defines operations for managing customers.
// Every read and write is restricted to the caller's scope.
type CustomerRepository interface {
	Create(ctx context.Context, customer *Customer) error
	GetByID(ctx context.Context, scope Scope, id string) (*Customer, error)
	GetByEmail(ctx context.Context, email string) (*Customer, error)
	List(ctx context.Context, scope Scope, filter CustomerFilter) ([]*Customer, int64, error)
	UpdatePersonalInfo(ctx context.Context, scope Scope, id string, info PersonalInfo) (*Customer, error)
	AddDocuments(ctx context.Context, scope Scope, id string, docs []Document) error
	Count(ctx context.Context, scope Scope) (int64, error)
}
