package core

// BookID identifies a book. There is exactly one copy per id.
type BookID string

// UserID identifies a library member. The user lifecycle is owned elsewhere.
type UserID string

// Availability is the derived lending state of a book.
type Availability string

const (
	Available Availability = "available"
	Borrowed  Availability = "borrowed"
	Reserved  Availability = "reserved"
)

// Book is a catalog entry together with its current availability.
type Book struct {
	ID            BookID       `json:"id"`
	Title         string       `json:"title"`
	Author        string       `json:"author"`
	Category      string       `json:"category"`
	ISBN          string       `json:"isbn"`
	Description   string       `json:"description,omitempty"`
	CoverURL      string       `json:"cover_url,omitempty"`
	Shelf         string       `json:"shelf"`
	PublishedYear int          `json:"published_year"`
	Pages         int          `json:"pages"`
	IsFree        bool         `json:"is_free,omitempty"`
	PDFURL        string       `json:"pdf_url,omitempty"`
	Availability  Availability `json:"availability"`
}

// Validate checks the fields a catalog entry cannot live without.
func (b Book) Validate() error {
	if b.ID == "" {
		return ErrEmptyBookID
	}

	if b.Title == "" {
		return ErrEmptyBookTitle
	}

	return nil
}
