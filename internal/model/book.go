package model

type Book struct {
	ID          int64   `json:"id"`
	UserID      int64   `json:"user_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	// PDFURL references the generated artifact whatever its format.
	PDFURL    *string `json:"pdf_url"`
	CreatedAt int64   `json:"created_at"`
}
