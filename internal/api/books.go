package api

import (
	"strings"

	"github.com/JakeFAU/guide-quotes/internal/harvest"
)

// Book is a run of consecutive chapters starting at a prologue.
type Book struct {
	Number int                     `json:"book"`
	Quotes []harvest.ChapterRecord `json:"quotes"`
}

// GroupBooks splits records into books. Every chapter whose title mentions
// "prologue" after the first one opens a new book; chapters ahead of the
// first prologue belong to book 1.
func GroupBooks(records []harvest.ChapterRecord) []Book {
	books := []Book{}
	seenPrologue := false
	for _, rec := range records {
		isPrologue := strings.Contains(strings.ToLower(rec.Title), "prologue")
		switch {
		case len(books) == 0:
			books = append(books, Book{Number: 1})
		case isPrologue && seenPrologue:
			books = append(books, Book{Number: len(books) + 1})
		}
		if isPrologue {
			seenPrologue = true
		}
		last := &books[len(books)-1]
		last.Quotes = append(last.Quotes, rec)
	}
	return books
}
