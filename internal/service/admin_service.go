package service

import (
	"context"
)

type Stats struct {
	Users    int64 `json:"users"`
	Chapters int64 `json:"chapters"`
	Books    int64 `json:"books"`
}

type StatsService struct {
	users    UserStore
	chapters ChapterStore
	books    BookStore
}

func NewStatsService(users UserStore, chapters ChapterStore, books BookStore) *StatsService {
	return &StatsService{users: users, chapters: chapters, books: books}
}

func (s *StatsService) Stats(ctx context.Context) (*Stats, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	chapters, err := s.chapters.Count(ctx)
	if err != nil {
		return nil, err
	}
	books, err := s.books.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Users: users, Chapters: chapters, Books: books}, nil
}
