package services

import (
	"context"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// CategoryService manages categories and the keywords the categorizer
// matches against.
type CategoryService struct {
	storage *storage.SQLiteRepository
}

func NewCategoryService(storage *storage.SQLiteRepository) *CategoryService {
	return &CategoryService{storage: storage}
}

func (s *CategoryService) List(ctx context.Context) ([]storage.Category, error) {
	cats, err := s.storage.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if cats == nil {
		cats = []storage.Category{}
	}
	return cats, nil
}

// Add creates the category, or returns the id of the existing one with the
// same name.
func (s *CategoryService) Add(ctx context.Context, name string) (int64, error) {
	name, err := required("name", "Category name required", name)
	if err != nil {
		return 0, err
	}
	return s.storage.AddCategory(ctx, name)
}

// Rename changes the name of the category and of every transaction filed
// under it.
func (s *CategoryService) Rename(ctx context.Context, id int64, name string) error {
	name, err := required("name", "Name required", name)
	if err != nil {
		return err
	}
	return s.storage.RenameCategory(ctx, id, name)
}

func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	ok, err := s.storage.DeleteCategory(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrNotFound
	}
	return nil
}

func (s *CategoryService) AddKeyword(ctx context.Context, categoryID int64, keyword string) (int64, error) {
	keyword, err := required("keyword", "Keyword required", keyword)
	if err != nil {
		return 0, err
	}
	return s.storage.AddKeyword(ctx, categoryID, keyword)
}

func (s *CategoryService) DeleteKeyword(ctx context.Context, id int64) error {
	ok, err := s.storage.DeleteKeyword(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrNotFound
	}
	return nil
}

func required(field, msg, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		verr := core.NewValidationError()
		verr.Add(field, msg)
		return "", verr
	}
	return value, nil
}
