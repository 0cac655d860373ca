package estate

import (
	"context"
	"fmt"
	"strings"

	"estate/server/internal/models"

	"gorm.io/gorm"
)

type NamedInput struct {
	Name string `json:"name" validate:"required"`
}

func (in *NamedInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
}

type PartnerInput struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

func (in *PartnerInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
}

type UserInput struct {
	Login string `json:"login" validate:"required"`
	Name  string `json:"name" validate:"required"`
}

func (in *UserInput) normalize() {
	in.Login = strings.TrimSpace(in.Login)
	in.Name = strings.TrimSpace(in.Name)
}

func (s *Service) CreatePropertyType(ctx context.Context, in NamedInput) (*models.PropertyType, error) {
	in.normalize()
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	t := models.PropertyType{Name: in.Name}
	if err := requireUnique(s.db.WithContext(ctx), &models.PropertyType{}, "name", t.Name); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, fmt.Errorf("failed to create property type: %w", err)
	}
	return &t, nil
}

func (s *Service) ListPropertyTypes(ctx context.Context) ([]models.PropertyType, error) {
	var types []models.PropertyType
	err := s.db.WithContext(ctx).Order("name asc").Find(&types).Error
	return types, err
}

func (s *Service) CreateTag(ctx context.Context, in NamedInput) (*models.Tag, error) {
	in.normalize()
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	t := models.Tag{Name: in.Name}
	if err := requireUnique(s.db.WithContext(ctx), &models.Tag{}, "name", t.Name); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return &t, nil
}

func (s *Service) ListTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := s.db.WithContext(ctx).Order("name asc").Find(&tags).Error
	return tags, err
}

func (s *Service) CreatePartner(ctx context.Context, in PartnerInput) (*models.Partner, error) {
	in.normalize()
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	p := models.Partner{Name: in.Name, Email: in.Email, Phone: in.Phone}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to create partner: %w", err)
	}
	return &p, nil
}

func (s *Service) ListPartners(ctx context.Context) ([]models.Partner, error) {
	var partners []models.Partner
	err := s.db.WithContext(ctx).Order("name asc").Find(&partners).Error
	return partners, err
}

func (s *Service) CreateUser(ctx context.Context, in UserInput) (*models.User, error) {
	in.normalize()
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	u := models.User{Login: in.Login, Name: in.Name}
	if err := requireUnique(s.db.WithContext(ctx), &models.User{}, "login", u.Login); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Order("login asc").Find(&users).Error
	return users, err
}

func (s *Service) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("login = ?", login).First(&u).Error; err != nil {
		return nil, notFound(err, "user", 0)
	}
	return &u, nil
}

func requireUnique(db *gorm.DB, model any, column, value string) error {
	var count int64
	if err := db.Model(model).Where(column+" = ?", value).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return validationErrorf("%s %q already exists", column, value)
	}
	return nil
}
