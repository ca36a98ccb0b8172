package hscode

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/shared"
)

var codePattern = regexp.MustCompile(`^[0-9]{2,}(\.[0-9]+)*$`)

// Service implements the local catalog's business rules.
type Service struct {
	repo      Repository
	validator *validator.Validate
	clock     func() time.Time
}

// NewService constructs a Service over repo.
func NewService(repo Repository) *Service {
	v := validator.New()
	_ = v.RegisterValidation("hscode", func(fl validator.FieldLevel) bool {
		return codePattern.MatchString(fl.Field().String())
	})
	return &Service{
		repo:      repo,
		validator: v,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// List returns one page of codes. Page and limit are clamped.
func (s *Service) List(ctx context.Context, params ListParams) ([]HSCode, shared.Pagination, error) {
	params.Page, params.Limit = shared.NormalizePage(params.Page, params.Limit)
	params.Search = strings.TrimSpace(params.Search)
	codes, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return codes, shared.NewPagination(params.Page, params.Limit, total), nil
}

// Get returns a single code.
func (s *Service) Get(ctx context.Context, id string) (HSCode, error) {
	return s.repo.Get(ctx, id)
}

// Create validates input and stores a new code with a fresh ID.
func (s *Service) Create(ctx context.Context, input CreateInput) (HSCode, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Description = strings.TrimSpace(input.Description)
	if err := s.validate(input); err != nil {
		return HSCode{}, err
	}
	now := s.clock()
	return s.repo.Create(ctx, HSCode{
		ID:          uuid.NewString(),
		Code:        input.Code,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// Update merges the non-nil fields of input into the stored code.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (HSCode, error) {
	if input.Code != nil {
		trimmed := strings.TrimSpace(*input.Code)
		if trimmed == "" {
			return HSCode{}, fmt.Errorf("%w: code must not be empty", httpx.ErrValidation)
		}
		input.Code = &trimmed
	}
	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		if trimmed == "" {
			return HSCode{}, fmt.Errorf("%w: description must not be empty", httpx.ErrValidation)
		}
		input.Description = &trimmed
	}
	if err := s.validate(input); err != nil {
		return HSCode{}, err
	}
	if input.Empty() {
		return s.repo.Get(ctx, id)
	}
	return s.repo.Update(ctx, id, func(c *HSCode) error {
		if input.Code != nil {
			c.Code = *input.Code
		}
		if input.Description != nil {
			c.Description = *input.Description
		}
		c.UpdatedAt = s.clock()
		return nil
	})
}

// Delete removes a code.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(v any) error {
	err := s.validator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "hscode":
		return field + " must contain digits separated by dots"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
