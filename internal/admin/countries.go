package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
	"github.com/MikeSquared-Agency/Ranking/internal/store"
)

type CountryInput struct {
	Name   string `json:"name" validate:"required,max=100"`
	Code   string `json:"code" validate:"required,max=10"`
	Region string `json:"region,omitempty" validate:"max=100"`
}

func (s *Service) ListCountries(ctx context.Context) ([]*store.Country, error) {
	cs, err := s.store.ListCountries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	return cs, nil
}

func (s *Service) GetCountry(ctx context.Context, id int64) (*store.Country, error) {
	c, err := s.store.GetCountry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get country: %w", err)
	}
	if c == nil {
		return nil, apperr.NotFound("country %d not found", id)
	}
	return c, nil
}

func (s *Service) CreateCountry(ctx context.Context, in CountryInput) (*store.Country, error) {
	c := &store.Country{Name: strings.TrimSpace(in.Name), Code: strings.ToUpper(strings.TrimSpace(in.Code)), Region: in.Region}
	if c.Name == "" || c.Code == "" {
		return nil, apperr.BadRequest("country name and code are required")
	}
	if err := s.store.CreateCountry(ctx, c); err != nil {
		return nil, duplicate(err, "create country", "a country named %q or coded %q already exists", c.Name, c.Code)
	}
	s.logger.Info("country created", "country_id", c.ID, "code", c.Code)
	return c, nil
}

func (s *Service) UpdateCountry(ctx context.Context, id int64, in CountryInput) (*store.Country, error) {
	c, err := s.GetCountry(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		c.Name = name
	}
	if code := strings.TrimSpace(in.Code); code != "" {
		c.Code = strings.ToUpper(code)
	}
	c.Region = in.Region
	if err := s.store.UpdateCountry(ctx, c); err != nil {
		return nil, duplicate(err, "update country", "a country named %q or coded %q already exists", c.Name, c.Code)
	}
	return c, nil
}

// DeleteCountry removes the country with its scores, dimension scores and
// ranks.
func (s *Service) DeleteCountry(ctx context.Context, id int64) error {
	if _, err := s.GetCountry(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteCountry(ctx, id); err != nil {
		return fmt.Errorf("delete country: %w", err)
	}
	s.logger.Info("country deleted", "country_id", id)
	return nil
}
