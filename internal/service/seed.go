package service

import (
	"context"
	"fmt"

	"github.com/rongwang/marketplace-server/internal/models"
)

// Development seed data
const (
	SeedAdminName      = "admin"
	SeedAdminPassword  = 1234
	SeedMemberName     = "buyer"
	SeedMemberPassword = 321
	seedStock          = 10
)

// SeedDevelopmentData creates an administrator and a member when there are no
// accounts, and two listings when there are no listings. It is a development
// convenience and does nothing on a populated database.
func (s *DefaultService) SeedDevelopmentData(ctx context.Context) error {
	accounts, err := s.repo.CountAccounts(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	if accounts == 0 {
		if _, err := s.createAccount(ctx, SeedAdminName, SeedAdminPassword, models.LevelAdministrator); err != nil {
			return fmt.Errorf("seed administrator: %w", err)
		}
		if _, err := s.createAccount(ctx, SeedMemberName, SeedMemberPassword, models.LevelMember); err != nil {
			return fmt.Errorf("seed member: %w", err)
		}
		s.logger.InfoContext(ctx, "seeded accounts", "administrator", SeedAdminName, "member", SeedMemberName)
	}

	listings, err := s.repo.CountListings(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if listings > 0 {
		return nil
	}

	admin, err := s.repo.GetAccountByName(ctx, SeedAdminName)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if admin == nil {
		s.logger.WarnContext(ctx, "seed administrator missing, skipping listings")
		return nil
	}

	description := "Is this melon ripe?"
	stock := int64(seedStock)
	seeds := []models.Listing{
		{Name: "Melon", Description: &description, OwnerID: admin.ID, Price: 100, Stock: &stock},
		{Name: "T91 Rifle", OwnerID: admin.ID, Price: 67890, Stock: &stock},
	}

	for i := range seeds {
		if err := s.repo.CreateListing(ctx, &seeds[i]); err != nil {
			return fmt.Errorf("seed listing %q: %w", seeds[i].Name, err)
		}
	}

	s.logger.InfoContext(ctx, "seeded listings", "count", len(seeds))
	return nil
}
