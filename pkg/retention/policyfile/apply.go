package policyfile

import (
	"context"
	"errors"
	"fmt"

	"chryso-hq/forms/pkg/retention"
)

// ApplyReport lists the policy ids touched by Apply.
type ApplyReport struct {
	Created []string
	Updated []string
}

// Apply upserts policies into store. A policy matches an existing one by id
// when it carries one, otherwise by organization and entity type, preferring
// the active policy. Stats and leases of existing policies are preserved.
func Apply(ctx context.Context, store retention.PolicyStore, policies []*retention.Policy, actor string) (*ApplyReport, error) {
	report := &ApplyReport{}
	for _, p := range policies {
		existing, err := findExisting(ctx, store, p)
		if err != nil {
			return report, err
		}

		if existing == nil {
			if p.CreatedBy == "" {
				p.CreatedBy = actor
			}
			if err := store.Create(ctx, p); err != nil {
				return report, fmt.Errorf("create policy for %s/%s: %w", p.OrganizationID, p.EntityType, err)
			}
			report.Created = append(report.Created, p.ID)
			continue
		}

		p.ID = existing.ID
		if err := store.Update(ctx, p); err != nil {
			return report, fmt.Errorf("update policy %s: %w", p.ID, err)
		}
		report.Updated = append(report.Updated, p.ID)
	}
	return report, nil
}

// Sync loads path and applies it to store.
func Sync(ctx context.Context, store retention.PolicyStore, path, actor string) (*ApplyReport, error) {
	policies, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Apply(ctx, store, policies, actor)
}

func findExisting(ctx context.Context, store retention.PolicyStore, p *retention.Policy) (*retention.Policy, error) {
	if p.ID != "" {
		existing, err := store.Get(ctx, p.ID)
		if err == nil {
			return existing, nil
		}
		if errors.Is(err, retention.ErrPolicyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	candidates, err := store.List(ctx, retention.PolicyFilter{
		OrganizationID: p.OrganizationID,
		EntityType:     p.EntityType,
	})
	if err != nil {
		return nil, fmt.Errorf("list policies for %s/%s: %w", p.OrganizationID, p.EntityType, err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	for _, c := range candidates {
		if c.IsActive {
			return c, nil
		}
	}
	return candidates[len(candidates)-1], nil
}
