package permissions

import (
	"context"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"
)

// TeamSource loads the owner and member records the resolver checks.
// Both return a NOT_FOUND error when the record is absent.
type TeamSource interface {
	TeamOwner(ctx context.Context, kind models.EntityKind, entityID string) (string, error)
	TeamMember(ctx context.Context, kind models.EntityKind, entityID, userID string) (*models.Member, error)
}

type Resolver struct {
	catalog *Catalog
	teams   TeamSource
}

func NewResolver(catalog *Catalog, teams TeamSource) *Resolver {
	return &Resolver{catalog: catalog, teams: teams}
}

func (r *Resolver) Catalog() *Catalog { return r.catalog }

// Assert grants the owner unconditionally. Anyone else needs an active
// member record holding capability.
func (r *Resolver) Assert(ctx context.Context, principal string, kind models.EntityKind, entityID, capability string) error {
	if principal == "" {
		return apperrors.ErrUnauthorized
	}
	if entityID == "" {
		return apperrors.InvalidArgument("missing %s id", kind)
	}

	keys, err := r.catalog.For(kind)
	if err != nil {
		return err
	}
	if !keys.Has(capability) {
		return apperrors.InvalidArgument("unknown %s capability %q", kind, capability)
	}

	owner, err := r.teams.TeamOwner(ctx, kind, entityID)
	if err != nil {
		return err
	}
	if owner == principal {
		return nil
	}

	member, err := r.teams.TeamMember(ctx, kind, entityID, principal)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return apperrors.PermissionDenied("not a member of %s %s", kind, entityID)
		}
		return err
	}
	if member.Status != models.MemberActive {
		return apperrors.PermissionDenied("membership of %s %s is not active", kind, entityID)
	}
	if capability == keys.Viewer() || member.Permissions[capability] {
		return nil
	}
	return apperrors.PermissionDenied("missing permission %s", capability)
}

// Allowed is Assert as a boolean. Only permission failures map to false;
// lookup failures are returned.
func (r *Resolver) Allowed(ctx context.Context, principal string, kind models.EntityKind, entityID, capability string) (bool, error) {
	err := r.Assert(ctx, principal, kind, entityID, capability)
	switch apperrors.CodeOf(err) {
	case apperrors.CodePermissionDenied, apperrors.CodeUnauthenticated:
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
