// Package permissions decides whether a user may perform a capability on a
// venue or artist team.
package permissions

import (
	_ "embed"
	"fmt"
	"sort"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"

	"gopkg.in/yaml.v3"
)

// Venue capabilities.
const (
	VenueGigsRead           = "gigs.read"
	VenueGigsCreate         = "gigs.create"
	VenueGigsUpdate         = "gigs.update"
	VenueApplicationsManage = "gigs.applications.manage"
	VenueGigsInvite         = "gigs.invite"
	VenueGigsPay            = "gigs.pay"
	VenueReviewsCreate      = "reviews.create"
	VenueFinancesRead       = "finances.read"
	VenueFinancesUpdate     = "finances.update"
	VenueUpdate             = "venue.update"
	VenueMembersInvite      = "members.invite"
	VenueMembersUpdate      = "members.update"
)

// Artist capabilities.
const (
	ArtistProfileViewer = "profile.viewer"
	ArtistProfileEdit   = "profile.edit"
	ArtistGigsBook      = "gigs.book"
	ArtistFinancesRead  = "finances.read"
	ArtistFinancesEdit  = "finances.edit"
	ArtistMembersInvite = "members.invite"
	ArtistMembersUpdate = "members.update"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// KeySet is the immutable capability set of one team kind.
type KeySet struct {
	viewer  string
	keys    []string
	allowed map[string]bool
}

// Catalog holds the key set of every team kind. It is built once at start
// and never mutated.
type Catalog struct {
	sets map[models.EntityKind]*KeySet
}

type catalogFile map[string]struct {
	Viewer string   `yaml:"viewer"`
	Keys   []string `yaml:"keys"`
}

// LoadCatalog parses a catalog document.
func LoadCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse capability catalog: %w", err)
	}

	c := &Catalog{sets: make(map[models.EntityKind]*KeySet, len(file))}
	for kind, def := range file {
		if len(def.Keys) == 0 {
			return nil, fmt.Errorf("capability catalog: kind %q has no keys", kind)
		}
		ks := &KeySet{viewer: def.Viewer, allowed: make(map[string]bool, len(def.Keys))}
		for _, k := range def.Keys {
			if ks.allowed[k] {
				return nil, fmt.Errorf("capability catalog: duplicate key %q in %q", k, kind)
			}
			ks.allowed[k] = true
			ks.keys = append(ks.keys, k)
		}
		if !ks.allowed[def.Viewer] {
			return nil, fmt.Errorf("capability catalog: viewer key %q of %q is not in its key list", def.Viewer, kind)
		}
		c.sets[models.EntityKind(kind)] = ks
	}
	return c, nil
}

// DefaultCatalog parses the embedded catalog. It panics on a malformed
// document since that is a build defect.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// For returns the key set of kind.
func (c *Catalog) For(kind models.EntityKind) (*KeySet, error) {
	ks, ok := c.sets[kind]
	if !ok {
		return nil, apperrors.InvalidArgument("unknown team kind %q", kind)
	}
	return ks, nil
}

func (k *KeySet) Viewer() string { return k.viewer }

func (k *KeySet) Has(key string) bool { return k.allowed[key] }

// Keys returns the keys in catalog order.
func (k *KeySet) Keys() []string {
	return append([]string(nil), k.keys...)
}

// Sanitize keeps only known keys and forces the viewer key on.
func (k *KeySet) Sanitize(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(k.keys))
	for _, key := range k.keys {
		out[key] = in[key]
	}
	out[k.viewer] = true
	return out
}

// Validate rejects unknown keys.
func (k *KeySet) Validate(in map[string]bool) error {
	var unknown []string
	for key := range in {
		if !k.allowed[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return apperrors.InvalidArgument("unknown permission keys: %v", unknown)
	}
	return nil
}

// Defaults is the permission map of a new member: everything denied but
// the viewer key.
func (k *KeySet) Defaults() map[string]bool {
	return k.Sanitize(nil)
}

// Full grants every key. Owners always hold it.
func (k *KeySet) Full() map[string]bool {
	out := make(map[string]bool, len(k.keys))
	for _, key := range k.keys {
		out[key] = true
	}
	return out
}
