package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/opencorp/clientsync/internal/domain"
	"github.com/opencorp/clientsync/internal/feed"
	"github.com/opencorp/clientsync/internal/repository"
)

// resolve locates at most one existing live client matching the patch's
// normalized name. A missing match is not an error; it yields nil.
func (s *Service) resolve(ctx context.Context, patch domain.ClientPatch) (*domain.Client, error) {
	client, err := s.clients.FindByNormalizedName(ctx, patch.NormalizedName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &client, nil
}

// DeriveReferenceCode builds the deterministic fallback external-reference
// code for rows whose feed supplies none: a feed tag plus a fixed-length hash
// of the normalized name, so the same input always yields the same code.
func DeriveReferenceCode(variant feed.Variant, normalizedName string) string {
	sum := sha256.Sum256([]byte(normalizedName))
	return fmt.Sprintf("%s-%s", feed.Tag(variant), strings.ToUpper(hex.EncodeToString(sum[:4])))
}

// ensureReferenceCode fills the patch's reference code from the derivation
// rule when the feed supplied none.
func ensureReferenceCode(patch *domain.ClientPatch, variant feed.Variant) {
	if patch.ReferenceCode == "" {
		patch.ReferenceCode = DeriveReferenceCode(variant, patch.NormalizedName)
	}
}
