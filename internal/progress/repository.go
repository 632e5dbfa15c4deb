package progress

import (
	"context"
	"fmt"

	"github.com/abhisek/prepdeck/internal/gateway"
)

// RecordType is the gateway record type of progress documents.
const RecordType = "progress"

// Repository maps progress records onto a gateway.
type Repository struct {
	gw gateway.Gateway
}

// NewRepository returns a Repository writing through gw.
func NewRepository(gw gateway.Gateway) *Repository {
	return &Repository{gw: gw}
}

// Load returns the persisted record, or gateway.ErrNotFound.
func (r *Repository) Load(ctx context.Context, userID string) (*Record, error) {
	rec, err := gateway.Load[*Record](ctx, r.gw, userID, RecordType)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("progress record for %s is null", userID)
	}
	rec.normalize()
	return rec, nil
}

// Save writes rec.
func (r *Repository) Save(ctx context.Context, rec *Record) error {
	return gateway.Save(ctx, r.gw, rec.UserID, RecordType, rec)
}
