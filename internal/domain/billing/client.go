package billing

import (
	"context"
	"fmt"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/entity"
	"fieldledger/internal/core/id"
	"fieldledger/internal/domain"
	"fieldledger/internal/domain/audit"
	"fieldledger/internal/domain/outbox"
)

// ClientInput creates a client.
type ClientInput struct {
	OrgID     string  `json:"orgId,omitempty"`
	Name      string  `json:"name"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
	VATNumber *string `json:"vatNumber,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// ClientPatch changes a client. Nil fields are left as they are; an empty
// optional text clears the field.
type ClientPatch struct {
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
	VATNumber *string `json:"vatNumber,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// ClientService manages clients.
type ClientService struct {
	base
	repo ClientRepository
}

func NewClientService(d Deps) *ClientService {
	return &ClientService{base: newBase(d, "clients"), repo: d.Repos.Clients}
}

// Create validates and stores a new client.
func (s *ClientService) Create(ctx context.Context, in ClientInput) (*Client, error) {
	orgID, userID, err := writeScope(ctx, in.OrgID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	c := &Client{
		BaseEntity: entity.NewBaseEntity(orgID, userID, now),
		Name:       normalizeText(in.Name),
		Email:      normalizeOptional(in.Email),
		Phone:      normalizeOptional(in.Phone),
		Address:    normalizeMultiline(in.Address),
		VATNumber:  normalizeOptional(in.VATNumber),
		Notes:      normalizeMultiline(in.Notes),
	}
	if err := c.Validate(ctx); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, c); err != nil {
			return fmt.Errorf("create client: %w", err)
		}
		s.emit(ctx, KindClient, c.ID, orgID, outbox.OpCreate, c, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindClient, c.ID, orgID, audit.ActionCreate, nil)
	return c, nil
}

// Update applies patch to a live client.
func (s *ClientService) Update(ctx context.Context, orgID string, clientID id.ID, patch ClientPatch) (*Client, error) {
	orgID, _, err := writeScope(ctx, orgID)
	if err != nil {
		return nil, err
	}
	c, err := s.live(ctx, orgID, clientID)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if patch.Name != nil {
		if v := normalizeText(*patch.Name); v != c.Name {
			c.Name = v
			changes["name"] = v
		}
	}
	applyText := func(field string, dst **string, src *string, multiline bool) {
		if src == nil {
			return
		}
		v := normalizeOptional(src)
		if multiline {
			v = normalizeMultiline(src)
		}
		if !equalOptional(*dst, v) {
			*dst = v
			changes[field] = optionalValue(v)
		}
	}
	applyText("email", &c.Email, patch.Email, false)
	applyText("phone", &c.Phone, patch.Phone, false)
	applyText("address", &c.Address, patch.Address, true)
	applyText("vatNumber", &c.VATNumber, patch.VATNumber, false)
	applyText("notes", &c.Notes, patch.Notes, true)

	if err := c.Validate(ctx); err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return c, nil
	}

	now := s.clock.Now()
	c.Touch(now)
	changes["updatedAt"] = now

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, c); err != nil {
			return fmt.Errorf("update client: %w", err)
		}
		s.emitUpdate(ctx, KindClient, c.ID, orgID, c, changes, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindClient, c.ID, orgID, audit.ActionUpdate, changes)
	return c, nil
}

// Delete soft-deletes a client. Deleting an already deleted client is a no-op.
func (s *ClientService) Delete(ctx context.Context, orgID string, clientID id.ID) (*Client, error) {
	orgID, _, err := writeScope(ctx, orgID)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, orgID, clientID)
	if err != nil {
		return nil, err
	}
	if c.IsDeleted() {
		return c, nil
	}

	now := s.clock.Now()
	c.MarkDeleted(now)
	c.Touch(now)

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, c); err != nil {
			return fmt.Errorf("delete client: %w", err)
		}
		s.emitUpdate(ctx, KindClient, c.ID, orgID, c, map[string]any{"deletedAt": now, "updatedAt": now}, now)
		s.emitDelete(ctx, KindClient, c.ID, orgID, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindClient, c.ID, orgID, audit.ActionDelete, nil)
	return c, nil
}

// Get returns a client, deleted or not.
func (s *ClientService) Get(ctx context.Context, orgID string, clientID id.ID) (*Client, error) {
	orgID, err := resolveOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, orgID, clientID)
}

// List returns a page of clients.
func (s *ClientService) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Client], error) {
	orgID, err := resolveOrg(ctx, filter.OrgID)
	if err != nil {
		return domain.ListResult[*Client]{}, err
	}
	filter.OrgID = orgID
	return s.repo.List(ctx, filter)
}

// live returns a client that is not soft-deleted.
func (s *ClientService) live(ctx context.Context, orgID string, clientID id.ID) (*Client, error) {
	c, err := s.repo.GetByID(ctx, orgID, clientID)
	if err != nil {
		return nil, err
	}
	if c.IsDeleted() {
		return nil, apperror.NewNotFound(KindClient, clientID)
	}
	return c, nil
}
