package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldledger/internal/core/apperror"
	appctx "fieldledger/internal/core/context"
	"fieldledger/internal/domain"
	"fieldledger/internal/domain/audit"
	"fieldledger/internal/domain/billing"
	"fieldledger/internal/domain/outbox"
)

func TestClientCreate_NormalizesText(t *testing.T) {
	f := newFixture(t)

	c, err := f.ledger.Clients.Create(f.ctx, billing.ClientInput{
		Name:    "  Acme \t  Plumbing  ",
		Email:   ptr("   "),
		Phone:   ptr(" +33  6 12 "),
		Address: ptr("  12  rue   Haute \n\n  Lyon  "),
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme Plumbing", c.Name)
	assert.Nil(t, c.Email)
	assert.Equal(t, "+33 6 12", *c.Phone)
	assert.Equal(t, "12 rue Haute\n\nLyon", *c.Address)
	assert.Equal(t, testOrg, c.OrgID)
	assert.Equal(t, "user-1", c.CreatedBy)

	stored, err := f.ledger.Clients.Get(f.ctx, "", c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, stored.Name)
	assert.Nil(t, stored.Email)

	ops := f.outbox.For(c.ID)
	require.Len(t, ops, 1)
	assert.Equal(t, outbox.OpCreate, ops[0].Type)
	assert.Equal(t, billing.KindClient, ops[0].EntityKind)
	assert.Equal(t, testOrg, ops[0].OrgID)
	assert.Equal(t, testNow, ops[0].Timestamp)

	assert.Equal(t, []audit.Action{audit.ActionCreate}, f.audit.Actions(c.ID))
}

func TestClientCreate_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		ctx   context.Context
		input billing.ClientInput
	}{
		{"short name", f.ctx, billing.ClientInput{Name: " A "}},
		{"blank name", f.ctx, billing.ClientInput{Name: "   "}},
		{"no user", context.Background(), billing.ClientInput{OrgID: testOrg, Name: "Acme"}},
		{"no organization", appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u"}), billing.ClientInput{Name: "Acme"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Clients.Create(tt.ctx, tt.input)
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err), "got %v", err)
		})
	}

	assert.Empty(t, f.outbox.Ops())
	res, err := f.ledger.Clients.List(f.ctx, domain.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)
}

func TestClientCreate_ExplicitOrganization(t *testing.T) {
	f := newFixture(t)

	c, err := f.ledger.Clients.Create(f.ctx, billing.ClientInput{OrgID: "org-2", Name: "Other Org"})
	require.NoError(t, err)
	assert.Equal(t, "org-2", c.OrgID)

	_, err = f.ledger.Clients.Get(f.ctx, "", c.ID)
	assert.True(t, apperror.IsNotFound(err), "other organizations are invisible")

	got, err := f.ledger.Clients.Get(f.ctx, "org-2", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Other Org", got.Name)
}

func TestClientUpdate_PatchOnlyChangedFields(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "Acme")
	_, err := f.ledger.Clients.Update(f.ctx, "", c.ID, billing.ClientPatch{Email: ptr("billing@acme.test")})
	require.NoError(t, err)
	f.outbox.Reset()

	f.clock.Advance(time.Second)
	c2, err := f.ledger.Clients.Update(f.ctx, "", c.ID, billing.ClientPatch{
		Name:  ptr("Acme"),
		Email: ptr(""),
		Notes: ptr("prefers mornings"),
	})
	require.NoError(t, err)
	assert.Nil(t, c2.Email)
	assert.Equal(t, "prefers mornings", *c2.Notes)

	ops := f.outbox.For(c.ID)
	require.Len(t, ops, 1)
	assert.Equal(t, outbox.OpUpdate, ops[0].Type)
	payload := ops[0].Payload.(outbox.UpdatePayload)
	patch := payload.Patch.(map[string]any)
	assert.Contains(t, patch, "email")
	assert.Contains(t, patch, "notes")
	assert.Contains(t, patch, "updatedAt")
	assert.NotContains(t, patch, "name")
	assert.Nil(t, patch["email"])
}

func TestClientUpdate_NoChangesWritesNothing(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "Acme")
	f.outbox.Reset()

	got, err := f.ledger.Clients.Update(f.ctx, "", c.ID, billing.ClientPatch{Name: ptr("  Acme ")})
	require.NoError(t, err)
	assert.True(t, c.UpdatedAt.Equal(got.UpdatedAt))
	assert.Empty(t, f.outbox.Ops())
}

func TestClientDelete_EmitsUpdateThenDelete(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "Acme")
	f.outbox.Reset()

	f.clock.Advance(time.Minute)
	deleted, err := f.ledger.Clients.Delete(f.ctx, "", c.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted.DeletedAt)

	ops := f.outbox.For(c.ID)
	assert.Equal(t, []outbox.OpType{outbox.OpUpdate, outbox.OpDelete}, opTypes(ops))
	tomb := ops[1].Payload.(outbox.DeletePayload)
	assert.Equal(t, c.ID, tomb.ID)
	assert.Equal(t, f.clock.Now(), tomb.DeletedAt)

	// Still resolvable by id, hidden from default listings.
	got, err := f.ledger.Clients.Get(f.ctx, "", c.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())

	res, err := f.ledger.Clients.List(f.ctx, domain.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)

	res, err = f.ledger.Clients.List(f.ctx, domain.ListFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TotalCount)

	// Deleting again is a no-op; updating a deleted client is not found.
	_, err = f.ledger.Clients.Delete(f.ctx, "", c.ID)
	require.NoError(t, err)
	assert.Len(t, f.outbox.For(c.ID), 2)

	_, err = f.ledger.Clients.Update(f.ctx, "", c.ID, billing.ClientPatch{Name: ptr("Renamed")})
	assert.True(t, apperror.IsNotFound(err))
}

func TestOutboxFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.outbox.Err = errors.New("queue unavailable")

	c, err := f.ledger.Clients.Create(f.ctx, billing.ClientInput{Name: "Acme"})
	require.NoError(t, err)

	got, err := f.ledger.Clients.Get(f.ctx, "", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
}
