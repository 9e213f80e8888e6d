package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/types"
	"fieldledger/internal/domain"
)

const dateLayout = "2006-01-02"

func parseID(field, raw string) (id.ID, error) {
	v, err := id.Parse(strings.TrimSpace(raw))
	if err != nil {
		return id.ID{}, apperror.NewFieldValidation(field, "not a valid id").WithDetail("value", raw)
	}
	return v, nil
}

// changedString returns the flag value when it was set on the command line.
func changedString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func changedInt(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetInt(name)
	return &v
}

func changedDate(cmd *cobra.Command, name string) (*time.Time, error) {
	raw := changedString(cmd, name)
	if raw == nil {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*raw))
	if err != nil {
		return nil, apperror.NewFieldValidation(name, "expected YYYY-MM-DD").WithDetail("value", *raw)
	}
	return &t, nil
}

// changedOptionalDate is changedDate for dates that may be removed: an
// empty value yields the zero time, which clears the date.
func changedOptionalDate(cmd *cobra.Command, name string) (*time.Time, error) {
	if raw := changedString(cmd, name); raw != nil && strings.TrimSpace(*raw) == "" {
		return &time.Time{}, nil
	}
	return changedDate(cmd, name)
}

func changedMoney(cmd *cobra.Command, name string) (*types.Money, error) {
	raw := changedString(cmd, name)
	if raw == nil {
		return nil, nil
	}
	m, err := types.ParseMoney(*raw)
	if err != nil {
		return nil, apperror.NewFieldValidation(name, "not a valid amount").WithDetail("value", *raw)
	}
	return &m, nil
}

func changedID(cmd *cobra.Command, name string) (*id.ID, error) {
	raw := changedString(cmd, name)
	if raw == nil {
		return nil, nil
	}
	v, err := parseID(name, *raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// moneyOr parses the flag, returning fallback when it was not set.
func moneyOr(cmd *cobra.Command, name string, fallback types.Money) (types.Money, error) {
	m, err := changedMoney(cmd, name)
	if err != nil || m == nil {
		return fallback, err
	}
	return *m, nil
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().String("search", "", "case-insensitive substring filter")
	cmd.Flags().String("status", "", "status filter (ALL for any)")
	cmd.Flags().String("client", "", "restrict to one client id")
	cmd.Flags().Bool("deleted", false, "include soft-deleted records")
	cmd.Flags().Int("limit", domain.DefaultListLimit, "page size")
	cmd.Flags().Int("offset", 0, "page offset")
}

func listFilter(cmd *cobra.Command) (domain.ListFilter, error) {
	f := domain.ListFilter{}
	f.Search, _ = cmd.Flags().GetString("search")
	f.Status, _ = cmd.Flags().GetString("status")
	f.IncludeDeleted, _ = cmd.Flags().GetBool("deleted")
	f.Limit, _ = cmd.Flags().GetInt("limit")
	f.Offset, _ = cmd.Flags().GetInt("offset")
	clientID, err := changedID(cmd, "client")
	if err != nil {
		return f, err
	}
	f.ClientID = clientID
	return f, nil
}
