// Package store holds the gorm-backed user, tenant and todo stores. Every
// read or write against a protected collection takes a policy.Decision and
// ANDs its filter into the query, so a denied or filtered-out row is
// indistinguishable from a missing one.
package store

import (
	"errors"
	"strings"

	"github.com/hugh/go-taskboard/internal/policy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDenied    = errors.New("access denied")
	ErrDuplicate = errors.New("duplicate record")
)

var filterColumns = map[string]string{
	policy.FilterFieldID:     "id",
	policy.FilterFieldTenant: "tenant_id",
}

// Scope narrows a query to the rows permitted by d.
func Scope(d policy.Decision) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch d.Effect {
		case policy.AllowAll:
			return db
		case policy.AllowFiltered:
			column, ok := filterColumns[d.Filter.Field]
			if !ok || d.Filter.Op != policy.FilterOpEquals {
				return db.Where("1 = 0")
			}
			return db.Where(clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: column},
				Value:  d.Filter.Value,
			})
		default:
			return db.Where("1 = 0")
		}
	}
}

// Page is a limit/offset window. Zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) apply(db *gorm.DB) *gorm.DB {
	if p.Limit > 0 {
		db = db.Limit(p.Limit)
	}
	if p.Offset > 0 {
		db = db.Offset(p.Offset)
	}
	return db
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isDuplicate(err):
		return ErrDuplicate
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
