package persistence

import (
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Dialect captures the SQL differences between the supported stores.
type Dialect struct {
	name       string
	schemaFile string
	likeOp     string
	// inClause renders "column IN list" for one bound slice argument.
	inClause func(column string, values []string) (string, []any, error)
	// keywords encodes a keyword list as a column value.
	keywords func(kw []string) driver.Valuer
}

var (
	Postgres = Dialect{
		name:       "postgres",
		schemaFile: "postgres.sql",
		likeOp:     "ILIKE",
		inClause: func(column string, values []string) (string, []any, error) {
			return column + " = ANY(?)", []any{pq.Array(values)}, nil
		},
		keywords: func(kw []string) driver.Valuer {
			if kw == nil {
				return nil
			}
			return pq.StringArray(kw)
		},
	}

	SQLite = Dialect{
		name:       "sqlite",
		schemaFile: "sqlite.sql",
		likeOp:     "LIKE",
		inClause: func(column string, values []string) (string, []any, error) {
			return sqlx.In(column+" IN (?)", values)
		},
		keywords: func(kw []string) driver.Valuer {
			if kw == nil {
				return nil
			}
			return jsonKeywords(kw)
		},
	}
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

func (d Dialect) String() string {
	return d.name
}

type jsonKeywords []string

func (k jsonKeywords) Value() (driver.Value, error) {
	b, err := json.Marshal([]string(k))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// keywordList scans either a Postgres text[] literal or a JSON array.
type keywordList []string

func (k *keywordList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*k = keywordList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("keywords: unsupported type %T", src)
	}

	if len(raw) > 0 && raw[0] == '[' {
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("keywords: %w", err)
		}
		*k = keywordList(list)
	} else {
		var arr pq.StringArray
		if err := arr.Scan(raw); err != nil {
			return fmt.Errorf("keywords: %w", err)
		}
		*k = keywordList(arr)
	}
	if *k == nil {
		*k = keywordList{}
	}
	return nil
}
