package mysql

import (
	"fmt"
	"regexp"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql" // run init method
)

// DefaultPrefix is the table prefix of a default LMS install.
const DefaultPrefix = "mdl_"

// guestID is the id of the LMS guest account, never shared with.
const guestID = 1

var tableRef = regexp.MustCompile(`\{(\w+)\}`)

// now is replaced in tests.
var now = time.Now

type Driver struct {
	db     *gorm.DB
	prefix string
}

func connectionString(host, port, username, password, database string) string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		username, password, host, port, database,
	)
}

func NewDriver(host, port, username, password, database, prefix string) (*Driver, error) {
	db, err := gorm.Open("mysql", connectionString(host, port, username, password, database))
	if err != nil {
		return nil, err
	}
	db.DB().SetConnMaxLifetime(1 * time.Minute)

	driver := &Driver{
		db:     db,
		prefix: prefix,
	}
	return driver, nil
}

func (d *Driver) Close() error {
	return d.db.Close()
}

// sql replaces the {table} references of a query with the prefixed table
// names.
func (d *Driver) sql(query string) string {
	return tableRef.ReplaceAllString(query, "`"+d.prefix+"$1`")
}
