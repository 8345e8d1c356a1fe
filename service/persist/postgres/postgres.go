package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Sh4yy/FeedStream/env"
	"github.com/Sh4yy/FeedStream/service/persist"

	// register postgres driver
	_ "github.com/jackc/pgx/v4/stdlib"
)

type connectionParams struct {
	user     string
	password string
	dbname   string
	host     string
	port     int
}

func (c *connectionParams) toConnectionString() string {
	port := c.port
	if port == 0 {
		port = 5432
	}

	connStr := fmt.Sprintf("user=%s dbname=%s host=%s port=%d", c.user, c.dbname, c.host, port)

	// Empty passwords should be omitted so they don't interfere with other parameters
	// (e.g. "password= dbname=something" causes Postgres to ignore the dbname)
	if c.password != "" {
		connStr += fmt.Sprintf(" password=%s", c.password)
	}

	return connStr
}

func newConnectionParamsFromEnv() connectionParams {
	return connectionParams{
		user:     env.GetString("POSTGRES_USER"),
		password: env.GetString("POSTGRES_PASSWORD"),
		dbname:   env.GetString("POSTGRES_DB"),
		host:     env.GetString("POSTGRES_HOST"),
		port:     env.GetInt("POSTGRES_PORT"),
	}
}

type ConnectionOption func(params *connectionParams)

func WithUser(user string) ConnectionOption {
	return func(params *connectionParams) {
		params.user = user
	}
}

func WithPassword(password string) ConnectionOption {
	return func(params *connectionParams) {
		params.password = password
	}
}

func WithDBName(dbname string) ConnectionOption {
	return func(params *connectionParams) {
		params.dbname = dbname
	}
}

func WithHost(host string) ConnectionOption {
	return func(params *connectionParams) {
		params.host = host
	}
}

func WithPort(port int) ConnectionOption {
	return func(params *connectionParams) {
		params.port = port
	}
}

// MustCreateClient panics when it fails to create a new database connection
func MustCreateClient(opts ...ConnectionOption) *sql.DB {
	db, err := NewClient(opts...)
	if err != nil {
		panic(err)
	}
	return db
}

// NewClient creates a new postgres client
func NewClient(opts ...ConnectionOption) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()

	params := newConnectionParamsFromEnv()
	for _, opt := range opts {
		opt(&params)
	}

	db, err := sql.Open("pgx", params.toConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(50)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

func checkNoErr(err error) {
	if err != nil {
		panic(err)
	}
}

// Repositories is the set of all available persistence repositories
type Repositories struct {
	db                      *sql.DB
	RelationRepository      *RelationRepository
	FlatEventRepository     *FlatEventRepository
	ActivityEventRepository *ActivityEventRepository
}

// NewRepositories creates the repositories over the default table layout
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		db:                      db,
		RelationRepository:      NewRelationRepository(db, "relations"),
		FlatEventRepository:     NewFlatEventRepository(db, "flat_events"),
		ActivityEventRepository: NewActivityEventRepository(db, "activity_events"),
	}
}

var _ persist.RelationRepository = (*RelationRepository)(nil)
var _ persist.FlatEventRepository = (*FlatEventRepository)(nil)
var _ persist.ActivityEventRepository = (*ActivityEventRepository)(nil)
