package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Sh4yy/FeedStream/service/persist"
)

// RelationRepository is a repository for storing subscriptions between
// consumers and producers
type RelationRepository struct {
	db *sql.DB

	insertStmt       *sql.Stmt
	deleteStmt       *sql.Stmt
	getConsumersStmt *sql.Stmt
	getProducersStmt *sql.Stmt
}

// NewRelationRepository creates a new postgres repository over the given
// relations table
func NewRelationRepository(db *sql.DB, table string) *RelationRepository {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	insertStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (CONSUMER_ID,PRODUCER_ID) VALUES ($1,$2) ON CONFLICT (CONSUMER_ID,PRODUCER_ID) DO NOTHING;`, table))
	checkNoErr(err)

	deleteStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE CONSUMER_ID = $1 AND PRODUCER_ID = $2;`, table))
	checkNoErr(err)

	getConsumersStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`SELECT CONSUMER_ID FROM %s WHERE PRODUCER_ID = $1;`, table))
	checkNoErr(err)

	getProducersStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`SELECT PRODUCER_ID FROM %s WHERE CONSUMER_ID = $1;`, table))
	checkNoErr(err)

	return &RelationRepository{
		db:               db,
		insertStmt:       insertStmt,
		deleteStmt:       deleteStmt,
		getConsumersStmt: getConsumersStmt,
		getProducersStmt: getProducersStmt,
	}
}

// Insert adds a subscription. Duplicate subscriptions are a no-op.
func (r *RelationRepository) Insert(pCtx context.Context, consumerID, producerID persist.UserID) error {
	_, err := r.insertStmt.ExecContext(pCtx, consumerID, producerID)
	return err
}

// Delete removes a subscription
func (r *RelationRepository) Delete(pCtx context.Context, consumerID, producerID persist.UserID) error {
	_, err := r.deleteStmt.ExecContext(pCtx, consumerID, producerID)
	return err
}

// GetConsumers returns every consumer subscribed to the given producer
func (r *RelationRepository) GetConsumers(pCtx context.Context, producerID persist.UserID) ([]persist.UserID, error) {
	return r.queryUsers(pCtx, r.getConsumersStmt, producerID)
}

// GetProducers returns every producer the given consumer is subscribed to
func (r *RelationRepository) GetProducers(pCtx context.Context, consumerID persist.UserID) ([]persist.UserID, error) {
	return r.queryUsers(pCtx, r.getProducersStmt, consumerID)
}

func (r *RelationRepository) queryUsers(pCtx context.Context, stmt *sql.Stmt, id persist.UserID) ([]persist.UserID, error) {
	rows, err := stmt.QueryContext(pCtx, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]persist.UserID, 0, 10)
	for rows.Next() {
		var user persist.UserID
		if err := rows.Scan(&user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}
