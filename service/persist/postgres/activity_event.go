package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Sh4yy/FeedStream/service/persist"
	"github.com/lib/pq"
)

// ActivityEventRepository is a repository for storing directed events
type ActivityEventRepository struct {
	db *sql.DB

	createStmt                   *sql.Stmt
	deleteStmt                   *sql.Stmt
	getByProducerAndConsumerStmt *sql.Stmt
	getByConsumerAndItemIDsStmt  *sql.Stmt
	getRecentByConsumerStmt      *sql.Stmt
	getAllStmt                   *sql.Stmt
}

// NewActivityEventRepository creates a new postgres repository over the given
// events table
func NewActivityEventRepository(db *sql.DB, table string) *ActivityEventRepository {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	createStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (ITEM_ID,CONSUMER_ID,PRODUCER_ID,VERB,TIMESTAMP) VALUES ($1,$2,$3,$4,$5) ON CONFLICT (PRODUCER_ID,ITEM_ID,VERB,CONSUMER_ID) DO NOTHING;`, table))
	checkNoErr(err)

	deleteStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE PRODUCER_ID = $1 AND ITEM_ID = $2 AND VERB = $3 AND CONSUMER_ID = $4;`, table))
	checkNoErr(err)

	getByProducerAndConsumerStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`SELECT ID,ITEM_ID,CONSUMER_ID,PRODUCER_ID,VERB,TIMESTAMP FROM %s WHERE PRODUCER_ID = $1 AND CONSUMER_ID = $2 ORDER BY ID ASC LIMIT $3 OFFSET $4;`, table))
	checkNoErr(err)

	getByConsumerAndItemIDsStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`SELECT ID,ITEM_ID,CONSUMER_ID,PRODUCER_ID,VERB,TIMESTAMP FROM %s WHERE CONSUMER_ID = $1 AND ITEM_ID = ANY($2);`, table))
	checkNoErr(err)

	getRecentByConsumerStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`SELECT ID,ITEM_ID,CONSUMER_ID,PRODUCER_ID,VERB,TIMESTAMP FROM %s WHERE CONSUMER_ID = $1 AND PRODUCER_ID = ANY($2) ORDER BY TIMESTAMP DESC, ITEM_ID ASC LIMIT $3;`, table))
	checkNoErr(err)

	getAllStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`SELECT ID,ITEM_ID,CONSUMER_ID,PRODUCER_ID,VERB,TIMESTAMP FROM %s ORDER BY ID ASC LIMIT $1 OFFSET $2;`, table))
	checkNoErr(err)

	return &ActivityEventRepository{
		db:                           db,
		createStmt:                   createStmt,
		deleteStmt:                   deleteStmt,
		getByProducerAndConsumerStmt: getByProducerAndConsumerStmt,
		getByConsumerAndItemIDsStmt:  getByConsumerAndItemIDsStmt,
		getRecentByConsumerStmt:      getRecentByConsumerStmt,
		getAllStmt:                   getAllStmt,
	}
}

// Create persists a directed event. Re-inserting the same
// (producer, item, verb, consumer) key is a no-op.
func (r *ActivityEventRepository) Create(pCtx context.Context, event persist.ActivityEvent) error {
	_, err := r.createStmt.ExecContext(pCtx, event.ItemID, event.ConsumerID, event.ProducerID, event.Verb, event.Timestamp)
	return err
}

// Delete removes the event with the given unique key
func (r *ActivityEventRepository) Delete(pCtx context.Context, producerID persist.UserID, itemID persist.ItemID, verb persist.Verb, consumerID persist.UserID) error {
	_, err := r.deleteStmt.ExecContext(pCtx, producerID, itemID, verb, consumerID)
	return err
}

// GetByProducerAndConsumer returns a page of events a producer addressed to
// a consumer, in insertion order
func (r *ActivityEventRepository) GetByProducerAndConsumer(pCtx context.Context, producerID, consumerID persist.UserID, limit, offset int) ([]persist.ActivityEvent, error) {
	rows, err := r.getByProducerAndConsumerStmt.QueryContext(pCtx, producerID, consumerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanActivityEvents(rows)
}

// GetByConsumerAndItemIDs returns the consumer's events matching the given
// item IDs
func (r *ActivityEventRepository) GetByConsumerAndItemIDs(pCtx context.Context, consumerID persist.UserID, itemIDs []persist.ItemID) ([]persist.ActivityEvent, error) {
	ids := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		ids[i] = id.String()
	}
	rows, err := r.getByConsumerAndItemIDsStmt.QueryContext(pCtx, consumerID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return scanActivityEvents(rows)
}

// GetRecentByConsumer returns the consumer's most recent events from the
// given producers, newest first
func (r *ActivityEventRepository) GetRecentByConsumer(pCtx context.Context, consumerID persist.UserID, producerIDs []persist.UserID, limit int) ([]persist.ActivityEvent, error) {
	if len(producerIDs) == 0 {
		return []persist.ActivityEvent{}, nil
	}
	ids := make([]string, len(producerIDs))
	for i, id := range producerIDs {
		ids[i] = id.String()
	}
	rows, err := r.getRecentByConsumerStmt.QueryContext(pCtx, consumerID, pq.Array(ids), limit)
	if err != nil {
		return nil, err
	}
	return scanActivityEvents(rows)
}

// GetAll returns a page of every stored event in insertion order
func (r *ActivityEventRepository) GetAll(pCtx context.Context, limit, offset int) ([]persist.ActivityEvent, error) {
	rows, err := r.getAllStmt.QueryContext(pCtx, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanActivityEvents(rows)
}

func scanActivityEvents(rows *sql.Rows) ([]persist.ActivityEvent, error) {
	defer rows.Close()

	events := make([]persist.ActivityEvent, 0, 10)
	for rows.Next() {
		event := persist.ActivityEvent{}
		err := rows.Scan(&event.ID, &event.ItemID, &event.ConsumerID, &event.ProducerID, &event.Verb, &event.Timestamp)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
