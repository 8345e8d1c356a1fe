package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Sh4yy/FeedStream/service/persist"
	"github.com/lib/pq"
)

// FlatEventRepository is a repository for storing broadcast events
type FlatEventRepository struct {
	db *sql.DB

	createStmt               *sql.Stmt
	deleteStmt               *sql.Stmt
	getByProducerStmt        *sql.Stmt
	getByItemIDsStmt         *sql.Stmt
	getRecentByProducersStmt *sql.Stmt
	getAllStmt               *sql.Stmt
}

// NewFlatEventRepository creates a new postgres repository over the given
// events table
func NewFlatEventRepository(db *sql.DB, table string) *FlatEventRepository {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	createStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (ITEM_ID,PRODUCER_ID,VERB,TIMESTAMP) VALUES ($1,$2,$3,$4) ON CONFLICT (PRODUCER_ID,ITEM_ID,VERB) DO NOTHING;`, table))
	checkNoErr(err)

	deleteStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE PRODUCER_ID = $1 AND ITEM_ID = $2 AND VERB = $3;`, table))
	checkNoErr(err)

	getByProducerStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`SELECT ID,ITEM_ID,PRODUCER_ID,VERB,TIMESTAMP FROM %s WHERE PRODUCER_ID = $1 ORDER BY ID ASC LIMIT $2 OFFSET $3;`, table))
	checkNoErr(err)

	getByItemIDsStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`SELECT ID,ITEM_ID,PRODUCER_ID,VERB,TIMESTAMP FROM %s WHERE ITEM_ID = ANY($1);`, table))
	checkNoErr(err)

	getRecentByProducersStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`SELECT ID,ITEM_ID,PRODUCER_ID,VERB,TIMESTAMP FROM %s WHERE PRODUCER_ID = ANY($1) ORDER BY TIMESTAMP DESC, ITEM_ID ASC LIMIT $2;`, table))
	checkNoErr(err)

	getAllStmt, err := db.PrepareContext(ctx, fmt.Sprintf(`SELECT ID,ITEM_ID,PRODUCER_ID,VERB,TIMESTAMP FROM %s ORDER BY ID ASC LIMIT $1 OFFSET $2;`, table))
	checkNoErr(err)

	return &FlatEventRepository{
		db:                       db,
		createStmt:               createStmt,
		deleteStmt:               deleteStmt,
		getByProducerStmt:        getByProducerStmt,
		getByItemIDsStmt:         getByItemIDsStmt,
		getRecentByProducersStmt: getRecentByProducersStmt,
		getAllStmt:               getAllStmt,
	}
}

// Create persists a broadcast event. Re-inserting the same
// (producer, item, verb) key is a no-op.
func (r *FlatEventRepository) Create(pCtx context.Context, event persist.FlatEvent) error {
	_, err := r.createStmt.ExecContext(pCtx, event.ItemID, event.ProducerID, event.Verb, event.Timestamp)
	return err
}

// Delete removes the event with the given unique key
func (r *FlatEventRepository) Delete(pCtx context.Context, producerID persist.UserID, itemID persist.ItemID, verb persist.Verb) error {
	_, err := r.deleteStmt.ExecContext(pCtx, producerID, itemID, verb)
	return err
}

// GetByProducer returns a page of the producer's events in insertion order
func (r *FlatEventRepository) GetByProducer(pCtx context.Context, producerID persist.UserID, limit, offset int) ([]persist.FlatEvent, error) {
	rows, err := r.getByProducerStmt.QueryContext(pCtx, producerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanFlatEvents(rows)
}

// GetByItemIDs returns the events matching the given item IDs
func (r *FlatEventRepository) GetByItemIDs(pCtx context.Context, itemIDs []persist.ItemID) ([]persist.FlatEvent, error) {
	ids := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		ids[i] = id.String()
	}
	rows, err := r.getByItemIDsStmt.QueryContext(pCtx, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return scanFlatEvents(rows)
}

// GetRecentByProducers returns the most recent events across the given
// producers, newest first
func (r *FlatEventRepository) GetRecentByProducers(pCtx context.Context, producerIDs []persist.UserID, limit int) ([]persist.FlatEvent, error) {
	if len(producerIDs) == 0 {
		return []persist.FlatEvent{}, nil
	}
	ids := make([]string, len(producerIDs))
	for i, id := range producerIDs {
		ids[i] = id.String()
	}
	rows, err := r.getRecentByProducersStmt.QueryContext(pCtx, pq.Array(ids), limit)
	if err != nil {
		return nil, err
	}
	return scanFlatEvents(rows)
}

// GetAll returns a page of every stored event in insertion order
func (r *FlatEventRepository) GetAll(pCtx context.Context, limit, offset int) ([]persist.FlatEvent, error) {
	rows, err := r.getAllStmt.QueryContext(pCtx, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanFlatEvents(rows)
}

func scanFlatEvents(rows *sql.Rows) ([]persist.FlatEvent, error) {
	defer rows.Close()

	events := make([]persist.FlatEvent, 0, 10)
	for rows.Next() {
		event := persist.FlatEvent{}
		err := rows.Scan(&event.ID, &event.ItemID, &event.ProducerID, &event.Verb, &event.Timestamp)
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
