package server

import (
	"net/http"

	"github.com/Sh4yy/FeedStream/feed"
	"github.com/Sh4yy/FeedStream/service/persist"
	"github.com/Sh4yy/FeedStream/util"
	"github.com/gin-gonic/gin"
)

type publishInput struct {
	Verb       persist.Verb   `json:"verb" binding:"required"`
	ProducerID persist.UserID `json:"producer_id" binding:"required"`
	ItemID     persist.ItemID `json:"item_id" binding:"required"`
	Timestamp  int64          `json:"timestamp" binding:"required"`
	ConsumerID persist.UserID `json:"consumer_id"`
}

type publishOutput struct {
	OK        bool `json:"ok"`
	Published bool `json:"published"`
}

type retractInput struct {
	Verb       persist.Verb   `json:"verb" binding:"required"`
	ProducerID persist.UserID `json:"producer_id" binding:"required"`
	ItemID     persist.ItemID `json:"item_id" binding:"required"`
	ConsumerID persist.UserID `json:"consumer_id"`
}

type retractOutput struct {
	OK        bool `json:"ok"`
	Retracted bool `json:"retracted"`
}

type subscriptionInput struct {
	EventName  persist.FeedName `json:"event_name" binding:"required"`
	ProducerID persist.UserID   `json:"producer_id" binding:"required"`
	ConsumerID persist.UserID   `json:"consumer_id" binding:"required"`
}

type subscribeOutput struct {
	OK         bool `json:"ok"`
	Subscribed bool `json:"subscribed"`
}

type unsubscribeOutput struct {
	OK           bool `json:"ok"`
	Unsubscribed bool `json:"unsubscribed"`
}

type consumeInput struct {
	EventName  persist.FeedName `form:"event_name" binding:"required"`
	ConsumerID persist.UserID   `form:"consumer_id" binding:"required"`
	Limit      int              `form:"limit"`
	After      persist.ItemID   `form:"after"`
	Before     persist.ItemID   `form:"before"`
}

type consumeOutput struct {
	OK   bool                `json:"ok"`
	Data []persist.FeedEntry `json:"data"`
}

func publishEvent(processor *feed.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		input := publishInput{}
		if err := c.ShouldBindJSON(&input); err != nil {
			util.ErrResponse(c, http.StatusBadRequest, err)
			return
		}

		err := processor.Publish(c, persist.EventInput{
			ItemID:     input.ItemID,
			ProducerID: input.ProducerID,
			ConsumerID: input.ConsumerID,
			Verb:       input.Verb,
			Timestamp:  input.Timestamp,
		})
		if err != nil {
			util.ErrResponse(c, statusForError(err), err)
			return
		}

		c.JSON(http.StatusOK, publishOutput{OK: true, Published: true})
	}
}

func retractEvent(processor *feed.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		input := retractInput{}
		if err := c.ShouldBindJSON(&input); err != nil {
			util.ErrResponse(c, http.StatusBadRequest, err)
			return
		}

		err := processor.Retract(c, persist.EventInput{
			ItemID:     input.ItemID,
			ProducerID: input.ProducerID,
			ConsumerID: input.ConsumerID,
			Verb:       input.Verb,
		})
		if err != nil {
			util.ErrResponse(c, statusForError(err), err)
			return
		}

		c.JSON(http.StatusOK, retractOutput{OK: true, Retracted: true})
	}
}

func subscribeFeed(processor *feed.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		input := subscriptionInput{}
		if err := c.ShouldBindJSON(&input); err != nil {
			util.ErrResponse(c, http.StatusBadRequest, err)
			return
		}

		if err := processor.Subscribe(c, input.EventName, input.ConsumerID, input.ProducerID); err != nil {
			util.ErrResponse(c, statusForError(err), err)
			return
		}

		c.JSON(http.StatusOK, subscribeOutput{OK: true, Subscribed: true})
	}
}

func unsubscribeFeed(processor *feed.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		input := subscriptionInput{}
		if err := c.ShouldBindJSON(&input); err != nil {
			util.ErrResponse(c, http.StatusBadRequest, err)
			return
		}

		if err := processor.Unsubscribe(c, input.EventName, input.ConsumerID, input.ProducerID); err != nil {
			util.ErrResponse(c, statusForError(err), err)
			return
		}

		c.JSON(http.StatusOK, unsubscribeOutput{OK: true, Unsubscribed: true})
	}
}

func consumeFeed(processor *feed.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		input := consumeInput{}
		if err := c.ShouldBindQuery(&input); err != nil {
			util.ErrResponse(c, http.StatusBadRequest, err)
			return
		}

		if input.After != "" && input.Before != "" {
			util.ErrResponse(c, http.StatusBadRequest, persist.ErrCursorConflict{})
			return
		}

		entries, err := processor.Consume(c, input.EventName, input.ConsumerID, feed.ConsumeOptions{
			Limit:  input.Limit,
			After:  input.After,
			Before: input.Before,
		})
		if err != nil {
			util.ErrResponse(c, statusForError(err), err)
			return
		}

		c.JSON(http.StatusOK, consumeOutput{OK: true, Data: entries})
	}
}

// statusForError maps domain errors onto HTTP codes: the caller's mistakes
// are 400s, everything else is a 500
func statusForError(err error) int {
	switch err.(type) {
	case persist.ErrFeedNotFound, persist.ErrVerbNotFound, persist.ErrInvalidPayload,
		persist.ErrCursorNotFound, persist.ErrCursorConflict:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
