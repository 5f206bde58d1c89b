package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mikeydub/indexing-serv/service/persist"
)

type listTransfersQuery struct {
	Sender      *string `form:"sender"`
	Receiver    *string `form:"receiver"`
	Participant *string `form:"participant"`
	StartTime   *int64  `form:"start_time"`
	EndTime     *int64  `form:"end_time"`
	Page        int     `form:"page"`
	PageSize    int     `form:"page_size"`
}

func getTransferByHash(repo persist.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		hash := c.Param("hash")
		if hash == "" {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "tx hash is required"})
			return
		}

		t, err := repo.GetTransferByHash(c.Request.Context(), persist.Hash(hash))
		if err != nil {
			if errors.Is(err, persist.ErrTransferNotFound) {
				c.JSON(http.StatusNotFound, ErrorResponse{Error: "no transaction found with hash: " + hash})
				return
			}
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}

		c.JSON(http.StatusOK, t)
	}
}

func listTransfers(repo persist.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q listTransfersQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		filter := persist.TransferFilter{
			Sender:      toAddress(q.Sender),
			Receiver:    toAddress(q.Receiver),
			Participant: toAddress(q.Participant),
			StartTime:   q.StartTime,
			EndTime:     q.EndTime,
			Page:        q.Page,
			PageSize:    q.PageSize,
		}

		transfers, err := repo.ListTransfers(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}

		if transfers == nil {
			transfers = []persist.Transfer{}
		}
		c.JSON(http.StatusOK, transfers)
	}
}

func toAddress(s *string) *persist.Address {
	if s == nil {
		return nil
	}
	a := persist.Address(*s)
	return &a
}
