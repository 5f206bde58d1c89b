// Package api exposes the two read endpoints over HTTP, delegating to a
// persist.Repository. It never touches a concrete SQL driver directly.
package api

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"github.com/mikeydub/indexing-serv/service/logger"
	"github.com/mikeydub/indexing-serv/service/persist"
)

// ListenAddr is the fixed listen address from spec §6.
const ListenAddr = "0.0.0.0:3000"

// NewRouter builds the gin engine wiring CORS, error logging, Sentry panic
// capture, and the two read routes against repo.
func NewRouter(repo persist.Repository) *gin.Engine {
	logger.For(nil).Info("initializing api server...")

	router := gin.Default()
	router.Use(cors(), errLogger(), sentrygin.New(sentrygin.Options{Repanic: true}))

	router.GET("/transactions/:hash", getTransferByHash(repo))
	router.GET("/transactions", listTransfers(repo))

	return router
}
