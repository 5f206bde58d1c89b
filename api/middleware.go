package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mikeydub/indexing-serv/service/logger"
)

// cors allows any origin: the two endpoints only expose public, read-only
// chain data, so there is no credential or session boundary to protect
// (spec §4.3/§6: "CORS: allow any origin").
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func errLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.For(c).Errorf("%s %s %s", c.Request.Method, c.Request.URL, c.Errors.String())
		}
	}
}
