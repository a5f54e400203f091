// Package sse streams filter lifecycle transitions to HTTP clients as
// Server-Sent Events.
//
// A Hub fans events out to connected clients; each client subscribes with a
// glob pattern matched against the event topic "<kind>:<operation>", e.g.
// "failure:*" or "*:onPostAdd". A Feed is a lifecycle.Observer that
// publishes every transition to the hub without blocking the registry.
//
//	events := sse.NewComponent()
//	reg := lifecycle.New(lifecycle.WithObserver(events.Feed()))
//	router.GET("/events", func(c *gin.Context) {
//	    sse.ServeSSE(events.Hub(), c.Writer, c.Request, uuid.NewString(), c.Query("match"))
//	})
package sse
