package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wagerops/p2pqueue"
	"github.com/wagerops/p2pqueue/api/middleware"
	"github.com/wagerops/p2pqueue/config"
	"github.com/wagerops/p2pqueue/model"
)

// QueueService is the surface of the engine the HTTP layer depends on.
type QueueService interface {
	Submit(ctx context.Context, req *p2pqueue.SubmitRequest) (*model.QueueItem, error)
	Cancel(ctx context.Context, itemID string) error
	GetStatus(ctx context.Context, itemID string) (*model.QueueItem, error)
	GetStats(ctx context.Context) (*model.QueueStats, error)
	ResolveSettlement(ctx context.Context, matchID string, settled bool) error
	GetItemFromQueue(itemID string) (*model.QueueItem, error)
	RunMatchingPass(ctx context.Context) ([]*model.Match, error)
}

type Api struct {
	service QueueService
	router  *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/queue-items", a.SubmitQueueItem)
	router.GET("/queue-items/:id", a.GetQueueItem)
	router.DELETE("/queue-items/:id", a.CancelQueueItem)

	router.GET("/stats", a.GetQueueStats)

	router.POST("/matches/:match_id/settlement", a.ResolveSettlement)
	router.POST("/matching-pass", a.TriggerMatchingPass)

	router.GET("/queue-info/:id", a.GetQueueInfo)
	return a.router
}

func NewAPI(service QueueService) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{service: service, router: r}
}
