// api/router.go
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/atodared/deployd/internal/collection"
	"github.com/atodared/deployd/internal/live"
)

// App — собранный сервер: коллекции по имени, хаб живых событий
// и ключ root-сессии.
type App struct {
	Collections map[string]*collection.Collection
	Hub         *live.Hub
	RootKey     string
}

func NewRouter(app *App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog())

	if app.Hub != nil {
		r.GET("/live", gin.WrapH(app.Hub))
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.Any("/:collection", app.handle)
		apiGroup.Any("/:collection/*path", app.handle)
	}

	return r
}

func RunServer(addr string, app *App) {
	r := NewRouter(app)
	_ = r.Run(addr)
}
