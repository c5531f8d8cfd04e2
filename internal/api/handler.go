package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atodared/deployd/internal/collection"
	"github.com/atodared/deployd/internal/store"
)

// RootHeader — заголовок с ключом root-сессии (совместим с dpd-клиентами)
const RootHeader = "dpd-ssh-key"

// ANY /api/:collection
// ANY /api/:collection/*path
func (app *App) handle(c *gin.Context) {
	name := c.Param("collection")
	col := app.Collections[name]
	if col == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "resource not found"})
		return
	}

	ctx := app.buildContext(c)
	result, err := col.Handle(ctx)
	render(c, result, err)
}

func (app *App) buildContext(c *gin.Context) *collection.Context {
	query := store.Query{}
	for k, vals := range c.Request.URL.Query() {
		if len(vals) > 0 {
			query[k] = vals[0]
		}
	}

	// тело — произвольный JSON: объект или массив
	var body any
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			body = nil
		}
	}

	sess := &collection.Session{
		IsRoot: app.RootKey != "" && c.GetHeader(RootHeader) == app.RootKey,
	}
	if app.Hub != nil {
		sess.EmitToAll = app.Hub.EmitToAll
	}

	return &collection.Context{
		Ctx:               c.Request.Context(),
		Method:            c.Request.Method,
		URL:               c.Param("path"),
		Query:             query,
		Body:              body,
		Session:           sess,
		VerifyPermissions: verifier(sess),
	}
}

// verifier — политика по умолчанию: базовый набор прав доступен всем,
// остальное — только root. Внешняя система ролей может подменить её
// своим замыканием.
func verifier(sess *collection.Session) func([]collection.Permission) error {
	return func(required []collection.Permission) error {
		for _, p := range required {
			if collection.DefaultPermissions[p] || sess.IsRoot {
				continue
			}
			return &collection.StatusError{Message: "Forbidden", StatusCode: http.StatusForbidden}
		}
		return nil
	}
}

func render(c *gin.Context, result any, err error) {
	if err != nil {
		switch e := err.(type) {
		case *collection.SchemaError:
			c.JSON(http.StatusBadRequest, gin.H{"errors": e.Fields})
		case *collection.DomainError:
			c.JSON(http.StatusBadRequest, gin.H{"errors": e.Fields})
		case *collection.StatusError:
			c.JSON(e.StatusCode, gin.H{"message": e.Message, "statusCode": e.StatusCode})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error(), "statusCode": http.StatusInternalServerError})
		}
		return
	}
	if result == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, result)
}
