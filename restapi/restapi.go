// Package restapi contains helper functions for quickly and easily setting up
// a REST API over a tiered object store and its sharded index.
package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/kvom/model"
	"github.com/sharedcode/kvom/store"
)

// Server exposes one tiered store (and optionally one index) over HTTP.
type Server struct {
	store *store.TieredStore
	index *store.Index
}

func NewServer(ts *store.TieredStore, ix *store.Index) *Server {
	return &Server{
		store: ts,
		index: ix,
	}
}

// Router builds the gin engine with all record and index endpoints mounted
// under /api/v1.
func (s *Server) Router() *gin.Engine {
	router := gin.Default()
	v1 := router.Group("/api/v1")
	{
		v1.GET("/records/:key", s.getRecord)
		v1.PUT("/records/:key", s.putRecord)
		v1.DELETE("/records/:key", s.deleteRecord)
		v1.POST("/records/:key/freeze", s.freezeRecord)
		v1.POST("/records/:key/thaw", s.thawRecord)
		if s.index != nil {
			v1.GET("/index/:key", s.getIndexEntry)
			v1.PUT("/index/:key", s.putIndexEntry)
			v1.DELETE("/index/:key", s.removeIndexEntry)
		}
	}
	return router
}

func (s *Server) getRecord(c *gin.Context) {
	rec, err := s.store.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if !rec.Exists() {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "record not found"})
		return
	}
	c.IndentedJSON(http.StatusOK, recordBody(rec))
}

func (s *Server) putRecord(c *gin.Context) {
	var values map[string]any
	if err := c.BindJSON(&values); err != nil {
		return
	}
	values[s.store.Schema().PrimaryKeyField()] = c.Param("key")
	rec, err := s.store.New(normalizeNumbers(s.store.Schema(), values))
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	n, err := s.store.Save(c.Request.Context(), rec, false, nil)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"changed": n})
}

func (s *Server) deleteRecord(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("key"), nil); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) freezeRecord(c *gin.Context) {
	n, err := s.store.Freeze(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"frozen": n})
}

func (s *Server) thawRecord(c *gin.Context) {
	if err := s.store.Thaw(c.Request.Context(), c.Param("key")); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getIndexEntry(c *gin.Context) {
	value, found, err := s.index.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if !found {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "index entry not found"})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"value": value})
}

func (s *Server) putIndexEntry(c *gin.Context) {
	var body struct {
		Value string `json:"value"`
	}
	if err := c.BindJSON(&body); err != nil {
		return
	}
	if err := s.index.Set(c.Request.Context(), c.Param("key"), body.Value); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) removeIndexEntry(c *gin.Context) {
	if err := s.index.Remove(c.Request.Context(), c.Param("key")); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// recordBody flattens a record to its attribute values.
func recordBody(rec *model.Record) map[string]any {
	out := map[string]any{}
	for _, name := range rec.Schema().FieldNames() {
		if v := rec.Get(name); v != nil {
			out[name] = v
		}
	}
	return out
}

// normalizeNumbers coerces JSON's float64 numbers to the schema's int fields.
func normalizeNumbers(schema *model.Schema, values map[string]any) map[string]any {
	for name, v := range values {
		f, ok := schema.Field(name)
		if !ok {
			continue
		}
		if fl, isFloat := v.(float64); isFloat && f.Kind == model.Int {
			values[name] = int64(fl)
		}
	}
	return values
}
