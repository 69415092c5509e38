package server

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KaramelBytes/askcsv/internal/analysis"
	"github.com/KaramelBytes/askcsv/internal/dataset"
	"github.com/KaramelBytes/askcsv/internal/pipeline"
)

// previewRows is how many rows the upload preview shows.
const previewRows = 5

type columnStats struct {
	Name        string   `json:"name"`
	Dtype       string   `json:"dtype"`
	NullCount   int      `json:"null_count"`
	UniqueCount int      `json:"unique_count"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Mean        *float64 `json:"mean,omitempty"`
	Median      *float64 `json:"median,omitempty"`
}

type uploadStats struct {
	RowCount    int           `json:"row_count"`
	ColumnCount int           `json:"column_count"`
	Columns     []columnStats `json:"columns"`
}

type uploadResponse struct {
	Message  string      `json:"message"`
	Filename string      `json:"filename"`
	Schema   string      `json:"schema"`
	Stats    uploadStats `json:"stats"`
	Preview  string      `json:"preview"`
}

type queryRequest struct {
	Query    string `json:"query"`
	Filename string `json:"filename"`
	SQL      string `json:"sql"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"uploads":  s.uploads.Len(),
		"backends": s.backends,
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	})
}

// upload parses a CSV and keeps it for later queries. Errors use the
// {"error": ...} shape with status 400.
func (s *Server) upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	name := filepath.Base(fh.Filename)
	if name == "" || name == "." || name == "/" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
		return
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please upload a CSV file"})
		return
	}
	if fh.Size > int64(s.opts.MaxUploadMB)<<20 {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open file"})
		return
	}
	defer f.Close()

	ds, err := dataset.LoadCSV(f, name, dataset.LoadOptions{})
	if err != nil {
		s.logger.Info("upload rejected", zap.String("filename", name), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	preview, err := dataset.PreviewHTML(ds, previewRows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.uploads.Put(name, ds)
	s.logger.Info("dataset uploaded",
		zap.String("filename", name),
		zap.Int("rows", ds.NumRows()),
		zap.Int("columns", len(ds.Columns)))

	c.JSON(http.StatusOK, uploadResponse{
		Message:  "File uploaded successfully",
		Filename: name,
		Schema:   dataset.Describe(ds).String(),
		Stats:    statsFor(analysis.ProfileDataset(ds, 0)),
		Preview:  preview,
	})
}

func statsFor(p *analysis.Profile) uploadStats {
	out := uploadStats{RowCount: p.Rows, ColumnCount: p.Columns, Columns: make([]columnStats, 0, len(p.Cols))}
	for _, col := range p.Cols {
		cs := columnStats{
			Name:        col.Name,
			Dtype:       string(col.Type),
			NullCount:   col.Missing,
			UniqueCount: col.Unique,
		}
		if st := col.Stats; st != nil {
			cs.Min, cs.Max, cs.Mean, cs.Median = st.Min, st.Max, st.Mean, st.Median
		}
		out.Columns = append(out.Columns, cs)
	}
	return out
}

// query runs the pipeline against an uploaded dataset. Pipeline failures are
// answered with status 200 and the error shape; malformed requests get 400.
func (s *Server) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query and filename are required"})
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if (req.Query == "" && req.SQL == "") || req.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query and filename are required"})
		return
	}
	ds, ok := s.uploads.Get(filepath.Base(req.Filename))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	ctx := c.Request.Context()
	if s.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.QueryTimeout)
		defer cancel()
	}
	resp := s.pipe.Run(ctx, pipeline.Request{Dataset: ds, Question: req.Query, SQL: req.SQL})
	c.JSON(http.StatusOK, resp)
}
