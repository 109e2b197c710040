package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aluiziolira/go-promotores/catalog"
	"github.com/aluiziolira/go-promotores/export"
	"github.com/aluiziolira/go-promotores/models"
	"github.com/aluiziolira/go-promotores/ui"
	"github.com/gin-gonic/gin"
)

// Messages reported in ok:false envelopes.
const (
	MsgMissingOP   = "Falta parámetro 'op'"
	MsgLoadFailed  = "No se pudo cargar el archivo: %s"
	MsgMissingFile = "Falta archivo 'file'"
)

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, models.SearchResponse{OK: false, Error: msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog.Health())
}

func (s *Server) handleSearch(c *gin.Context) {
	op := c.Query("op")
	if op == "" {
		fail(c, http.StatusBadRequest, MsgMissingOP)
		return
	}

	records, err := s.search(c.Request.Context(), op)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, models.SearchResponse{
		OK:   true,
		Data: &models.SearchData{Records: records, Count: len(records)},
	})
}

// search runs a catalog search, reporting a load failure as the
// *models.APIError the API would return for it.
func (s *Server) search(_ context.Context, op string) ([]models.Record, error) {
	records, err := s.catalog.Search(op)
	if err != nil {
		s.metrics.IncSearch("error")
		return nil, &models.APIError{Status: http.StatusBadRequest, Message: fmt.Sprintf(MsgLoadFailed, loadReason(err))}
	}
	if records == nil {
		records = []models.Record{}
	}
	if len(records) == 0 {
		s.metrics.IncSearch("empty")
	} else {
		s.metrics.IncSearch("found")
	}
	return records, nil
}

func loadReason(err error) string {
	var loadErr *catalog.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Message
	}
	return err.Error()
}

func (s *Server) handleExport(c *gin.Context) {
	op := c.Query("op")
	if op == "" {
		fail(c, http.StatusBadRequest, MsgMissingOP)
		return
	}
	records, err := s.search(c.Request.Context(), op)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	table := ui.RenderRecords(records)
	if !table.HasData() {
		fail(c, http.StatusNotFound, ui.MsgNothingToExport)
		return
	}
	data, err := export.Table(table.Header, table.Texts(), true)
	if err != nil {
		slog.Error("export failed", slog.String("op", op), slog.Any("error", err))
		fail(c, http.StatusInternalServerError, ui.MsgExportFailed)
		return
	}

	name := export.FileName(s.now())
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func (s *Server) handleDecode(c *gin.Context) {
	value, status, err := s.decodeUpload(c)
	if err != nil {
		c.JSON(status, models.QRDecodeResponse{OK: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.QRDecodeResponse{OK: true, Data: &models.QRDecodeData{Value: value}})
}

// decodeUpload reads the multipart "file" field and decodes it. Errors
// carry the user-facing message and the status to answer with.
func (s *Server) decodeUpload(c *gin.Context) (string, int, error) {
	if s.decoder == nil {
		s.metrics.IncQRDecode("unavailable")
		return "", http.StatusServiceUnavailable, errors.New(ui.MsgQRUnavailable)
	}
	header, err := c.FormFile("file")
	if err != nil {
		s.metrics.IncQRDecode("missing")
		return "", http.StatusBadRequest, errors.New(MsgMissingFile)
	}
	f, err := header.Open()
	if err != nil {
		s.metrics.IncQRDecode("error")
		return "", http.StatusBadRequest, errors.New(MsgMissingFile)
	}
	defer f.Close()

	value, err := s.decoder.Decode(c.Request.Context(), f)
	if err != nil {
		slog.Debug("qr decode failed",
			slog.String("file", header.Filename),
			slog.Int64("size", header.Size),
			slog.Any("error", err),
		)
		s.metrics.IncQRDecode("not_detected")
		return "", http.StatusUnprocessableEntity, errors.New(ui.MsgQRNotDetected)
	}
	s.metrics.IncQRDecode("ok")
	return value, http.StatusOK, nil
}
