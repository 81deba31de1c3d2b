package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/invoice-desk/internal/common"
	"github.com/joseph-ayodele/invoice-desk/internal/export"
	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
	"github.com/joseph-ayodele/invoice-desk/internal/invoice"
	"github.com/joseph-ayodele/invoice-desk/internal/workspace"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type selectRequest struct {
	Filename string `json:"filename" form:"filename"`
}

type editRequest struct {
	Path  formengine.Path `json:"path"`
	Value *string         `json:"value"`
}

type fieldsResponse struct {
	Filename string             `json:"filename,omitempty"`
	Fields   []formengine.Field `json:"fields"`
	Totals   *invoice.Totals    `json:"totals,omitempty"`
	Dirty    bool               `json:"dirty"`
}

func fieldsOf(st workspace.State) fieldsResponse {
	fields := st.Fields
	if fields == nil {
		fields = []formengine.Field{}
	}
	return fieldsResponse{Filename: st.Filename, Fields: fields, Totals: st.Totals, Dirty: st.Dirty}
}

// apiUpload replies with the service's own result shape plus the refreshed list.
func (s *Server) apiUpload(c *gin.Context) {
	files, rejected, err := uploadedFiles(c)
	if err != nil {
		s.replyError(c, err)
		return
	}
	ws := workspaceFrom(c)
	results, err := ws.Upload(c.Request.Context(), files, rejected...)
	if err != nil {
		s.replyError(c, err)
		return
	}
	docs := make([]*formengine.Mapping, 0, len(results))
	for _, r := range results {
		docs = append(docs, r.Document())
	}
	invoices := ws.Snapshot().Invoices
	if invoices == nil {
		invoices = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"results": docs, "invoices": invoices})
}

func (s *Server) apiInvoices(c *gin.Context) {
	names, err := workspaceFrom(c).Refresh(c.Request.Context())
	if err != nil {
		s.replyError(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"invoices": names})
}

func (s *Server) apiSelect(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.replyError(c, common.InvalidInputError("request body must be JSON with a filename"))
		return
	}
	ws := workspaceFrom(c)
	if _, err := ws.Select(c.Request.Context(), req.Filename); err != nil {
		s.replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, fieldsOf(ws.Snapshot()))
}

func (s *Server) apiFields(c *gin.Context) {
	c.JSON(http.StatusOK, fieldsOf(workspaceFrom(c).Snapshot()))
}

func (s *Server) apiEdit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.replyError(c, common.InvalidInputErrorf("bad edit request: %v", err))
		return
	}
	if req.Value == nil {
		s.replyError(c, common.InvalidInputError("value is required"))
		return
	}
	ws := workspaceFrom(c)
	if _, err := ws.Edit(c.Request.Context(), req.Path, *req.Value); err != nil {
		s.replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, fieldsOf(ws.Snapshot()))
}

func (s *Server) apiSubmit(c *gin.Context) {
	if err := workspaceFrom(c).Submit(c.Request.Context()); err != nil {
		s.replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// apiRecord returns the held record in the copy format.
func (s *Server) apiRecord(c *gin.Context) {
	data, err := workspaceFrom(c).CopyJSON()
	if err != nil {
		s.replyError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// apiExport exports the extracted uploads and the selected invoice.
func (s *Server) apiExport(c *gin.Context) {
	st := workspaceFrom(c).Snapshot()

	var docs []export.Document
	for _, r := range st.Uploads {
		if r.OK() {
			docs = append(docs, export.Document{Filename: r.Filename, Record: r.Record})
		}
	}
	if st.Record != nil {
		docs = append(docs, export.Document{Filename: st.Filename, Record: st.Record})
	}
	if len(docs) == 0 {
		s.replyError(c, workspace.ErrNoInvoiceSelected)
		return
	}

	data, err := s.exporter.FieldsXLSX(docs)
	if err != nil {
		s.replyError(c, common.WrapError(err, "export"))
		return
	}
	name := "invoices.xlsx"
	if len(docs) == 1 && docs[0].Filename != "" {
		name = strings.TrimSuffix(docs[0].Filename, ".pdf") + ".xlsx"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, data)
}
