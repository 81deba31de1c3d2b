package web

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/invoice-desk/internal/common"
	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
	"github.com/joseph-ayodele/invoice-desk/internal/invoice"
	"github.com/joseph-ayodele/invoice-desk/internal/invoiceapi"
	"github.com/joseph-ayodele/invoice-desk/internal/workspace"
)

const (
	flashCookie     = "invoicedesk_flash"
	uploadFailedMsg = "An error occurred while uploading the file."
)

type fieldView struct {
	N      int
	Label  string
	Value  string
	Path   string // JSON array, posted back untouched
	Dotted string
}

type sectionView struct {
	Title  string
	Fields []fieldView
}

type uploadView struct {
	Filename string
	JSON     string
	Error    string
}

type pageData struct {
	Invoices   []string
	Selected   string
	Sections   []sectionView
	Uploads    []uploadView
	RecordJSON string
	Totals     *invoice.Totals
	Dirty      bool
	Flash      string
	FlashError bool
}

func (s *Server) handleIndex(c *gin.Context) {
	ws := workspaceFrom(c)
	data := pageData{}
	data.Flash, data.FlashError = takeFlash(c)

	if _, err := ws.Refresh(c.Request.Context()); err != nil && data.Flash == "" {
		data.Flash, data.FlashError = "Could not load the invoice list: "+common.UserMessage(err), true
	}

	st := ws.Snapshot()
	data.Invoices = st.Invoices
	data.Selected = st.Filename
	data.Totals = st.Totals
	data.Dirty = st.Dirty
	data.Sections = sections(st.Fields)
	if st.Record != nil {
		if b, err := formengine.Indent(st.Record, formengine.CopyIndent); err == nil {
			data.RecordJSON = string(b)
		}
	}
	for _, r := range st.Uploads {
		v := uploadView{Filename: r.Filename, Error: r.Error}
		if r.OK() {
			if b, err := formengine.Indent(r.Record, formengine.CopyIndent); err == nil {
				v.JSON = string(b)
			}
		}
		data.Uploads = append(data.Uploads, v)
	}

	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) handleUploadForm(c *gin.Context) {
	files, rejected, err := uploadedFiles(c)
	if err == nil {
		var results []invoiceapi.ExtractResult
		results, err = workspaceFrom(c).Upload(c.Request.Context(), files, rejected...)
		if err == nil {
			setFlash(c, "Processed "+strconv.Itoa(len(results))+" file(s).", false)
		}
	}
	if err != nil {
		msg := uploadFailedMsg
		if errors.Is(err, common.ErrInvalidInput) || errors.Is(err, common.ErrValidation) {
			msg = common.UserMessage(err)
		}
		setFlash(c, msg, true)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

var errBadSelectForm = common.InvalidInputError("Could not read the selected invoice from the form.")

func (s *Server) handleSelectForm(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBind(&req); err != nil {
		setFlash(c, common.UserMessage(errBadSelectForm), true)
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	if _, err := workspaceFrom(c).Select(c.Request.Context(), req.Filename); err != nil {
		setFlash(c, common.UserMessage(err), true)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleEditForm(c *gin.Context) {
	n, err := s.applyFormEdits(c)
	switch {
	case err != nil:
		setFlash(c, common.UserMessage(err), true)
	case n > 0:
		setFlash(c, "Saved "+strconv.Itoa(n)+" change(s).", false)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// handleSubmitForm saves pending form edits and then submits the record.
func (s *Server) handleSubmitForm(c *gin.Context) {
	if _, err := s.applyFormEdits(c); err != nil {
		setFlash(c, common.UserMessage(err), true)
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	if err := workspaceFrom(c).Submit(c.Request.Context()); err != nil {
		setFlash(c, common.UserMessage(err), true)
	} else {
		setFlash(c, "Invoice updated successfully", false)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// applyFormEdits reads path.N / field.N pairs and applies the values that differ
// from the held record, in field order.
func (s *Server) applyFormEdits(c *gin.Context) (int, error) {
	if err := c.Request.ParseForm(); err != nil {
		return 0, common.InvalidInputError("could not read the form")
	}
	form := c.Request.PostForm

	var idx []int
	for key := range form {
		if rest, ok := strings.CutPrefix(key, "path."); ok {
			if n, err := strconv.Atoi(rest); err == nil {
				idx = append(idx, n)
			}
		}
	}
	sort.Ints(idx)

	ws := workspaceFrom(c)
	changed := 0
	for _, n := range idx {
		var path formengine.Path
		if err := path.UnmarshalJSON([]byte(form.Get("path." + strconv.Itoa(n)))); err != nil {
			return changed, common.InvalidInputErrorf("bad field path: %v", err)
		}
		value := form.Get("field." + strconv.Itoa(n))

		rec := ws.Record()
		if rec == nil {
			return changed, workspace.ErrNoInvoiceSelected
		}
		if cur, err := formengine.Get(rec, path); err == nil {
			if sc, ok := cur.(formengine.Scalar); ok && sc.Text() == value {
				continue
			}
		}
		if _, err := ws.Edit(c.Request.Context(), path, value); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

func sections(fields []formengine.Field) []sectionView {
	var out []sectionView
	for i, f := range fields {
		if len(out) == 0 || out[len(out)-1].Title != f.Section {
			out = append(out, sectionView{Title: f.Section})
		}
		path, _ := f.Path.MarshalJSON()
		cur := &out[len(out)-1]
		cur.Fields = append(cur.Fields, fieldView{
			N:      i,
			Label:  f.Label,
			Value:  f.Value,
			Path:   string(path),
			Dotted: f.Path.String(),
		})
	}
	return out
}

func setFlash(c *gin.Context, msg string, isErr bool) {
	kind := "ok"
	if isErr {
		kind = "error"
	}
	c.SetCookie(flashCookie, kind+":"+msg, 60, "/", "", false, true)
}

func takeFlash(c *gin.Context) (string, bool) {
	v, err := c.Cookie(flashCookie)
	if err != nil || v == "" {
		return "", false
	}
	c.SetCookie(flashCookie, "", -1, "/", "", false, true)
	kind, msg, _ := strings.Cut(v, ":")
	return msg, kind == "error"
}
