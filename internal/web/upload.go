package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/invoice-desk/internal/common"
	"github.com/joseph-ayodele/invoice-desk/internal/invoiceapi"
)

const maxUploadBytes = 25 << 20

// uploadedFiles reads every part under "files". Parts that are not acceptable PDFs
// come back as per-file error results so the rest of the batch still goes through.
// A form without files yields nothing; the workspace reports that.
func uploadedFiles(c *gin.Context) ([]invoiceapi.File, []invoiceapi.ExtractResult, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, nil
	}
	headers := form.File["files"]

	var (
		files    []invoiceapi.File
		rejected []invoiceapi.ExtractResult
	)
	for _, fh := range headers {
		v := common.NewValidator().Field("files", fh.Filename, common.Required, common.PDFExtension, common.MaxLength(255))
		if v.HasErrors() {
			rejected = append(rejected, invoiceapi.ExtractResult{Filename: fh.Filename, Error: v.Errors()[0].Message})
			continue
		}
		f, err := readPart(fh)
		switch {
		case errors.Is(err, common.ErrInvalidInput) || errors.Is(err, common.ErrValidation):
			rejected = append(rejected, invoiceapi.ExtractResult{Filename: fh.Filename, Error: common.UserMessage(err)})
		case err != nil:
			return nil, nil, err
		default:
			files = append(files, f)
		}
	}
	return files, rejected, nil
}

func readPart(fh *multipart.FileHeader) (invoiceapi.File, error) {
	if fh.Size > maxUploadBytes {
		return invoiceapi.File{}, common.InvalidInputErrorf("%s is larger than %d MB", fh.Filename, maxUploadBytes>>20)
	}
	src, err := fh.Open()
	if err != nil {
		return invoiceapi.File{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		return invoiceapi.File{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return invoiceapi.NewFile(fh.Filename, data)
}
