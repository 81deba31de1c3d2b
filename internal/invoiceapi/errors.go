package invoiceapi

import "github.com/joseph-ayodele/invoice-desk/internal/common"

// User-input errors, reported before any request is made.
var (
	ErrNoFiles         = common.NewAppError("NO_FILES", "Please select a file first!", common.ErrInvalidInput)
	ErrMissingFilename = common.NewAppError("MISSING_FILENAME", "Filename is missing.", common.ErrInvalidInput)
	ErrUnsupportedFile = common.NewAppError("UNSUPPORTED_FILE", "Invalid file type. Only PDF files are supported", common.ErrInvalidInput)
)
