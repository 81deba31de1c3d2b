package constants

// Record keys with a fixed meaning in extracted invoices.
const (
	KeyID             = "_id"
	KeyFilename       = "filename"
	KeyInvoiceDetails = "invoiceDetails"
	KeyTaxDetails     = "taxDetails"
	KeyError          = "error"
)

// ReservedKeys are metadata and never shown as editable fields.
var ReservedKeys = []string{KeyID, KeyFilename}

// FlatGroupKeys are rendered as a labelled sub-form.
var FlatGroupKeys = []string{KeyInvoiceDetails, KeyTaxDetails}

// LineItemKeys are the keys the extraction service uses for repeated line items.
var LineItemKeys = []string{"lineItems", "line_items", "items"}

// LineAmountKeys name the per-line amount, most specific first.
var LineAmountKeys = []string{"total_amount", "total_price", "amount", "totalAmount"}

// InvoiceTotalKeys name the declared invoice total, most specific first.
var InvoiceTotalKeys = []string{"total_invoice_amount", "totalInvoiceAmount", "total_amount", "totalAmount", "total"}
