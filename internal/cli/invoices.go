package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-desk/internal/export"
	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
	"github.com/joseph-ayodele/invoice-desk/internal/invoice"
	"github.com/joseph-ayodele/invoice-desk/internal/workspace"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the invoices the service has processed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.client.ListInvoices(cmd.Context())
			if err != nil {
				return err
			}
			return a.renderer(cmd.OutOrStdout()).Invoices(names)
		},
	}
}

// selectOrCurrent selects args[0] when given, otherwise keeps the session's invoice.
func selectOrCurrent(cmd *cobra.Command, a *app, args []string) (*workspace.Workspace, error) {
	ws, err := a.workspace(cmd.Context())
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		if _, err := ws.Select(cmd.Context(), args[0]); err != nil {
			return nil, err
		}
	}
	if ws.Record() == nil {
		return nil, workspace.ErrNoInvoiceSelected
	}
	return ws, nil
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [filename]",
		Short: "Print an invoice as JSON and check its line item totals",
		Long: `Print an invoice in the copy format (3-space indented JSON). With a filename the
invoice is fetched and becomes the session's selected invoice; without one the
selected invoice, including unsubmitted edits, is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			ws, err := selectOrCurrent(cmd, a, args)
			if err != nil {
				return err
			}
			out := a.renderer(cmd.OutOrStdout())
			rec := ws.Record()
			if err := out.Record(rec); err != nil {
				return err
			}
			return out.Totals(invoice.CheckTotals(rec))
		},
	}
}

func newFieldsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fields [filename]",
		Short: "List the editable fields of an invoice with their paths",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			ws, err := selectOrCurrent(cmd, a, args)
			if err != nil {
				return err
			}
			return a.renderer(cmd.OutOrStdout()).Fields(ws.Fields())
		},
	}
}

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Change one field of the selected invoice",
		Long: `Change one field of the selected invoice. The path is the dotted form shown by
"invoicedesk fields", with numbers indexing into lists:

  invoicedesk set lineItems.1.amount 25
  invoicedesk set invoiceDetails.number INV-0042

The change is kept in the session until "invoicedesk submit".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			path, err := formengine.ParsePath(args[0])
			if err != nil {
				return err
			}
			ws, err := selectOrCurrent(cmd, a, nil)
			if err != nil {
				return err
			}
			if _, err := ws.Edit(cmd.Context(), path, args[1]); err != nil {
				return err
			}
			out := a.renderer(cmd.OutOrStdout())
			if err := out.Message(fmt.Sprintf("%s = %s", path, args[1])); err != nil {
				return err
			}
			if t := invoice.CheckTotals(ws.Record()); t.Mismatch() {
				return out.Totals(t)
			}
			return nil
		},
	}
}

func newSubmitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Send the selected invoice, with its edits, back to the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			ws, err := selectOrCurrent(cmd, a, nil)
			if err != nil {
				return err
			}
			if err := ws.Submit(cmd.Context()); err != nil {
				return err
			}
			return a.renderer(cmd.OutOrStdout()).Message("Invoice updated successfully")
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "export [filename...]",
		Short: "Write invoice fields to an XLSX workbook",
		Long: `Write one row per editable field to an XLSX workbook, plus a sheet comparing
line item sums with invoice totals. Without filenames the selected invoice is exported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			var docs []export.Document
			if len(args) == 0 {
				ws, err := selectOrCurrent(cmd, a, nil)
				if err != nil {
					return err
				}
				st := ws.Snapshot()
				docs = append(docs, export.Document{Filename: st.Filename, Record: st.Record})
			}
			for _, name := range args {
				rec, err := a.client.GetInvoice(cmd.Context(), name)
				if err != nil {
					return err
				}
				docs = append(docs, export.Document{Filename: name, Record: rec})
			}

			data, err := export.NewService(nil, a.logger).FieldsXLSX(docs)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outFile, err)
			}
			return a.renderer(cmd.OutOrStdout()).Message(fmt.Sprintf("wrote %d invoice(s) to %s", len(docs), outFile))
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "invoices.xlsx", "workbook to write")
	return cmd
}
