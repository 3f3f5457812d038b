package labels

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/krishisahay/krishisahay-go/internal/conf"
	"github.com/krishisahay/krishisahay-go/internal/disease"
)

// Command creates the command that prints the classifier label table.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "Print the disease label table",
		Long:  "Print the class index, label and display name of every disease class the model predicts.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := disease.LoadLabels(settings.Model.LabelsPath)
			if err != nil {
				return fmt.Errorf("failed to load labels: %w", err)
			}
			return printLabels(cmd.OutOrStdout(), table)
		},
	}
}

func printLabels(w io.Writer, table []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tLABEL\tNAME")
	for i, label := range table {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, label, disease.DisplayName(label))
	}
	return tw.Flush()
}
