package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leasedesk/reconcile/internal/model"
	"github.com/leasedesk/reconcile/internal/store"
)

var (
	elementsTenant  string
	elementsType    string
	elementsLowConf bool
	elementsLimit   int
	elementsJSON    bool
)

var elementsCmd = &cobra.Command{
	Use:   "elements",
	Short: "Inspect shared elements",
}

var elementsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List shared elements for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		if elementsTenant == "" {
			return fmt.Errorf("--tenant is required")
		}
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.ElementFilter{Limit: elementsLimit}
		if elementsType != "" {
			filter.ElementType = model.ElementType(elementsType)
		}
		if elementsLowConf {
			low := true
			filter.LowConfidence = &low
		}

		elements, err := st.ListElements(cmd.Context(), elementsTenant, filter)
		if err != nil {
			return err
		}

		if elementsJSON {
			return json.NewEncoder(os.Stdout).Encode(elements)
		}
		for _, el := range elements {
			flag := " "
			if el.LowConfidence {
				flag = "!"
			}
			fmt.Printf("%s %s  v%d  %-12s  %-30s  %s\n",
				flag, el.ID, el.Version, el.ElementType, el.CanonicalName, el.CurrentValue)
		}
		fmt.Printf("%d elements\n", len(elements))
		return nil
	},
}

var elementsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one element with its page references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		el, err := st.GetElement(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		refs, err := st.ListPageRefs(cmd.Context(), el.ID)
		if err != nil {
			return err
		}

		out := struct {
			Element *model.SharedElement  `json:"element"`
			Pages   []model.PageReference `json:"pages"`
		}{el, refs}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var elementsHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show the propagation log for an element",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.ListPropagation(cmd.Context(), args[0], elementsLimit)
		if err != nil {
			return err
		}

		if elementsJSON {
			return json.NewEncoder(os.Stdout).Encode(entries)
		}
		for _, e := range entries {
			fmt.Printf("%s  v%d -> v%d  %q -> %q  (%d pages)\n",
				e.ChangedAt.Format("2006-01-02 15:04:05"),
				e.OldVersion, e.NewVersion,
				e.OldValue, e.NewValue,
				len(e.AffectedPageIDs),
			)
		}
		return nil
	},
}

// openStore opens the configured store without the analyzer environment.
func openStore(cmd *cobra.Command) (store.Store, error) {
	st, err := initStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(cmd.Context()); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func init() {
	elementsCmd.PersistentFlags().StringVar(&elementsTenant, "tenant", "", "tenant id")
	elementsCmd.PersistentFlags().IntVar(&elementsLimit, "limit", 100, "max rows")
	elementsCmd.PersistentFlags().BoolVar(&elementsJSON, "json", false, "JSON output")
	elementsListCmd.Flags().StringVar(&elementsType, "type", "", "filter by element type")
	elementsListCmd.Flags().BoolVar(&elementsLowConf, "low-confidence", false, "only low-confidence elements")

	elementsCmd.AddCommand(elementsListCmd, elementsShowCmd, elementsHistoryCmd)
	rootCmd.AddCommand(elementsCmd)
}
