package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/denismitr/lemonrest"
	"github.com/denismitr/lemonrest/internal/config"
	"github.com/denismitr/lemonrest/options"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newInspectCmd(a *app) *cobra.Command {
	var order string
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect [id]",
		Short: "Print the collection, or one record, as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.readOnlyStorage(); err != nil {
				return err
			}

			c, closer, err := a.openCollection(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer func() { _ = closer() }()

			var out interface{}
			err = c.View(cmd.Context(), func(tx *lemonrest.Tx) error {
				if len(args) == 1 {
					id, err := lemonrest.ParseID(args[0])
					if err != nil {
						return err
					}
					r, err := tx.Get(id)
					out = r
					return err
				}

				o, err := options.ParseOrder(order)
				if err != nil {
					return err
				}
				records, err := tx.All(options.List().SetOrder(o).Limit(limit))
				out = records
				return err
			})
			if err != nil {
				return err
			}

			b, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return errors.Wrap(err, "could not encode output")
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}

	cmd.Flags().StringVar(&order, "order", "", "asc or desc by id, collection order when empty")
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many records")

	return cmd
}

// readOnlyStorage keeps inspect from creating or truncating the data file.
func (a *app) readOnlyStorage() error {
	a.cfg.Storage.TruncateOnOpen = false
	if a.cfg.Storage.Driver != config.DriverFile {
		return nil
	}

	if _, err := os.Stat(a.cfg.Storage.Path); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(lemonrest.ErrStorageFailed, "data file %s does not exist", a.cfg.Storage.Path)
		}
		return errors.Wrapf(lemonrest.ErrStorageFailed, "data file %s: %s", a.cfg.Storage.Path, err.Error())
	}

	return nil
}
