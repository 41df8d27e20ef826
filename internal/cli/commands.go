package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudkit/pkg/document"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

func (a *app) printer(cmd *cobra.Command) printer {
	return printer{w: cmd.OutOrStdout(), jsonMode: a.flags.jsonMode}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			svc, release, err := a.service()
			if err != nil {
				return err
			}
			defer release()

			doc, found, err := svc.Lookup(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			if !found {
				return userError{fmt.Errorf("record %d: %w", ids[0], types.ErrNotFound)}
			}
			return a.printer(cmd).documents([]*document.Document{doc})
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var (
		page int
		sort string
		desc bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records",
		Long: `List one page of records. With the local policy every cached record is
listed; --sort orders them by a field using numeric-aware collation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, release, err := a.service()
			if err != nil {
				return err
			}
			defer release()

			if sort != "" {
				if svc.Policy() != types.PolicyLocal {
					return usagef("--sort needs --policy local")
				}
				return a.printer(cmd).documents(svc.GetAllSortedBy(sort, desc))
			}
			pg, err := svc.GetAll(cmd.Context(), page)
			if err != nil {
				return err
			}
			return a.printer(cmd).page(pg)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().StringVar(&sort, "sort", "", "sort cached records by this field")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	return cmd
}

func newSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save <json | key=value...>",
		Short: "Create or update a record",
		Long: `Save sends a record to the API. Without an id field the record is created
and the assigned id is printed; with id=<n> the record is updated.

Example:
  crudkit --endpoint contacts save name=Ada active=true
  crudkit --type Contact --policy local save '{"id": 4, "name": "Grace"}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseRecord(args)
			if err != nil {
				return err
			}
			svc, release, err := a.service()
			if err != nil {
				return err
			}
			defer release()

			doc := document.New(rec)
			id, err := svc.Save(cmd.Context(), doc)
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return a.printer(cmd).json(map[string]int64{"id": id})
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete records",
		Long:  "Delete one record, or several in a single batch request.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			svc, release, err := a.service()
			if err != nil {
				return err
			}
			defer release()

			docs := make([]*document.Document, len(ids))
			for i, id := range ids {
				docs[i] = &document.Document{ID: id, Fields: types.Record{}}
			}
			if len(docs) == 1 {
				_, err = svc.Delete(cmd.Context(), docs[0], nil)
			} else {
				_, err = svc.DeleteMultiple(cmd.Context(), docs, nil)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", len(ids))
			return nil
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		page int
		all  bool
	)
	cmd := &cobra.Command{
		Use:   "search [json | key=value...]",
		Short: "Search records on the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := types.Record{}
			if len(args) > 0 {
				var err error
				if criteria, err = parseRecord(args); err != nil {
					return err
				}
			}
			svc, release, err := a.service()
			if err != nil {
				return err
			}
			defer release()

			if all {
				docs, err := svc.SearchWithoutPaginate(cmd.Context(), criteria)
				if err != nil {
					return err
				}
				return a.printer(cmd).documents(docs)
			}
			pg, err := svc.Search(cmd.Context(), criteria, page)
			if err != nil {
				return err
			}
			return a.printer(cmd).page(pg)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().BoolVar(&all, "all", false, "return every match without pagination")
	return cmd
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replace the local cache with every record on the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, release, err := a.service()
			if err != nil {
				return err
			}
			defer release()

			if svc.Policy() != types.PolicyLocal {
				return usagef("sync needs --policy local")
			}
			n, err := svc.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d records\n", n)
			return nil
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var sort string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the local cache every time it changes",
		Long: `Watch prints the cached records now and after every change made through
this process, until interrupted. Pair it with --policy local.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, release, err := a.service()
			if err != nil {
				return err
			}
			defer release()

			if svc.Policy() != types.PolicyLocal {
				return usagef("watch needs --policy local")
			}
			p := a.printer(cmd)
			return svc.RegisterObserver(cmd.Context(), sort, func(docs []*document.Document) {
				if err := p.documents(docs); err != nil {
					a.logger.Sugar().Warnw("print", "error", err)
				}
			})
		},
	}
	cmd.Flags().StringVar(&sort, "sort", "id", "sort field")
	return cmd
}
