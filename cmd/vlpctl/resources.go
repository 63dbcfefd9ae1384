package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/shop"
)

// dateValue lets a shop.Date be set from a YYYY-MM-DD flag.
type dateValue struct{ d *shop.Date }

func (v dateValue) String() string {
	if v.d == nil || v.d.IsZero() {
		return ""
	}
	return v.d.String()
}

func (v dateValue) Set(s string) error {
	d, err := shop.ParseDate(s)
	if err != nil {
		return err
	}
	*v.d = d
	return nil
}

func (v dateValue) Type() string { return "date" }

func addListFlags(flags *pflag.FlagSet, opts *shop.ListOptions) {
	flags.IntVar(&opts.Limit, "limit", 0, "maximum number of rows, at most 200 (0 uses the server default)")
	flags.IntVar(&opts.Offset, "offset", 0, "number of rows to skip")
}

// addRangeFlags binds --from, --to and --days. resolve fills a missing range from --days.
func addRangeFlags(flags *pflag.FlagSet, r *shop.DateRange, defaultDays int) (resolve func()) {
	var days int
	flags.Var(dateValue{&r.From}, "from", "first day (YYYY-MM-DD)")
	flags.Var(dateValue{&r.To}, "to", "last day (YYYY-MM-DD)")
	flags.IntVar(&days, "days", defaultDays, "number of days ending today, used when --from and --to are not set")
	return func() {
		if r.From.IsZero() && r.To.IsZero() {
			*r = shop.LastDays(shop.DateOf(time.Now()), days)
		}
	}
}

func parseID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", arg, err)
	}
	return id, nil
}

func optionalStoreID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --store-id: %w", err)
	}
	return &id, nil
}

func (a *app) carsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "cars", Short: "Manage the car inventory"}

	var listOpts shop.ListOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List cars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cars, err := a.shop.ListCars(cmd.Context(), listOpts)
			if err != nil {
				return err
			}
			return printJSON(a.out, cars)
		},
	}
	addListFlags(list.Flags(), &listOpts)

	var (
		in                 shop.CarInput
		maker, model, memo string
		year, mileage      int
		purchasePrice      int64
	)
	create := &cobra.Command{
		Use:   "create STOCK_NO",
		Short: "Register a car",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.StockNo = args[0]
			flags := cmd.Flags()
			if flags.Changed("maker") {
				in.Maker = &maker
			}
			if flags.Changed("model") {
				in.Model = &model
			}
			if flags.Changed("memo") {
				in.Memo = &memo
			}
			if flags.Changed("year") {
				in.Year = &year
			}
			if flags.Changed("mileage") {
				in.Mileage = &mileage
			}
			if flags.Changed("purchase-price") {
				in.PurchasePrice = &purchasePrice
			}
			car, err := a.shop.CreateCar(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(a.out, car)
		},
	}
	create.Flags().StringVar(&maker, "maker", "", "maker")
	create.Flags().StringVar(&model, "model", "", "model")
	create.Flags().StringVar(&memo, "memo", "", "free text note")
	create.Flags().IntVar(&year, "year", 0, "model year")
	create.Flags().IntVar(&mileage, "mileage", 0, "mileage in km")
	create.Flags().Int64Var(&purchasePrice, "purchase-price", 0, "purchase price in yen")

	valuate := &cobra.Command{
		Use:   "valuate ID",
		Short: "Estimate the sell price of a car",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			car, err := a.shop.ValuateCar(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(a.out, car)
		},
	}

	cmd.AddCommand(list, create, valuate)
	return cmd
}

func (a *app) billingCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "billing", Short: "Estimates and invoices"}

	var (
		filter       shop.BillingFilter
		status, kind string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List billing documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = shop.BillingStatus(status)
			filter.Kind = shop.BillingKind(kind)
			docs, err := a.shop.ListBilling(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(a.out, docs)
		},
	}
	addListFlags(list.Flags(), &filter.ListOptions)
	list.Flags().StringVar(&status, "status", "", "draft, issued or void")
	list.Flags().StringVar(&kind, "kind", "", "estimate or invoice")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show a billing document with its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			doc, err := a.shop.GetBilling(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(a.out, doc)
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

func (a *app) expensesCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "expenses", Short: "Store expenses"}

	bindFilter := func(flags *pflag.FlagSet, f *shop.ExpenseFilter, storeID *string) {
		flags.Var(dateValue{&f.Start}, "from", "first day (YYYY-MM-DD)")
		flags.Var(dateValue{&f.End}, "to", "last day (YYYY-MM-DD)")
		flags.StringVar(&f.Category, "category", "", "category")
		flags.StringVar(&f.Query, "query", "", "search title, vendor and note")
		flags.StringVar(storeID, "store-id", "", "store id (admins only)")
	}

	var (
		listFilter  shop.ExpenseFilter
		listStoreID string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List expenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storeID, err := optionalStoreID(listStoreID)
			if err != nil {
				return err
			}
			listFilter.StoreID = storeID
			expenses, err := a.shop.ListExpenses(cmd.Context(), listFilter)
			if err != nil {
				return err
			}
			return printJSON(a.out, expenses)
		},
	}
	addListFlags(list.Flags(), &listFilter.ListOptions)
	bindFilter(list.Flags(), &listFilter, &listStoreID)

	var (
		exportFilter  shop.ExpenseFilter
		exportStoreID string
		output        string
		linkOnly      bool
	)
	export := &cobra.Command{
		Use:   "export",
		Short: "Download expenses as CSV",
		Long:  "Download expenses as CSV. --from and --to are required. Use --link to print the download url instead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storeID, err := optionalStoreID(exportStoreID)
			if err != nil {
				return err
			}
			exportFilter.StoreID = storeID

			if linkOnly {
				link, err := a.shop.ExpenseExportURL(exportFilter)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, link)
				return nil
			}

			var w io.Writer = a.out
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := a.shop.ExportExpenses(cmd.Context(), exportFilter, w)
			if err != nil {
				return err
			}
			if w != a.out {
				fmt.Fprintf(a.errOut, "Wrote %d bytes to %s\n", n, output)
			}
			return nil
		},
	}
	bindFilter(export.Flags(), &exportFilter, &exportStoreID)
	export.Flags().StringVarP(&output, "output", "o", "", "write the CSV to this file instead of stdout")
	export.Flags().BoolVar(&linkOnly, "link", false, "print the export url and exit")

	cmd.AddCommand(list, export)
	return cmd
}

func (a *app) customersCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "customers", Short: "Customers"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List customers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			customers, err := a.shop.ListCustomers(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(a.out, customers)
		},
	}

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			customer, err := a.shop.GetCustomer(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(a.out, customer)
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

func (a *app) worksCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "works", Short: "Work item master"}

	var filter shop.WorkFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			works, err := a.shop.ListWorks(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(a.out, works)
		},
	}
	addListFlags(list.Flags(), &filter.ListOptions)
	list.Flags().StringVar(&filter.Query, "query", "", "match on the name")

	var (
		in      shop.WorkInput
		storeID string
		price   string
		unit    string
	)
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Add a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(storeID)
			if err != nil {
				return fmt.Errorf("invalid --store-id: %w", err)
			}
			p, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid --price %q: %w", price, err)
			}
			in.StoreID = id
			in.Name = args[0]
			in.UnitPrice = p
			if cmd.Flags().Changed("unit") {
				in.Unit = &unit
			}
			work, err := a.shop.CreateWork(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(a.out, work)
		},
	}
	create.Flags().StringVar(&storeID, "store-id", "", "store id")
	create.Flags().StringVar(&price, "price", "0", "unit price")
	create.Flags().StringVar(&unit, "unit", "", "unit label")
	_ = create.MarkFlagRequired("store-id")

	cmd.AddCommand(list, create, a.materialsCommand())
	return cmd
}

func parseQty(flag, raw string) (decimal.Decimal, error) {
	q, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: %w", flag, raw, err)
	}
	return q, nil
}

func (a *app) materialsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "materials", Short: "Inventory items used by a work item"}

	list := &cobra.Command{
		Use:   "list WORK_ID",
		Short: "List the materials of a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workID, err := parseID(args[0])
			if err != nil {
				return err
			}
			materials, err := a.shop.ListWorkMaterials(cmd.Context(), workID)
			if err != nil {
				return err
			}
			return printJSON(a.out, materials)
		},
	}

	var storeID, qty string
	add := &cobra.Command{
		Use:   "add WORK_ID ITEM_ID",
		Short: "Attach an inventory item to a work item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workID, err := parseID(args[0])
			if err != nil {
				return err
			}
			itemID, err := parseID(args[1])
			if err != nil {
				return err
			}
			sid, err := uuid.Parse(storeID)
			if err != nil {
				return fmt.Errorf("invalid --store-id: %w", err)
			}
			q, err := parseQty("qty", qty)
			if err != nil {
				return err
			}
			m, err := a.shop.AddWorkMaterial(cmd.Context(), workID, shop.WorkMaterialInput{StoreID: sid, ItemID: itemID, QtyPerWork: q})
			if err != nil {
				return err
			}
			return printJSON(a.out, m)
		},
	}
	add.Flags().StringVar(&storeID, "store-id", "", "store id")
	add.Flags().StringVar(&qty, "qty", "1", "quantity used per work")
	_ = add.MarkFlagRequired("store-id")

	var newQty string
	set := &cobra.Command{
		Use:   "set WORK_ID MATERIAL_ID",
		Short: "Change the quantity used per work",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workID, err := parseID(args[0])
			if err != nil {
				return err
			}
			materialID, err := parseID(args[1])
			if err != nil {
				return err
			}
			q, err := parseQty("qty", newQty)
			if err != nil {
				return err
			}
			m, err := a.shop.UpdateWorkMaterial(cmd.Context(), workID, materialID, q)
			if err != nil {
				return err
			}
			return printJSON(a.out, m)
		},
	}
	set.Flags().StringVar(&newQty, "qty", "", "quantity used per work")
	_ = set.MarkFlagRequired("qty")

	remove := &cobra.Command{
		Use:   "remove WORK_ID MATERIAL_ID",
		Short: "Detach a material from a work item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workID, err := parseID(args[0])
			if err != nil {
				return err
			}
			materialID, err := parseID(args[1])
			if err != nil {
				return err
			}
			if err := a.shop.RemoveWorkMaterial(cmd.Context(), workID, materialID); err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, "removed")
			return err
		},
	}

	cmd.AddCommand(list, add, set, remove)
	return cmd
}

func (a *app) invitesCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "invites", Short: "Staff invite codes and seats"}

	seats := &cobra.Command{
		Use:   "seats",
		Short: "Show seat usage for the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.shop.Seats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(a.out, s)
		},
	}

	var listOpts shop.ListOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List invite codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			invites, err := a.shop.ListInvites(cmd.Context(), listOpts)
			if err != nil {
				return err
			}
			return printJSON(a.out, invites)
		},
	}
	addListFlags(list.Flags(), &listOpts)

	var (
		in      shop.InviteInput
		role    string
		expires time.Duration
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an invite code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Role = shop.Role(role)
			if expires > 0 {
				at := time.Now().Add(expires).UTC()
				in.ExpiresAt = &at
			}
			invite, err := a.shop.CreateInvite(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(a.out, invite)
		},
	}
	create.Flags().StringVar(&role, "role", "", "admin, manager or staff (default staff)")
	create.Flags().IntVar(&in.MaxUses, "max-uses", 0, "number of registrations allowed (default 1)")
	create.Flags().IntVar(&in.CodeLength, "code-length", 0, "code length, 6-24 (default 10)")
	create.Flags().DurationVar(&expires, "expires-in", 0, "expire the code after this long")

	cmd.AddCommand(seats, list, create)
	return cmd
}

func (a *app) reportsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "reports", Short: "Profit and dashboard figures"}

	newReport := func(use, short string, run func(*cobra.Command, shop.ReportOptions) (any, error)) *cobra.Command {
		var (
			opts      shop.ReportOptions
			storeID   string
			salesMode string
		)
		c := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
		}
		resolve := addRangeFlags(c.Flags(), &opts.Range, 30)
		c.Flags().StringVar(&storeID, "store-id", "", "store id (admins only)")
		c.Flags().StringVar(&salesMode, "sales-mode", "", "exclusive or inclusive of tax")
		c.RunE = func(cmd *cobra.Command, args []string) error {
			resolve()
			id, err := optionalStoreID(storeID)
			if err != nil {
				return err
			}
			opts.StoreID = id
			opts.SalesMode = shop.SalesMode(salesMode)
			out, err := run(cmd, opts)
			if err != nil {
				return err
			}
			return printJSON(a.out, out)
		}
		return c
	}

	summary := newReport("summary", "Sales, cost and profit for a date range",
		func(cmd *cobra.Command, opts shop.ReportOptions) (any, error) {
			return a.shop.ProfitSummary(cmd.Context(), opts)
		})
	dashboard := newReport("dashboard", "Dashboard totals for a date range",
		func(cmd *cobra.Command, opts shop.ReportOptions) (any, error) {
			return a.shop.DashboardSummary(cmd.Context(), opts)
		})

	daily := newReport("daily", "Profit per day",
		func(cmd *cobra.Command, opts shop.ReportOptions) (any, error) {
			return a.shop.ProfitDaily(cmd.Context(), opts)
		})
	monthly := newReport("monthly", "Profit per month",
		func(cmd *cobra.Command, opts shop.ReportOptions) (any, error) {
			return a.shop.ProfitMonthly(cmd.Context(), opts)
		})
	byWork := newReport("by-work", "Profit per work item",
		func(cmd *cobra.Command, opts shop.ReportOptions) (any, error) {
			return a.shop.ProfitByWork(cmd.Context(), opts)
		})
	byItem := newReport("by-item", "Material cost per inventory item (--sales-mode is ignored)",
		func(cmd *cobra.Command, opts shop.ReportOptions) (any, error) {
			return a.shop.CostByItem(cmd.Context(), opts)
		})

	cmd.AddCommand(summary, dashboard, daily, monthly, byWork, byItem)
	return cmd
}
